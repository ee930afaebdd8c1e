package registry

import (
	"fmt"
	"math"
	"strconv"

	"github.com/louisbranch/recordkeep/internal/services/registry/domain"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Message field names. Keys, clocks and other full-range uint64 values travel
// as decimal strings because structpb numbers are float64.
const (
	fieldKey           = "key"
	fieldOwner         = "owner"
	fieldNewOwner      = "new_owner"
	fieldIdentity      = "identity"
	fieldGenesisBlock  = "genesis_block"
	fieldMetadata      = "metadata"
	fieldMetric        = "metric"
	fieldNotes         = "notes"
	fieldTaxonomy      = "taxonomy"
	fieldCount         = "count"
	fieldGranted       = "granted"
	fieldVerified      = "verified"
	fieldRecord        = "record"
	fieldRecords       = "records"
	fieldEvents        = "events"
	fieldPageSize      = "page_size"
	fieldPageToken     = "page_token"
	fieldNextPageToken = "next_page_token"
	fieldAfterSeq      = "after_seq"
	fieldSeq           = "seq"
	fieldRecordKey     = "record_key"
	fieldType          = "type"
	fieldActor         = "actor"
	fieldClock         = "clock"
)

func invalidArgument(format string, args ...any) error {
	return status.Errorf(codes.InvalidArgument, format, args...)
}

// requireUint64 reads a decimal string or a whole number.
func requireUint64(in *structpb.Struct, name string) (uint64, error) {
	value, ok := in.GetFields()[name]
	if !ok {
		return 0, invalidArgument("%s is required", name)
	}
	return uint64Value(value, name)
}

func optionalUint64(in *structpb.Struct, name string) (uint64, error) {
	value, ok := in.GetFields()[name]
	if !ok {
		return 0, nil
	}
	return uint64Value(value, name)
}

func uint64Value(value *structpb.Value, name string) (uint64, error) {
	switch kind := value.GetKind().(type) {
	case *structpb.Value_StringValue:
		parsed, err := strconv.ParseUint(kind.StringValue, 10, 64)
		if err != nil {
			return 0, invalidArgument("%s must be a decimal uint64", name)
		}
		return parsed, nil
	case *structpb.Value_NumberValue:
		n := kind.NumberValue
		if n < 0 || n != math.Trunc(n) || n >= 1<<53 {
			return 0, invalidArgument("%s must be a whole number below 2^53; send larger values as strings", name)
		}
		return uint64(n), nil
	default:
		return 0, invalidArgument("%s must be a string or number", name)
	}
}

func optionalInt32(in *structpb.Struct, name string) (int32, error) {
	value, ok := in.GetFields()[name]
	if !ok {
		return 0, nil
	}
	n, ok := value.GetKind().(*structpb.Value_NumberValue)
	if !ok || n.NumberValue != math.Trunc(n.NumberValue) || n.NumberValue < math.MinInt32 || n.NumberValue > math.MaxInt32 {
		return 0, invalidArgument("%s must be a 32-bit integer", name)
	}
	return int32(n.NumberValue), nil
}

func optionalString(in *structpb.Struct, name string) (string, error) {
	value, ok := in.GetFields()[name]
	if !ok {
		return "", nil
	}
	s, ok := value.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", invalidArgument("%s must be a string", name)
	}
	return s.StringValue, nil
}

func requireIdentity(in *structpb.Struct, name string) (domain.Identity, error) {
	raw, err := optionalString(in, name)
	if err != nil {
		return domain.Identity{}, err
	}
	identity, err := domain.ParseIdentity(raw)
	if err != nil {
		return domain.Identity{}, invalidArgument("%s is required", name)
	}
	return identity, nil
}

func optionalStringList(in *structpb.Struct, name string) ([]string, error) {
	value, ok := in.GetFields()[name]
	if !ok {
		return nil, nil
	}
	list, ok := value.GetKind().(*structpb.Value_ListValue)
	if !ok {
		return nil, invalidArgument("%s must be a list of strings", name)
	}
	out := make([]string, 0, len(list.ListValue.GetValues()))
	for i, item := range list.ListValue.GetValues() {
		s, ok := item.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return nil, invalidArgument("%s[%d] must be a string", name, i)
		}
		out = append(out, s.StringValue)
	}
	return out, nil
}

// fieldsFromStruct reads the owner-editable fields. Missing fields decode to
// zero values and are left for domain validation to reject.
func fieldsFromStruct(in *structpb.Struct) (domain.Fields, error) {
	var (
		fields domain.Fields
		err    error
	)
	if fields.Metadata, err = optionalString(in, fieldMetadata); err != nil {
		return domain.Fields{}, err
	}
	if fields.Metric, err = optionalUint64(in, fieldMetric); err != nil {
		return domain.Fields{}, err
	}
	if fields.Notes, err = optionalString(in, fieldNotes); err != nil {
		return domain.Fields{}, err
	}
	if fields.Taxonomy, err = optionalStringList(in, fieldTaxonomy); err != nil {
		return domain.Fields{}, err
	}
	return fields, nil
}

func fieldsToMap(fields domain.Fields) map[string]any {
	return map[string]any{
		fieldMetadata: fields.Metadata,
		fieldMetric:   float64(fields.Metric),
		fieldNotes:    fields.Notes,
		fieldTaxonomy: stringsToAny(fields.Taxonomy),
	}
}

func recordToMap(record domain.Record) map[string]any {
	out := fieldsToMap(record.Fields)
	out[fieldKey] = formatUint(record.Key)
	out[fieldOwner] = record.Owner.String()
	out[fieldGenesisBlock] = formatUint(record.GenesisBlock)
	return out
}

func eventToMap(event domain.Event) map[string]any {
	return map[string]any{
		fieldSeq:       formatUint(event.Seq),
		fieldRecordKey: formatUint(event.RecordKey),
		fieldType:      string(event.Type),
		fieldActor:     event.Actor.String(),
		fieldOwner:     event.Owner.String(),
		fieldClock:     formatUint(event.Clock),
	}
}

func stringsToAny(values []string) []any {
	out := make([]any, 0, len(values))
	for _, v := range values {
		out = append(out, v)
	}
	return out
}

func formatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func newStruct(values map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(values)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

func recordFromStruct(in *structpb.Struct) (domain.Record, error) {
	fields, err := fieldsFromStruct(in)
	if err != nil {
		return domain.Record{}, err
	}
	key, err := requireUint64(in, fieldKey)
	if err != nil {
		return domain.Record{}, err
	}
	owner, err := requireIdentity(in, fieldOwner)
	if err != nil {
		return domain.Record{}, err
	}
	genesis, err := requireUint64(in, fieldGenesisBlock)
	if err != nil {
		return domain.Record{}, err
	}
	return domain.Record{Key: key, Owner: owner, GenesisBlock: genesis, Fields: fields}, nil
}

func eventFromStruct(in *structpb.Struct) (domain.Event, error) {
	var (
		event domain.Event
		err   error
	)
	if event.Seq, err = requireUint64(in, fieldSeq); err != nil {
		return domain.Event{}, err
	}
	if event.RecordKey, err = requireUint64(in, fieldRecordKey); err != nil {
		return domain.Event{}, err
	}
	if event.Clock, err = optionalUint64(in, fieldClock); err != nil {
		return domain.Event{}, err
	}
	eventType, err := optionalString(in, fieldType)
	if err != nil {
		return domain.Event{}, err
	}
	event.Type = domain.EventType(eventType)
	if event.Actor, err = requireIdentity(in, fieldActor); err != nil {
		return domain.Event{}, err
	}
	if event.Owner, err = requireIdentity(in, fieldOwner); err != nil {
		return domain.Event{}, err
	}
	return event, nil
}

func nestedStruct(in *structpb.Struct, name string) (*structpb.Struct, error) {
	value, ok := in.GetFields()[name]
	if !ok {
		return nil, fmt.Errorf("response missing %s", name)
	}
	s := value.GetStructValue()
	if s == nil {
		return nil, fmt.Errorf("response %s is not an object", name)
	}
	return s, nil
}

func structList(in *structpb.Struct, name string) ([]*structpb.Struct, error) {
	value, ok := in.GetFields()[name]
	if !ok {
		return nil, nil
	}
	list := value.GetListValue()
	if list == nil {
		return nil, fmt.Errorf("response %s is not a list", name)
	}
	out := make([]*structpb.Struct, 0, len(list.GetValues()))
	for i, item := range list.GetValues() {
		s := item.GetStructValue()
		if s == nil {
			return nil, fmt.Errorf("response %s[%d] is not an object", name, i)
		}
		out = append(out, s)
	}
	return out, nil
}
