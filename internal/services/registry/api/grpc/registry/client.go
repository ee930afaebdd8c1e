package registry

import (
	"context"
	"fmt"

	"github.com/louisbranch/recordkeep/internal/services/registry/core"
	"github.com/louisbranch/recordkeep/internal/services/registry/domain"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client is a typed RecordRegistry client. Caller identity, logical clock and
// locale travel as outgoing metadata; see metadata.OutgoingContext.
type Client struct {
	conn grpc.ClientConnInterface
}

// NewClient wraps an established connection.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

func (c *Client) invoke(ctx context.Context, method string, values map[string]any, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(values)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", method, err)
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, fullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func fieldsRequest(fields domain.Fields) map[string]any {
	values := fieldsToMap(fields)
	values[fieldMetric] = formatUint(fields.Metric)
	return values
}

func (c *Client) CreateRecord(ctx context.Context, fields domain.Fields, opts ...grpc.CallOption) (uint64, error) {
	out, err := c.invoke(ctx, "CreateRecord", fieldsRequest(fields), opts...)
	if err != nil {
		return 0, err
	}
	return requireUint64(out, fieldKey)
}

func (c *Client) UpdateRecord(ctx context.Context, key uint64, fields domain.Fields, opts ...grpc.CallOption) error {
	values := fieldsRequest(fields)
	values[fieldKey] = formatUint(key)
	_, err := c.invoke(ctx, "UpdateRecord", values, opts...)
	return err
}

func (c *Client) TransferOwnership(ctx context.Context, key uint64, newOwner string, opts ...grpc.CallOption) error {
	_, err := c.invoke(ctx, "TransferOwnership", map[string]any{
		fieldKey:      formatUint(key),
		fieldNewOwner: newOwner,
	}, opts...)
	return err
}

func (c *Client) TotalRecordCount(ctx context.Context, opts ...grpc.CallOption) (uint64, error) {
	out, err := c.invoke(ctx, "TotalRecordCount", nil, opts...)
	if err != nil {
		return 0, err
	}
	return requireUint64(out, fieldCount)
}

func (c *Client) FetchFullRecord(ctx context.Context, key uint64, opts ...grpc.CallOption) (domain.Record, error) {
	out, err := c.invoke(ctx, "FetchFullRecord", keyRequest(key), opts...)
	if err != nil {
		return domain.Record{}, err
	}
	nested, err := nestedStruct(out, fieldRecord)
	if err != nil {
		return domain.Record{}, err
	}
	return recordFromStruct(nested)
}

func (c *Client) FetchMetadata(ctx context.Context, key uint64, opts ...grpc.CallOption) (string, error) {
	out, err := c.invoke(ctx, "FetchMetadata", keyRequest(key), opts...)
	if err != nil {
		return "", err
	}
	return optionalString(out, fieldMetadata)
}

func (c *Client) FetchMetric(ctx context.Context, key uint64, opts ...grpc.CallOption) (uint64, error) {
	out, err := c.invoke(ctx, "FetchMetric", keyRequest(key), opts...)
	if err != nil {
		return 0, err
	}
	return requireUint64(out, fieldMetric)
}

func (c *Client) FetchNotes(ctx context.Context, key uint64, opts ...grpc.CallOption) (string, error) {
	out, err := c.invoke(ctx, "FetchNotes", keyRequest(key), opts...)
	if err != nil {
		return "", err
	}
	return optionalString(out, fieldNotes)
}

func (c *Client) FetchTaxonomy(ctx context.Context, key uint64, opts ...grpc.CallOption) ([]string, error) {
	out, err := c.invoke(ctx, "FetchTaxonomy", keyRequest(key), opts...)
	if err != nil {
		return nil, err
	}
	return optionalStringList(out, fieldTaxonomy)
}

func (c *Client) FetchOperator(ctx context.Context, key uint64, opts ...grpc.CallOption) (string, error) {
	out, err := c.invoke(ctx, "FetchOperator", keyRequest(key), opts...)
	if err != nil {
		return "", err
	}
	return optionalString(out, fieldOwner)
}

func (c *Client) FetchGenesisBlock(ctx context.Context, key uint64, opts ...grpc.CallOption) (uint64, error) {
	out, err := c.invoke(ctx, "FetchGenesisBlock", keyRequest(key), opts...)
	if err != nil {
		return 0, err
	}
	return requireUint64(out, fieldGenesisBlock)
}

func (c *Client) CheckAccessPermission(ctx context.Context, key uint64, identity string, opts ...grpc.CallOption) (bool, error) {
	out, err := c.invoke(ctx, "CheckAccessPermission", map[string]any{
		fieldKey:      formatUint(key),
		fieldIdentity: identity,
	}, opts...)
	if err != nil {
		return false, err
	}
	return out.GetFields()[fieldGranted].GetBoolValue(), nil
}

func (c *Client) VerifyProtocolAuthority(ctx context.Context, identity string, opts ...grpc.CallOption) (bool, error) {
	out, err := c.invoke(ctx, "VerifyProtocolAuthority", map[string]any{fieldIdentity: identity}, opts...)
	if err != nil {
		return false, err
	}
	return out.GetFields()[fieldVerified].GetBoolValue(), nil
}

func (c *Client) VerifyRecordOwnership(ctx context.Context, key uint64, identity string, opts ...grpc.CallOption) (bool, error) {
	out, err := c.invoke(ctx, "VerifyRecordOwnership", map[string]any{
		fieldKey:      formatUint(key),
		fieldIdentity: identity,
	}, opts...)
	if err != nil {
		return false, err
	}
	return out.GetFields()[fieldVerified].GetBoolValue(), nil
}

func (c *Client) ListRecords(ctx context.Context, pageSize int32, pageToken string, opts ...grpc.CallOption) (core.RecordPage, error) {
	values := map[string]any{fieldPageToken: pageToken}
	if pageSize != 0 {
		values[fieldPageSize] = float64(pageSize)
	}
	out, err := c.invoke(ctx, "ListRecords", values, opts...)
	if err != nil {
		return core.RecordPage{}, err
	}
	items, err := structList(out, fieldRecords)
	if err != nil {
		return core.RecordPage{}, err
	}
	page := core.RecordPage{Records: make([]domain.Record, 0, len(items))}
	for _, item := range items {
		record, err := recordFromStruct(item)
		if err != nil {
			return core.RecordPage{}, err
		}
		page.Records = append(page.Records, record)
	}
	if page.NextPageToken, err = optionalString(out, fieldNextPageToken); err != nil {
		return core.RecordPage{}, err
	}
	return page, nil
}

func (c *Client) ListRecordEvents(ctx context.Context, key uint64, afterSeq uint64, pageSize int32, opts ...grpc.CallOption) ([]domain.Event, error) {
	values := map[string]any{
		fieldKey:      formatUint(key),
		fieldAfterSeq: formatUint(afterSeq),
	}
	if pageSize != 0 {
		values[fieldPageSize] = float64(pageSize)
	}
	out, err := c.invoke(ctx, "ListRecordEvents", values, opts...)
	if err != nil {
		return nil, err
	}
	items, err := structList(out, fieldEvents)
	if err != nil {
		return nil, err
	}
	events := make([]domain.Event, 0, len(items))
	for _, item := range items {
		event, err := eventFromStruct(item)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}

func keyRequest(key uint64) map[string]any {
	return map[string]any{fieldKey: formatUint(key)}
}
