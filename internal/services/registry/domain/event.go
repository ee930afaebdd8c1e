package domain

// EventType names an audit event appended by a successful mutation.
type EventType string

const (
	EventRecordCreated          EventType = "record.created"
	EventRecordUpdated          EventType = "record.updated"
	EventRecordOwnerTransferred EventType = "record.owner_transferred"
)

// Event is one entry of the append-only audit log.
type Event struct {
	Seq       uint64
	RecordKey uint64
	Type      EventType
	Actor     Identity
	Clock     uint64
	// Owner is the record owner after the event.
	Owner Identity
}
