package core

import (
	"fmt"

	"github.com/louisbranch/recordkeep/internal/services/registry/domain"
	"github.com/louisbranch/recordkeep/internal/services/registry/storage"
)

func recordToStorage(record domain.Record) storage.Record {
	return storage.Record{
		Key:          record.Key,
		Owner:        record.Owner.String(),
		Metadata:     record.Metadata,
		Metric:       record.Metric,
		Notes:        record.Notes,
		Taxonomy:     record.Fields.Clone().Taxonomy,
		GenesisBlock: record.GenesisBlock,
	}
}

func recordFromStorage(row storage.Record) (domain.Record, error) {
	owner, err := domain.ParseIdentity(row.Owner)
	if err != nil {
		return domain.Record{}, fmt.Errorf("record %d has no owner", row.Key)
	}
	return domain.Record{
		Key:          row.Key,
		Owner:        owner,
		GenesisBlock: row.GenesisBlock,
		Fields: domain.Fields{
			Metadata: row.Metadata,
			Metric:   row.Metric,
			Notes:    row.Notes,
			Taxonomy: row.Clone().Taxonomy,
		},
	}, nil
}

func eventFromStorage(row storage.Event) domain.Event {
	// Stored actors and owners were validated identities when appended.
	actor, _ := domain.ParseIdentity(row.Actor)
	owner, _ := domain.ParseIdentity(row.Owner)
	return domain.Event{
		Seq:       row.Seq,
		RecordKey: row.RecordKey,
		Type:      domain.EventType(row.Type),
		Actor:     actor,
		Owner:     owner,
		Clock:     row.Clock,
	}
}
