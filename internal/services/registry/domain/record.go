package domain

import "slices"

// Fields holds the owner-editable portion of a record.
type Fields struct {
	Metadata string
	Metric   uint64
	Notes    string
	Taxonomy []string
}

// Clone returns a copy that shares no memory with f.
func (f Fields) Clone() Fields {
	f.Taxonomy = slices.Clone(f.Taxonomy)
	return f
}

// Equal reports whether both field sets hold the same values, taxonomy order
// included.
func (f Fields) Equal(other Fields) bool {
	return f.Metadata == other.Metadata &&
		f.Metric == other.Metric &&
		f.Notes == other.Notes &&
		slices.Equal(f.Taxonomy, other.Taxonomy)
}

// Record is one registry entry.
type Record struct {
	Key          uint64
	Owner        Identity
	GenesisBlock uint64
	Fields
}

// Clone returns a snapshot that shares no memory with r.
func (r Record) Clone() Record {
	r.Fields = r.Fields.Clone()
	return r
}

// Equal reports whether two records are identical.
func (r Record) Equal(other Record) bool {
	return r.Key == other.Key &&
		r.Owner == other.Owner &&
		r.GenesisBlock == other.GenesisBlock &&
		r.Fields.Equal(other.Fields)
}
