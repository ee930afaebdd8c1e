package domain

import (
	"strings"
	"testing"

	apperrors "github.com/louisbranch/recordkeep/internal/platform/errors"
)

func TestFieldPredicates(t *testing.T) {
	tests := []struct {
		name string
		got  bool
		want bool
	}{
		{name: "metadata empty", got: ValidMetadata(""), want: false},
		{name: "metadata one byte", got: ValidMetadata("a"), want: true},
		{name: "metadata 64 bytes", got: ValidMetadata(strings.Repeat("m", 64)), want: true},
		{name: "metadata 65 bytes", got: ValidMetadata(strings.Repeat("m", 65)), want: false},
		{name: "metadata counts bytes", got: ValidMetadata(strings.Repeat("é", 33)), want: false},
		{name: "notes empty", got: ValidNotes(""), want: false},
		{name: "notes 128 bytes", got: ValidNotes(strings.Repeat("n", 128)), want: true},
		{name: "notes 129 bytes", got: ValidNotes(strings.Repeat("n", 129)), want: false},
		{name: "metric zero", got: ValidMetric(0), want: false},
		{name: "metric one", got: ValidMetric(1), want: true},
		{name: "metric max-1", got: ValidMetric(999_999_999), want: true},
		{name: "metric max", got: ValidMetric(1_000_000_000), want: false},
		{name: "label empty", got: ValidLabel(""), want: false},
		{name: "label 32 bytes", got: ValidLabel(strings.Repeat("l", 32)), want: true},
		{name: "label 33 bytes", got: ValidLabel(strings.Repeat("l", 33)), want: false},
		{name: "taxonomy empty", got: ValidTaxonomy(nil), want: false},
		{name: "taxonomy one", got: ValidTaxonomy([]string{"a"}), want: true},
		{name: "taxonomy duplicates", got: ValidTaxonomy([]string{"a", "a"}), want: true},
		{name: "taxonomy ten", got: ValidTaxonomy(make10("x")), want: true},
		{name: "taxonomy eleven", got: ValidTaxonomy(append(make10("x"), "y")), want: false},
		{name: "taxonomy bad label", got: ValidTaxonomy([]string{"a", ""}), want: false},
		{name: "metadata multibyte at bound", got: ValidMetadata(strings.Repeat("é", 32)), want: true},
		{name: "metadata invalid utf-8", got: ValidMetadata("m\xff"), want: false},
		{name: "notes invalid utf-8", got: ValidNotes("\xc3"), want: false},
		{name: "label multibyte at bound", got: ValidLabel(strings.Repeat("ü", 16)), want: true},
		{name: "label invalid utf-8", got: ValidLabel(strings.Repeat("\xff", 32)), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Fatalf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestValidateFieldsFixedOrder(t *testing.T) {
	valid := Fields{Metadata: "doc-1", Metric: 500, Notes: "n", Taxonomy: []string{"a"}}
	tests := []struct {
		name   string
		mutate func(*Fields)
		want   apperrors.Code
	}{
		{name: "valid", mutate: func(*Fields) {}, want: ""},
		{
			name: "all invalid reports metadata",
			mutate: func(f *Fields) {
				f.Metadata, f.Metric, f.Notes, f.Taxonomy = "", 0, "", nil
			},
			want: apperrors.CodeInvalidMetadata,
		},
		{
			name: "metric before notes and taxonomy",
			mutate: func(f *Fields) {
				f.Metric, f.Notes, f.Taxonomy = 1_000_000_000, "", nil
			},
			want: apperrors.CodeInvalidMetrics,
		},
		{
			name: "notes before taxonomy",
			mutate: func(f *Fields) {
				f.Notes, f.Taxonomy = strings.Repeat("n", 129), []string{}
			},
			want: apperrors.CodeInvalidMetadata,
		},
		{
			name:   "taxonomy alone",
			mutate: func(f *Fields) { f.Taxonomy = []string{strings.Repeat("t", 33)} },
			want:   apperrors.CodeInvalidTaxonomy,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := valid.Clone()
			tt.mutate(&fields)
			err := ValidateFields(fields)
			if tt.want == "" {
				if err != nil {
					t.Fatalf("expected valid fields, got %v", err)
				}
				return
			}
			if got := apperrors.GetCode(err); got != tt.want {
				t.Fatalf("code = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestValidateFieldsNotesMetadata(t *testing.T) {
	err := ValidateFields(Fields{Metadata: "m", Metric: 1, Notes: "", Taxonomy: []string{"a"}})
	meta := apperrors.GetMetadata(err)
	if meta["Field"] != "notes" || meta["Max"] != "128" {
		t.Fatalf("unexpected metadata: %v", meta)
	}
}

func TestValidateFieldsRejectsInvalidUTF8(t *testing.T) {
	valid := Fields{Metadata: "doc-1", Metric: 500, Notes: "n", Taxonomy: []string{"a"}}
	tests := []struct {
		name   string
		mutate func(*Fields)
		want   apperrors.Code
	}{
		{name: "metadata", mutate: func(f *Fields) { f.Metadata = "m\xff" }, want: apperrors.CodeInvalidMetadata},
		{name: "notes", mutate: func(f *Fields) { f.Notes = "n\xfe" }, want: apperrors.CodeInvalidMetadata},
		{name: "label", mutate: func(f *Fields) { f.Taxonomy = []string{"a", "\xff"} }, want: apperrors.CodeInvalidTaxonomy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := valid.Clone()
			tt.mutate(&fields)
			err := ValidateFields(fields)
			if got := apperrors.GetCode(err); got != tt.want {
				t.Fatalf("code = %s, want %s", got, tt.want)
			}
			if tt.want == apperrors.CodeInvalidMetadata && !strings.Contains(err.Error(), "UTF-8") {
				t.Fatalf("expected UTF-8 message, got %v", err)
			}
		})
	}
}

func make10(label string) []string {
	labels := make([]string, 10)
	for i := range labels {
		labels[i] = label
	}
	return labels
}
