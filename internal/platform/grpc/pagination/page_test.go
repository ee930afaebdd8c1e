package pagination

import "testing"

func TestClampPageSize(t *testing.T) {
	cfg := PageSizeConfig{Default: 10, Max: 50}
	tests := []struct {
		in   int32
		want int
	}{
		{in: 0, want: 10},
		{in: -3, want: 10},
		{in: 7, want: 7},
		{in: 50, want: 50},
		{in: 51, want: 50},
	}
	for _, tt := range tests {
		if got := ClampPageSize(tt.in, cfg); got != tt.want {
			t.Fatalf("ClampPageSize(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
	if got := ClampPageSize(0, PageSizeConfig{}); got != 1 {
		t.Fatalf("expected floor of 1, got %d", got)
	}
}

func TestCursorRoundTrip(t *testing.T) {
	if EncodeCursor(0) != "" {
		t.Fatal("expected empty token for zero key")
	}
	got, err := DecodeCursor(EncodeCursor(42))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != 42 {
		t.Fatalf("cursor = %d, want 42", got)
	}
	if start, err := DecodeCursor(""); err != nil || start != 0 {
		t.Fatalf("empty token = %d, %v", start, err)
	}
	if _, err := DecodeCursor("abc"); err == nil {
		t.Fatal("expected error for malformed token")
	}
}
