package core

import "testing"

func TestFormatOrderRef(t *testing.T) {
	if got := FormatOrderRef("tkz", 2024, 1); got != "TKZ-2024-000001" {
		t.Fatalf("expected TKZ-2024-000001, got %q", got)
	}
	if got := FormatOrderRef("", 2025, 1234567); got != "TKZ-2025-1234567" {
		t.Fatalf("expected wide sequence to render in full, got %q", got)
	}
}

func TestParseOrderRef(t *testing.T) {
	parts, err := ParseOrderRef("TKZ-2024-000042")
	if err != nil {
		t.Fatalf("parse order ref: %v", err)
	}
	if parts.Prefix != "TKZ" || parts.Year != 2024 || parts.Sequence != 42 {
		t.Fatalf("unexpected parts %#v", parts)
	}
	for _, bad := range []string{"", "TKZ-24-000001", "TKZ-2024-1", "TKZ-2024", "-2024-000001", "TKZ-2024-00000x"} {
		if _, err := ParseOrderRef(bad); err == nil {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}
