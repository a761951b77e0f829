package core

import (
	"errors"
	"testing"
	"time"
	_ "time/tzdata"
)

func TestParseCompactDate(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"", "", false},
		{" 20250131 ", "20250131", false},
		{"20240229", "20240229", false},
		{"20250229", "", true},
		{"2025-01-31", "", true},
		{"2025013", "", true},
		{"abcdefgh", "", true},
	}
	for _, tt := range tests {
		got, err := ParseCompactDate("since", tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Fatalf("ParseCompactDate(%q) = %q, %v; want %q, err=%v", tt.in, got, err, tt.want, tt.wantErr)
		}
		var inputErr *InputError
		if tt.wantErr && (!errors.As(err, &inputErr) || inputErr.Field != "since") {
			t.Fatalf("ParseCompactDate(%q) err = %v, want since InputError", tt.in, err)
		}
	}
}

func TestLoadLocation(t *testing.T) {
	loc, err := LoadLocation("")
	if err != nil || loc != time.Local {
		t.Fatalf("LoadLocation(\"\") = %v, %v; want Local", loc, err)
	}
	loc, err = LoadLocation("Europe/Warsaw")
	if err != nil || loc.String() != "Europe/Warsaw" {
		t.Fatalf("LoadLocation(Europe/Warsaw) = %v, %v", loc, err)
	}
	if _, err := LoadLocation("Not/AZone"); err == nil {
		t.Fatal("unknown zone accepted")
	}
}

func TestParseEnums(t *testing.T) {
	if g, err := ParseGranularity("Month"); err != nil || g != GranularityMonthly {
		t.Fatalf("ParseGranularity = %q, %v", g, err)
	}
	if _, err := ParseGranularity("weekly"); err == nil {
		t.Fatal("weekly accepted")
	}
	if o, err := ParseSortOrder("desc"); err != nil || o != OrderDesc {
		t.Fatalf("ParseSortOrder = %q, %v", o, err)
	}
	if _, err := ParseSortOrder("DESC"); err == nil {
		t.Fatal("order is case sensitive")
	}
	for _, m := range []string{"auto", "calculate", "display"} {
		if _, err := ParseCostMode(m); err != nil {
			t.Fatalf("ParseCostMode(%q): %v", m, err)
		}
	}
	if _, err := ParseCostMode("estimate"); err == nil {
		t.Fatal("estimate accepted")
	}
}
