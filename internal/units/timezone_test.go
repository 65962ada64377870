package units

import (
	"strings"
	"testing"
	"time"
)

func TestIsTimezoneValid(t *testing.T) {
	tests := []struct {
		tz   string
		want bool
	}{
		{"UTC", true},
		{"America/New_York", true},
		{"Australia/Sydney", true},
		{"", false},
		{"Not/AZone", false},
		{"GMT+25", false},
	}

	for _, tt := range tests {
		if got := IsTimezoneValid(tt.tz); got != tt.want {
			t.Errorf("IsTimezoneValid(%q) = %v, want %v", tt.tz, got, tt.want)
		}
	}
}

func TestDisplayLocationOverride(t *testing.T) {
	t.Setenv(TimezoneEnvVar, "Pacific/Auckland")
	loc := DisplayLocation()
	if loc.String() != "Pacific/Auckland" {
		t.Errorf("DisplayLocation() = %v, want Pacific/Auckland", loc)
	}
}

func TestDisplayLocationInvalidFallsBack(t *testing.T) {
	t.Setenv(TimezoneEnvVar, "Mars/Olympus_Mons")
	loc := DisplayLocation()
	if loc != time.Local {
		t.Errorf("invalid override should fall back to time.Local, got %v", loc)
	}
}

func TestFormatISO(t *testing.T) {
	t.Setenv(TimezoneEnvVar, "UTC")
	ts := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	got := FormatISO(ts)
	if !strings.HasPrefix(got, "2025-03-14T09:26:53") {
		t.Errorf("FormatISO = %q, want 2025-03-14T09:26:53 prefix", got)
	}
}
