// Package units provides timestamp formatting helpers for the daemon's
// human-readable output. All wire timestamps stay as Unix floats; only the
// *_iso companion fields honour the optional timezone override.
package units

import (
	"os"
	"time"

	"github.com/banshee-data/visiond/internal/monitoring"
)

// TimezoneEnvVar is the optional environment override for human-readable
// timestamps. It affects display only; nothing in the IPC protocol or the
// trigger store depends on it.
const TimezoneEnvVar = "VISIOND_TZ"

// IsTimezoneValid checks if the given timezone is valid by attempting to load
// it from the system tz database.
func IsTimezoneValid(tz string) bool {
	if tz == "" {
		return false
	}
	_, err := time.LoadLocation(tz)
	return err == nil
}

// DisplayLocation returns the location used for *_iso fields: the
// VISIOND_TZ override when set and valid, otherwise the system local zone.
// An invalid override is logged once per call and ignored.
func DisplayLocation() *time.Location {
	tz := os.Getenv(TimezoneEnvVar)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		monitoring.Logf("invalid %s=%q, using system local zone: %v", TimezoneEnvVar, tz, err)
		return time.Local
	}
	return loc
}

// FormatISO renders t as RFC 3339 in the display location.
func FormatISO(t time.Time) string {
	return t.In(DisplayLocation()).Format(time.RFC3339)
}
