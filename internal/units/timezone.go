package units

import (
	"fmt"
	"time"
)

// IsTimezoneValid checks if the given timezone is valid in the tz database
func IsTimezoneValid(tz string) bool {
	if tz == "" {
		return false
	}
	_, err := time.LoadLocation(tz)
	return err == nil
}

// ConvertTime converts a sample timestamp to the specified timezone.
// An empty timezone or "UTC" returns the time in UTC.
func ConvertTime(t time.Time, targetTimezone string) (time.Time, error) {
	if targetTimezone == "" || targetTimezone == "UTC" {
		return t.UTC(), nil
	}

	loc, err := time.LoadLocation(targetTimezone)
	if err != nil {
		return t, fmt.Errorf("failed to load timezone %s: %w", targetTimezone, err)
	}
	return t.In(loc), nil
}
