// Package utils provides utility functions for the application.
package utils

import (
	"time"
)

// UTCNow returns the current time in UTC. All persisted timestamps and
// expiry comparisons go through this so the database never sees a
// zoned time.
func UTCNow() time.Time {
	return time.Now().UTC()
}

// RentalExpiry computes when a rental granted at the given time runs
// out. Zero hours falls back to the platform default window.
func RentalExpiry(acquiredAt time.Time, hours uint) time.Time {
	if hours == 0 {
		hours = DefaultRentalHours
	}
	return acquiredAt.Add(time.Duration(hours) * time.Hour)
}
