package clock

import "time"

// Now is the timestamp used in API response envelopes.
func Now() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05Z")
}
