package device

import "time"

// Device is the anonymous per-device identity issued at launch.
// The id is opaque; it carries no account semantics.
type Device struct {
	ID       string    `json:"deviceId"`
	IssuedAt time.Time `json:"issuedAt"`
}
