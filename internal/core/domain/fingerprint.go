package domain

import "time"

// Fingerprint records the effective command text a target was last
// successfully built with. A mismatch on a later run makes the target
// stale even when timestamps agree.
type Fingerprint struct {
	Target      string    `json:"target,omitzero"`
	CommandHash string    `json:"command_hash,omitzero"`
	Timestamp   time.Time `json:"timestamp,omitzero"`
}
