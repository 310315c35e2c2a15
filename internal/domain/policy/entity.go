package policy

import (
	"time"
)

// ModelSnapshot is a versioned dump of policy weights. The policy engine is
// the single writer; snapshots are written atomically and read on startup.
type ModelSnapshot struct {
	Name      string    `db:"name" json:"name"`
	Version   int64     `db:"version" json:"version"`
	Weights   []byte    `db:"weights" json:"weights"` // JSON-encoded weight state
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
