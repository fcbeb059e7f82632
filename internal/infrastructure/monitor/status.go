package monitor

import "time"

// Status is the last observed health of every probed dependency.
type Status struct {
	Components  map[string]bool `json:"components"`
	JournalSize int             `json:"journal_size"`
	LastCheck   time.Time       `json:"last_check"`
}

// Healthy reports whether every component passed its last check.
func (s Status) Healthy() bool {
	for _, ok := range s.Components {
		if !ok {
			return false
		}
	}
	return true
}
