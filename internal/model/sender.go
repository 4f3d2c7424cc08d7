package model

import "time"

// SenderStats carries the per-sender scoring state for one user: the
// learned weight adjusted by the feedback loop plus the user-configured
// VIP boost. One row per (user, sender).
type SenderStats struct {
	ID          int
	UserID      int
	Sender      string
	Weight      float64 // learned, clamped by the feedback loop
	VIP         bool
	VIPBoost    float64 // applied only when VIP
	ActionCount int
	UpdatedAt   time.Time
}
