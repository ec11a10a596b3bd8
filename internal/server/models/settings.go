package models

import "time"

// Settings is the per-user policy row. A missing row means defaults apply.
type Settings struct {
	UserID                 string
	ReVerificationInterval time.Duration
	UpdatedAt              time.Time
}
