package models

import "time"

// NotificationTask is a queued unit of notification work.
type NotificationTask struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Booking   *Booking        `json:"booking,omitempty"`
	Stats     *DashboardStats `json:"stats,omitempty"`
	Attempt   int             `json:"attempt"`
	LastError string          `json:"last_error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
