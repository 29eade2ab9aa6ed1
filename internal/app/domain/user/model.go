// Package user describes registered vehicle owners.
package user

import "time"

// User binds an owner identity to exactly one vehicle plate. The plate is
// matched verbatim everywhere; no case or whitespace normalisation is applied.
type User struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	VehicleNumber string    `json:"vehicle_number"`
	CreatedAt     time.Time `json:"created_at"`
}
