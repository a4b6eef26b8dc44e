package domain

import "time"

// User is a dashboard operator account, authenticated separately from a
// project's ingestion API key.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}
