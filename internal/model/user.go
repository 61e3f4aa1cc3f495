package model

import "time"

// User is a registered marketplace participant.
type User struct {
	CreatedAt     time.Time
	ID            string
	Email         string
	PasswordHash  string
	CompanyName   string
	WalletAddress string
}
