package auth

import "time"

// AdminUser can hit the /admin endpoints. There is no self-service signup;
// admins are seeded from the environment at startup.
type AdminUser struct {
	ID           uint64    `gorm:"primaryKey"`
	Email        string    `gorm:"uniqueIndex;not null"`
	PasswordHash string    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
}
