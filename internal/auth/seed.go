package auth

import (
	"errors"
	"log"

	"gorm.io/gorm"
)

// EnsureAdmin creates the seed admin account if it does not exist yet. Both
// values empty disables seeding (e.g. admins managed out of band).
func EnsureAdmin(gdb *gorm.DB, email, password string) error {
	if email == "" || password == "" {
		return nil
	}

	var existing AdminUser
	err := gdb.Where("email = ?", email).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	if err := gdb.Create(&AdminUser{Email: email, PasswordHash: hash}).Error; err != nil {
		return err
	}
	log.Printf("auth: seeded admin %s", email)
	return nil
}
