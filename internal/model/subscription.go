package model

import "time"

// KilnSubscription holds a browser push subscription that wants to hear
// when firings on the mapped kilns complete.
type KilnSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	StudioID  string    `gorm:"index;size:64;not null"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`

	// Associations
	Kilns []*Kiln `gorm:"many2many:subscription_kiln_mapping;"`
}
