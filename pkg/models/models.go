package models

import (
	"time"
)

type User struct {
	ID           uint   `gorm:"primaryKey"`
	UserUid      string `gorm:"type:uuid;uniqueIndex;not null"`
	Username     string `gorm:"size:80;not null;uniqueIndex"`
	PasswordHash string `gorm:"not null"`
	Email        string `gorm:"size:255"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Book struct {
	ID        uint   `gorm:"primaryKey"`
	BookUid   string `gorm:"type:uuid;uniqueIndex;not null"`
	Title     string `gorm:"not null;index"`
	Author    string
	Isbn      string `gorm:"size:20"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Booking is append-only: a row is created by the borrow flow and never
// updated afterwards. The lending window [IssueTime, ReturnTime) is half-open.
type Booking struct {
	ID         uint      `gorm:"primaryKey"`
	BookingUid string    `gorm:"type:uuid;uniqueIndex;not null"`
	BookUid    string    `gorm:"type:uuid;not null;index:idx_bookings_book_return,priority:1"`
	UserUid    string    `gorm:"type:uuid;not null;index"`
	IssueTime  time.Time `gorm:"not null"`
	ReturnTime time.Time `gorm:"not null;index:idx_bookings_book_return,priority:2"`
	CreatedAt  time.Time
}
