package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents an EcoGuide player. Rows live in the legacy "usuarios"
// table, so column names follow the original Spanish schema. Passwords are
// stored as bcrypt hashes only.
//
// Puntos and CO2Evitado are the user's aggregate reward state. They are only
// ever incremented, and only by the progress recorder; profile editing never
// touches them.
type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Nombre       string         `gorm:"column:nombre;size:64;not null" json:"nombre"`
	Email        string         `gorm:"column:email;size:255;uniqueIndex" json:"email"`
	PasswordHash string         `gorm:"column:password_hash;size:255" json:"-"`
	Bio          string         `gorm:"column:bio;size:255" json:"bio"`
	AvatarURL    string         `gorm:"column:avatar_url;size:512" json:"avatar_url"`
	Puntos       int            `gorm:"column:puntos;default:0" json:"puntos"`
	CO2Evitado   float64        `gorm:"column:co2_evitado;default:0" json:"co2_evitado"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
	Historial    []Attempt      `gorm:"foreignKey:UsuarioID" json:"-"`
}

// TableName maps the model onto the existing usuarios table.
func (User) TableName() string { return "usuarios" }

// BeforeCreate hook ensures timestamps are set even when not provided.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	return nil
}

// BeforeUpdate ensures the UpdatedAt timestamp is refreshed.
func (u *User) BeforeUpdate(tx *gorm.DB) error {
	u.UpdatedAt = time.Now()
	return nil
}
