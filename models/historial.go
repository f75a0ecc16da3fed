package models

import "time"

// Attempt records one classification attempt in the "historial" table.
// Exactly one row is created per submitted classification, inside the same
// transaction that updates the user's aggregate; the table is append-only
// and is the authoritative record of what happened.
type Attempt struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UsuarioID       uint      `gorm:"column:usuario_id;index;not null" json:"usuario_id"`
	ResiduoID       uint      `gorm:"column:residuo_id;index;not null" json:"residuo_id"`
	FueAcierto      bool      `gorm:"column:fue_acierto;not null" json:"fue_acierto"`
	PuntosOtorgados int       `gorm:"column:puntos_otorgados" json:"puntos_otorgados"`
	Fecha           time.Time `gorm:"column:fecha;index;not null" json:"fecha"`
	CreatedAt       time.Time `json:"created_at"`
}

// TableName maps the model onto the existing historial table.
func (Attempt) TableName() string { return "historial" }
