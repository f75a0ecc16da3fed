package models

import "time"

// WasteItem is one entry of the recycling catalog ("residuos" table).
// The catalog is read-only from the API's point of view; rows are seeded at
// startup or managed directly in the database.
type WasteItem struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Nombre     string    `gorm:"column:nombre;size:128;not null" json:"nombre"`
	Categoria  string    `gorm:"column:categoria;size:64;index;not null" json:"categoria"`
	Dificultad int       `gorm:"column:dificultad;default:1" json:"dificultad"`
	CO2Impacto float64   `gorm:"column:co2_impacto;default:0" json:"co2_impacto"`
	Consejo    string    `gorm:"column:consejo;size:512" json:"consejo"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName maps the model onto the existing residuos table.
func (WasteItem) TableName() string { return "residuos" }
