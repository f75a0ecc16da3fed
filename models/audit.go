package models

import "time"

// AuditEntry stores one row of the "auditoria" table. Entries are appended
// best-effort by the audit middleware after successful mutating API calls.
type AuditEntry struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UsuarioID uint      `gorm:"column:usuario_id;index" json:"usuario_id"`
	Accion    string    `gorm:"column:accion;size:64;not null" json:"accion"`
	Detalle   string    `gorm:"column:detalle;size:255" json:"detalle"`
	Ruta      string    `gorm:"column:ruta;size:255" json:"ruta"`
	RequestID string    `gorm:"column:request_id;size:36" json:"request_id"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName maps the model onto the existing auditoria table.
func (AuditEntry) TableName() string { return "auditoria" }
