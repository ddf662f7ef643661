package entity

import "time"

// Warehouse representa una bodega de la plataforma (dark store).
type Warehouse struct {
	ID        string
	Name      string
	Address   string
	CreatedAt time.Time
}
