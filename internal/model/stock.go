package model

import (
	"time"

	"github.com/google/uuid"
)

// VaccineStockBatch is a physical batch of one vaccine. QuantityAvailable
// only decreases through administration; a batch past its expiry date is
// not selectable for new administration.
type VaccineStockBatch struct {
	Base
	VaccineID         uuid.UUID `db:"vaccine_id" json:"vaccine_id"`
	BatchNumber       string    `db:"batch_number" json:"batch_number"`
	QuantityAvailable int       `db:"quantity_available" json:"quantity_available"`
	ExpiryDate        time.Time `db:"expiry_date" json:"expiry_date"`
}

// Expired reports whether the batch is past expiry at the given instant.
func (b *VaccineStockBatch) Expired(now time.Time) bool {
	return b.ExpiryDate.Before(now)
}

// Stock transaction action labels.
const (
	StockActionAdministered = "Administered"
	StockActionRollback     = "Rollback"
)

// StockTransaction is an append-only ledger row recording a quantity
// delta against a batch. Never updated or deleted.
type StockTransaction struct {
	ID        uuid.UUID `db:"id" json:"id"`
	BatchID   uuid.UUID `db:"batch_id" json:"batch_id"`
	StaffID   uuid.UUID `db:"staff_id" json:"staff_id"`
	Quantity  int       `db:"quantity" json:"quantity"`
	Action    string    `db:"action" json:"action"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
