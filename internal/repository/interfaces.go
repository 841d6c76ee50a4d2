package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Aytsuu/CIUDAD-APP-sub005/internal/model"
)

// The persistence boundary of the vaccination core. Each entity has its
// own independent create/delete pair; there is deliberately no
// cross-entity transaction here. The saga makes the sequence effectively
// atomic by tracking successes and compensating in reverse.

type VaccineRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*model.VaccineDefinition, error)
	List(ctx context.Context) ([]*model.VaccineDefinition, error)
}

type StockRepository interface {
	GetBatch(ctx context.Context, id uuid.UUID) (*model.VaccineStockBatch, error)
	ListBatches(ctx context.Context, vaccineID uuid.UUID) ([]*model.VaccineStockBatch, error)
	UpdateBatchQuantity(ctx context.Context, id uuid.UUID, quantity int) error
	// DecrementBatchQuantity is the guarded alternative to the
	// read-then-write path: it refuses to go below zero. Hosts can opt
	// in; the default adapter keeps the documented optimistic behavior.
	DecrementBatchQuantity(ctx context.Context, id uuid.UUID) error
	AppendTransaction(ctx context.Context, txn *model.StockTransaction) error
}

type PatientRecordRepository interface {
	Create(ctx context.Context, record *model.PatientRecord) error
	Get(ctx context.Context, id uuid.UUID) (*model.PatientRecord, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type VaccinationRepository interface {
	CreateRecord(ctx context.Context, record *model.VaccinationRecord) error
	GetRecord(ctx context.Context, id uuid.UUID) (*model.VaccinationRecord, error)
	// FindRecordForPatientVaccine returns nil without error when the
	// patient has no record for the vaccine yet.
	FindRecordForPatientVaccine(ctx context.Context, patientID, vaccineID uuid.UUID) (*model.VaccinationRecord, error)
	DeleteRecord(ctx context.Context, id uuid.UUID) error

	CreateHistoryEntry(ctx context.Context, entry *model.VaccinationHistoryEntry) error
	GetHistoryEntry(ctx context.Context, id uuid.UUID) (*model.VaccinationHistoryEntry, error)
	ListHistoryForRecord(ctx context.Context, recordID uuid.UUID) ([]*model.VaccinationHistoryEntry, error)
	UpdateHistoryEntry(ctx context.Context, entry *model.VaccinationHistoryEntry) error
	DeleteHistoryEntry(ctx context.Context, id uuid.UUID) error
}

type VitalSignsRepository interface {
	Create(ctx context.Context, vitals *model.VitalSigns) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type FollowUpRepository interface {
	Create(ctx context.Context, visit *model.FollowUpVisit) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.FollowUpStatus) error
	ListPendingForPatientRecord(ctx context.Context, patientRecordID uuid.UUID) ([]*model.FollowUpVisit, error)
	ListDueBetween(ctx context.Context, from, to time.Time) ([]*model.FollowUpVisit, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type OutboxRepository interface {
	Create(ctx context.Context, event *model.OutboxEvent) error
	GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errMsg *string) error
	DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
}
