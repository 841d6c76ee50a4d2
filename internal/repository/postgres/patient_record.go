package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Aytsuu/CIUDAD-APP-sub005/internal/model"
	"github.com/Aytsuu/CIUDAD-APP-sub005/internal/repository"
)

type patientRecordRepository struct {
	BaseRepository
}

func NewPatientRecordRepository(base BaseRepository) repository.PatientRecordRepository {
	return &patientRecordRepository{base}
}

func (r *patientRecordRepository) Create(ctx context.Context, record *model.PatientRecord) error {
	query := `
		INSERT INTO patient_records (
			id, patient_id, record_type, created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	record.CreatedAt = time.Now()
	record.UpdatedAt = record.CreatedAt

	_, err := r.GetDB().ExecContext(ctx, query,
		record.ID,
		record.PatientID,
		record.RecordType,
		record.CreatedBy,
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create patient record: %w", err)
	}
	return nil
}

func (r *patientRecordRepository) Get(ctx context.Context, id uuid.UUID) (*model.PatientRecord, error) {
	query := `
		SELECT * FROM patient_records
		WHERE id = $1 AND deleted_at IS NULL
	`
	var record model.PatientRecord
	if err := r.GetDB().GetContext(ctx, &record, query, id); err != nil {
		return nil, fmt.Errorf("failed to get patient record: %w", err)
	}
	return &record, nil
}

func (r *patientRecordRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM patient_records WHERE id = $1`
	if _, err := r.GetDB().ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to delete patient record: %w", err)
	}
	return nil
}
