package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Aytsuu/CIUDAD-APP-sub005/internal/model"
	"github.com/Aytsuu/CIUDAD-APP-sub005/internal/repository"
)

type vaccinationRepository struct {
	BaseRepository
}

func NewVaccinationRepository(base BaseRepository) repository.VaccinationRepository {
	return &vaccinationRepository{base}
}

func (r *vaccinationRepository) CreateRecord(ctx context.Context, record *model.VaccinationRecord) error {
	query := `
		INSERT INTO vaccination_records (
			id, patient_record_id, patient_id, vaccine_id,
			total_doses_required, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	record.CreatedAt = time.Now()
	record.UpdatedAt = record.CreatedAt

	_, err := r.GetDB().ExecContext(ctx, query,
		record.ID,
		record.PatientRecordID,
		record.PatientID,
		record.VaccineID,
		record.TotalDosesRequired,
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create vaccination record: %w", err)
	}
	return nil
}

func (r *vaccinationRepository) GetRecord(ctx context.Context, id uuid.UUID) (*model.VaccinationRecord, error) {
	query := `
		SELECT * FROM vaccination_records
		WHERE id = $1 AND deleted_at IS NULL
	`
	var record model.VaccinationRecord
	if err := r.GetDB().GetContext(ctx, &record, query, id); err != nil {
		return nil, fmt.Errorf("failed to get vaccination record: %w", err)
	}
	return &record, nil
}

// FindRecordForPatientVaccine returns the most recent regimen instance
// for the pair, or nil when none exists.
func (r *vaccinationRepository) FindRecordForPatientVaccine(ctx context.Context, patientID, vaccineID uuid.UUID) (*model.VaccinationRecord, error) {
	query := `
		SELECT * FROM vaccination_records
		WHERE patient_id = $1 AND vaccine_id = $2 AND deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT 1
	`
	var record model.VaccinationRecord
	err := r.GetDB().GetContext(ctx, &record, query, patientID, vaccineID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find vaccination record: %w", err)
	}
	return &record, nil
}

func (r *vaccinationRepository) DeleteRecord(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM vaccination_records WHERE id = $1`
	if _, err := r.GetDB().ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to delete vaccination record: %w", err)
	}
	return nil
}

func (r *vaccinationRepository) CreateHistoryEntry(ctx context.Context, entry *model.VaccinationHistoryEntry) error {
	query := `
		INSERT INTO vaccination_history (
			id, vaccination_record_id, dose_number, status, regimen_total,
			age_at_administration, administered_at, administered_by,
			vital_signs_id, follow_up_visit_id, assigned_to,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.CreatedAt = time.Now()
	entry.UpdatedAt = entry.CreatedAt

	_, err := r.GetDB().ExecContext(ctx, query,
		entry.ID,
		entry.VaccinationRecordID,
		entry.DoseNumber,
		entry.Status,
		entry.RegimenTotal,
		entry.AgeAtAdministration,
		entry.AdministeredAt,
		entry.AdministeredBy,
		entry.VitalSignsID,
		entry.FollowUpVisitID,
		entry.AssignedTo,
		entry.CreatedAt,
		entry.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create vaccination history entry: %w", err)
	}
	return nil
}

func (r *vaccinationRepository) GetHistoryEntry(ctx context.Context, id uuid.UUID) (*model.VaccinationHistoryEntry, error) {
	query := `
		SELECT * FROM vaccination_history
		WHERE id = $1 AND deleted_at IS NULL
	`
	var entry model.VaccinationHistoryEntry
	if err := r.GetDB().GetContext(ctx, &entry, query, id); err != nil {
		return nil, fmt.Errorf("failed to get vaccination history entry: %w", err)
	}
	return &entry, nil
}

func (r *vaccinationRepository) ListHistoryForRecord(ctx context.Context, recordID uuid.UUID) ([]*model.VaccinationHistoryEntry, error) {
	query := `
		SELECT * FROM vaccination_history
		WHERE vaccination_record_id = $1 AND deleted_at IS NULL
		ORDER BY dose_number ASC
	`
	var entries []*model.VaccinationHistoryEntry
	if err := r.GetDB().SelectContext(ctx, &entries, query, recordID); err != nil {
		return nil, fmt.Errorf("failed to list vaccination history: %w", err)
	}
	return entries, nil
}

// UpdateHistoryEntry persists the forwarded -> final transition of the
// deferred flow. The only mutable columns are status and the step-2 links.
func (r *vaccinationRepository) UpdateHistoryEntry(ctx context.Context, entry *model.VaccinationHistoryEntry) error {
	query := `
		UPDATE vaccination_history
		SET status = $2, vital_signs_id = $3, follow_up_visit_id = $4,
		    administered_at = $5, updated_at = $6
		WHERE id = $1 AND deleted_at IS NULL
	`
	entry.UpdatedAt = time.Now()

	result, err := r.GetDB().ExecContext(ctx, query,
		entry.ID,
		entry.Status,
		entry.VitalSignsID,
		entry.FollowUpVisitID,
		entry.AdministeredAt,
		entry.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update vaccination history entry: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check history update: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("vaccination history entry %s not found", entry.ID)
	}
	return nil
}

func (r *vaccinationRepository) DeleteHistoryEntry(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM vaccination_history WHERE id = $1`
	if _, err := r.GetDB().ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to delete vaccination history entry: %w", err)
	}
	return nil
}
