package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Aytsuu/CIUDAD-APP-sub005/internal/model"
	"github.com/Aytsuu/CIUDAD-APP-sub005/internal/repository"
)

type followUpRepository struct {
	BaseRepository
}

func NewFollowUpRepository(base BaseRepository) repository.FollowUpRepository {
	return &followUpRepository{base}
}

func (r *followUpRepository) Create(ctx context.Context, visit *model.FollowUpVisit) error {
	query := `
		INSERT INTO follow_up_visits (
			id, patient_record_id, visit_date, description, status,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if visit.ID == uuid.Nil {
		visit.ID = uuid.New()
	}
	visit.CreatedAt = time.Now()
	visit.UpdatedAt = visit.CreatedAt

	_, err := r.GetDB().ExecContext(ctx, query,
		visit.ID,
		visit.PatientRecordID,
		visit.VisitDate,
		visit.Description,
		visit.Status,
		visit.CreatedAt,
		visit.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create follow-up visit: %w", err)
	}
	return nil
}

func (r *followUpRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.FollowUpStatus) error {
	query := `
		UPDATE follow_up_visits
		SET status = $2, updated_at = $3
		WHERE id = $1 AND deleted_at IS NULL
	`
	result, err := r.GetDB().ExecContext(ctx, query, id, status, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update follow-up visit status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check follow-up update: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("follow-up visit %s not found", id)
	}
	return nil
}

func (r *followUpRepository) ListPendingForPatientRecord(ctx context.Context, patientRecordID uuid.UUID) ([]*model.FollowUpVisit, error) {
	query := `
		SELECT * FROM follow_up_visits
		WHERE patient_record_id = $1 AND status = $2 AND deleted_at IS NULL
		ORDER BY visit_date ASC
	`
	var visits []*model.FollowUpVisit
	if err := r.GetDB().SelectContext(ctx, &visits, query, patientRecordID, model.FollowUpPending); err != nil {
		return nil, fmt.Errorf("failed to list pending follow-ups: %w", err)
	}
	return visits, nil
}

func (r *followUpRepository) ListDueBetween(ctx context.Context, from, to time.Time) ([]*model.FollowUpVisit, error) {
	query := `
		SELECT * FROM follow_up_visits
		WHERE status = $1 AND visit_date >= $2 AND visit_date < $3
		  AND deleted_at IS NULL
		ORDER BY visit_date ASC
	`
	var visits []*model.FollowUpVisit
	if err := r.GetDB().SelectContext(ctx, &visits, query, model.FollowUpPending, from, to); err != nil {
		return nil, fmt.Errorf("failed to list due follow-ups: %w", err)
	}
	return visits, nil
}

func (r *followUpRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM follow_up_visits WHERE id = $1`
	if _, err := r.GetDB().ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to delete follow-up visit: %w", err)
	}
	return nil
}
