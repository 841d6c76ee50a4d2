package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Aytsuu/CIUDAD-APP-sub005/internal/model"
	"github.com/Aytsuu/CIUDAD-APP-sub005/internal/repository"
)

type vitalSignsRepository struct {
	BaseRepository
}

func NewVitalSignsRepository(base BaseRepository) repository.VitalSignsRepository {
	return &vitalSignsRepository{base}
}

func (r *vitalSignsRepository) Create(ctx context.Context, vitals *model.VitalSigns) error {
	query := `
		INSERT INTO vital_signs (
			id, blood_pressure, temperature_c, pulse_bpm, spo2,
			recorded_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if vitals.ID == uuid.Nil {
		vitals.ID = uuid.New()
	}
	vitals.CreatedAt = time.Now()
	vitals.UpdatedAt = vitals.CreatedAt

	_, err := r.GetDB().ExecContext(ctx, query,
		vitals.ID,
		vitals.BloodPressure,
		vitals.TemperatureC,
		vitals.PulseBPM,
		vitals.SpO2,
		vitals.RecordedBy,
		vitals.CreatedAt,
		vitals.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create vital signs: %w", err)
	}
	return nil
}

func (r *vitalSignsRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM vital_signs WHERE id = $1`
	if _, err := r.GetDB().ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to delete vital signs: %w", err)
	}
	return nil
}
