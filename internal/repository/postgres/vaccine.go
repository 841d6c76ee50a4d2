package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/Aytsuu/CIUDAD-APP-sub005/internal/model"
	"github.com/Aytsuu/CIUDAD-APP-sub005/internal/repository"
)

type vaccineRepository struct {
	BaseRepository
}

func NewVaccineRepository(base BaseRepository) repository.VaccineRepository {
	return &vaccineRepository{base}
}

func (r *vaccineRepository) Get(ctx context.Context, id uuid.UUID) (*model.VaccineDefinition, error) {
	query := `
		SELECT * FROM vaccine_definitions
		WHERE id = $1 AND deleted_at IS NULL
	`
	var vaccine model.VaccineDefinition
	if err := r.GetDB().GetContext(ctx, &vaccine, query, id); err != nil {
		return nil, fmt.Errorf("failed to get vaccine definition: %w", err)
	}

	if err := unmarshalVaccineFields(&vaccine); err != nil {
		return nil, err
	}
	return &vaccine, nil
}

func (r *vaccineRepository) List(ctx context.Context) ([]*model.VaccineDefinition, error) {
	query := `
		SELECT * FROM vaccine_definitions
		WHERE deleted_at IS NULL
		ORDER BY name ASC
	`
	var vaccines []*model.VaccineDefinition
	if err := r.GetDB().SelectContext(ctx, &vaccines, query); err != nil {
		return nil, fmt.Errorf("failed to list vaccine definitions: %w", err)
	}

	for _, vaccine := range vaccines {
		if err := unmarshalVaccineFields(vaccine); err != nil {
			return nil, fmt.Errorf("failed to unmarshal vaccine %s: %w", vaccine.ID, err)
		}
	}
	return vaccines, nil
}

func unmarshalVaccineFields(vaccine *model.VaccineDefinition) error {
	if len(vaccine.DoseIntervalsJSON) > 0 {
		if err := json.Unmarshal(vaccine.DoseIntervalsJSON, &vaccine.DoseIntervals); err != nil {
			return fmt.Errorf("failed to unmarshal dose intervals: %w", err)
		}
	}
	if len(vaccine.RoutineJSON) > 0 {
		if err := json.Unmarshal(vaccine.RoutineJSON, &vaccine.RoutineInterval); err != nil {
			return fmt.Errorf("failed to unmarshal routine interval: %w", err)
		}
	}
	if len(vaccine.AgeRangeJSON) > 0 {
		if err := json.Unmarshal(vaccine.AgeRangeJSON, &vaccine.EligibleAgeRange); err != nil {
			return fmt.Errorf("failed to unmarshal eligible age range: %w", err)
		}
	}
	return nil
}
