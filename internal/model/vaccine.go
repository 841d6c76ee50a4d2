package model

import (
	"encoding/json"
)

// DoseRegimenType determines how dose numbers, completion and
// follow-ups are derived for a vaccine.
type DoseRegimenType string

const (
	// RegimenRoutine repeats on a fixed interval indefinitely; every
	// administration opens a fresh vaccination record and is never
	// considered complete.
	RegimenRoutine DoseRegimenType = "routine"
	// RegimenPrimary has a fixed dose count with a per-dose interval table.
	RegimenPrimary DoseRegimenType = "primary"
	// RegimenConditional has a per-patient dose count decided clinically,
	// pinned on the vaccination record once known.
	RegimenConditional DoseRegimenType = "conditional"
)

type TimeUnit string

const (
	TimeUnitDays   TimeUnit = "DAYS"
	TimeUnitWeeks  TimeUnit = "WEEKS"
	TimeUnitMonths TimeUnit = "MONTHS"
	TimeUnitYears  TimeUnit = "YEARS"
)

// DoseInterval is one row of a primary vaccine's interval table: the
// wait before the dose identified by DoseNumber.
type DoseInterval struct {
	DoseNumber int      `json:"dose_number"`
	Interval   int      `json:"interval"`
	Unit       TimeUnit `json:"unit"`
}

// RoutineInterval is the recurrence interval of a routine vaccine.
type RoutineInterval struct {
	Interval int      `json:"interval"`
	Unit     TimeUnit `json:"unit"`
}

// AgeRange bounds patient eligibility for a vaccine.
type AgeRange struct {
	MinAge int      `json:"min_age"`
	MaxAge int      `json:"max_age"`
	Unit   TimeUnit `json:"unit"`
}

// VaccineDefinition is immutable reference data maintained by
// inventory management.
type VaccineDefinition struct {
	Base
	Name              string          `db:"name" json:"name"`
	RegimenType       DoseRegimenType `db:"regimen_type" json:"regimen_type"`
	RequiredDoseCount *int            `db:"required_dose_count" json:"required_dose_count,omitempty"`
	DoseIntervalsJSON json.RawMessage `db:"dose_intervals" json:"-"`
	RoutineJSON       json.RawMessage `db:"routine_interval" json:"-"`
	AgeRangeJSON      json.RawMessage `db:"eligible_age_range" json:"-"`
	DoseIntervals     []DoseInterval  `db:"-" json:"dose_intervals,omitempty"`
	RoutineInterval   *RoutineInterval `db:"-" json:"routine_interval,omitempty"`
	EligibleAgeRange  *AgeRange       `db:"-" json:"eligible_age_range,omitempty"`
}

// IntervalForDose returns the interval table entry for the given dose
// number, or nil when the table has none.
func (v *VaccineDefinition) IntervalForDose(doseNumber int) *DoseInterval {
	for i := range v.DoseIntervals {
		if v.DoseIntervals[i].DoseNumber == doseNumber {
			return &v.DoseIntervals[i]
		}
	}
	return nil
}
