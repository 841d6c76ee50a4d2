package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Aytsuu/CIUDAD-APP-sub005/internal/model"
)

// ErrRegimenComplete is returned when a dose would exceed an already
// pinned total. Callers block the submission before any write happens.
var ErrRegimenComplete = errors.New("regimen already complete")

// RegimenCompleteError names the vaccine and the offending dose/total
// pair for the user-facing rejection message.
type RegimenCompleteError struct {
	VaccineName string
	DoseNumber  int
	TotalDoses  int
}

func (e *RegimenCompleteError) Error() string {
	return fmt.Sprintf("regimen for %s is already complete: dose %d exceeds required total %d",
		e.VaccineName, e.DoseNumber, e.TotalDoses)
}

func (e *RegimenCompleteError) Unwrap() error { return ErrRegimenComplete }

// FollowUpPlan is the follow-up visit a dose plan asks the saga to create.
type FollowUpPlan struct {
	Date        time.Time
	Description string
}

// DosePlan is the scheduling decision for one administration.
type DosePlan struct {
	DoseNumber int
	// TotalDoses is 0 while a conditional regimen's total is still
	// undetermined; completion is then deferred to the caller.
	TotalDoses int
	Status     model.HistoryStatus
	FollowUp   *FollowUpPlan
	// Warnings carries recoverable scheduling problems (unknown time
	// unit, missing interval row). Never fatal, never silent.
	Warnings []string
}

// Planner derives dose number, regimen status and follow-up from a
// vaccine definition and the patient's prior history for that regimen
// instance. Pure apart from logging.
type Planner struct {
	logger zerolog.Logger
}

func NewPlanner(logger zerolog.Logger) *Planner {
	return &Planner{logger: logger.With().Str("component", "dose_planner").Logger()}
}

// PlanDose computes the plan for administering vaccine to the patient
// on administeredAt. record and prior describe the existing regimen
// instance; both are nil/empty for a first administration.
func (p *Planner) PlanDose(vaccine *model.VaccineDefinition, record *model.VaccinationRecord, prior []*model.VaccinationHistoryEntry, administeredAt time.Time) (*DosePlan, error) {
	switch vaccine.RegimenType {
	case model.RegimenRoutine:
		return p.planRoutine(vaccine, administeredAt), nil
	case model.RegimenPrimary, model.RegimenConditional:
		return p.planSeries(vaccine, record, prior, administeredAt)
	default:
		return nil, fmt.Errorf("vaccine %s has unknown regimen type %q", vaccine.Name, vaccine.RegimenType)
	}
}

// planRoutine: every administration is dose 1 of a fresh record, is
// never complete, and books the next visit at the routine interval.
func (p *Planner) planRoutine(vaccine *model.VaccineDefinition, administeredAt time.Time) *DosePlan {
	plan := &DosePlan{
		DoseNumber: 1,
		TotalDoses: 1,
		Status:     model.HistoryScheduled,
	}

	if vaccine.RoutineInterval == nil {
		p.warn(plan, vaccine, "routine vaccine has no recurrence interval; follow-up not scheduled")
		return plan
	}

	date, err := NextDate(administeredAt, vaccine.RoutineInterval.Interval, vaccine.RoutineInterval.Unit)
	if err != nil {
		p.warn(plan, vaccine, fmt.Sprintf("cannot schedule routine follow-up: %v", err))
		return plan
	}

	plan.FollowUp = &FollowUpPlan{
		Date:        date,
		Description: fmt.Sprintf("Routine %s vaccination", vaccine.Name),
	}
	return plan
}

// planSeries handles primary and conditional regimens: monotonically
// increasing dose numbers against one record, with a completion guard
// on the pinned total.
func (p *Planner) planSeries(vaccine *model.VaccineDefinition, record *model.VaccinationRecord, prior []*model.VaccinationHistoryEntry, administeredAt time.Time) (*DosePlan, error) {
	total := pinnedTotal(record, prior)
	if total == 0 && vaccine.RequiredDoseCount != nil {
		total = *vaccine.RequiredDoseCount
	}

	dose := maxDoseNumber(prior) + 1

	if total > 0 && dose > total {
		return nil, &RegimenCompleteError{
			VaccineName: vaccine.Name,
			DoseNumber:  dose,
			TotalDoses:  total,
		}
	}

	plan := &DosePlan{
		DoseNumber: dose,
		TotalDoses: total,
		Status:     model.HistoryPartial,
	}
	if total > 0 && dose == total {
		plan.Status = model.HistoryCompleted
	}

	if plan.Status == model.HistoryCompleted {
		return plan, nil
	}

	next := vaccine.IntervalForDose(dose + 1)
	if next == nil {
		if total > 0 {
			p.warn(plan, vaccine, fmt.Sprintf("no interval defined for dose %d; follow-up not scheduled", dose+1))
		}
		return plan, nil
	}

	date, err := NextDate(administeredAt, next.Interval, next.Unit)
	if err != nil {
		p.warn(plan, vaccine, fmt.Sprintf("cannot schedule follow-up for dose %d: %v", dose+1, err))
		return plan, nil
	}

	plan.FollowUp = &FollowUpPlan{
		Date:        date,
		Description: fmt.Sprintf("Dose %d of %s", dose+1, vaccine.Name),
	}
	return plan, nil
}

func (p *Planner) warn(plan *DosePlan, vaccine *model.VaccineDefinition, msg string) {
	p.logger.Warn().Str("vaccine", vaccine.Name).Msg(msg)
	plan.Warnings = append(plan.Warnings, msg)
}

// pinnedTotal resolves the authoritative dose total for a regimen
// instance. A total already recorded on any prior history entry wins;
// the record's own total is the fallback. Never recomputed.
func pinnedTotal(record *model.VaccinationRecord, prior []*model.VaccinationHistoryEntry) int {
	for _, entry := range prior {
		if entry.RegimenTotal > 0 {
			return entry.RegimenTotal
		}
	}
	if record != nil && record.TotalDosesRequired > 0 {
		return record.TotalDosesRequired
	}
	return 0
}

func maxDoseNumber(prior []*model.VaccinationHistoryEntry) int {
	max := 0
	for _, entry := range prior {
		if entry.DoseNumber > max {
			max = entry.DoseNumber
		}
	}
	return max
}
