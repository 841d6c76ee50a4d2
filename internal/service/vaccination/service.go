package vaccination

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/Aytsuu/CIUDAD-APP-sub005/internal/model"
	"github.com/Aytsuu/CIUDAD-APP-sub005/internal/repository"
	"github.com/Aytsuu/CIUDAD-APP-sub005/internal/schedule"
	"github.com/Aytsuu/CIUDAD-APP-sub005/internal/service/stock"
	"github.com/Aytsuu/CIUDAD-APP-sub005/internal/service/vaccine"
	"github.com/Aytsuu/CIUDAD-APP-sub005/pkg/metrics"
)

// Service is the vaccination saga: an ordered chain of independent
// writes made effectively atomic by tracked compensation.
type Service interface {
	Administer(ctx context.Context, sub *model.VaccinationSubmission) (*model.AdministrationOutcome, error)
	CompleteDeferred(ctx context.Context, entryID uuid.UUID, req *model.CompleteDeferredRequest) (*model.AdministrationOutcome, error)
}

type Saga struct {
	patientRecords repository.PatientRecordRepository
	vaccinations   repository.VaccinationRepository
	vitals         repository.VitalSignsRepository
	followUps      repository.FollowUpRepository
	outbox         repository.OutboxRepository
	stockRepo      repository.StockRepository
	vaccines       vaccine.Directory
	stock          stock.Ledger
	planner        *schedule.Planner
	logger         zerolog.Logger
	metrics        *metrics.Metrics
	now            func() time.Time
}

func NewSaga(
	patientRecords repository.PatientRecordRepository,
	vaccinations repository.VaccinationRepository,
	vitals repository.VitalSignsRepository,
	followUps repository.FollowUpRepository,
	outbox repository.OutboxRepository,
	stockRepo repository.StockRepository,
	vaccines vaccine.Directory,
	ledger stock.Ledger,
	planner *schedule.Planner,
	logger zerolog.Logger,
	m *metrics.Metrics,
) *Saga {
	return &Saga{
		patientRecords: patientRecords,
		vaccinations:   vaccinations,
		vitals:         vitals,
		followUps:      followUps,
		outbox:         outbox,
		stockRepo:      stockRepo,
		vaccines:       vaccines,
		stock:          ledger,
		planner:        planner,
		logger:         logger.With().Str("component", "vaccination_saga").Logger(),
		metrics:        m,
		now:            time.Now,
	}
}

// Administer executes one administration event. Preconditions are
// checked before the first write; from then on every successful create
// is tracked, and any failure compensates all of them in reverse order
// before the original error is surfaced.
func (s *Saga) Administer(ctx context.Context, sub *model.VaccinationSubmission) (*model.AdministrationOutcome, error) {
	if err := validateSubmission(sub); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		timer := prometheus.NewTimer(s.metrics.SagaDuration)
		defer timer.ObserveDuration()
	}

	batch, err := s.stockRepo.GetBatch(ctx, sub.BatchID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve stock batch: %w", err)
	}
	def, err := s.vaccines.GetDefinition(ctx, batch.VaccineID)
	if err != nil {
		return nil, err
	}

	administeredAt := s.now()
	if sub.AdministeredAt != nil {
		administeredAt = *sub.AdministeredAt
	}

	// Routine vaccines recur: every administration opens a fresh
	// regimen instance, so the existing-record checks don't apply.
	var record *model.VaccinationRecord
	var prior []*model.VaccinationHistoryEntry
	if def.RegimenType != model.RegimenRoutine {
		record, err = s.vaccinations.FindRecordForPatientVaccine(ctx, sub.PatientID, batch.VaccineID)
		if err != nil {
			return nil, err
		}
		if record != nil {
			prior, err = s.vaccinations.ListHistoryForRecord(ctx, record.ID)
			if err != nil {
				return nil, err
			}
		}
	}

	if record != nil && hasCompletedDose(prior) {
		return nil, fmt.Errorf("patient %s, vaccine %s: %w", sub.PatientID, def.Name, ErrDuplicateVaccination)
	}

	plan, err := s.planner.PlanDose(def, record, prior, administeredAt)
	if err != nil {
		return nil, err
	}

	comp := &compensationLog{}
	outcome, step, err := s.run(ctx, sub, def, record, plan, administeredAt, comp)
	if err != nil {
		return nil, s.rollback(ctx, comp, step, err)
	}

	if s.metrics != nil {
		s.metrics.AdministrationsTotal.WithLabelValues(string(outcome.Status)).Inc()
	}
	s.emit(ctx, model.EventVaccinationAdministered, outcome)
	return outcome, nil
}

// run executes the write sequence. On error it reports the failing
// step; everything already pushed onto comp is the caller's to unwind.
func (s *Saga) run(
	ctx context.Context,
	sub *model.VaccinationSubmission,
	def *model.VaccineDefinition,
	existing *model.VaccinationRecord,
	plan *schedule.DosePlan,
	administeredAt time.Time,
	comp *compensationLog,
) (*model.AdministrationOutcome, string, error) {
	outcome := &model.AdministrationOutcome{
		DoseNumber: plan.DoseNumber,
		Status:     plan.Status,
	}

	var patientRecordID, recordID uuid.UUID
	if existing == nil {
		pr := &model.PatientRecord{
			PatientID:  sub.PatientID,
			RecordType: model.RecordTypeVaccination,
			CreatedBy:  sub.Operator,
		}
		if err := s.patientRecords.Create(ctx, pr); err != nil {
			return nil, kindPatientRecord, err
		}
		prID := pr.ID
		comp.push(kindPatientRecord, prID, func(c context.Context) error {
			return s.patientRecords.Delete(c, prID)
		})

		vr := &model.VaccinationRecord{
			PatientRecordID:    pr.ID,
			PatientID:          sub.PatientID,
			VaccineID:          def.ID,
			TotalDosesRequired: plan.TotalDoses,
		}
		if err := s.vaccinations.CreateRecord(ctx, vr); err != nil {
			return nil, kindVaccinationRecord, err
		}
		vrID := vr.ID
		comp.push(kindVaccinationRecord, vrID, func(c context.Context) error {
			return s.vaccinations.DeleteRecord(c, vrID)
		})

		patientRecordID, recordID = pr.ID, vr.ID
	} else {
		patientRecordID, recordID = existing.PatientRecordID, existing.ID
	}
	outcome.PatientRecordID = patientRecordID
	outcome.VaccinationRecordID = recordID

	entry := &model.VaccinationHistoryEntry{
		VaccinationRecordID: recordID,
		DoseNumber:          plan.DoseNumber,
		RegimenTotal:        plan.TotalDoses,
		AgeAtAdministration: sub.AgeAtAdministration,
		AdministeredAt:      administeredAt,
		AdministeredBy:      sub.Operator,
	}

	if sub.Deferred() {
		// Deferred hand-off: no vitals, no stock movement, no follow-up.
		// The entry waits for the second operator.
		entry.Status = model.HistoryForwarded
		entry.AssignedTo = sub.AssignTo
		if err := s.vaccinations.CreateHistoryEntry(ctx, entry); err != nil {
			return nil, kindHistoryEntry, err
		}
		entryID := entry.ID
		comp.push(kindHistoryEntry, entryID, func(c context.Context) error {
			return s.vaccinations.DeleteHistoryEntry(c, entryID)
		})
		outcome.HistoryEntryID = entry.ID
		outcome.Status = model.HistoryForwarded
		return outcome, "", nil
	}

	vitalsID, step, err := s.recordVitals(ctx, sub.Vitals, sub.Operator, comp)
	if err != nil {
		return nil, step, err
	}
	entry.VitalSignsID = &vitalsID
	outcome.VitalSignsID = &vitalsID

	if err := s.decrementStock(ctx, sub.BatchID, sub.Operator, comp); err != nil {
		return nil, kindStockDecrement, err
	}

	if existing != nil {
		if step, err := s.completePendingFollowUps(ctx, patientRecordID, comp); err != nil {
			return nil, step, err
		}
	}

	if plan.FollowUp != nil {
		fuID, step, err := s.scheduleFollowUp(ctx, patientRecordID, plan.FollowUp, comp)
		if err != nil {
			return nil, step, err
		}
		entry.FollowUpVisitID = &fuID
		outcome.FollowUpVisitID = &fuID
		outcome.FollowUpDate = &plan.FollowUp.Date
	}

	entry.Status = plan.Status
	if err := s.vaccinations.CreateHistoryEntry(ctx, entry); err != nil {
		return nil, kindHistoryEntry, err
	}
	entryID := entry.ID
	comp.push(kindHistoryEntry, entryID, func(c context.Context) error {
		return s.vaccinations.DeleteHistoryEntry(c, entryID)
	})
	outcome.HistoryEntryID = entry.ID

	return outcome, "", nil
}

// CompleteDeferred finishes a forwarded entry: the second operator
// supplies vitals, stock is taken from the batch actually used, any
// pending follow-up for the regimen instance is flipped to completed,
// and the entry transitions to its final status.
func (s *Saga) CompleteDeferred(ctx context.Context, entryID uuid.UUID, req *model.CompleteDeferredRequest) (*model.AdministrationOutcome, error) {
	if req == nil || req.Vitals == nil {
		return nil, fmt.Errorf("vitals are required to complete an administration: %w", ErrInvalidSubmission)
	}
	if req.BatchID == uuid.Nil {
		return nil, fmt.Errorf("stock batch is required: %w", ErrInvalidSubmission)
	}
	if req.Operator == uuid.Nil {
		return nil, fmt.Errorf("operator is required: %w", ErrInvalidSubmission)
	}
	if s.metrics != nil {
		timer := prometheus.NewTimer(s.metrics.SagaDuration)
		defer timer.ObserveDuration()
	}

	entry, err := s.vaccinations.GetHistoryEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.Status != model.HistoryForwarded {
		return nil, fmt.Errorf("entry %s has status %s: %w", entryID, entry.Status, ErrNotForwarded)
	}

	record, err := s.vaccinations.GetRecord(ctx, entry.VaccinationRecordID)
	if err != nil {
		return nil, err
	}
	def, err := s.vaccines.GetDefinition(ctx, record.VaccineID)
	if err != nil {
		return nil, err
	}

	administeredAt := s.now()
	if req.AdministeredAt != nil {
		administeredAt = *req.AdministeredAt
	}

	history, err := s.vaccinations.ListHistoryForRecord(ctx, record.ID)
	if err != nil {
		return nil, err
	}
	prior := make([]*model.VaccinationHistoryEntry, 0, len(history))
	for _, h := range history {
		if h.ID != entry.ID {
			prior = append(prior, h)
		}
	}

	plan, err := s.planner.PlanDose(def, record, prior, administeredAt)
	if err != nil {
		return nil, err
	}
	if plan.DoseNumber != entry.DoseNumber {
		s.logger.Warn().
			Str("entry_id", entry.ID.String()).
			Int("forwarded_dose", entry.DoseNumber).
			Int("planned_dose", plan.DoseNumber).
			Msg("dose number moved since forwarding; keeping the forwarded number")
		plan.DoseNumber = entry.DoseNumber
	}

	comp := &compensationLog{}
	outcome, step, err := s.runCompletion(ctx, entry, record, req, plan, administeredAt, comp)
	if err != nil {
		return nil, s.rollback(ctx, comp, step, err)
	}

	if s.metrics != nil {
		s.metrics.AdministrationsTotal.WithLabelValues(string(outcome.Status)).Inc()
	}
	s.emit(ctx, model.EventVaccinationCompleted, outcome)
	return outcome, nil
}

func (s *Saga) runCompletion(
	ctx context.Context,
	entry *model.VaccinationHistoryEntry,
	record *model.VaccinationRecord,
	req *model.CompleteDeferredRequest,
	plan *schedule.DosePlan,
	administeredAt time.Time,
	comp *compensationLog,
) (*model.AdministrationOutcome, string, error) {
	outcome := &model.AdministrationOutcome{
		PatientRecordID:     record.PatientRecordID,
		VaccinationRecordID: record.ID,
		HistoryEntryID:      entry.ID,
		DoseNumber:          plan.DoseNumber,
		Status:              plan.Status,
	}

	vitalsID, step, err := s.recordVitals(ctx, req.Vitals, req.Operator, comp)
	if err != nil {
		return nil, step, err
	}
	outcome.VitalSignsID = &vitalsID

	if err := s.decrementStock(ctx, req.BatchID, req.Operator, comp); err != nil {
		return nil, kindStockDecrement, err
	}

	if step, err := s.completePendingFollowUps(ctx, record.PatientRecordID, comp); err != nil {
		return nil, step, err
	}

	var followUpID *uuid.UUID
	if plan.FollowUp != nil {
		fuID, step, err := s.scheduleFollowUp(ctx, record.PatientRecordID, plan.FollowUp, comp)
		if err != nil {
			return nil, step, err
		}
		followUpID = &fuID
		outcome.FollowUpVisitID = &fuID
		outcome.FollowUpDate = &plan.FollowUp.Date
	}

	// The entry's one permitted mutation: forwarded -> final status.
	previous := *entry
	entry.Status = plan.Status
	entry.VitalSignsID = &vitalsID
	entry.FollowUpVisitID = followUpID
	entry.AdministeredAt = administeredAt
	if err := s.vaccinations.UpdateHistoryEntry(ctx, entry); err != nil {
		return nil, kindHistoryStatus, err
	}
	comp.push(kindHistoryStatus, entry.ID, func(c context.Context) error {
		restore := previous
		return s.vaccinations.UpdateHistoryEntry(c, &restore)
	})

	return outcome, "", nil
}

func (s *Saga) recordVitals(ctx context.Context, req *model.VitalSignsRequest, operator uuid.UUID, comp *compensationLog) (uuid.UUID, string, error) {
	v := &model.VitalSigns{
		BloodPressure: req.BloodPressure,
		TemperatureC:  req.TemperatureC,
		PulseBPM:      req.PulseBPM,
		SpO2:          req.SpO2,
		RecordedBy:    operator,
	}
	if err := s.vitals.Create(ctx, v); err != nil {
		return uuid.Nil, kindVitalSigns, err
	}
	vID := v.ID
	comp.push(kindVitalSigns, vID, func(c context.Context) error {
		return s.vitals.Delete(c, vID)
	})
	return v.ID, "", nil
}

func (s *Saga) decrementStock(ctx context.Context, batchID, operator uuid.UUID, comp *compensationLog) error {
	if err := s.stock.DecrementAndLog(ctx, batchID, operator); err != nil {
		return err
	}
	comp.push(kindStockDecrement, batchID, func(c context.Context) error {
		return s.stock.Compensate(c, batchID, operator)
	})
	return nil
}

func (s *Saga) completePendingFollowUps(ctx context.Context, patientRecordID uuid.UUID, comp *compensationLog) (string, error) {
	pending, err := s.followUps.ListPendingForPatientRecord(ctx, patientRecordID)
	if err != nil {
		return kindFollowUpStatus, err
	}
	for _, visit := range pending {
		visitID := visit.ID
		if err := s.followUps.UpdateStatus(ctx, visitID, model.FollowUpCompleted); err != nil {
			return kindFollowUpStatus, err
		}
		comp.push(kindFollowUpStatus, visitID, func(c context.Context) error {
			return s.followUps.UpdateStatus(c, visitID, model.FollowUpPending)
		})
	}
	return "", nil
}

func (s *Saga) scheduleFollowUp(ctx context.Context, patientRecordID uuid.UUID, plan *schedule.FollowUpPlan, comp *compensationLog) (uuid.UUID, string, error) {
	visit := &model.FollowUpVisit{
		PatientRecordID: patientRecordID,
		VisitDate:       plan.Date,
		Description:     plan.Description,
		Status:          model.FollowUpPending,
	}
	if err := s.followUps.Create(ctx, visit); err != nil {
		return uuid.Nil, kindFollowUpVisit, err
	}
	visitID := visit.ID
	comp.push(kindFollowUpVisit, visitID, func(c context.Context) error {
		return s.followUps.Delete(c, visitID)
	})
	return visit.ID, "", nil
}

// rollback unwinds the compensation log and surfaces the original
// error, or a PartialRollbackError when any compensation itself failed.
// Compensation runs on a detached context so a cancelled request still
// gets cleaned up.
func (s *Saga) rollback(ctx context.Context, comp *compensationLog, step string, cause error) error {
	if s.metrics != nil {
		s.metrics.RollbacksTotal.WithLabelValues(step).Inc()
		s.metrics.AdministrationsTotal.WithLabelValues("rolled_back").Inc()
	}

	orphans := comp.unwind(context.WithoutCancel(ctx))
	if len(orphans) > 0 {
		if s.metrics != nil {
			s.metrics.PartialRollbacks.Inc()
		}
		err := &PartialRollbackError{Cause: cause, Orphans: orphans}
		s.logger.Error().Err(err).Str("failed_step", step).Msg("rollback left orphaned entities")
		return err
	}

	s.logger.Warn().Err(cause).Str("failed_step", step).Msg("administration rolled back")
	return cause
}

func (s *Saga) emit(ctx context.Context, eventType string, outcome *model.AdministrationOutcome) {
	payload, err := json.Marshal(outcome)
	if err == nil {
		err = s.outbox.Create(ctx, &model.OutboxEvent{EventType: eventType, Payload: payload})
	}
	if err != nil {
		// The administration is already committed; losing the event is
		// preferable to unwinding patient data.
		s.logger.Error().Err(err).Str("event_type", eventType).Msg("administration committed but event not recorded")
	}
}

func validateSubmission(sub *model.VaccinationSubmission) error {
	if sub == nil {
		return fmt.Errorf("submission is required: %w", ErrInvalidSubmission)
	}
	if sub.PatientID == uuid.Nil {
		return fmt.Errorf("patient is required: %w", ErrInvalidSubmission)
	}
	if sub.BatchID == uuid.Nil {
		return fmt.Errorf("vaccine stock batch is required: %w", ErrInvalidSubmission)
	}
	if sub.Operator == uuid.Nil {
		return fmt.Errorf("operator is required: %w", ErrInvalidSubmission)
	}
	if sub.Vitals == nil && sub.AssignTo == nil {
		return fmt.Errorf("either vitals or an assignee is required: %w", ErrInvalidSubmission)
	}
	if sub.Vitals != nil && sub.AssignTo != nil {
		return fmt.Errorf("vitals and assignee are mutually exclusive: %w", ErrInvalidSubmission)
	}
	return nil
}

func hasCompletedDose(entries []*model.VaccinationHistoryEntry) bool {
	for _, e := range entries {
		if e.Status == model.HistoryCompleted {
			return true
		}
	}
	return false
}
