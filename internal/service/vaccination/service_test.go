package vaccination

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aytsuu/CIUDAD-APP-sub005/internal/model"
	"github.com/Aytsuu/CIUDAD-APP-sub005/internal/schedule"
)

// recorder collects the order of undo operations so tests can assert
// reverse-creation-order rollback.
type recorder struct {
	ops []string
}

func (r *recorder) note(op string) { r.ops = append(r.ops, op) }

type fakePatientRecords struct {
	rec       *recorder
	records   map[uuid.UUID]*model.PatientRecord
	createErr error
	deleteErr error
}

func (f *fakePatientRecords) Create(_ context.Context, record *model.PatientRecord) error {
	if f.createErr != nil {
		return f.createErr
	}
	record.ID = uuid.New()
	f.records[record.ID] = record
	return nil
}

func (f *fakePatientRecords) Get(_ context.Context, id uuid.UUID) (*model.PatientRecord, error) {
	record, ok := f.records[id]
	if !ok {
		return nil, errors.New("patient record not found")
	}
	return record, nil
}

func (f *fakePatientRecords) Delete(_ context.Context, id uuid.UUID) error {
	f.rec.note("delete_patient_record")
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.records, id)
	return nil
}

type fakeVaccinations struct {
	rec     *recorder
	records map[uuid.UUID]*model.VaccinationRecord
	entries map[uuid.UUID]*model.VaccinationHistoryEntry

	createRecordErr error
	createEntryErr  error
	updateEntryErr  error
	deleteEntryErr  error
}

func (f *fakeVaccinations) CreateRecord(_ context.Context, record *model.VaccinationRecord) error {
	if f.createRecordErr != nil {
		return f.createRecordErr
	}
	record.ID = uuid.New()
	f.records[record.ID] = record
	return nil
}

func (f *fakeVaccinations) GetRecord(_ context.Context, id uuid.UUID) (*model.VaccinationRecord, error) {
	record, ok := f.records[id]
	if !ok {
		return nil, errors.New("vaccination record not found")
	}
	return record, nil
}

func (f *fakeVaccinations) FindRecordForPatientVaccine(_ context.Context, patientID, vaccineID uuid.UUID) (*model.VaccinationRecord, error) {
	for _, record := range f.records {
		if record.PatientID == patientID && record.VaccineID == vaccineID {
			return record, nil
		}
	}
	return nil, nil
}

func (f *fakeVaccinations) DeleteRecord(_ context.Context, id uuid.UUID) error {
	f.rec.note("delete_vaccination_record")
	delete(f.records, id)
	return nil
}

func (f *fakeVaccinations) CreateHistoryEntry(_ context.Context, entry *model.VaccinationHistoryEntry) error {
	if f.createEntryErr != nil {
		return f.createEntryErr
	}
	entry.ID = uuid.New()
	copied := *entry
	f.entries[entry.ID] = &copied
	return nil
}

func (f *fakeVaccinations) GetHistoryEntry(_ context.Context, id uuid.UUID) (*model.VaccinationHistoryEntry, error) {
	entry, ok := f.entries[id]
	if !ok {
		return nil, errors.New("history entry not found")
	}
	copied := *entry
	return &copied, nil
}

func (f *fakeVaccinations) ListHistoryForRecord(_ context.Context, recordID uuid.UUID) ([]*model.VaccinationHistoryEntry, error) {
	var out []*model.VaccinationHistoryEntry
	for _, entry := range f.entries {
		if entry.VaccinationRecordID == recordID {
			copied := *entry
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeVaccinations) UpdateHistoryEntry(_ context.Context, entry *model.VaccinationHistoryEntry) error {
	if f.updateEntryErr != nil {
		return f.updateEntryErr
	}
	if _, ok := f.entries[entry.ID]; !ok {
		return errors.New("history entry not found")
	}
	copied := *entry
	f.entries[entry.ID] = &copied
	return nil
}

func (f *fakeVaccinations) DeleteHistoryEntry(_ context.Context, id uuid.UUID) error {
	f.rec.note("delete_history_entry")
	if f.deleteEntryErr != nil {
		return f.deleteEntryErr
	}
	delete(f.entries, id)
	return nil
}

type fakeVitals struct {
	rec       *recorder
	vitals    map[uuid.UUID]*model.VitalSigns
	createErr error
}

func (f *fakeVitals) Create(_ context.Context, v *model.VitalSigns) error {
	if f.createErr != nil {
		return f.createErr
	}
	v.ID = uuid.New()
	f.vitals[v.ID] = v
	return nil
}

func (f *fakeVitals) Delete(_ context.Context, id uuid.UUID) error {
	f.rec.note("delete_vitals")
	delete(f.vitals, id)
	return nil
}

type fakeFollowUps struct {
	rec       *recorder
	visits    map[uuid.UUID]*model.FollowUpVisit
	createErr error
}

func (f *fakeFollowUps) Create(_ context.Context, visit *model.FollowUpVisit) error {
	if f.createErr != nil {
		return f.createErr
	}
	visit.ID = uuid.New()
	copied := *visit
	f.visits[visit.ID] = &copied
	return nil
}

func (f *fakeFollowUps) UpdateStatus(_ context.Context, id uuid.UUID, status model.FollowUpStatus) error {
	visit, ok := f.visits[id]
	if !ok {
		return errors.New("follow-up not found")
	}
	if status == model.FollowUpPending {
		f.rec.note("revert_follow_up_status")
	}
	visit.Status = status
	return nil
}

func (f *fakeFollowUps) ListPendingForPatientRecord(_ context.Context, patientRecordID uuid.UUID) ([]*model.FollowUpVisit, error) {
	var out []*model.FollowUpVisit
	for _, visit := range f.visits {
		if visit.PatientRecordID == patientRecordID && visit.Status == model.FollowUpPending {
			out = append(out, visit)
		}
	}
	return out, nil
}

func (f *fakeFollowUps) ListDueBetween(_ context.Context, _, _ time.Time) ([]*model.FollowUpVisit, error) {
	return nil, nil
}

func (f *fakeFollowUps) Delete(_ context.Context, id uuid.UUID) error {
	f.rec.note("delete_follow_up")
	delete(f.visits, id)
	return nil
}

type fakeOutbox struct {
	events    []*model.OutboxEvent
	createErr error
}

func (f *fakeOutbox) Create(_ context.Context, event *model.OutboxEvent) error {
	if f.createErr != nil {
		return f.createErr
	}
	event.ID = uuid.New()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeOutbox) GetPendingEvents(_ context.Context, _ int) ([]*model.OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeOutbox) UpdateStatus(_ context.Context, _ uuid.UUID, _ model.OutboxStatus, _ *string) error {
	return nil
}

func (f *fakeOutbox) DeleteProcessedBefore(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

type fakeStockRepo struct {
	batches map[uuid.UUID]*model.VaccineStockBatch
}

func (f *fakeStockRepo) GetBatch(_ context.Context, id uuid.UUID) (*model.VaccineStockBatch, error) {
	batch, ok := f.batches[id]
	if !ok {
		return nil, errors.New("batch not found")
	}
	return batch, nil
}

func (f *fakeStockRepo) ListBatches(_ context.Context, _ uuid.UUID) ([]*model.VaccineStockBatch, error) {
	return nil, nil
}

func (f *fakeStockRepo) UpdateBatchQuantity(_ context.Context, _ uuid.UUID, _ int) error {
	return nil
}

func (f *fakeStockRepo) DecrementBatchQuantity(_ context.Context, _ uuid.UUID) error {
	return nil
}

func (f *fakeStockRepo) AppendTransaction(_ context.Context, _ *model.StockTransaction) error {
	return nil
}

type fakeLedger struct {
	rec           *recorder
	decrements    int
	compensations int
	decrementErr  error
	compensateErr error
}

func (f *fakeLedger) DecrementAndLog(_ context.Context, _, _ uuid.UUID) error {
	if f.decrementErr != nil {
		return f.decrementErr
	}
	f.decrements++
	return nil
}

func (f *fakeLedger) Compensate(_ context.Context, _, _ uuid.UUID) error {
	f.rec.note("compensate_stock")
	if f.compensateErr != nil {
		return f.compensateErr
	}
	f.compensations++
	return nil
}

type fakeDirectory struct {
	definitions map[uuid.UUID]*model.VaccineDefinition
}

func (f *fakeDirectory) GetDefinition(_ context.Context, id uuid.UUID) (*model.VaccineDefinition, error) {
	def, ok := f.definitions[id]
	if !ok {
		return nil, errors.New("vaccine not found")
	}
	return def, nil
}

func (f *fakeDirectory) ListDefinitions(_ context.Context) ([]*model.VaccineDefinition, error) {
	return nil, nil
}

func (f *fakeDirectory) ListBatches(_ context.Context, _ uuid.UUID) ([]*model.VaccineStockBatch, error) {
	return nil, nil
}

// fixture wires a saga over in-memory fakes around one vaccine and one
// stock batch.
type fixture struct {
	saga           *Saga
	rec            *recorder
	patientRecords *fakePatientRecords
	vaccinations   *fakeVaccinations
	vitals         *fakeVitals
	followUps      *fakeFollowUps
	outbox         *fakeOutbox
	ledger         *fakeLedger
	vaccine        *model.VaccineDefinition
	batchID        uuid.UUID
	patientID      uuid.UUID
	operatorID     uuid.UUID
}

func intPtr(n int) *int { return &n }

func newFixture(t *testing.T, vaccine *model.VaccineDefinition) *fixture {
	t.Helper()

	rec := &recorder{}
	vaccine.ID = uuid.New()

	batch := &model.VaccineStockBatch{
		VaccineID:         vaccine.ID,
		BatchNumber:       "B-100",
		QuantityAvailable: 50,
		ExpiryDate:        time.Date(2030, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
	batch.ID = uuid.New()

	f := &fixture{
		rec:            rec,
		patientRecords: &fakePatientRecords{rec: rec, records: make(map[uuid.UUID]*model.PatientRecord)},
		vaccinations: &fakeVaccinations{
			rec:     rec,
			records: make(map[uuid.UUID]*model.VaccinationRecord),
			entries: make(map[uuid.UUID]*model.VaccinationHistoryEntry),
		},
		vitals:     &fakeVitals{rec: rec, vitals: make(map[uuid.UUID]*model.VitalSigns)},
		followUps:  &fakeFollowUps{rec: rec, visits: make(map[uuid.UUID]*model.FollowUpVisit)},
		outbox:     &fakeOutbox{},
		ledger:     &fakeLedger{rec: rec},
		vaccine:    vaccine,
		batchID:    batch.ID,
		patientID:  uuid.New(),
		operatorID: uuid.New(),
	}

	stockRepo := &fakeStockRepo{batches: map[uuid.UUID]*model.VaccineStockBatch{batch.ID: batch}}
	directory := &fakeDirectory{definitions: map[uuid.UUID]*model.VaccineDefinition{vaccine.ID: vaccine}}

	f.saga = NewSaga(
		f.patientRecords,
		f.vaccinations,
		f.vitals,
		f.followUps,
		f.outbox,
		stockRepo,
		directory,
		f.ledger,
		schedule.NewPlanner(zerolog.Nop()),
		zerolog.Nop(),
		nil,
	)
	f.saga.now = func() time.Time { return time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC) }
	return f
}

func threeDosePrimary() *model.VaccineDefinition {
	return &model.VaccineDefinition{
		Name:              "Pentavalent",
		RegimenType:       model.RegimenPrimary,
		RequiredDoseCount: intPtr(3),
		DoseIntervals: []model.DoseInterval{
			{DoseNumber: 2, Interval: 28, Unit: model.TimeUnitDays},
			{DoseNumber: 3, Interval: 28, Unit: model.TimeUnitDays},
		},
	}
}

func (f *fixture) submission() *model.VaccinationSubmission {
	return &model.VaccinationSubmission{
		PatientID: f.patientID,
		BatchID:   f.batchID,
		Vitals: &model.VitalSignsRequest{
			BloodPressure: "120/80",
			TemperatureC:  36.6,
			PulseBPM:      72,
			SpO2:          98,
		},
		Operator: f.operatorID,
	}
}

func TestAdministerFirstDose(t *testing.T) {
	f := newFixture(t, threeDosePrimary())

	outcome, err := f.saga.Administer(context.Background(), f.submission())
	require.NoError(t, err)

	assert.Equal(t, 1, outcome.DoseNumber)
	assert.Equal(t, model.HistoryPartial, outcome.Status)
	assert.Len(t, f.patientRecords.records, 1)
	assert.Len(t, f.vaccinations.records, 1)
	assert.Len(t, f.vaccinations.entries, 1)
	assert.Len(t, f.vitals.vitals, 1)
	assert.Equal(t, 1, f.ledger.decrements)

	require.NotNil(t, outcome.FollowUpDate)
	assert.Equal(t, time.Date(2024, time.March, 29, 10, 0, 0, 0, time.UTC), *outcome.FollowUpDate)
	require.Len(t, f.followUps.visits, 1)

	entry := f.vaccinations.entries[outcome.HistoryEntryID]
	require.NotNil(t, entry)
	assert.Equal(t, 3, entry.RegimenTotal)
	assert.Equal(t, f.operatorID, entry.AdministeredBy)
	require.NotNil(t, entry.VitalSignsID)
	require.NotNil(t, entry.FollowUpVisitID)

	require.Len(t, f.outbox.events, 1)
	assert.Equal(t, model.EventVaccinationAdministered, f.outbox.events[0].EventType)
}

func TestAdministerSecondDoseAppendsToExistingRecord(t *testing.T) {
	f := newFixture(t, threeDosePrimary())

	first, err := f.saga.Administer(context.Background(), f.submission())
	require.NoError(t, err)

	second, err := f.saga.Administer(context.Background(), f.submission())
	require.NoError(t, err)

	assert.Equal(t, 2, second.DoseNumber)
	assert.Equal(t, first.VaccinationRecordID, second.VaccinationRecordID,
		"dose 2 must append to the same regimen instance")
	assert.Len(t, f.patientRecords.records, 1, "no second patient record")
	assert.Len(t, f.vaccinations.entries, 2)

	// The dose-1 follow-up was flipped to completed; the dose-2 one is
	// the only pending visit left.
	var pending, completed int
	for _, visit := range f.followUps.visits {
		switch visit.Status {
		case model.FollowUpPending:
			pending++
		case model.FollowUpCompleted:
			completed++
		}
	}
	assert.Equal(t, 1, pending)
	assert.Equal(t, 1, completed)
}

func TestAdministerTwoDoseSeries(t *testing.T) {
	f := newFixture(t, &model.VaccineDefinition{
		Name:              "Hepatitis A",
		RegimenType:       model.RegimenPrimary,
		RequiredDoseCount: intPtr(2),
		DoseIntervals: []model.DoseInterval{
			{DoseNumber: 2, Interval: 28, Unit: model.TimeUnitDays},
		},
	})

	f.saga.now = func() time.Time { return time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC) }
	first, err := f.saga.Administer(context.Background(), f.submission())
	require.NoError(t, err)

	assert.Equal(t, 1, first.DoseNumber)
	assert.Equal(t, model.HistoryPartial, first.Status)
	require.NotNil(t, first.FollowUpDate)
	assert.Equal(t, time.Date(2024, time.March, 29, 10, 0, 0, 0, time.UTC), *first.FollowUpDate)

	// The patient comes back on the follow-up date.
	f.saga.now = func() time.Time { return time.Date(2024, time.March, 29, 9, 0, 0, 0, time.UTC) }
	second, err := f.saga.Administer(context.Background(), f.submission())
	require.NoError(t, err)

	assert.Equal(t, 2, second.DoseNumber)
	assert.Equal(t, model.HistoryCompleted, second.Status)
	assert.Nil(t, second.FollowUpVisitID)
	assert.Nil(t, second.FollowUpDate)

	// The dose-1 visit is done and nothing new was scheduled.
	require.Len(t, f.followUps.visits, 1)
	for _, visit := range f.followUps.visits {
		assert.Equal(t, model.FollowUpCompleted, visit.Status)
	}
	assert.Equal(t, 2, f.ledger.decrements)
}

func TestAdministerFullSeriesCompletes(t *testing.T) {
	f := newFixture(t, threeDosePrimary())

	var last *model.AdministrationOutcome
	for i := 0; i < 3; i++ {
		outcome, err := f.saga.Administer(context.Background(), f.submission())
		require.NoError(t, err)
		last = outcome
	}

	assert.Equal(t, 3, last.DoseNumber)
	assert.Equal(t, model.HistoryCompleted, last.Status)
	assert.Nil(t, last.FollowUpVisitID, "final dose schedules no follow-up")
	assert.Equal(t, 3, f.ledger.decrements)

	// Dose 4 is rejected before any write.
	_, err := f.saga.Administer(context.Background(), f.submission())
	assert.ErrorIs(t, err, ErrDuplicateVaccination)
	assert.Len(t, f.vaccinations.entries, 3)
	assert.Equal(t, 3, f.ledger.decrements)
}

func TestAdministerRoutineOpensFreshRecordEachTime(t *testing.T) {
	f := newFixture(t, &model.VaccineDefinition{
		Name:            "Influenza",
		RegimenType:     model.RegimenRoutine,
		RoutineInterval: &model.RoutineInterval{Interval: 1, Unit: model.TimeUnitYears},
	})

	first, err := f.saga.Administer(context.Background(), f.submission())
	require.NoError(t, err)
	second, err := f.saga.Administer(context.Background(), f.submission())
	require.NoError(t, err)

	assert.Equal(t, 1, first.DoseNumber)
	assert.Equal(t, 1, second.DoseNumber, "routine doses always restart at 1")
	assert.NotEqual(t, first.VaccinationRecordID, second.VaccinationRecordID)
	assert.Equal(t, model.HistoryScheduled, second.Status)
	assert.Len(t, f.patientRecords.records, 2)
}

func TestAdministerValidation(t *testing.T) {
	f := newFixture(t, threeDosePrimary())

	cases := map[string]func(*model.VaccinationSubmission){
		"missing patient":  func(s *model.VaccinationSubmission) { s.PatientID = uuid.Nil },
		"missing batch":    func(s *model.VaccinationSubmission) { s.BatchID = uuid.Nil },
		"missing operator": func(s *model.VaccinationSubmission) { s.Operator = uuid.Nil },
		"neither vitals nor assignee": func(s *model.VaccinationSubmission) {
			s.Vitals = nil
			s.AssignTo = nil
		},
		"both vitals and assignee": func(s *model.VaccinationSubmission) {
			id := uuid.New()
			s.AssignTo = &id
		},
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			sub := f.submission()
			mutate(sub)
			_, err := f.saga.Administer(context.Background(), sub)
			assert.ErrorIs(t, err, ErrInvalidSubmission)
		})
	}
	assert.Empty(t, f.vaccinations.entries, "validation failures must not write")
}

func TestAdministerRollsBackInReverseOrder(t *testing.T) {
	f := newFixture(t, threeDosePrimary())
	f.vaccinations.createEntryErr = errors.New("db down")

	_, err := f.saga.Administer(context.Background(), f.submission())
	require.Error(t, err)
	var partial *PartialRollbackError
	assert.False(t, errors.As(err, &partial), "a clean rollback is not a partial one")

	// Everything created before the failing step is gone again.
	assert.Empty(t, f.patientRecords.records)
	assert.Empty(t, f.vaccinations.records)
	assert.Empty(t, f.vitals.vitals)
	assert.Empty(t, f.followUps.visits)
	assert.Equal(t, 1, f.ledger.compensations)
	assert.Empty(t, f.outbox.events, "no event for a rolled-back administration")

	assert.Equal(t, []string{
		"delete_follow_up",
		"compensate_stock",
		"delete_vitals",
		"delete_vaccination_record",
		"delete_patient_record",
	}, f.rec.ops, "compensation must run newest first")
}

func TestAdministerPatientRecordFailureWritesNothing(t *testing.T) {
	f := newFixture(t, threeDosePrimary())
	f.patientRecords.createErr = errors.New("db down")

	_, err := f.saga.Administer(context.Background(), f.submission())
	require.Error(t, err)

	assert.Empty(t, f.patientRecords.records)
	assert.Empty(t, f.vaccinations.records)
	assert.Empty(t, f.vitals.vitals)
	assert.Equal(t, 0, f.ledger.decrements)
	assert.Empty(t, f.rec.ops, "nothing was created, so nothing compensates")
}

func TestAdministerVaccinationRecordFailureUnwindsPatientRecord(t *testing.T) {
	f := newFixture(t, threeDosePrimary())
	f.vaccinations.createRecordErr = errors.New("db down")

	_, err := f.saga.Administer(context.Background(), f.submission())
	require.Error(t, err)

	assert.Empty(t, f.patientRecords.records)
	assert.Empty(t, f.vaccinations.records)
	assert.Empty(t, f.vitals.vitals)
	assert.Equal(t, 0, f.ledger.decrements)
	assert.Equal(t, []string{"delete_patient_record"}, f.rec.ops)
}

func TestAdministerVitalsFailureUnwindsRecords(t *testing.T) {
	f := newFixture(t, threeDosePrimary())
	f.vitals.createErr = errors.New("db down")

	_, err := f.saga.Administer(context.Background(), f.submission())
	require.Error(t, err)

	assert.Empty(t, f.patientRecords.records)
	assert.Empty(t, f.vaccinations.records)
	assert.Empty(t, f.vitals.vitals)
	assert.Equal(t, 0, f.ledger.decrements, "stock is untouched before vitals are recorded")
	assert.Equal(t, []string{
		"delete_vaccination_record",
		"delete_patient_record",
	}, f.rec.ops)
}

func TestAdministerRollsBackWhenStockFails(t *testing.T) {
	f := newFixture(t, threeDosePrimary())
	f.ledger.decrementErr = errors.New("stock down")

	_, err := f.saga.Administer(context.Background(), f.submission())
	require.Error(t, err)

	assert.Empty(t, f.patientRecords.records)
	assert.Empty(t, f.vaccinations.records)
	assert.Empty(t, f.vitals.vitals)
	assert.Equal(t, 0, f.ledger.compensations, "a failed decrement is not compensated")
}

func TestAdministerSecondDoseFailureRevertsFollowUpFlip(t *testing.T) {
	f := newFixture(t, threeDosePrimary())

	_, err := f.saga.Administer(context.Background(), f.submission())
	require.NoError(t, err)

	f.followUps.createErr = errors.New("db down")
	_, err = f.saga.Administer(context.Background(), f.submission())
	require.Error(t, err)

	// The dose-1 follow-up must be pending again.
	require.Len(t, f.followUps.visits, 1)
	for _, visit := range f.followUps.visits {
		assert.Equal(t, model.FollowUpPending, visit.Status)
	}
	assert.Len(t, f.vaccinations.entries, 1, "dose 2 entry must not survive")
}

func TestAdministerPartialRollbackEnumeratesOrphans(t *testing.T) {
	f := newFixture(t, threeDosePrimary())
	f.vaccinations.createEntryErr = errors.New("db down")
	f.patientRecords.deleteErr = errors.New("delete refused")

	_, err := f.saga.Administer(context.Background(), f.submission())
	require.Error(t, err)

	var partial *PartialRollbackError
	require.ErrorAs(t, err, &partial)
	require.Len(t, partial.Orphans, 1)
	assert.Equal(t, "patient_record", partial.Orphans[0].Kind)
	assert.ErrorContains(t, err, "db down")
	assert.ErrorContains(t, err, partial.Orphans[0].ID.String())

	// Compensations past the failing one still ran.
	assert.Equal(t, 1, f.ledger.compensations)
	assert.Empty(t, f.vitals.vitals)
}

func TestAdministerDeferredCreatesForwardedEntryOnly(t *testing.T) {
	f := newFixture(t, threeDosePrimary())
	assignee := uuid.New()

	sub := f.submission()
	sub.Vitals = nil
	sub.AssignTo = &assignee

	outcome, err := f.saga.Administer(context.Background(), sub)
	require.NoError(t, err)

	assert.Equal(t, model.HistoryForwarded, outcome.Status)
	assert.Nil(t, outcome.VitalSignsID)
	assert.Nil(t, outcome.FollowUpVisitID)
	assert.Equal(t, 0, f.ledger.decrements, "stock moves only when the dose is given")
	assert.Empty(t, f.vitals.vitals)
	assert.Empty(t, f.followUps.visits)

	entry := f.vaccinations.entries[outcome.HistoryEntryID]
	require.NotNil(t, entry)
	require.NotNil(t, entry.AssignedTo)
	assert.Equal(t, assignee, *entry.AssignedTo)
}

func TestCompleteDeferred(t *testing.T) {
	f := newFixture(t, threeDosePrimary())
	assignee := uuid.New()

	sub := f.submission()
	sub.Vitals = nil
	sub.AssignTo = &assignee
	forwarded, err := f.saga.Administer(context.Background(), sub)
	require.NoError(t, err)

	outcome, err := f.saga.CompleteDeferred(context.Background(), forwarded.HistoryEntryID, &model.CompleteDeferredRequest{
		BatchID: f.batchID,
		Vitals: &model.VitalSignsRequest{
			BloodPressure: "118/76",
			TemperatureC:  36.8,
			PulseBPM:      70,
			SpO2:          99,
		},
		Operator: assignee,
	})
	require.NoError(t, err)

	assert.Equal(t, forwarded.HistoryEntryID, outcome.HistoryEntryID, "the entry is updated, never replaced")
	assert.Equal(t, 1, outcome.DoseNumber)
	assert.Equal(t, model.HistoryPartial, outcome.Status)
	assert.Equal(t, 1, f.ledger.decrements)
	require.NotNil(t, outcome.VitalSignsID)
	require.NotNil(t, outcome.FollowUpVisitID)

	entry := f.vaccinations.entries[forwarded.HistoryEntryID]
	assert.Equal(t, model.HistoryPartial, entry.Status)
	require.NotNil(t, entry.VitalSignsID)

	assert.Len(t, f.vaccinations.entries, 1)
	require.Len(t, f.outbox.events, 2)
	assert.Equal(t, model.EventVaccinationCompleted, f.outbox.events[1].EventType)
}

func TestCompleteDeferredRejectsNonForwardedEntry(t *testing.T) {
	f := newFixture(t, threeDosePrimary())

	outcome, err := f.saga.Administer(context.Background(), f.submission())
	require.NoError(t, err)

	_, err = f.saga.CompleteDeferred(context.Background(), outcome.HistoryEntryID, &model.CompleteDeferredRequest{
		BatchID:  f.batchID,
		Vitals:   f.submission().Vitals,
		Operator: f.operatorID,
	})
	assert.ErrorIs(t, err, ErrNotForwarded)
}

func TestCompleteDeferredRollbackRestoresForwardedStatus(t *testing.T) {
	f := newFixture(t, threeDosePrimary())
	assignee := uuid.New()

	sub := f.submission()
	sub.Vitals = nil
	sub.AssignTo = &assignee
	forwarded, err := f.saga.Administer(context.Background(), sub)
	require.NoError(t, err)

	f.vaccinations.updateEntryErr = errors.New("db down")
	_, err = f.saga.CompleteDeferred(context.Background(), forwarded.HistoryEntryID, &model.CompleteDeferredRequest{
		BatchID:  f.batchID,
		Vitals:   &model.VitalSignsRequest{BloodPressure: "118/76", TemperatureC: 36.8, PulseBPM: 70, SpO2: 99},
		Operator: assignee,
	})
	require.Error(t, err)

	entry := f.vaccinations.entries[forwarded.HistoryEntryID]
	assert.Equal(t, model.HistoryForwarded, entry.Status, "entry must stay forwarded after rollback")
	assert.Empty(t, f.vitals.vitals)
	assert.Empty(t, f.followUps.visits)
	assert.Equal(t, 1, f.ledger.compensations)
}

func TestConditionalTotalPinnedByFirstEntry(t *testing.T) {
	f := newFixture(t, &model.VaccineDefinition{
		Name:        "Anti-Rabies",
		RegimenType: model.RegimenConditional,
		DoseIntervals: []model.DoseInterval{
			{DoseNumber: 2, Interval: 3, Unit: model.TimeUnitDays},
			{DoseNumber: 3, Interval: 4, Unit: model.TimeUnitDays},
			{DoseNumber: 4, Interval: 7, Unit: model.TimeUnitDays},
		},
	})

	// First dose: total not yet known.
	first, err := f.saga.Administer(context.Background(), f.submission())
	require.NoError(t, err)
	assert.Equal(t, model.HistoryPartial, first.Status)

	// Clinician pins the total at 4 on the first entry.
	entry := f.vaccinations.entries[first.HistoryEntryID]
	entry.RegimenTotal = 4

	for dose := 2; dose <= 4; dose++ {
		outcome, err := f.saga.Administer(context.Background(), f.submission())
		require.NoError(t, err, "dose %d", dose)
		assert.Equal(t, dose, outcome.DoseNumber)
		if dose == 4 {
			assert.Equal(t, model.HistoryCompleted, outcome.Status)
		} else {
			assert.Equal(t, model.HistoryPartial, outcome.Status)
		}
	}

	// A fifth dose exceeds the pinned total.
	_, err = f.saga.Administer(context.Background(), f.submission())
	assert.ErrorIs(t, err, ErrDuplicateVaccination)
}

func TestAdministerOutboxFailureDoesNotFailTheAdministration(t *testing.T) {
	f := newFixture(t, threeDosePrimary())
	f.outbox.createErr = fmt.Errorf("outbox down")

	outcome, err := f.saga.Administer(context.Background(), f.submission())
	require.NoError(t, err, "a committed administration survives a lost event")
	assert.Len(t, f.vaccinations.entries, 1)
	assert.NotEqual(t, uuid.Nil, outcome.HistoryEntryID)
}
