package model

import (
	"time"

	"github.com/google/uuid"
)

// HistoryStatus is the lifecycle state of one administered dose.
// A forwarded entry transitions exactly once, when the second operator
// completes it; no entry ever regresses from completed.
type HistoryStatus string

const (
	// HistoryForwarded marks an entry created by one operator and
	// awaiting vitals from a second.
	HistoryForwarded HistoryStatus = "forwarded"
	// HistoryScheduled marks a routine dose with its next visit booked.
	HistoryScheduled HistoryStatus = "scheduled"
	// HistoryPartial marks a dose of an unfinished regimen.
	HistoryPartial HistoryStatus = "partially_vaccinated"
	// HistoryCompleted marks the final dose of a regimen.
	HistoryCompleted HistoryStatus = "completed"
)

// VaccinationRecord groups all doses of one regimen instance for one
// patient and vaccine. TotalDosesRequired is pinned at creation (from
// the definition for primary vaccines, clinically for conditional ones)
// and never recomputed.
type VaccinationRecord struct {
	Base
	PatientRecordID    uuid.UUID `db:"patient_record_id" json:"patient_record_id"`
	PatientID          uuid.UUID `db:"patient_id" json:"patient_id"`
	VaccineID          uuid.UUID `db:"vaccine_id" json:"vaccine_id"`
	TotalDosesRequired int       `db:"total_doses_required" json:"total_doses_required"`
}

// VaccinationHistoryEntry is one administered dose. Append-only; the
// only permitted mutation is the forwarded -> final status transition
// of the deferred flow.
type VaccinationHistoryEntry struct {
	Base
	VaccinationRecordID uuid.UUID     `db:"vaccination_record_id" json:"vaccination_record_id"`
	DoseNumber          int           `db:"dose_number" json:"dose_number"`
	Status              HistoryStatus `db:"status" json:"status"`
	// RegimenTotal snapshots the record's total_doses_required at
	// administration time. For conditional vaccines an already-set
	// total on any prior entry is authoritative.
	RegimenTotal        int        `db:"regimen_total" json:"regimen_total"`
	AgeAtAdministration string     `db:"age_at_administration" json:"age_at_administration"`
	AdministeredAt      time.Time  `db:"administered_at" json:"administered_at"`
	AdministeredBy      uuid.UUID  `db:"administered_by" json:"administered_by"`
	VitalSignsID        *uuid.UUID `db:"vital_signs_id" json:"vital_signs_id,omitempty"`
	FollowUpVisitID     *uuid.UUID `db:"follow_up_visit_id" json:"follow_up_visit_id,omitempty"`
	AssignedTo          *uuid.UUID `db:"assigned_to" json:"assigned_to,omitempty"`
}
