package model

import (
	"time"

	"github.com/google/uuid"
)

// VaccinationSubmission is the validated input of one administration.
// Exactly one of Vitals (self-contained) or AssignTo (deferred to a
// second operator) must be set.
type VaccinationSubmission struct {
	PatientID           uuid.UUID          `json:"patient_id" binding:"required"`
	BatchID             uuid.UUID          `json:"batch_id" binding:"required"`
	Vitals              *VitalSignsRequest `json:"vitals,omitempty"`
	AssignTo            *uuid.UUID         `json:"assign_to,omitempty"`
	AgeAtAdministration string             `json:"age_at_administration,omitempty"`
	AdministeredAt      *time.Time         `json:"administered_at,omitempty"`

	// Operator is the authenticated staff member; set from the request
	// context, never from the body.
	Operator uuid.UUID `json:"-"`
}

// Deferred reports whether the submission hands step 2 to another operator.
func (s *VaccinationSubmission) Deferred() bool {
	return s.AssignTo != nil
}

// CompleteDeferredRequest supplies step-2 vitals for a forwarded entry.
type CompleteDeferredRequest struct {
	BatchID        uuid.UUID          `json:"batch_id" binding:"required"`
	Vitals         *VitalSignsRequest `json:"vitals" binding:"required"`
	AdministeredAt *time.Time         `json:"administered_at,omitempty"`

	Operator uuid.UUID `json:"-"`
}

// AdministrationOutcome reports every identifier one saga invocation
// created, plus the resulting dose position.
type AdministrationOutcome struct {
	PatientRecordID     uuid.UUID  `json:"patient_record_id"`
	VaccinationRecordID uuid.UUID  `json:"vaccination_record_id"`
	HistoryEntryID      uuid.UUID  `json:"history_entry_id"`
	VitalSignsID        *uuid.UUID `json:"vital_signs_id,omitempty"`
	FollowUpVisitID     *uuid.UUID `json:"follow_up_visit_id,omitempty"`
	DoseNumber          int        `json:"dose_number"`
	Status              HistoryStatus `json:"status"`
	FollowUpDate        *time.Time `json:"follow_up_date,omitempty"`
}
