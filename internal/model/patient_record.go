package model

import (
	"github.com/google/uuid"
)

// RecordTypeVaccination is the record type every administration episode
// is filed under.
const RecordTypeVaccination = "Vaccination Record"

// PatientRecord is the visit/episode wrapper created per administration
// event. It is the first entity the saga creates and the last one it
// deletes on rollback.
type PatientRecord struct {
	Base
	PatientID  uuid.UUID `db:"patient_id" json:"patient_id"`
	RecordType string    `db:"record_type" json:"record_type"`
	CreatedBy  uuid.UUID `db:"created_by" json:"created_by"`
}
