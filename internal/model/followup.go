package model

import (
	"time"

	"github.com/google/uuid"
)

type FollowUpStatus string

const (
	FollowUpPending   FollowUpStatus = "pending"
	FollowUpCompleted FollowUpStatus = "completed"
	FollowUpMissed    FollowUpStatus = "missed"
)

// FollowUpVisit is a scheduled future visit created alongside a history
// entry when the regimen requires another dose. Flipped to completed
// when the next dose is actually given, or to missed once the visit
// date passes without one.
type FollowUpVisit struct {
	Base
	PatientRecordID uuid.UUID      `db:"patient_record_id" json:"patient_record_id"`
	VisitDate       time.Time      `db:"visit_date" json:"visit_date"`
	Description     string         `db:"description" json:"description"`
	Status          FollowUpStatus `db:"status" json:"status"`
}
