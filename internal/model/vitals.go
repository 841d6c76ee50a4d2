package model

import (
	"github.com/google/uuid"
)

// VitalSigns is a point-in-time measurement tied 1:1 to a vaccination
// history entry. Created once, immutable.
type VitalSigns struct {
	Base
	BloodPressure string  `db:"blood_pressure" json:"blood_pressure"`
	TemperatureC  float64 `db:"temperature_c" json:"temperature_c"`
	PulseBPM      int     `db:"pulse_bpm" json:"pulse_bpm"`
	SpO2          int     `db:"spo2" json:"spo2"`
	RecordedBy    uuid.UUID `db:"recorded_by" json:"recorded_by"`
}

// VitalSignsRequest is the payload the submission carries.
type VitalSignsRequest struct {
	BloodPressure string  `json:"blood_pressure" binding:"required,bloodpressure"`
	TemperatureC  float64 `json:"temperature_c" binding:"required"`
	PulseBPM      int     `json:"pulse_bpm" binding:"required,gt=0"`
	SpO2          int     `json:"spo2" binding:"required,gt=0,lte=100"`
}
