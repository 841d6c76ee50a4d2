package vaccination

import (
	"context"

	"github.com/google/uuid"
)

// Entity kinds tracked by the compensation log.
const (
	kindPatientRecord     = "patient_record"
	kindVaccinationRecord = "vaccination_record"
	kindVitalSigns        = "vital_signs"
	kindStockDecrement    = "stock_decrement"
	kindFollowUpVisit     = "follow_up_visit"
	kindFollowUpStatus    = "follow_up_status"
	kindHistoryEntry      = "vaccination_history"
	kindHistoryStatus     = "history_status"
)

type compensation struct {
	kind string
	id   uuid.UUID
	undo func(ctx context.Context) error
}

// compensationLog records every successful side effect of one saga
// invocation so it can be undone in reverse creation order.
type compensationLog struct {
	entries []compensation
}

func (l *compensationLog) push(kind string, id uuid.UUID, undo func(ctx context.Context) error) {
	l.entries = append(l.entries, compensation{kind: kind, id: id, undo: undo})
}

// unwind compensates every recorded side effect, newest first, and
// returns the entities whose compensation failed. It keeps going past
// failures: every remaining entry still gets its chance to be undone.
func (l *compensationLog) unwind(ctx context.Context) []Orphan {
	var orphans []Orphan
	for i := len(l.entries) - 1; i >= 0; i-- {
		entry := l.entries[i]
		if err := entry.undo(ctx); err != nil {
			orphans = append(orphans, Orphan{Kind: entry.kind, ID: entry.id, Err: err})
		}
	}
	return orphans
}
