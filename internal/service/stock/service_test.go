package stock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aytsuu/CIUDAD-APP-sub005/internal/model"
)

type fakeStockRepo struct {
	batches map[uuid.UUID]*model.VaccineStockBatch
	txns    []*model.StockTransaction

	updateErr error
	appendErr error
}

func newFakeStockRepo() *fakeStockRepo {
	return &fakeStockRepo{batches: make(map[uuid.UUID]*model.VaccineStockBatch)}
}

func (r *fakeStockRepo) GetBatch(_ context.Context, id uuid.UUID) (*model.VaccineStockBatch, error) {
	batch, ok := r.batches[id]
	if !ok {
		return nil, errors.New("batch not found")
	}
	copied := *batch
	return &copied, nil
}

func (r *fakeStockRepo) ListBatches(_ context.Context, _ uuid.UUID) ([]*model.VaccineStockBatch, error) {
	return nil, nil
}

func (r *fakeStockRepo) UpdateBatchQuantity(_ context.Context, id uuid.UUID, quantity int) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	r.batches[id].QuantityAvailable = quantity
	return nil
}

func (r *fakeStockRepo) DecrementBatchQuantity(_ context.Context, id uuid.UUID) error {
	batch := r.batches[id]
	if batch.QuantityAvailable <= 0 {
		return errors.New("no stock")
	}
	batch.QuantityAvailable--
	return nil
}

func (r *fakeStockRepo) AppendTransaction(_ context.Context, txn *model.StockTransaction) error {
	if r.appendErr != nil {
		return r.appendErr
	}
	r.txns = append(r.txns, txn)
	return nil
}

func newBatch(qty int, expiry time.Time) *model.VaccineStockBatch {
	batch := &model.VaccineStockBatch{
		VaccineID:         uuid.New(),
		BatchNumber:       "B-001",
		QuantityAvailable: qty,
		ExpiryDate:        expiry,
	}
	batch.ID = uuid.New()
	return batch
}

func newTestService(repo *fakeStockRepo) *Service {
	svc := NewService(repo, zerolog.Nop(), nil)
	svc.now = func() time.Time { return time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestDecrementAndLog(t *testing.T) {
	repo := newFakeStockRepo()
	batch := newBatch(10, time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC))
	repo.batches[batch.ID] = batch
	staffID := uuid.New()

	err := newTestService(repo).DecrementAndLog(context.Background(), batch.ID, staffID)
	require.NoError(t, err)

	assert.Equal(t, 9, repo.batches[batch.ID].QuantityAvailable)
	require.Len(t, repo.txns, 1)
	assert.Equal(t, model.StockActionAdministered, repo.txns[0].Action)
	assert.Equal(t, staffID, repo.txns[0].StaffID)
	assert.Equal(t, 1, repo.txns[0].Quantity)
}

func TestDecrementAndLogInsufficientStock(t *testing.T) {
	repo := newFakeStockRepo()
	batch := newBatch(0, time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC))
	repo.batches[batch.ID] = batch

	err := newTestService(repo).DecrementAndLog(context.Background(), batch.ID, uuid.New())
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Empty(t, repo.txns)
	assert.Equal(t, 0, repo.batches[batch.ID].QuantityAvailable)
}

func TestDecrementAndLogExpiredBatch(t *testing.T) {
	repo := newFakeStockRepo()
	batch := newBatch(10, time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC))
	repo.batches[batch.ID] = batch

	err := newTestService(repo).DecrementAndLog(context.Background(), batch.ID, uuid.New())
	assert.ErrorIs(t, err, ErrBatchExpired)
	assert.Equal(t, 10, repo.batches[batch.ID].QuantityAvailable)
}

func TestDecrementAndLogRestoresQuantityWhenLogFails(t *testing.T) {
	repo := newFakeStockRepo()
	batch := newBatch(5, time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC))
	repo.batches[batch.ID] = batch
	repo.appendErr = errors.New("ledger down")

	err := newTestService(repo).DecrementAndLog(context.Background(), batch.ID, uuid.New())
	require.Error(t, err)
	assert.Equal(t, 5, repo.batches[batch.ID].QuantityAvailable,
		"quantity must be restored when the ledger append fails")
}

// staleReadRepo serves every GetBatch from a snapshot taken at
// construction, simulating two requests that both read before either
// writes.
type staleReadRepo struct {
	*fakeStockRepo
	snapshot model.VaccineStockBatch
}

func (r *staleReadRepo) GetBatch(_ context.Context, _ uuid.UUID) (*model.VaccineStockBatch, error) {
	copied := r.snapshot
	return &copied, nil
}

func TestDecrementAndLogLostUpdateOnConcurrentReads(t *testing.T) {
	inner := newFakeStockRepo()
	batch := newBatch(1, time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC))
	inner.batches[batch.ID] = batch
	repo := &staleReadRepo{fakeStockRepo: inner, snapshot: *batch}

	svc := NewService(repo, zerolog.Nop(), nil)
	svc.now = func() time.Time { return time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC) }

	// Read-then-write without a guard: with both reads seeing the last
	// dose, both decrements succeed and one is lost. Documented
	// limitation; this pins the current behavior so a fix shows up as a
	// deliberate test change.
	require.NoError(t, svc.DecrementAndLog(context.Background(), batch.ID, uuid.New()))
	require.NoError(t, svc.DecrementAndLog(context.Background(), batch.ID, uuid.New()))

	assert.Len(t, inner.txns, 2, "both administrations reach the ledger")
	assert.Equal(t, 0, inner.batches[batch.ID].QuantityAvailable,
		"second write clobbers the first; the ledger and the quantity disagree")
}

func TestCompensateRestoresAndLogsRollback(t *testing.T) {
	repo := newFakeStockRepo()
	batch := newBatch(9, time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC))
	repo.batches[batch.ID] = batch
	staffID := uuid.New()

	err := newTestService(repo).Compensate(context.Background(), batch.ID, staffID)
	require.NoError(t, err)

	assert.Equal(t, 10, repo.batches[batch.ID].QuantityAvailable)
	require.Len(t, repo.txns, 1)
	assert.Equal(t, model.StockActionRollback, repo.txns[0].Action)
}

func TestCompensateSucceedsWhenLedgerAppendFails(t *testing.T) {
	repo := newFakeStockRepo()
	batch := newBatch(9, time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC))
	repo.batches[batch.ID] = batch
	repo.appendErr = errors.New("ledger down")

	// The restore already happened; a missing rollback row is logged,
	// not treated as a failed compensation.
	err := newTestService(repo).Compensate(context.Background(), batch.ID, uuid.New())
	assert.NoError(t, err)
	assert.Equal(t, 10, repo.batches[batch.ID].QuantityAvailable)
}
