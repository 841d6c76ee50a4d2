package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Aytsuu/CIUDAD-APP-sub005/internal/model"
	"github.com/Aytsuu/CIUDAD-APP-sub005/internal/repository"
)

type stockRepository struct {
	BaseRepository
}

func NewStockRepository(base BaseRepository) repository.StockRepository {
	return &stockRepository{base}
}

func (r *stockRepository) GetBatch(ctx context.Context, id uuid.UUID) (*model.VaccineStockBatch, error) {
	query := `
		SELECT * FROM vaccine_stock_batches
		WHERE id = $1 AND deleted_at IS NULL
	`
	var batch model.VaccineStockBatch
	if err := r.GetDB().GetContext(ctx, &batch, query, id); err != nil {
		return nil, fmt.Errorf("failed to get stock batch: %w", err)
	}
	return &batch, nil
}

func (r *stockRepository) ListBatches(ctx context.Context, vaccineID uuid.UUID) ([]*model.VaccineStockBatch, error) {
	query := `
		SELECT * FROM vaccine_stock_batches
		WHERE vaccine_id = $1 AND deleted_at IS NULL
		ORDER BY expiry_date ASC
	`
	var batches []*model.VaccineStockBatch
	if err := r.GetDB().SelectContext(ctx, &batches, query, vaccineID); err != nil {
		return nil, fmt.Errorf("failed to list stock batches: %w", err)
	}
	return batches, nil
}

func (r *stockRepository) UpdateBatchQuantity(ctx context.Context, id uuid.UUID, quantity int) error {
	query := `
		UPDATE vaccine_stock_batches
		SET quantity_available = $2, updated_at = $3
		WHERE id = $1 AND deleted_at IS NULL
	`
	result, err := r.GetDB().ExecContext(ctx, query, id, quantity, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update batch quantity: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check batch update: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("stock batch %s not found", id)
	}
	return nil
}

// DecrementBatchQuantity refuses to decrement below zero. The default
// adapter path does not use it; see the stock service for the
// documented optimistic behavior.
func (r *stockRepository) DecrementBatchQuantity(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE vaccine_stock_batches
		SET quantity_available = quantity_available - 1, updated_at = $2
		WHERE id = $1 AND quantity_available > 0 AND deleted_at IS NULL
	`
	result, err := r.GetDB().ExecContext(ctx, query, id, time.Now())
	if err != nil {
		return fmt.Errorf("failed to decrement batch quantity: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check batch decrement: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("stock batch %s has no available quantity", id)
	}
	return nil
}

func (r *stockRepository) AppendTransaction(ctx context.Context, txn *model.StockTransaction) error {
	query := `
		INSERT INTO stock_transactions (
			id, batch_id, staff_id, quantity, action, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now()
	}

	_, err := r.GetDB().ExecContext(ctx, query,
		txn.ID,
		txn.BatchID,
		txn.StaffID,
		txn.Quantity,
		txn.Action,
		txn.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append stock transaction: %w", err)
	}
	return nil
}
