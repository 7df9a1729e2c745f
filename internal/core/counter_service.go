package core

import (
	"context"
	"fmt"

	"pos-backend/internal/db"
)

// Counter numbering ranges. Both counters roll back to the start value
// after handing out the end value.
const (
	TransactionNoStart int64 = 1
	TransactionNoEnd   int64 = 9999999999
	ReceiptNoStart     int64 = 1
	ReceiptNoEnd       int64 = 999999
)

// CounterService hands out per-terminal sequence numbers. Every call
// returns a fresh value; concurrent callers never observe the same one.
type CounterService interface {
	Next(ctx context.Context, terminalID, counterType string) (int64, error)
	Current(ctx context.Context, terminalID, counterType string) (int64, error)
	Reset(ctx context.Context, terminalID string) error
}

type counterService struct {
	tdb *db.TenantDB
}

func NewCounterService(tdb *db.TenantDB) CounterService {
	return &counterService{tdb: tdb}
}

func counterRange(counterType string) (start, end int64, err error) {
	switch counterType {
	case CounterTypeTransactionNo:
		return TransactionNoStart, TransactionNoEnd, nil
	case CounterTypeReceiptNo:
		return ReceiptNoStart, ReceiptNoEnd, nil
	default:
		return 0, 0, ErrValidation.Withf("unknown counter type %q", counterType)
	}
}

// Next increments and returns the named counter in one statement. The first
// call seeds the row at the range start; when the stored value has reached
// the range end the next call wraps back to the start. The conditional upsert
// makes increment and rollover a single atomic round trip, so two terminals
// of the same store hammering their own counters never block each other and
// two requests for the same counter serialize on the row.
func (s *counterService) Next(ctx context.Context, terminalID, counterType string) (int64, error) {
	start, end, err := counterRange(counterType)
	if err != nil {
		return 0, err
	}
	var value int64
	err = s.tdb.Pool().QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO %s (terminal_id, counter_type, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (terminal_id, counter_type) DO UPDATE
		SET value = CASE
			WHEN terminal_counters.value >= $4 THEN $3
			ELSE terminal_counters.value + 1
		END,
		    updated_at = NOW()
		RETURNING value
	`, s.tdb.T("terminal_counters")), terminalID, counterType, start, end).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("failed to advance counter %s/%s: %w", terminalID, counterType, err)
	}
	return value, nil
}

// Current reads the counter without advancing it. Returns the range start
// minus one when the counter has never been used.
func (s *counterService) Current(ctx context.Context, terminalID, counterType string) (int64, error) {
	start, _, err := counterRange(counterType)
	if err != nil {
		return 0, err
	}
	var value int64
	err = s.tdb.Pool().QueryRow(ctx, fmt.Sprintf(`
		SELECT COALESCE(
			(SELECT value FROM %s WHERE terminal_id = $1 AND counter_type = $2), $3 - 1
		)
	`, s.tdb.T("terminal_counters")), terminalID, counterType, start).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("failed to read counter %s/%s: %w", terminalID, counterType, err)
	}
	return value, nil
}

// Reset drops all counters for a terminal. Used when the terminal itself
// is deleted.
func (s *counterService) Reset(ctx context.Context, terminalID string) error {
	_, err := s.tdb.Pool().Exec(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE terminal_id = $1", s.tdb.T("terminal_counters")), terminalID)
	if err != nil {
		return fmt.Errorf("failed to reset counters for %s: %w", terminalID, err)
	}
	return nil
}
