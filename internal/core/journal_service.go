package core

import (
	"context"
	"fmt"

	"pos-backend/internal/db"
)

// JournalQuery filters journal listings. Date bounds are business dates in
// YYYYMMDD form and inclusive.
type JournalQuery struct {
	StoreCode        string
	TerminalID       string
	DateFrom         string
	DateTo           string
	TransactionTypes []TransactionType
	Limit            int
	Page             int
}

// JournalService reads the receipt journal written alongside every
// transaction log.
type JournalService interface {
	Search(ctx context.Context, q JournalQuery) ([]JournalEntry, int, error)
}

type journalService struct {
	tdb *db.TenantDB
}

func NewJournalService(tdb *db.TenantDB) JournalService {
	return &journalService{tdb: tdb}
}

func (s *journalService) Search(ctx context.Context, q JournalQuery) ([]JournalEntry, int, error) {
	if q.Limit <= 0 {
		q.Limit = 100
	}
	if q.Page < 1 {
		q.Page = 1
	}

	where := "WHERE 1=1"
	args := []any{}
	n := 0
	add := func(cond string, v any) {
		n++
		where += fmt.Sprintf(" AND %s $%d", cond, n)
		args = append(args, v)
	}
	if q.StoreCode != "" {
		add("store_code =", q.StoreCode)
	}
	if q.TerminalID != "" {
		add("terminal_id =", q.TerminalID)
	}
	if q.DateFrom != "" {
		add("business_date >=", q.DateFrom)
	}
	if q.DateTo != "" {
		add("business_date <=", q.DateTo)
	}
	if len(q.TransactionTypes) > 0 {
		n++
		where += fmt.Sprintf(" AND transaction_type = ANY($%d)", n)
		types := make([]int, len(q.TransactionTypes))
		for i, t := range q.TransactionTypes {
			types[i] = int(t)
		}
		args = append(args, types)
	}

	var total int
	if err := s.tdb.Pool().QueryRow(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM %s %s", s.tdb.T("journals"), where), args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count journals: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT store_code, terminal_id, terminal_no, transaction_no, transaction_type,
		       receipt_no, business_date, open_counter, amount, quantity, staff_id,
		       receipt_text, journal_text, generate_date_time
		FROM %s %s
		ORDER BY generate_date_time DESC, transaction_no DESC
		LIMIT $%d OFFSET $%d
	`, s.tdb.T("journals"), where, n+1, n+2)
	args = append(args, q.Limit, (q.Page-1)*q.Limit)

	rows, err := s.tdb.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query journals: %w", err)
	}
	defer rows.Close()

	var entries []JournalEntry
	for rows.Next() {
		var j JournalEntry
		if err := rows.Scan(&j.StoreCode, &j.TerminalID, &j.TerminalNo, &j.TransactionNo, &j.TransactionType,
			&j.ReceiptNo, &j.BusinessDate, &j.OpenCounter, &j.Amount, &j.Quantity, &j.StaffID,
			&j.ReceiptText, &j.JournalText, &j.GenerateDateTime); err != nil {
			return nil, 0, fmt.Errorf("failed to scan journal: %w", err)
		}
		entries = append(entries, j)
	}
	return entries, total, nil
}
