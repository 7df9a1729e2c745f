package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"pos-backend/internal/db"
)

// TranQuery filters transaction listings.
type TranQuery struct {
	StoreCode        string
	TerminalID       string
	BusinessDate     string
	TransactionTypes []TransactionType
	Limit            int
	Page             int
}

// VoidRequest voids an existing sale or return.
type VoidRequest struct {
	StoreCode     string
	TerminalID    string
	TransactionNo int64
	Staff         StaffRef
	Payments      []Payment
}

// ReturnRequest refunds an existing sale.
type ReturnRequest struct {
	StoreCode     string
	TerminalID    string
	TransactionNo int64
	Staff         StaffRef
	Payments      []Payment
}

// TransactionService owns the immutable transaction log: finalization
// writes, historical reads with void/refund overlay, and the void/return
// operations that append compensating transactions.
type TransactionService interface {
	Store(ctx context.Context, log *TransactionLog) error
	List(ctx context.Context, q TranQuery) ([]TransactionLog, int, error)
	Get(ctx context.Context, storeCode, terminalID string, transactionNo int64) (*TransactionLog, error)
	Void(ctx context.Context, req VoidRequest) (*TransactionLog, error)
	Return(ctx context.Context, req ReturnRequest) (*TransactionLog, error)
}

type transactionService struct {
	tdb       *db.TenantDB
	counters  CounterService
	masters   MasterLookup
	publisher EventPublisher
	ops       OpsNotifier
	log       *logrus.Entry
}

func NewTransactionService(tdb *db.TenantDB, counters CounterService, masters MasterLookup, publisher EventPublisher, ops OpsNotifier, log *logrus.Entry) TransactionService {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &transactionService{tdb: tdb, counters: counters, masters: masters, publisher: publisher, ops: ops, log: log}
}

func shardKey(storeCode, terminalID, businessDate string) string {
	return fmt.Sprintf("%s:%s:%s", storeCode, terminalID, businessDate)
}

// Store writes the transaction log and its journal entry in one storage
// transaction, publishes the event as the last step before commit, and
// commits. Publish failures do not abort the commit; the publisher defers
// undelivered events to the republisher.
func (s *transactionService) Store(ctx context.Context, log *TransactionLog) error {
	if err := s.store(ctx, log); err != nil {
		if s.ops != nil {
			s.ops.Post(fmt.Sprintf("[tranlog] failed to persist transaction %s/%s/%d: %v",
				s.tdb.TenantID(), log.TerminalID, log.TransactionNo, err))
		}
		return err
	}
	return nil
}

func (s *transactionService) store(ctx context.Context, log *TransactionLog) error {
	tx, err := s.tdb.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.insertTranlog(ctx, tx, log); err != nil {
		return err
	}
	if err := s.insertJournal(ctx, tx, journalFromLog(log)); err != nil {
		return err
	}
	if err := s.publisher.Publish(ctx, s.tdb.TenantID(), log); err != nil {
		return fmt.Errorf("failed to publish transaction %d: %w", log.TransactionNo, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction %d: %w", log.TransactionNo, err)
	}
	return nil
}

func (s *transactionService) insertTranlog(ctx context.Context, tx pgx.Tx, log *TransactionLog) error {
	body, err := json.Marshal(log)
	if err != nil {
		return fmt.Errorf("failed to encode transaction log: %w", err)
	}
	_, err = tx.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (store_code, terminal_id, terminal_no, transaction_no, transaction_type,
		                receipt_no, business_date, open_counter, business_counter,
		                generate_date_time, body, shard_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, s.tdb.T("transactions")),
		log.StoreCode, log.TerminalID, log.TerminalNo, log.TransactionNo, log.TransactionType,
		log.ReceiptNo, log.BusinessDate, log.OpenCounter, log.BusinessCounter,
		log.GenerateDateTime, body, shardKey(log.StoreCode, log.TerminalID, log.BusinessDate),
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction log %d: %w", log.TransactionNo, err)
	}
	return nil
}

func journalFromLog(log *TransactionLog) JournalEntry {
	amount := log.Sales.TotalAmountWithTax
	switch log.TransactionType {
	case TransactionTypeOpen, TransactionTypeCashIn, TransactionTypeCashOut:
		amount = log.CashAmount
	case TransactionTypeClose:
		amount = log.CashAmount
	}
	return JournalEntry{
		StoreCode:        log.StoreCode,
		TerminalID:       log.TerminalID,
		TerminalNo:       log.TerminalNo,
		TransactionNo:    log.TransactionNo,
		TransactionType:  log.TransactionType,
		ReceiptNo:        log.ReceiptNo,
		BusinessDate:     log.BusinessDate,
		OpenCounter:      log.OpenCounter,
		Amount:           amount,
		Quantity:         log.Sales.TotalQuantity,
		StaffID:          log.Staff.ID,
		ReceiptText:      log.ReceiptText,
		JournalText:      log.JournalText,
		GenerateDateTime: log.GenerateDateTime,
	}
}

func (s *transactionService) insertJournal(ctx context.Context, tx pgx.Tx, j JournalEntry) error {
	_, err := tx.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (store_code, terminal_id, terminal_no, transaction_no, transaction_type,
		                receipt_no, business_date, open_counter, amount, quantity, staff_id,
		                receipt_text, journal_text, generate_date_time, shard_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, s.tdb.T("journals")),
		j.StoreCode, j.TerminalID, j.TerminalNo, j.TransactionNo, j.TransactionType,
		j.ReceiptNo, j.BusinessDate, j.OpenCounter, j.Amount, j.Quantity, j.StaffID,
		j.ReceiptText, j.JournalText, j.GenerateDateTime, shardKey(j.StoreCode, j.TerminalID, j.BusinessDate),
	)
	if err != nil {
		return fmt.Errorf("failed to insert journal for transaction %d: %w", j.TransactionNo, err)
	}
	return nil
}

// ── Reads ────────────────────────────────────────────────────────────────────

func (s *transactionService) List(ctx context.Context, q TranQuery) ([]TransactionLog, int, error) {
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
	if q.BusinessDate != "" {
		add("business_date =", q.BusinessDate)
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
		fmt.Sprintf("SELECT COUNT(*) FROM %s %s", s.tdb.T("transactions"), where), args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	query := fmt.Sprintf(
		"SELECT body FROM %s %s ORDER BY generate_date_time DESC, transaction_no DESC LIMIT $%d OFFSET $%d",
		s.tdb.T("transactions"), where, n+1, n+2)
	args = append(args, q.Limit, (q.Page-1)*q.Limit)

	rows, err := s.tdb.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var logs []TransactionLog
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, 0, fmt.Errorf("failed to scan transaction: %w", err)
		}
		var log TransactionLog
		if err := json.Unmarshal(body, &log); err != nil {
			return nil, 0, fmt.Errorf("failed to decode transaction body: %w", err)
		}
		logs = append(logs, log)
	}
	if err := s.overlayStatuses(ctx, logs); err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}

// Get reads one transaction and overlays its void/refund status. The stored
// log itself is never mutated after insert.
func (s *transactionService) Get(ctx context.Context, storeCode, terminalID string, transactionNo int64) (*TransactionLog, error) {
	var body []byte
	err := s.tdb.Pool().QueryRow(ctx, fmt.Sprintf(`
		SELECT body FROM %s
		WHERE store_code = $1 AND terminal_id = $2 AND transaction_no = $3
		ORDER BY generate_date_time DESC LIMIT 1
	`, s.tdb.T("transactions")), storeCode, terminalID, transactionNo).Scan(&body)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTranNotFound.Withf("%s/%s/%d", storeCode, terminalID, transactionNo)
		}
		return nil, fmt.Errorf("failed to fetch transaction %d: %w", transactionNo, err)
	}
	var log TransactionLog
	if err := json.Unmarshal(body, &log); err != nil {
		return nil, fmt.Errorf("failed to decode transaction body: %w", err)
	}
	logs := []TransactionLog{log}
	if err := s.overlayStatuses(ctx, logs); err != nil {
		return nil, err
	}
	return &logs[0], nil
}

func (s *transactionService) overlayStatuses(ctx context.Context, logs []TransactionLog) error {
	for i := range logs {
		st, err := s.getStatus(ctx, logs[i].StoreCode, logs[i].TerminalID, logs[i].TransactionNo)
		if err != nil {
			return err
		}
		if st != nil {
			logs[i].IsVoided = st.IsVoided
			logs[i].IsRefunded = st.IsRefunded
		}
	}
	return nil
}

func (s *transactionService) getStatus(ctx context.Context, storeCode, terminalID string, transactionNo int64) (*TransactionStatus, error) {
	var st TransactionStatus
	err := s.tdb.Pool().QueryRow(ctx, fmt.Sprintf(`
		SELECT store_code, terminal_id, transaction_no, is_voided, void_transaction_no,
		       void_date_time, void_staff_id, is_refunded, return_transaction_no,
		       return_date_time, return_staff_id
		FROM %s WHERE store_code = $1 AND terminal_id = $2 AND transaction_no = $3
	`, s.tdb.T("transaction_statuses")), storeCode, terminalID, transactionNo).Scan(
		&st.StoreCode, &st.TerminalID, &st.TransactionNo, &st.IsVoided, &st.VoidTransactionNo,
		&st.VoidDateTime, &st.VoidStaffID, &st.IsRefunded, &st.ReturnTransactionNo,
		&st.ReturnDateTime, &st.ReturnStaffID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch transaction status %d: %w", transactionNo, err)
	}
	return &st, nil
}

// ── Void and return ──────────────────────────────────────────────────────────

func (s *transactionService) Void(ctx context.Context, req VoidRequest) (*TransactionLog, error) {
	target, err := s.Get(ctx, req.StoreCode, req.TerminalID, req.TransactionNo)
	if err != nil {
		return nil, err
	}
	if target.IsVoided {
		return nil, ErrAlreadyVoided.Withf("transaction %d", req.TransactionNo)
	}
	if target.IsRefunded {
		return nil, ErrAlreadyRefunded.Withf("transaction %d", req.TransactionNo)
	}

	var tranType TransactionType
	switch target.TransactionType {
	case TransactionTypeNormalSales:
		tranType = TransactionTypeVoidSales
	case TransactionTypeReturnSales:
		tranType = TransactionTypeVoidReturn
	default:
		return nil, ErrValidation.Withf("transaction type %d cannot be voided", target.TransactionType)
	}

	payments := req.Payments
	if len(payments) == 0 {
		payments = target.Payments
	}
	if err := s.validateRefundPayments(ctx, payments); err != nil {
		return nil, err
	}

	newLog, err := s.buildCompensating(ctx, target, tranType, req.Staff, payments, decimal.NewFromInt(1))
	if err != nil {
		return nil, err
	}
	if err := s.Store(ctx, newLog); err != nil {
		return nil, err
	}

	now := newLog.GenerateDateTime
	_, err = s.tdb.Pool().Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (store_code, terminal_id, transaction_no, is_voided,
		                void_transaction_no, void_date_time, void_staff_id)
		VALUES ($1, $2, $3, true, $4, $5, $6)
		ON CONFLICT (store_code, terminal_id, transaction_no) DO UPDATE SET
			is_voided = true,
			void_transaction_no = EXCLUDED.void_transaction_no,
			void_date_time = EXCLUDED.void_date_time,
			void_staff_id = EXCLUDED.void_staff_id,
			updated_at = NOW()
	`, s.tdb.T("transaction_statuses")),
		req.StoreCode, req.TerminalID, req.TransactionNo, newLog.TransactionNo, now, req.Staff.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to mark transaction %d voided: %w", req.TransactionNo, err)
	}

	// Voiding a return reopens the original sale for refund.
	if tranType == TransactionTypeVoidReturn && target.Origin != nil {
		if err := s.clearRefund(ctx, *target.Origin); err != nil {
			return nil, err
		}
	}

	newLog.IsVoided = false
	return newLog, nil
}

func (s *transactionService) Return(ctx context.Context, req ReturnRequest) (*TransactionLog, error) {
	target, err := s.Get(ctx, req.StoreCode, req.TerminalID, req.TransactionNo)
	if err != nil {
		return nil, err
	}
	if target.IsVoided {
		return nil, ErrAlreadyVoided.Withf("transaction %d", req.TransactionNo)
	}
	if target.IsRefunded {
		return nil, ErrAlreadyRefunded.Withf("transaction %d", req.TransactionNo)
	}
	if target.TransactionType != TransactionTypeNormalSales {
		return nil, ErrValidation.Withf("transaction type %d cannot be returned", target.TransactionType)
	}

	payments := req.Payments
	if len(payments) == 0 {
		payments = target.Payments
	}
	if err := s.validateRefundPayments(ctx, payments); err != nil {
		return nil, err
	}

	newLog, err := s.buildCompensating(ctx, target, TransactionTypeReturnSales, req.Staff, payments, decimal.NewFromInt(-1))
	if err != nil {
		return nil, err
	}
	if err := s.Store(ctx, newLog); err != nil {
		return nil, err
	}

	now := newLog.GenerateDateTime
	_, err = s.tdb.Pool().Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (store_code, terminal_id, transaction_no, is_refunded,
		                return_transaction_no, return_date_time, return_staff_id)
		VALUES ($1, $2, $3, true, $4, $5, $6)
		ON CONFLICT (store_code, terminal_id, transaction_no) DO UPDATE SET
			is_refunded = true,
			return_transaction_no = EXCLUDED.return_transaction_no,
			return_date_time = EXCLUDED.return_date_time,
			return_staff_id = EXCLUDED.return_staff_id,
			updated_at = NOW()
	`, s.tdb.T("transaction_statuses")),
		req.StoreCode, req.TerminalID, req.TransactionNo, newLog.TransactionNo, now, req.Staff.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to mark transaction %d refunded: %w", req.TransactionNo, err)
	}
	return newLog, nil
}

func (s *transactionService) clearRefund(ctx context.Context, ref TranReference) error {
	_, err := s.tdb.Pool().Exec(ctx, fmt.Sprintf(`
		UPDATE %s SET
			is_refunded = false,
			return_transaction_no = NULL,
			return_date_time = NULL,
			return_staff_id = '',
			updated_at = NOW()
		WHERE store_code = $1 AND terminal_id = $2 AND transaction_no = $3
	`, s.tdb.T("transaction_statuses")), ref.StoreCode, ref.TerminalID, ref.TransactionNo)
	if err != nil {
		return fmt.Errorf("failed to clear refund on transaction %d: %w", ref.TransactionNo, err)
	}
	return nil
}

func (s *transactionService) validateRefundPayments(ctx context.Context, payments []Payment) error {
	for _, p := range payments {
		master, err := s.masters.GetPayment(ctx, p.PaymentCode)
		if err != nil {
			return err
		}
		if !master.CanRefund {
			return ErrValidation.Withf("payment method %s does not support refunds", p.PaymentCode)
		}
	}
	return nil
}

// buildCompensating derives a void or return log from the target. Line and
// sales amounts are multiplied by sign: +1 mirrors the target (void), -1
// negates it (return). Fresh numbers come from the terminal counters so the
// compensating transaction is itself a first-class log entry.
func (s *transactionService) buildCompensating(ctx context.Context, target *TransactionLog, tranType TransactionType, staff StaffRef, payments []Payment, sign decimal.Decimal) (*TransactionLog, error) {
	tranNo, err := s.counters.Next(ctx, target.TerminalID, CounterTypeTransactionNo)
	if err != nil {
		return nil, err
	}
	receiptNo, err := s.counters.Next(ctx, target.TerminalID, CounterTypeReceiptNo)
	if err != nil {
		return nil, err
	}

	newLog := *target
	newLog.TransactionNo = tranNo
	newLog.ReceiptNo = receiptNo
	newLog.TransactionType = tranType
	newLog.GenerateDateTime = time.Now()
	newLog.Staff = staff
	newLog.Origin = &TranReference{
		StoreCode:     target.StoreCode,
		TerminalID:    target.TerminalID,
		TransactionNo: target.TransactionNo,
	}
	newLog.IsVoided = false
	newLog.IsRefunded = false

	newLog.LineItems = make([]CartLineItem, len(target.LineItems))
	copy(newLog.LineItems, target.LineItems)
	for i := range newLog.LineItems {
		newLog.LineItems[i].Amount = newLog.LineItems[i].Amount.Mul(sign)
	}
	newLog.Taxes = make([]TaxResult, len(target.Taxes))
	copy(newLog.Taxes, target.Taxes)
	for i := range newLog.Taxes {
		newLog.Taxes[i].TaxAmount = newLog.Taxes[i].TaxAmount.Mul(sign)
		newLog.Taxes[i].TargetAmount = newLog.Taxes[i].TargetAmount.Mul(sign)
	}

	newLog.Payments = make([]Payment, len(payments))
	copy(newLog.Payments, payments)
	for i := range newLog.Payments {
		newLog.Payments[i].PaymentNo = i + 1
		newLog.Payments[i].Amount = newLog.Payments[i].Amount.Mul(sign)
		newLog.Payments[i].DepositAmount = newLog.Payments[i].DepositAmount.Mul(sign)
		newLog.Payments[i].ChangeAmount = decimal.Zero
	}

	newLog.Sales.TotalAmount = target.Sales.TotalAmount.Mul(sign)
	newLog.Sales.TotalAmountWithTax = target.Sales.TotalAmountWithTax.Mul(sign)
	newLog.Sales.TotalDiscountAmount = target.Sales.TotalDiscountAmount.Mul(sign)
	newLog.Sales.TaxAmount = target.Sales.TaxAmount.Mul(sign)
	newLog.Sales.InternalTaxAmount = target.Sales.InternalTaxAmount.Mul(sign)
	newLog.Sales.ChangeAmount = decimal.Zero

	newLog.ReceiptText = renderReceipt(&newLog)
	newLog.JournalText = renderJournal(&newLog)
	return &newLog, nil
}
