package core

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"pos-backend/internal/db"
)

// TerminalService owns the terminal lifecycle. Open, close and cash
// movements each append a transaction log so the journal carries a full
// audit trail of the drawer.
type TerminalService interface {
	Create(ctx context.Context, storeCode string, terminalNo int, functionMode string) (*Terminal, error)
	Get(ctx context.Context, terminalID string) (*Terminal, error)
	List(ctx context.Context, storeCode string) ([]Terminal, error)
	Delete(ctx context.Context, terminalID string) error
	SignIn(ctx context.Context, terminalID string, staff StaffRef) (*Terminal, error)
	SignOut(ctx context.Context, terminalID string) (*Terminal, error)
	Open(ctx context.Context, terminalID string, initialAmount decimal.Decimal) (*Terminal, *TransactionLog, error)
	Close(ctx context.Context, terminalID string, physicalAmount decimal.Decimal) (*Terminal, *TransactionLog, error)
	CashIn(ctx context.Context, terminalID string, amount decimal.Decimal, note string) (*TransactionLog, error)
	CashOut(ctx context.Context, terminalID string, amount decimal.Decimal, note string) (*TransactionLog, error)
	ValidateAPIKey(ctx context.Context, terminalID, apiKey string) (*Terminal, error)
}

type terminalService struct {
	tdb      *db.TenantDB
	counters CounterService
	trans    TransactionService
	log      *logrus.Entry
}

func NewTerminalService(tdb *db.TenantDB, counters CounterService, trans TransactionService, log *logrus.Entry) TerminalService {
	return &terminalService{tdb: tdb, counters: counters, trans: trans, log: log}
}

// TerminalIDOf derives the string key a terminal is addressed by.
func TerminalIDOf(tenantID, storeCode string, terminalNo int) string {
	return fmt.Sprintf("%s-%s-%d", tenantID, storeCode, terminalNo)
}

const terminalColumns = `terminal_id, store_code, terminal_no, function_mode, status, business_date,
	open_counter, business_counter, staff_id, staff_name, api_key,
	initial_amount, physical_amount, created_at, updated_at`

func scanTerminal(row pgx.Row) (*Terminal, error) {
	var t Terminal
	err := row.Scan(
		&t.TerminalID, &t.StoreCode, &t.TerminalNo, &t.FunctionMode, &t.Status, &t.BusinessDate,
		&t.OpenCounter, &t.BusinessCounter, &t.Staff.ID, &t.Staff.Name, &t.APIKey,
		&t.InitialAmount, &t.PhysicalAmount, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *terminalService) Create(ctx context.Context, storeCode string, terminalNo int, functionMode string) (*Terminal, error) {
	if storeCode == "" || terminalNo < 1 {
		return nil, ErrValidation.Withf("store code and a positive terminal number are required")
	}
	if functionMode == "" {
		functionMode = "MainMenu"
	}
	terminalID := TerminalIDOf(s.tdb.TenantID(), storeCode, terminalNo)
	apiKey := strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")

	// The store row is created on first terminal registration.
	_, err := s.tdb.Pool().Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (store_code) VALUES ($1) ON CONFLICT (store_code) DO NOTHING
	`, s.tdb.T("stores")), storeCode)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure store %s: %w", storeCode, err)
	}

	tag, err := s.tdb.Pool().Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (terminal_id, store_code, terminal_no, function_mode, status, api_key)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (terminal_id) DO NOTHING
	`, s.tdb.T("terminals")),
		terminalID, storeCode, terminalNo, functionMode, TerminalStatusIdle, apiKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create terminal %s: %w", terminalID, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrAlreadyExists.Withf("terminal %s", terminalID)
	}
	return s.Get(ctx, terminalID)
}

func (s *terminalService) Get(ctx context.Context, terminalID string) (*Terminal, error) {
	t, err := scanTerminal(s.tdb.Pool().QueryRow(ctx, fmt.Sprintf(
		"SELECT %s FROM %s WHERE terminal_id = $1", terminalColumns, s.tdb.T("terminals")), terminalID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTerminalNotFound.Withf("terminal %s", terminalID)
		}
		return nil, fmt.Errorf("failed to fetch terminal %s: %w", terminalID, err)
	}
	return t, nil
}

func (s *terminalService) List(ctx context.Context, storeCode string) ([]Terminal, error) {
	query := fmt.Sprintf("SELECT %s FROM %s", terminalColumns, s.tdb.T("terminals"))
	args := []any{}
	if storeCode != "" {
		query += " WHERE store_code = $1"
		args = append(args, storeCode)
	}
	query += " ORDER BY store_code, terminal_no"

	rows, err := s.tdb.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query terminals: %w", err)
	}
	defer rows.Close()

	var terminals []Terminal
	for rows.Next() {
		t, err := scanTerminal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan terminal: %w", err)
		}
		terminals = append(terminals, *t)
	}
	return terminals, nil
}

func (s *terminalService) Delete(ctx context.Context, terminalID string) error {
	tag, err := s.tdb.Pool().Exec(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE terminal_id = $1", s.tdb.T("terminals")), terminalID)
	if err != nil {
		return fmt.Errorf("failed to delete terminal %s: %w", terminalID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTerminalNotFound.Withf("terminal %s", terminalID)
	}
	return s.counters.Reset(ctx, terminalID)
}

// lockTerminal loads the terminal row FOR UPDATE inside tx, serializing
// status transitions on the same terminal.
func (s *terminalService) lockTerminal(ctx context.Context, tx pgx.Tx, terminalID string) (*Terminal, error) {
	t, err := scanTerminal(tx.QueryRow(ctx, fmt.Sprintf(
		"SELECT %s FROM %s WHERE terminal_id = $1 FOR UPDATE", terminalColumns, s.tdb.T("terminals")), terminalID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTerminalNotFound.Withf("terminal %s", terminalID)
		}
		return nil, fmt.Errorf("failed to lock terminal %s: %w", terminalID, err)
	}
	return t, nil
}

func (s *terminalService) SignIn(ctx context.Context, terminalID string, staff StaffRef) (*Terminal, error) {
	if staff.ID == "" {
		return nil, ErrValidation.Withf("staff id is required")
	}
	return s.transition(ctx, terminalID, func(t *Terminal) error {
		if t.Status != TerminalStatusIdle && t.Status != TerminalStatusClosed {
			return ErrTerminalState.Withf("cannot sign in while %s", t.Status)
		}
		t.Status = TerminalStatusSignedIn
		t.Staff = staff
		return nil
	})
}

func (s *terminalService) SignOut(ctx context.Context, terminalID string) (*Terminal, error) {
	return s.transition(ctx, terminalID, func(t *Terminal) error {
		if t.Status == TerminalStatusOpened {
			return ErrTerminalState.Withf("close the terminal before signing out")
		}
		t.Status = TerminalStatusIdle
		t.Staff = StaffRef{}
		return nil
	})
}

// transition applies fn to the locked terminal row and persists the
// resulting status, staff and counters.
func (s *terminalService) transition(ctx context.Context, terminalID string, fn func(*Terminal) error) (*Terminal, error) {
	tx, err := s.tdb.Pool().Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	t, err := s.lockTerminal(ctx, tx, terminalID)
	if err != nil {
		return nil, err
	}
	if err := fn(t); err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, fmt.Sprintf(`
		UPDATE %s SET
			status = $2, business_date = $3, open_counter = $4, business_counter = $5,
			staff_id = $6, staff_name = $7, initial_amount = $8, physical_amount = $9,
			updated_at = NOW()
		WHERE terminal_id = $1
	`, s.tdb.T("terminals")),
		t.TerminalID, t.Status, t.BusinessDate, t.OpenCounter, t.BusinessCounter,
		t.Staff.ID, t.Staff.Name, t.InitialAmount, t.PhysicalAmount,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update terminal %s: %w", terminalID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit terminal update: %w", err)
	}
	return t, nil
}

func (s *terminalService) Open(ctx context.Context, terminalID string, initialAmount decimal.Decimal) (*Terminal, *TransactionLog, error) {
	businessDate := time.Now().Format("20060102")
	t, err := s.transition(ctx, terminalID, func(t *Terminal) error {
		if t.Status != TerminalStatusSignedIn {
			return ErrTerminalNotSignedIn.Withf("terminal %s is %s", terminalID, t.Status)
		}
		t.Status = TerminalStatusOpened
		t.OpenCounter++
		t.BusinessDate = businessDate
		t.InitialAmount = initialAmount
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	// Opening a terminal advances the store's business date.
	if _, err := s.tdb.Pool().Exec(ctx, fmt.Sprintf(`
		UPDATE %s SET business_date = $2, updated_at = NOW()
		WHERE store_code = $1 AND business_date < $2
	`, s.tdb.T("stores")), t.StoreCode, businessDate); err != nil {
		return nil, nil, fmt.Errorf("failed to advance business date for store %s: %w", t.StoreCode, err)
	}

	log, err := s.writeCashLog(ctx, t, TransactionTypeOpen, initialAmount, "")
	if err != nil {
		return nil, nil, err
	}
	return t, log, nil
}

func (s *terminalService) Close(ctx context.Context, terminalID string, physicalAmount decimal.Decimal) (*Terminal, *TransactionLog, error) {
	t, err := s.transition(ctx, terminalID, func(t *Terminal) error {
		if t.Status != TerminalStatusOpened {
			return ErrTerminalNotOpened.Withf("terminal %s is %s", terminalID, t.Status)
		}
		t.Status = TerminalStatusClosed
		t.BusinessCounter++
		t.PhysicalAmount = physicalAmount
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	log, err := s.writeCashLog(ctx, t, TransactionTypeClose, physicalAmount, "")
	if err != nil {
		return nil, nil, err
	}
	return t, log, nil
}

func (s *terminalService) CashIn(ctx context.Context, terminalID string, amount decimal.Decimal, note string) (*TransactionLog, error) {
	return s.cashMove(ctx, terminalID, TransactionTypeCashIn, amount, note)
}

func (s *terminalService) CashOut(ctx context.Context, terminalID string, amount decimal.Decimal, note string) (*TransactionLog, error) {
	return s.cashMove(ctx, terminalID, TransactionTypeCashOut, amount, note)
}

func (s *terminalService) cashMove(ctx context.Context, terminalID string, tranType TransactionType, amount decimal.Decimal, note string) (*TransactionLog, error) {
	if amount.Sign() <= 0 {
		return nil, ErrValidation.Withf("amount must be positive")
	}
	t, err := s.Get(ctx, terminalID)
	if err != nil {
		return nil, err
	}
	if t.Status != TerminalStatusOpened {
		return nil, ErrTerminalNotOpened.Withf("terminal %s is %s", terminalID, t.Status)
	}
	return s.writeCashLog(ctx, t, tranType, amount, note)
}

func (s *terminalService) writeCashLog(ctx context.Context, t *Terminal, tranType TransactionType, amount decimal.Decimal, note string) (*TransactionLog, error) {
	tranNo, err := s.counters.Next(ctx, t.TerminalID, CounterTypeTransactionNo)
	if err != nil {
		return nil, err
	}
	receiptNo, err := s.counters.Next(ctx, t.TerminalID, CounterTypeReceiptNo)
	if err != nil {
		return nil, err
	}
	log := &TransactionLog{
		StoreCode:        t.StoreCode,
		TerminalID:       t.TerminalID,
		TerminalNo:       t.TerminalNo,
		TransactionNo:    tranNo,
		TransactionType:  tranType,
		ReceiptNo:        receiptNo,
		BusinessDate:     t.BusinessDate,
		OpenCounter:      t.OpenCounter,
		BusinessCounter:  t.BusinessCounter,
		GenerateDateTime: time.Now(),
		Staff:            t.Staff,
		CashAmount:       amount,
	}
	log.ReceiptText = renderReceipt(log)
	log.JournalText = renderJournal(log)
	if note != "" {
		log.JournalText += note + "\n"
	}
	if err := s.trans.Store(ctx, log); err != nil {
		return nil, err
	}
	return log, nil
}

func (s *terminalService) ValidateAPIKey(ctx context.Context, terminalID, apiKey string) (*Terminal, error) {
	if apiKey == "" {
		return nil, ErrUnauthorized.Withf("missing api key")
	}
	t, err := s.Get(ctx, terminalID)
	if err != nil {
		if KindOf(err) == KindNotFound {
			return nil, ErrUnauthorized.Withf("unknown terminal")
		}
		return nil, err
	}
	if subtle.ConstantTimeCompare([]byte(t.APIKey), []byte(apiKey)) != 1 {
		return nil, ErrUnauthorized.Withf("api key mismatch for terminal %s", terminalID)
	}
	return t, nil
}
