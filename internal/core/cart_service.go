package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"pos-backend/internal/db"
)

// AddItemRequest is one entry of a batch item registration.
type AddItemRequest struct {
	ItemCode  string           `json:"itemCode"`
	Quantity  int              `json:"quantity"`
	UnitPrice *decimal.Decimal `json:"unitPrice,omitempty"`
}

// DiscountRequest applies a discount to a line or to the subtotal.
type DiscountRequest struct {
	Type   DiscountType    `json:"discountType"`
	Value  decimal.Decimal `json:"value"`
	Detail string          `json:"detail,omitempty"`
}

// PaymentRequest is one tender.
type PaymentRequest struct {
	PaymentCode string          `json:"paymentCode"`
	Amount      decimal.Decimal `json:"amount"`
	Detail      string          `json:"detail,omitempty"`
}

// CartService drives the cart state machine. Every mutation loads the cart
// row under FOR UPDATE, checks event legality, runs the handler, reruns the
// pricing pipeline and writes the aggregate back, so concurrent requests on
// one cart serialize on the row lock while different carts proceed in
// parallel.
type CartService interface {
	Create(ctx context.Context, terminalID string) (*Cart, error)
	Get(ctx context.Context, cartID string) (*Cart, error)
	AddItems(ctx context.Context, cartID string, items []AddItemRequest) (*Cart, error)
	CancelLine(ctx context.Context, cartID string, lineNo int) (*Cart, error)
	OverrideUnitPrice(ctx context.Context, cartID string, lineNo int, unitPrice decimal.Decimal) (*Cart, error)
	AddLineDiscount(ctx context.Context, cartID string, lineNo int, req DiscountRequest) (*Cart, error)
	Subtotal(ctx context.Context, cartID string) (*Cart, error)
	AddSubtotalDiscount(ctx context.Context, cartID string, req DiscountRequest) (*Cart, error)
	AddPayments(ctx context.Context, cartID string, payments []PaymentRequest) (*Cart, error)
	ResumeItemEntry(ctx context.Context, cartID string) (*Cart, error)
	Bill(ctx context.Context, cartID string) (*Cart, *TransactionLog, error)
	Cancel(ctx context.Context, cartID string) (*Cart, error)
}

type cartService struct {
	tdb       *db.TenantDB
	masters   MasterService
	terminals TerminalService
	counters  CounterService
	trans     TransactionService
	registry  *PaymentRegistry
	rounding  Rounding
	useCache  bool
	cacheTTL  time.Duration
	log       *logrus.Entry
}

func NewCartService(
	tdb *db.TenantDB,
	masters MasterService,
	terminals TerminalService,
	counters CounterService,
	trans TransactionService,
	registry *PaymentRegistry,
	rounding Rounding,
	useCache bool,
	cacheTTL time.Duration,
	log *logrus.Entry,
) CartService {
	if registry == nil {
		registry = NewPaymentRegistry()
	}
	return &cartService{
		tdb:       tdb,
		masters:   masters,
		terminals: terminals,
		counters:  counters,
		trans:     trans,
		registry:  registry,
		rounding:  rounding,
		useCache:  useCache,
		cacheTTL:  cacheTTL,
		log:       log,
	}
}

// lookup returns the master view one mutation works against. With caching
// enabled the cart sees the same master rows for every line it touches in
// the mutation.
func (s *cartService) lookup() MasterLookup {
	if s.useCache {
		return NewCachedMasterLookup(s.masters, s.cacheTTL)
	}
	return s.masters
}

func (s *cartService) Create(ctx context.Context, terminalID string) (*Cart, error) {
	term, err := s.terminals.Get(ctx, terminalID)
	if err != nil {
		return nil, err
	}
	if term.Status != TerminalStatusOpened {
		return nil, ErrTerminalNotOpened.Withf("terminal %s is %s", terminalID, term.Status)
	}

	now := time.Now()
	cart := &Cart{
		CartID:          uuid.NewString(),
		TerminalID:      term.TerminalID,
		StoreCode:       term.StoreCode,
		TerminalNo:      term.TerminalNo,
		Status:          CartStatusInitial,
		TransactionType: TransactionTypeNormalSales,
		Staff:           term.Staff,
		Balance:         decimal.Zero,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if !CanFire(cart.Status, EventCreate) {
		return nil, ErrInvalidEvent.Withf("%s not permitted while %s", EventCreate, cart.Status)
	}
	cart.Status = CartStatusIdle
	body, err := json.Marshal(cart)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cart: %w", err)
	}
	_, err = s.tdb.Pool().Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (cart_id, terminal_id, status, body) VALUES ($1, $2, $3, $4)
	`, s.tdb.T("carts")), cart.CartID, cart.TerminalID, cart.Status, body)
	if err != nil {
		return nil, fmt.Errorf("failed to insert cart: %w", err)
	}
	return cart, nil
}

func (s *cartService) Get(ctx context.Context, cartID string) (*Cart, error) {
	var body []byte
	err := s.tdb.Pool().QueryRow(ctx, fmt.Sprintf(
		"SELECT body FROM %s WHERE cart_id = $1", s.tdb.T("carts")), cartID).Scan(&body)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCartNotFound.Withf("cart %s", cartID)
		}
		return nil, fmt.Errorf("failed to fetch cart %s: %w", cartID, err)
	}
	var cart Cart
	if err := json.Unmarshal(body, &cart); err != nil {
		return nil, fmt.Errorf("failed to decode cart %s: %w", cartID, err)
	}
	return &cart, nil
}

// mutate runs one state-machine event against the locked cart. The handler
// mutates the aggregate in place; the pricing pipeline and the writeback
// are shared.
func (s *cartService) mutate(ctx context.Context, cartID string, event CartEvent, handler func(*Cart, MasterLookup) error) (*Cart, error) {
	tx, err := s.tdb.Pool().Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	cart, err := s.lockCart(ctx, tx, cartID)
	if err != nil {
		return nil, err
	}
	if cart.IsTerminal() {
		return nil, ErrCartCompleted.Withf("cart %s is %s", cartID, cart.Status)
	}
	if !CanFire(cart.Status, event) {
		return nil, ErrInvalidEvent.Withf("%s not permitted while %s", event, cart.Status)
	}

	lookup := s.lookup()
	if err := handler(cart, lookup); err != nil {
		return nil, err
	}
	if err := s.recompute(ctx, cart, lookup); err != nil {
		return nil, err
	}
	if err := s.writeCart(ctx, tx, cart); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit cart %s: %w", cartID, err)
	}
	return cart, nil
}

func (s *cartService) lockCart(ctx context.Context, tx pgx.Tx, cartID string) (*Cart, error) {
	var body []byte
	err := tx.QueryRow(ctx, fmt.Sprintf(
		"SELECT body FROM %s WHERE cart_id = $1 FOR UPDATE", s.tdb.T("carts")), cartID).Scan(&body)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCartNotFound.Withf("cart %s", cartID)
		}
		return nil, fmt.Errorf("failed to lock cart %s: %w", cartID, err)
	}
	var cart Cart
	if err := json.Unmarshal(body, &cart); err != nil {
		return nil, fmt.Errorf("failed to decode cart %s: %w", cartID, err)
	}
	return &cart, nil
}

func (s *cartService) writeCart(ctx context.Context, tx pgx.Tx, cart *Cart) error {
	cart.UpdatedAt = time.Now()
	body, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("failed to encode cart: %w", err)
	}
	tag, err := tx.Exec(ctx, fmt.Sprintf(`
		UPDATE %s SET status = $2, body = $3, updated_at = NOW() WHERE cart_id = $1
	`, s.tdb.T("carts")), cart.CartID, cart.Status, body)
	if err != nil {
		return fmt.Errorf("failed to update cart %s: %w", cart.CartID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUpdateMiss.Withf("carts/%s", cart.CartID)
	}
	return nil
}

// recompute gathers the tax masters the lines reference and reruns the
// pricing pipeline.
func (s *cartService) recompute(ctx context.Context, cart *Cart, lookup MasterLookup) error {
	taxes := map[string]TaxMaster{}
	for i := range cart.LineItems {
		li := &cart.LineItems[i]
		if li.IsCancelled || li.TaxCode == "" {
			continue
		}
		if _, ok := taxes[li.TaxCode]; ok {
			continue
		}
		master, err := lookup.GetTax(ctx, li.TaxCode)
		if err != nil {
			return err
		}
		taxes[li.TaxCode] = *master
	}
	return cart.Recompute(taxes, s.rounding)
}

// ── Event handlers ───────────────────────────────────────────────────────────

func (s *cartService) AddItems(ctx context.Context, cartID string, items []AddItemRequest) (*Cart, error) {
	if len(items) == 0 {
		return nil, ErrValidation.Withf("at least one item is required")
	}
	for _, it := range items {
		if it.Quantity < 1 {
			return nil, ErrValidation.Withf("quantity must be positive for item %s", it.ItemCode)
		}
	}
	return s.mutate(ctx, cartID, EventAddItems, func(cart *Cart, lookup MasterLookup) error {
		for _, req := range items {
			master, err := lookup.GetItem(ctx, req.ItemCode)
			if err != nil {
				return err
			}
			line := CartLineItem{
				LineNo:               len(cart.LineItems) + 1,
				ItemCode:             master.ItemCode,
				Description:          master.Description,
				UnitPrice:            master.UnitPrice,
				UnitPriceOriginal:    master.UnitPrice,
				Quantity:             req.Quantity,
				TaxCode:              master.TaxCode,
				IsDiscountRestricted: master.IsDiscountRestricted,
				ImageURLs:            master.ImageURLs,
			}
			if req.UnitPrice != nil {
				line.UnitPrice = *req.UnitPrice
				line.IsUnitPriceChanged = true
			}
			cart.LineItems = append(cart.LineItems, line)
		}
		cart.Status = CartStatusEnteringItem
		return nil
	})
}

func (s *cartService) CancelLine(ctx context.Context, cartID string, lineNo int) (*Cart, error) {
	return s.mutate(ctx, cartID, EventCancelLine, func(cart *Cart, _ MasterLookup) error {
		line := cart.FindLine(lineNo)
		if line == nil {
			return ErrValidation.Withf("line %d does not exist", lineNo)
		}
		line.IsCancelled = true
		return nil
	})
}

func (s *cartService) OverrideUnitPrice(ctx context.Context, cartID string, lineNo int, unitPrice decimal.Decimal) (*Cart, error) {
	if unitPrice.Sign() < 0 {
		return nil, ErrValidation.Withf("unit price must not be negative")
	}
	return s.mutate(ctx, cartID, EventUnitPriceOverride, func(cart *Cart, _ MasterLookup) error {
		line := cart.FindLine(lineNo)
		if line == nil {
			return ErrValidation.Withf("line %d does not exist", lineNo)
		}
		if line.IsCancelled {
			return ErrValidation.Withf("line %d is cancelled", lineNo)
		}
		line.UnitPrice = unitPrice
		line.IsUnitPriceChanged = !unitPrice.Equal(line.UnitPriceOriginal)
		return nil
	})
}

func (s *cartService) AddLineDiscount(ctx context.Context, cartID string, lineNo int, req DiscountRequest) (*Cart, error) {
	if err := validateDiscountRequest(req); err != nil {
		return nil, err
	}
	return s.mutate(ctx, cartID, EventAddLineDiscount, func(cart *Cart, _ MasterLookup) error {
		line := cart.FindLine(lineNo)
		if line == nil {
			return ErrValidation.Withf("line %d does not exist", lineNo)
		}
		if line.IsCancelled {
			return ErrValidation.Withf("line %d is cancelled", lineNo)
		}
		if line.IsDiscountRestricted {
			return ErrDiscountRestricted.Withf("item %s", line.ItemCode)
		}

		gross := line.GrossAmount()
		var amount decimal.Decimal
		switch req.Type {
		case DiscountTypeAmount:
			if gross.LessThan(req.Value) {
				return ErrDiscountExceeds.Withf("discount %s on line amount %s", req.Value, gross)
			}
			amount = req.Value
		case DiscountTypePercentage:
			amount = RoundTo(gross.Mul(req.Value).Div(decimal.NewFromInt(100)), 0, s.rounding)
		}

		// Discounts are set-valued: applying replaces the existing set.
		line.Discounts = []Discount{{
			SeqNo:  1,
			Type:   req.Type,
			Value:  req.Value,
			Amount: amount,
			Detail: req.Detail,
		}}
		return nil
	})
}

func (s *cartService) Subtotal(ctx context.Context, cartID string) (*Cart, error) {
	return s.mutate(ctx, cartID, EventSubtotal, func(cart *Cart, _ MasterLookup) error {
		if len(cart.LineItems) == 0 {
			return ErrValidation.Withf("cart has no items")
		}
		cart.Status = CartStatusPaying
		return nil
	})
}

func (s *cartService) AddSubtotalDiscount(ctx context.Context, cartID string, req DiscountRequest) (*Cart, error) {
	if err := validateDiscountRequest(req); err != nil {
		return nil, err
	}
	return s.mutate(ctx, cartID, EventAddSubtotalDiscount, func(cart *Cart, _ MasterLookup) error {
		if len(cart.Payments) > 0 {
			return ErrInvalidEvent.Withf("discounts cannot follow payments")
		}
		if req.Type == DiscountTypeAmount && cart.Balance.LessThan(req.Value) {
			return ErrBalanceInsufficient.Withf("discount %s on balance %s", req.Value, cart.Balance)
		}
		cart.SubtotalDiscounts = []Discount{{
			SeqNo:  1,
			Type:   req.Type,
			Value:  req.Value,
			Detail: req.Detail,
		}}
		return nil
	})
}

func validateDiscountRequest(req DiscountRequest) error {
	switch req.Type {
	case DiscountTypeAmount:
		if req.Value.Sign() <= 0 {
			return ErrValidation.Withf("discount amount must be positive")
		}
	case DiscountTypePercentage:
		if req.Value.Sign() < 0 || req.Value.GreaterThan(decimal.NewFromInt(100)) {
			return ErrValidation.Withf("discount percentage must be between 0 and 100")
		}
	default:
		return ErrValidation.Withf("unknown discount type %q", req.Type)
	}
	return nil
}

func (s *cartService) AddPayments(ctx context.Context, cartID string, payments []PaymentRequest) (*Cart, error) {
	if len(payments) == 0 {
		return nil, ErrValidation.Withf("at least one payment is required")
	}
	return s.mutate(ctx, cartID, EventAddPayment, func(cart *Cart, lookup MasterLookup) error {
		for _, req := range payments {
			master, err := lookup.GetPayment(ctx, req.PaymentCode)
			if err != nil {
				return err
			}
			strategy := s.registry.Strategy(req.PaymentCode)
			if err := strategy.Pay(cart, *master, req.Amount, req.Detail); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *cartService) ResumeItemEntry(ctx context.Context, cartID string) (*Cart, error) {
	return s.mutate(ctx, cartID, EventResumeItemEntry, func(cart *Cart, _ MasterLookup) error {
		cart.Payments = nil
		cart.Status = CartStatusEnteringItem
		return nil
	})
}

func (s *cartService) Cancel(ctx context.Context, cartID string) (*Cart, error) {
	tx, err := s.tdb.Pool().Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	cart, err := s.lockCart(ctx, tx, cartID)
	if err != nil {
		return nil, err
	}
	if cart.IsTerminal() {
		return nil, ErrCartCompleted.Withf("cart %s is %s", cartID, cart.Status)
	}

	hadPayments := len(cart.Payments) > 0
	cart.Status = CartStatusCancelled
	cart.Sales.IsCancelled = true
	if err := s.writeCart(ctx, tx, cart); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit cart %s: %w", cartID, err)
	}

	// A cart cancelled after money moved leaves an audit record. Downstream
	// consumers skip cancelled transactions for stock and sales purposes.
	if hadPayments {
		if _, err := s.finalize(ctx, cart, TransactionTypeNormalSalesCancel); err != nil {
			return nil, err
		}
	}
	return cart, nil
}

func (s *cartService) Bill(ctx context.Context, cartID string) (*Cart, *TransactionLog, error) {
	tx, err := s.tdb.Pool().Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	cart, err := s.lockCart(ctx, tx, cartID)
	if err != nil {
		return nil, nil, err
	}
	if cart.IsTerminal() {
		return nil, nil, ErrCartCompleted.Withf("cart %s is %s", cartID, cart.Status)
	}
	if !CanFire(cart.Status, EventBill) {
		return nil, nil, ErrInvalidEvent.Withf("%s not permitted while %s", EventBill, cart.Status)
	}
	if !cart.Balance.IsZero() {
		return nil, nil, ErrBalanceNotZero.Withf("balance is %s", cart.Balance)
	}

	log, err := s.finalize(ctx, cart, cart.TransactionType)
	if err != nil {
		return nil, nil, err
	}

	cart.Status = CartStatusCompleted
	cart.ReceiptText = log.ReceiptText
	cart.JournalText = log.JournalText
	if err := s.writeCart(ctx, tx, cart); err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to commit cart %s: %w", cartID, err)
	}
	return cart, log, nil
}

// finalize advances the terminal counters, builds the transaction log and
// hands it to the transaction service. Counter consumption commits even when
// a later step fails; gaps in transaction numbers are expected.
func (s *cartService) finalize(ctx context.Context, cart *Cart, tranType TransactionType) (*TransactionLog, error) {
	term, err := s.terminals.Get(ctx, cart.TerminalID)
	if err != nil {
		return nil, err
	}
	tranNo, err := s.counters.Next(ctx, cart.TerminalID, CounterTypeTransactionNo)
	if err != nil {
		return nil, err
	}
	receiptNo, err := s.counters.Next(ctx, cart.TerminalID, CounterTypeReceiptNo)
	if err != nil {
		return nil, err
	}

	log := &TransactionLog{
		StoreCode:         cart.StoreCode,
		TerminalID:        cart.TerminalID,
		TerminalNo:        cart.TerminalNo,
		TransactionNo:     tranNo,
		TransactionType:   tranType,
		ReceiptNo:         receiptNo,
		BusinessDate:      term.BusinessDate,
		OpenCounter:       term.OpenCounter,
		BusinessCounter:   term.BusinessCounter,
		GenerateDateTime:  time.Now(),
		Staff:             cart.Staff,
		LineItems:         cart.LineItems,
		SubtotalDiscounts: cart.SubtotalDiscounts,
		Payments:          cart.Payments,
		Taxes:             cart.Taxes,
		Sales:             cart.Sales,
	}
	log.ReceiptText = renderReceipt(log)
	log.JournalText = renderJournal(log)

	if err := s.trans.Store(ctx, log); err != nil {
		return nil, err
	}
	return log, nil
}
