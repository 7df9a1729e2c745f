package core

import (
	"github.com/shopspring/decimal"
)

// PaymentStrategy handles one family of payment methods. Strategies are
// values with function-typed fields; capability flags (refundable, accepts
// over-deposit, gives change) come from the payment master, not the
// strategy, so one strategy serves many payment codes.
type PaymentStrategy struct {
	Pay    func(cart *Cart, master PaymentMaster, deposit decimal.Decimal, detail string) error
	Refund func(cart *Cart, master PaymentMaster, amount decimal.Decimal, detail string) error
}

// PaymentRegistry maps payment codes to strategies. Codes without an
// explicit registration use the standard strategy.
type PaymentRegistry struct {
	strategies map[string]PaymentStrategy
	standard   PaymentStrategy
}

func NewPaymentRegistry() *PaymentRegistry {
	return &PaymentRegistry{
		strategies: map[string]PaymentStrategy{},
		standard: PaymentStrategy{
			Pay:    standardPay,
			Refund: standardRefund,
		},
	}
}

// Register installs a strategy for one payment code, replacing any previous
// registration.
func (r *PaymentRegistry) Register(code string, s PaymentStrategy) {
	r.strategies[code] = s
}

// Strategy returns the strategy for the code, falling back to the standard
// one. Whether the code exists at all is the payment master's decision.
func (r *PaymentRegistry) Strategy(code string) PaymentStrategy {
	if s, ok := r.strategies[code]; ok {
		return s
	}
	return r.standard
}

// ── Shared helpers ───────────────────────────────────────────────────────────

// checkDepositOver rejects a deposit exceeding the balance for methods that
// do not accept over-deposit.
func checkDepositOver(cart *Cart, master PaymentMaster, deposit decimal.Decimal) error {
	if !master.CanDepositOver && !master.CanChange && deposit.GreaterThan(cart.Balance) {
		return ErrDepositOver.Withf("deposit %s exceeds balance %s for %s", deposit, cart.Balance, master.PaymentCode)
	}
	return nil
}

// createPayment appends a payment row; the cart must still carry a positive
// balance.
func createPayment(cart *Cart, master PaymentMaster, deposit, amount, change decimal.Decimal, detail string) error {
	if cart.Balance.LessThan(decimal.NewFromInt(1)) {
		return ErrBalanceZero
	}
	if cart.Balance.Sub(amount).IsNegative() {
		return ErrBalanceMinus.Withf("payment %s against balance %s", amount, cart.Balance)
	}
	cart.Payments = append(cart.Payments, Payment{
		PaymentNo:     len(cart.Payments) + 1,
		PaymentCode:   master.PaymentCode,
		Description:   master.Description,
		DepositAmount: deposit,
		Amount:        amount,
		ChangeAmount:  change,
		Detail:        detail,
	})
	return nil
}

// standardPay applies one tender. Change-giving methods cap the applied
// amount at the balance and record the difference as change.
func standardPay(cart *Cart, master PaymentMaster, deposit decimal.Decimal, detail string) error {
	if !deposit.IsPositive() {
		return ErrValidation.Withf("deposit must be positive, got %s", deposit)
	}
	if err := checkDepositOver(cart, master, deposit); err != nil {
		return err
	}

	amount := deposit
	change := decimal.Zero
	if deposit.GreaterThan(cart.Balance) {
		if master.CanChange {
			change = deposit.Sub(cart.Balance)
			amount = cart.Balance
		} else {
			// Over-deposit accepted without change (e.g. vouchers): the full
			// deposit applies but never beyond the balance.
			amount = cart.Balance
		}
	}
	return createPayment(cart, master, deposit, amount, change, detail)
}

// standardRefund appends a refund tender for return carts.
func standardRefund(cart *Cart, master PaymentMaster, amount decimal.Decimal, detail string) error {
	if !master.CanRefund {
		return ErrValidation.Withf("payment method %s does not permit refunds", master.PaymentCode)
	}
	if !amount.IsPositive() {
		return ErrValidation.Withf("refund amount must be positive, got %s", amount)
	}
	cart.Payments = append(cart.Payments, Payment{
		PaymentNo:     len(cart.Payments) + 1,
		PaymentCode:   master.PaymentCode,
		Description:   master.Description,
		DepositAmount: amount,
		Amount:        amount,
		Detail:        detail,
	})
	return nil
}
