package core

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the HTTP boundary. The web adapter maps each
// kind to a status class and decides whether a user-facing message is shown.
type Kind int

const (
	KindSystem Kind = iota
	KindValidation
	KindInvalidState
	KindBusinessRule
	KindNotFound
	KindConflict
	KindStorage
	KindExternal
)

// Error is a classified domain error with a machine-readable code and
// localized user messages (en/ja). Services wrap causes with %w so callers
// can still errors.Is/As through the chain.
type Error struct {
	Kind      Kind
	Code      string
	Message   string
	MessageJa string
	cause     error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// WithCause returns a copy of e carrying the underlying cause.
func (e *Error) WithCause(err error) *Error {
	c := *e
	c.cause = err
	return &c
}

// Withf returns a copy of e with the message extended by formatted detail.
func (e *Error) Withf(format string, args ...any) *Error {
	c := *e
	c.Message = e.Message + ": " + fmt.Sprintf(format, args...)
	return &c
}

func newError(kind Kind, code, en, ja string) *Error {
	return &Error{Kind: kind, Code: code, Message: en, MessageJa: ja}
}

// Shared error values. Site-specific detail is attached with Withf/WithCause.
var (
	ErrCartNotFound        = newError(KindNotFound, "CART_NOT_FOUND", "cart not found", "カートが見つかりません")
	ErrItemNotFound        = newError(KindNotFound, "ITEM_NOT_FOUND", "item not found", "商品が見つかりません")
	ErrTaxNotFound         = newError(KindNotFound, "TAX_NOT_FOUND", "tax master not found", "税マスタが見つかりません")
	ErrPaymentNotFound     = newError(KindNotFound, "PAYMENT_NOT_FOUND", "payment method not found", "支払い方法が見つかりません")
	ErrTerminalNotFound    = newError(KindNotFound, "TERMINAL_NOT_FOUND", "terminal not found", "端末が見つかりません")
	ErrStoreNotFound       = newError(KindNotFound, "STORE_NOT_FOUND", "store not found", "店舗が見つかりません")
	ErrStaffNotFound       = newError(KindNotFound, "STAFF_NOT_FOUND", "staff not found", "担当者が見つかりません")
	ErrTranNotFound        = newError(KindNotFound, "TRANSACTION_NOT_FOUND", "transaction not found", "取引が見つかりません")
	ErrUserNotFound        = newError(KindNotFound, "USER_NOT_FOUND", "user not found", "ユーザーが見つかりません")
	ErrEventNotFound       = newError(KindNotFound, "EVENT_NOT_FOUND", "event not found", "イベントが見つかりません")
	ErrScheduleNotFound    = newError(KindNotFound, "SCHEDULE_NOT_FOUND", "snapshot schedule not found", "スナップショット設定が見つかりません")
	ErrStockNotFound       = newError(KindNotFound, "STOCK_NOT_FOUND", "stock not found", "在庫が見つかりません")

	ErrInvalidEvent        = newError(KindInvalidState, "INVALID_CART_EVENT", "operation not permitted in current cart state", "現在のカート状態では実行できない操作です")
	ErrTerminalNotOpened   = newError(KindInvalidState, "TERMINAL_NOT_OPENED", "terminal is not opened", "端末が開設されていません")
	ErrTerminalNotSignedIn = newError(KindInvalidState, "TERMINAL_NOT_SIGNED_IN", "terminal is not signed in", "端末がサインインされていません")
	ErrTerminalState       = newError(KindInvalidState, "TERMINAL_STATE", "operation not permitted in current terminal state", "現在の端末状態では実行できない操作です")

	ErrValidation          = newError(KindValidation, "VALIDATION", "validation failed", "入力内容に誤りがあります")
	ErrDiscountRestricted  = newError(KindBusinessRule, "DISCOUNT_RESTRICTED", "item does not accept discounts", "この商品は割引対象外です")
	ErrDiscountExceeds     = newError(KindBusinessRule, "DISCOUNT_EXCEEDS_AMOUNT", "discount exceeds the target amount", "割引額が対象金額を超えています")
	ErrDiscountAllocation  = newError(KindBusinessRule, "DISCOUNT_ALLOCATION", "failed to allocate subtotal discount", "小計割引の配分に失敗しました")
	ErrBalanceInsufficient = newError(KindBusinessRule, "BALANCE_INSUFFICIENT", "balance is insufficient", "残高が不足しています")
	ErrBalanceZero         = newError(KindBusinessRule, "BALANCE_ZERO", "balance is already zero", "残高は既にゼロです")
	ErrBalanceMinus        = newError(KindBusinessRule, "BALANCE_MINUS", "payment would make balance negative", "支払いにより残高がマイナスになります")
	ErrDepositOver         = newError(KindBusinessRule, "DEPOSIT_OVER", "deposit exceeds balance for this payment method", "この支払い方法では預り金超過はできません")
	ErrBalanceNotZero      = newError(KindBusinessRule, "BALANCE_NOT_ZERO", "cart cannot be billed until balance is zero", "残高がゼロになるまで会計できません")

	ErrAlreadyVoided       = newError(KindConflict, "ALREADY_VOIDED", "transaction is already voided", "取引は既に取消済みです")
	ErrAlreadyRefunded     = newError(KindConflict, "ALREADY_REFUNDED", "transaction is already refunded", "取引は既に返品済みです")
	ErrAlreadyExists       = newError(KindConflict, "ALREADY_EXISTS", "record already exists", "既に登録されています")
	ErrCartCompleted       = newError(KindConflict, "CART_COMPLETED", "cart is already finalized", "カートは既に確定済みです")

	ErrUnauthorized        = newError(KindValidation, "UNAUTHORIZED", "authentication failed", "認証に失敗しました")

	ErrStorage             = newError(KindStorage, "STORAGE", "storage operation failed", "データストア操作に失敗しました")
	ErrUpdateMiss          = newError(KindStorage, "UPDATE_MISS", "update matched no document", "更新対象が見つかりません")
	ErrDeleteMiss          = newError(KindStorage, "DELETE_MISS", "delete matched no document", "削除対象が見つかりません")
	ErrExternal            = newError(KindExternal, "EXTERNAL", "external collaborator failed", "外部サービス呼び出しに失敗しました")
)

// KindOf extracts the error kind from an error chain; unknown errors are
// classified as system errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindSystem
}

// AsError returns the classified error in the chain, or nil.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}
