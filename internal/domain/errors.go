package domain

import "errors"

// Sentinel errors for domain-level error handling.
// The handler layer maps these to HTTP status codes.
var (
	ErrInvalidSize               = errors.New("invalid_size")
	ErrInvalidOrder              = errors.New("invalid_order")
	ErrOrderNotCancelable        = errors.New("order_not_cancelable")
	ErrOrderNotFound             = errors.New("order_not_found")
	ErrCallerNotOwner            = errors.New("caller_not_owner")
	ErrDataExpired               = errors.New("data_expired")
	ErrInsufficientBalance       = errors.New("insufficient_balance")
	ErrInsufficientLockedBalance = errors.New("insufficient_locked_balance")
	ErrInsufficientLiquidity     = errors.New("insufficient_liquidity")
	ErrCantCloseBeforeExpiry     = errors.New("cant_close_before_expiry")
	ErrMarketStillActive         = errors.New("market_still_active")
	ErrUnsettledPositions        = errors.New("unsettled_positions")
	ErrMarketExpired             = errors.New("market_expired")
	ErrMarketNotFound            = errors.New("market_not_found")
	ErrMarketAlreadyExists       = errors.New("market_already_exists")
	ErrMarketNotAuthorized       = errors.New("market_not_authorized")
	ErrAccountNotFound           = errors.New("account_not_found")
	ErrEmptyInput                = errors.New("empty_input")
	ErrLengthMismatch            = errors.New("length_mismatch")
	ErrZeroField                 = errors.New("zero_field")
	ErrWithdrawalTooHigh         = errors.New("withdrawal_too_high")
	ErrInvalidExpiry             = errors.New("invalid_expiry")
	ErrInvalidPriceSource        = errors.New("invalid_price_source")
	ErrInvalidAmount             = errors.New("invalid_amount")
	ErrWebhookNotFound           = errors.New("webhook_not_found")
)

// ValidationError represents a request validation failure.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
