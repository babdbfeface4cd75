package domain

import "testing"

func TestValidationError(t *testing.T) {
	err := &ValidationError{Message: "account_id is required"}
	if err.Error() != "account_id is required" {
		t.Errorf("unexpected message: %s", err.Error())
	}
}

func TestSentinelErrorsDistinct(t *testing.T) {
	if ErrInsufficientBalance == ErrInsufficientLockedBalance {
		t.Error("balance sentinels must be distinct")
	}
	if ErrMarketExpired == ErrMarketStillActive {
		t.Error("market lifecycle sentinels must be distinct")
	}
}
