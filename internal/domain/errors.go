package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrAlreadyExists       = errors.New("already exists")
	ErrAmountNotPositive   = errors.New("amount must be positive")
	ErrMarketNotOpen       = errors.New("market is not open")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidSide         = errors.New("invalid side")
	ErrNotEnoughAgents     = errors.New("not enough eligible agents")
	ErrAlreadySpinning     = errors.New("wheel is already spinning")
	ErrNotBettingPhase     = errors.New("betting is not open")
	ErrMatchStuck          = errors.New("match is stuck")
	ErrLockHeld            = errors.New("lock already held")
	ErrContextDone         = errors.New("context cancelled")
)
