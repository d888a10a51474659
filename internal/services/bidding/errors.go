package bidding

import "errors"

var (
	ErrNegativeAmount = errors.New("transaction amount is negative")
	ErrInvalidAmount  = errors.New("transaction amount is not a finite number")
	ErrEngineBudget   = errors.New("engine budget must be a positive finite number")
)
