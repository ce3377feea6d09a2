package contracts

import (
	"errors"
	"fmt"
)

// Sentinel errors for per-instrument skips and the one fatal case
var (
	ErrSessionFailed = errors.New("data feed session failed")
	ErrNotQualified  = errors.New("instrument not qualified")
	ErrNoPrice       = errors.New("no usable price")
	ErrNoChains      = errors.New("no option chains")
	ErrNoCandidates  = errors.New("no candidate contracts")
)

// StageError tags a failure with the stage and symbol it happened in
type StageError struct {
	Stage  Stage
	Symbol string
	Err    error
}

// NewStageError wraps err for stage/symbol
func NewStageError(stage Stage, symbol string, err error) *StageError {
	return &StageError{Stage: stage, Symbol: symbol, Err: err}
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s [%s]: %v", e.Symbol, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err must abort the whole scan
func IsFatal(err error) bool {
	return errors.Is(err, ErrSessionFailed)
}
