package engine

import "errors"

var (
	// ErrInvalidContext indicates the evaluation context is missing required
	// base fields. The whole evaluation call fails; no triggers are produced.
	ErrInvalidContext = errors.New("invalid evaluation context")

	// ErrUnknownConditionType indicates a condition node used a type outside
	// the closed set. Surfaces as a per-rule failure, never a silent skip.
	ErrUnknownConditionType = errors.New("unknown condition type")

	// ErrUnknownSeverityType indicates a severity spec used a type outside
	// the closed set.
	ErrUnknownSeverityType = errors.New("unknown severity type")
)
