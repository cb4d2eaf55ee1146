package tasks

import "errors"

var (
	ErrInvalidKind         = errors.New("invalid task kind")
	ErrInvalidPayload      = errors.New("invalid task payload")
	ErrPayloadTypeMismatch = errors.New("payload type mismatch for task kind")
)
