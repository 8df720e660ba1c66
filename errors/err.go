package errors

import (
	"fmt"
)

var (
	// ErrInvalidArgument marks malformed caller input: wrong embedding
	// dimension, empty required text, and the like. Not retryable.
	ErrInvalidArgument = fmt.Errorf("guidancecore: invalid argument")

	// ErrEmbedding marks an embedding provider failure. Transient network
	// failures are retryable; provider-side input rejections are not.
	ErrEmbedding = fmt.Errorf("guidancecore: embedding failed")

	// ErrPersistence marks a durable-storage failure. Write paths surface
	// it to the caller; read paths may degrade instead.
	ErrPersistence = fmt.Errorf("guidancecore: persistence failed")

	// ErrConflict marks a lost optimistic-concurrency race, e.g. two
	// consultations refining the same rule. Retry once with fresh data.
	ErrConflict = fmt.Errorf("guidancecore: concurrent update conflict")

	ErrNotFound = fmt.Errorf("guidancecore: not found")
)
