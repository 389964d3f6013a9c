package errors

import (
	"fmt"
)

var (
	// ErrValidation marks malformed or incomplete request input. No side
	// effects have occurred when it is returned.
	ErrValidation = fmt.Errorf("mechatbot: invalid request")

	// ErrInvalidHistoryEntry marks a conversation turn that cannot be typed:
	// an unknown role tag, or a tool turn without a tool call id.
	ErrInvalidHistoryEntry = fmt.Errorf("mechatbot: invalid history entry")

	// ErrNotFound marks a referenced id or scope that does not exist.
	ErrNotFound = fmt.Errorf("mechatbot: not found")

	// ErrConflict marks a uniqueness violation on a knowledge create or a
	// revision append.
	ErrConflict = fmt.Errorf("mechatbot: conflict")

	// ErrUpstreamUnavailable marks a failed or timed-out call to the
	// embedding gateway, vector index, knowledge store or generation service.
	ErrUpstreamUnavailable = fmt.Errorf("mechatbot: upstream unavailable")

	// ErrEmbeddingUnavailable marks an embedding gateway failure. It is fatal
	// to the retrieval call that triggered it.
	ErrEmbeddingUnavailable = fmt.Errorf("mechatbot: embedding unavailable (%w)", ErrUpstreamUnavailable)

	// ErrPartialWrite marks a two-store write that committed on one store and
	// failed on the other. It is surfaced to the caller, never retried
	// automatically.
	ErrPartialWrite = fmt.Errorf("mechatbot: partial write, stores are inconsistent")
)
