package engine

type EventKind string

const (
	EventRetrievalStarted    EventKind = "retrieval-started"
	EventRetrievalCompleted  EventKind = "retrieval-completed"
	EventGenerationToken     EventKind = "generation-token"
	EventGenerationCompleted EventKind = "generation-completed"
	EventError               EventKind = "error"
)

// Event is a single element of the answer stream. Exactly one of the
// payload fields is populated depending on Kind.
type Event struct {
	Kind EventKind `json:"kind"`

	// Token carries one generated chunk on generation-token, and the full
	// accumulated answer on generation-completed.
	Token string `json:"token,omitempty"`

	// Question is the standalone question used for retrieval, set on
	// retrieval-completed.
	Question string `json:"question,omitempty"`

	// Sources lists the ids of the retrieved documents, set on
	// retrieval-completed.
	Sources []string `json:"sources,omitempty"`

	// Error holds a terse failure description on error events.
	Error string `json:"error,omitempty"`
}

func tokenEvent(chunk string) Event {
	return Event{Kind: EventGenerationToken, Token: chunk}
}

func errorEvent(err error) Event {
	return Event{Kind: EventError, Error: err.Error()}
}
