package knowledge

import (
	"time"

	"github.com/mechatbot/mechatbot/errors"
)

type (
	// Scope is the (owner, instance) pair that partitions knowledge into
	// isolated collections.
	Scope struct {
		CreatedBy    string `json:"createdBy"`
		InstanceName string `json:"instanceName"`
	}

	// Item is the canonical record of one piece of retrievable knowledge.
	// Text and ID are immutable once stored; a semantically different text is
	// a new item, never an edit. The same ID keys the vector index entry, and
	// that ID is the only join between the two stores.
	Item struct {
		ID        string    `json:"id"`
		Text      string    `json:"text"`
		Scope     Scope     `json:"scope"`
		CreatedAt time.Time `json:"createdAt"`
		UpdatedAt time.Time `json:"updatedAt"`
	}

	// UpdateHistory is one append-only revision record for an Item. Seq gives
	// deterministic ordering.
	UpdateHistory struct {
		Seq           uint64    `json:"seq"`
		ItemID        string    `json:"itemId"`
		RevisionLabel string    `json:"revisionLabel"`
		Description   string    `json:"description"`
		CreatedAt     time.Time `json:"createdAt"`
	}

	// Match is one vector index hit, ordered by similarity.
	Match struct {
		ID    string  `json:"id"`
		Score float32 `json:"score"`
	}

	// Document is one retrieved knowledge item joined back to its canonical
	// text, ready for prompt assembly.
	Document struct {
		ID       string         `json:"id"`
		Text     string         `json:"text"`
		Metadata map[string]any `json:"metadata"`
		Score    float32        `json:"score"`
	}
)

func (s Scope) Validate() error {
	if s.CreatedBy == "" {
		return errors.Wrapf(errors.ErrValidation, "createdBy is required")
	}
	if s.InstanceName == "" {
		return errors.Wrapf(errors.ErrValidation, "instanceName is required")
	}
	return nil
}

// Metadata returns the denormalized scope fields stored alongside each
// vector entry for query-time filtering.
func (s Scope) Metadata() map[string]any {
	return map[string]any{
		"createdBy":    s.CreatedBy,
		"instanceName": s.InstanceName,
	}
}
