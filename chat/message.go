package chat

import (
	"github.com/mechatbot/mechatbot/errors"
	"github.com/mechatbot/mechatbot/internal/sliceutils"
)

type (
	// Role tags one conversation message variant.
	Role string

	// Message is one typed conversation turn. Tool messages must carry the
	// id of the tool call they answer; every other role leaves ToolCallID
	// empty.
	Message struct {
		Role       Role   `json:"role"`
		Content    string `json:"content"`
		ToolCallID string `json:"toolCallId,omitempty"`
	}

	// Turn is a raw, untyped role/content pair as supplied by callers.
	Turn struct {
		Role       string `json:"role"`
		Content    string `json:"content"`
		ToolCallID string `json:"toolCallId,omitempty"`
	}
)

const (
	RoleHuman     Role = "human"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

func NewHumanMessage(content string) Message {
	return Message{Role: RoleHuman, Content: content}
}

func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// NewToolMessage fails when toolCallID is empty; a tool result that cannot be
// matched to its call is unusable downstream.
func NewToolMessage(content string, toolCallID string) (Message, error) {
	if toolCallID == "" {
		return Message{}, errors.Wrapf(errors.ErrInvalidHistoryEntry, "tool call id is required for tool messages")
	}
	return Message{Role: RoleTool, Content: content, ToolCallID: toolCallID}, nil
}

// typeTurn converts one raw turn into a typed message. "ai" is accepted as an
// alias for assistant to stay compatible with the old wire format.
func typeTurn(turn Turn) (Message, error) {
	switch turn.Role {
	case "human":
		return NewHumanMessage(turn.Content), nil
	case "ai", "assistant":
		return NewAssistantMessage(turn.Content), nil
	case "system":
		return NewSystemMessage(turn.Content), nil
	case "tool":
		return NewToolMessage(turn.Content, turn.ToolCallID)
	default:
		return Message{}, errors.Wrapf(errors.ErrInvalidHistoryEntry, "unknown role: %q", turn.Role)
	}
}

// WindowHistory types the raw turns and trims them to the last limit entries,
// preserving original order. It is pure: the input slice is never mutated.
func WindowHistory(turns []Turn, limit int) ([]Message, error) {
	if limit < 0 {
		limit = 0
	}

	// Clamp before cutting: a negative start would be re-interpreted by Cut
	// as an offset from the end.
	turns = sliceutils.Cut(turns, max(len(turns)-limit, 0), len(turns))

	messages := make([]Message, 0, len(turns))
	for _, turn := range turns {
		msg, err := typeTurn(turn)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	return messages, nil
}
