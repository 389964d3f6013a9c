package engine

import (
	"context"
	"strings"

	"github.com/mechatbot/mechatbot/chat"
	"github.com/mechatbot/mechatbot/errors"
	"github.com/mechatbot/mechatbot/internal/llm"
)

const contextualizeInst = "Given a chat history and the latest user question " +
	"which might reference context in the chat history, " +
	"formulate a standalone question which can be understood " +
	"without the chat history. Do NOT answer the question, " +
	"just reformulate it if needed and otherwise return it as is."

// Rephrase resolves pronouns and elliptical references in question against
// history and returns a standalone question. An empty history returns the
// question verbatim without calling the model.
func (e *Engine) Rephrase(ctx context.Context, question string, history []chat.Message) (string, error) {
	if len(history) == 0 {
		return question, nil
	}

	messages := make([]chat.Message, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, chat.NewHumanMessage(question))

	out, err := e.model.Complete(ctx, &llm.Request{
		Model:       e.modelName,
		System:      contextualizeInst,
		Messages:    messages,
		Temperature: e.temperature,
		MaxTokens:   e.maxTokens,
	})
	if err != nil {
		return "", errors.Wrapf(err, "failed to rephrase question")
	}

	out = strings.TrimSpace(out)
	if out == "" {
		return question, nil
	}
	return out, nil
}
