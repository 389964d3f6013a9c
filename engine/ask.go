package engine

import (
	"context"
	"strings"

	"github.com/mechatbot/mechatbot/chat"
	"github.com/mechatbot/mechatbot/errors"
	"github.com/mechatbot/mechatbot/internal/llm"
	"github.com/mechatbot/mechatbot/knowledge"
	"github.com/samber/lo"
)

const eventBufferSize = 16

// Ask runs the full answer pipeline: window the history, rephrase the
// question into standalone form, retrieve supporting documents and stream
// the generated answer as events. Validation failures are returned
// synchronously; everything after that is reported on the channel, which is
// closed when the turn finishes or ctx is cancelled.
func (e *Engine) Ask(ctx context.Context, req *AskRequest) (<-chan Event, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, errors.Wrapf(errors.ErrValidation, "question is required")
	}
	scope := req.scope()
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	history, err := chat.WindowHistory(req.History, e.historyWindow)
	if err != nil {
		return nil, err
	}

	topK := req.TopK
	if topK <= 0 {
		topK = e.topK
	}

	out := make(chan Event, eventBufferSize)
	go func() {
		defer close(out)
		e.run(ctx, out, req.Question, history, scope, topK)
	}()
	return out, nil
}

func (e *Engine) run(ctx context.Context, out chan<- Event, question string, history []chat.Message, scope knowledge.Scope, topK int) {
	if !emit(ctx, out, Event{Kind: EventRetrievalStarted}) {
		return
	}

	standalone, err := e.Rephrase(ctx, question, history)
	if err != nil {
		e.logger.Warn("failed to rephrase question", "err", err)
		emit(ctx, out, errorEvent(err))
		return
	}

	documents, err := e.retriever.Retrieve(ctx, standalone, topK, &scope)
	if err != nil {
		e.logger.Warn("failed to retrieve documents", "err", err)
		emit(ctx, out, errorEvent(err))
		return
	}

	if !emit(ctx, out, Event{
		Kind:     EventRetrievalCompleted,
		Question: standalone,
		Sources: lo.Map(documents, func(doc knowledge.Document, _ int) string {
			return doc.ID
		}),
	}) {
		return
	}

	values, err := e.BuildPromptValues(ctx, scope, documents)
	if err != nil {
		emit(ctx, out, errorEvent(err))
		return
	}
	system, err := renderAnswerPrompt(values)
	if err != nil {
		emit(ctx, out, errorEvent(err))
		return
	}

	messages := make([]chat.Message, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, chat.NewHumanMessage("\nQuestion: "+standalone))

	answer, err := e.model.CompleteStream(ctx, &llm.Request{
		Model:       e.modelName,
		System:      system,
		Messages:    messages,
		Temperature: e.temperature,
		MaxTokens:   e.maxTokens,
	}, func(ctx context.Context, chunk string) error {
		if !emit(ctx, out, tokenEvent(chunk)) {
			return ctx.Err()
		}
		return nil
	})
	if err != nil {
		// Partial text is discarded. The caller only sees the tokens that
		// were delivered before the failure plus the error event.
		e.logger.Warn("failed to generate answer", "err", err)
		emit(ctx, out, errorEvent(err))
		return
	}

	emit(ctx, out, Event{Kind: EventGenerationCompleted, Token: answer})
}

// emit sends ev unless ctx is done first. It reports whether the send
// happened, so callers can stop producing once the consumer is gone.
func emit(ctx context.Context, out chan<- Event, ev Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
