package engine

import (
	"context"
	_ "embed"
	"strings"
	"text/template"
	"time"

	"github.com/Masterminds/sprig/v3"
	"github.com/mechatbot/mechatbot/errors"
	"github.com/mechatbot/mechatbot/knowledge"
)

var (
	//go:embed data/instructions/answer.md.tmpl
	answerInst     string
	answerInstTmpl = template.Must(template.New("answerInst").Funcs(funcMap()).Parse(answerInst))
)

func funcMap() template.FuncMap {
	return sprig.TxtFuncMap()
}

const defaultPersona = `You are **now** MeChatbot, a personal assistant speaking on behalf of its owner.

**Instructions:**

- Use first-person singular pronouns ("I", "me", "my").
- Make your answers fun and friendly, including emojis when appropriate.
- If you don't know the answer to a question, DO NOT invent the answer nor tell that you do not know. You should tell the user in a friendly way that you'll answer another day, making it fun with emojis.
- **Do not** ask the user any questions.
- **Do not** include phrases like "How can I assist you today?" or "Feel free to ask more questions!"`

type AnswerPromptValues struct {
	Today     string
	Persona   string
	Documents []knowledge.Document
}

// BuildPromptValues assembles the system prompt inputs for one answer turn.
// The persona comes from the scope's stored prompt, falling back to the
// built-in default when none is configured.
func (e *Engine) BuildPromptValues(ctx context.Context, scope knowledge.Scope, documents []knowledge.Document) (*AnswerPromptValues, error) {
	persona, err := e.personas.GetPersona(ctx, scope)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get persona")
	}
	if strings.TrimSpace(persona) == "" {
		persona = defaultPersona
	}

	return &AnswerPromptValues{
		Today:     time.Now().UTC().Format(time.RFC1123),
		Persona:   persona,
		Documents: documents,
	}, nil
}

func renderAnswerPrompt(values *AnswerPromptValues) (string, error) {
	var buf strings.Builder
	if err := answerInstTmpl.Execute(&buf, values); err != nil {
		return "", errors.Wrapf(err, "failed to render answer prompt")
	}
	return buf.String(), nil
}
