package agent

import (
	"context"
	"log/slog"
	"strings"

	"github.com/jg-phare/yappr/pkg/llm"
	"github.com/jg-phare/yappr/pkg/logging"
	"github.com/jg-phare/yappr/pkg/types"
)

// NarrationSystemPrompt is the fixed instruction for the narration pass.
const NarrationSystemPrompt = `You are a narrator. Given an assistant's reply that may contain code, tables, diagrams, or markdown, produce a short spoken version suitable for text-to-speech.
Rules: Output ONLY the narration, no preamble or "Here is the narration". Use plain language. Summarize or describe code blocks, tables, and diagrams instead of reading them verbatim. Keep the same meaning and tone.`

// Narrator rewrites finished assistant text into a short speech-friendly
// form. It has no tool access and never touches conversation history.
type Narrator struct {
	provider llm.Provider
	model    string
	logger   *slog.Logger
}

// NewNarrator creates a Narrator. provider and model may differ from the
// ones serving the chat.
func NewNarrator(provider llm.Provider, model string, logger *slog.Logger) *Narrator {
	return &Narrator{
		provider: provider,
		model:    model,
		logger:   logging.Component(logger, "agent").With("pass", "narration"),
	}
}

// Narrate returns the trimmed narration of text, or text itself when the
// model returns nothing. On error the original text is returned with it.
func (n *Narrator) Narrate(ctx context.Context, text string) (string, error) {
	c, err := n.provider.Complete(ctx, &llm.Request{
		Model:         n.model,
		SystemPrompts: []string{NarrationSystemPrompt},
		Messages:      []types.ChatMessage{types.NewUserMessage(text)},
	})
	if err != nil {
		n.logger.Warn("narration failed", "model", n.model, "error", err)
		return text, err
	}

	out := strings.TrimSpace(c.Text)
	if out == "" {
		return text, nil
	}
	n.logger.Debug("narrated", "in_chars", len(text), "out_chars", len(out))
	return out, nil
}
