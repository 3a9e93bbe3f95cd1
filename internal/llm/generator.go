package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/harborbank/teller/internal/model"
)

// Passage is one retrieved knowledge-base snippet handed to generation.
type Passage struct {
	Content string
	Source  string
}

// Generator produces grounded natural-language answers from retrieved
// passages and recent conversation history.
type Generator struct {
	client Client
}

// NewGenerator wraps a chat-completion client for answer generation.
func NewGenerator(client Client) *Generator {
	return &Generator{client: client}
}

// Generate answers message using the supplied passages. History, when
// present, is appended to the prompt so follow-ups stay coherent.
func (g *Generator) Generate(ctx context.Context, message string, passages []Passage, history []model.Message) (string, error) {
	var contextBlock strings.Builder
	for _, p := range passages {
		if p.Source != "" {
			fmt.Fprintf(&contextBlock, "[%s] ", p.Source)
		}
		contextBlock.WriteString(p.Content)
		contextBlock.WriteString("\n\n")
	}
	if contextBlock.Len() == 0 {
		contextBlock.WriteString("(no relevant documents found)\n")
	}

	prompt := fmt.Sprintf(ragContextTemplate, strings.TrimSpace(contextBlock.String()), message)

	if len(history) > 0 {
		var hist strings.Builder
		hist.WriteString("\n\nRecent conversation:\n")
		for _, msg := range history {
			fmt.Fprintf(&hist, "%s: %s\n", msg.Role, msg.Content)
		}
		prompt += hist.String()
	}

	answer, err := g.client.Complete(ctx, bankingSystemPrompt, prompt)
	if err != nil {
		return "", fmt.Errorf("answer generation: %w", err)
	}
	return strings.TrimSpace(answer), nil
}
