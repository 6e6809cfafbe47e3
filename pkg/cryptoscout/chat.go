package cryptoscout

import (
	"context"
	"encoding/json"
	"fmt"
)

// Chat roles exchanged with the model.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one turn of a chat exchange. History is not persisted
// server-side; the caller resends it each turn.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	// chatNoContextReply is returned when no recommendation has been
	// generated (or it expired with the market data it described).
	chatNoContextReply = "I don't have a shortlist to discuss yet. Generate picks first, then ask me about them."

	// chatEmptyReply is the placeholder for an empty or failed model turn.
	chatEmptyReply = "(no reply)"
)

const chatSystemPromptFormat = `You are a cautious crypto analyst chatting about a shortlist you produced earlier.

Latest recommendation (JSON):
%s

Rules:
- Stay on the topic of these picks, their risks, and close alternatives.
- Keep answers concise: a few sentences at most.
- Decline any request to execute trades or access accounts.
- Never give definitive financial advice; frame everything as points to consider.`

// Chat answers one follow-up turn about the most recent recommendation.
// Without a cached recommendation it returns fixed guidance and makes no
// model call. Model failures degrade to a placeholder reply, never an error.
func (c *Core) Chat(ctx context.Context, history []ChatMessage) string {
	grounding, ok := c.lastReco.get()
	if !ok {
		return chatNoContextReply
	}

	system, err := buildChatSystemPrompt(grounding)
	if err != nil {
		c.logger.Warn("chat grounding marshal failed", "err", err)
		return chatEmptyReply
	}

	msgs := make([]ChatMessage, 0, len(history))
	for _, m := range history {
		if m.Role != RoleUser && m.Role != RoleAssistant {
			continue
		}
		msgs = append(msgs, m)
	}

	reply, err := c.completion.Complete(ctx, system, msgs)
	if err != nil {
		c.logger.Warn("chat model call failed", "err", err)
		return chatEmptyReply
	}
	if reply == "" {
		return chatEmptyReply
	}
	return reply
}

func buildChatSystemPrompt(grounding *RecommendationResult) (string, error) {
	payload, err := json.Marshal(grounding)
	if err != nil {
		return "", fmt.Errorf("marshal grounding result: %w", err)
	}
	return fmt.Sprintf(chatSystemPromptFormat, payload), nil
}
