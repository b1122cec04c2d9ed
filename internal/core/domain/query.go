package domain

import (
	"errors"
	"strings"
)

var errEmptyQuery = errors.New("query text is empty")

// RawQuery is the user's literal input plus a declared or detected source
// language tag ("unknown" when the caller cannot tell).
type RawQuery struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

func (q RawQuery) Normalize() RawQuery {
	lang := strings.ToLower(strings.TrimSpace(q.Language))
	if lang == "" {
		lang = "unknown"
	}
	return RawQuery{
		Text:     strings.TrimSpace(q.Text),
		Language: lang,
	}
}

func (q RawQuery) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return WrapError(ErrInvalidInput, "validate query", errEmptyQuery)
	}
	return nil
}

// ConversationTurn is one prior (question, answer) exchange.
type ConversationTurn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// ConversationContext is a read-only snapshot of prior turns, oldest first.
// The pipeline never mutates it; the presentation layer owns history.
type ConversationContext struct {
	Turns []ConversationTurn `json:"turns"`
}

// Tail returns the trailing n turns.
func (c ConversationContext) Tail(n int) []ConversationTurn {
	if n <= 0 || len(c.Turns) == 0 {
		return nil
	}
	if len(c.Turns) <= n {
		return c.Turns
	}
	return c.Turns[len(c.Turns)-n:]
}

type VerdictKind string

const (
	VerdictOnTopic  VerdictKind = "on_topic"
	VerdictOffTopic VerdictKind = "off_topic"
	VerdictHarmful  VerdictKind = "harmful"
)

// Verdict is produced exactly once per pipeline run, before any retrieval
// work. RewrittenQuery is populated only for on-topic verdicts and is a
// standalone English restatement of the user's question.
type Verdict struct {
	Kind           VerdictKind `json:"kind"`
	RewrittenQuery string      `json:"rewritten_query,omitempty"`
	Reason         string      `json:"reason,omitempty"`
}

func (v Verdict) OnTopic() bool {
	return v.Kind == VerdictOnTopic
}
