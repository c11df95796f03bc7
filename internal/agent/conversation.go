package agent

import "strings"

const (
	RoleUser  = "user"
	RoleOther = "other"
	RoleAI    = "ai"

	minConversation = 4
)

// Entry is one line of conversation history.
type Entry struct {
	Role   string
	Sender string
	Text   string
	Tick   int64
}

func (e Entry) human() bool { return e.Role != RoleAI }

func (e Entry) line() string {
	var b strings.Builder
	b.WriteString(e.Role)
	b.WriteByte(':')
	if e.Sender != "" {
		b.WriteString(e.Sender)
		b.WriteByte(':')
	}
	b.WriteByte(' ')
	b.WriteString(e.Text)
	return b.String()
}

// Conversation is a bounded history, oldest first.
type Conversation struct {
	entries []Entry
	limit   int
}

func NewConversation(limit int) *Conversation {
	return &Conversation{limit: max(minConversation, limit)}
}

func (c *Conversation) SetLimit(limit int) {
	c.limit = max(minConversation, limit)
	c.trim()
}

func (c *Conversation) Add(e Entry) {
	c.entries = append(c.entries, e)
	c.trim()
}

func (c *Conversation) trim() {
	if over := len(c.entries) - c.limit; over > 0 {
		c.entries = append(c.entries[:0], c.entries[over:]...)
	}
}

func (c *Conversation) Len() int { return len(c.entries) }

func (c *Conversation) Clear() { c.entries = c.entries[:0] }

// LastHumanTick is the tick of the newest user or other line, or -1.
func (c *Conversation) LastHumanTick() int64 {
	for i := len(c.entries) - 1; i >= 0; i-- {
		if c.entries[i].human() {
			return c.entries[i].Tick
		}
	}
	return -1
}

// Snapshot renders the newest n lines.
func (c *Conversation) Snapshot(n int) string {
	if n <= 0 {
		return ""
	}
	start := max(0, len(c.entries)-n)
	var b strings.Builder
	for _, e := range c.entries[start:] {
		b.WriteString(e.line())
		b.WriteByte('\n')
	}
	return b.String()
}

// Context is the conversation text sent with a decision request.
func (c *Conversation) Context(answerOnly bool) string {
	var b strings.Builder
	if len(c.entries) == 0 {
		if answerOnly {
			return "AnswerOnlyMode: true"
		}
		return ""
	}
	if answerOnly {
		b.WriteString("AnswerOnlyMode: true\n")
	}
	b.WriteString("Conversation (most recent last):\n")
	for _, e := range c.entries {
		b.WriteString(e.line())
		b.WriteByte('\n')
	}
	return b.String()
}
