package session

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single chat message
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Transcript is the ordered conversation exchanged with the completion API
type Transcript []Message

// Clone returns a copy that shares no backing array with t.
func (t Transcript) Clone() Transcript {
	if t == nil {
		return nil
	}
	out := make(Transcript, len(t))
	copy(out, t)
	return out
}

// Alternates reports whether roles strictly alternate user, assistant, user...
func (t Transcript) Alternates() bool {
	for i, msg := range t {
		want := RoleUser
		if i%2 == 1 {
			want = RoleAssistant
		}
		if msg.Role != want {
			return false
		}
	}
	return true
}

// Truncate drops every message after the first n.
func (t Transcript) Truncate(n int) Transcript {
	if n < 0 {
		n = 0
	}
	if n >= len(t) {
		return t
	}
	return t[:n]
}
