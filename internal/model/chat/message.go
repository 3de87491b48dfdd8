package chat

// Role identifies the author of a transcript entry. The capitalised values are
// the on-disk representation of session records.
type Role string

const (
	RoleUser      Role = "User"
	RoleAssistant Role = "Assistant"
	RoleSystem    Role = "System"
)

// Message is a single immutable transcript entry.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// History is the ordered, append-only transcript of a conversation.
type History []Message

// Tail returns a copy of the last n messages (all of them when n exceeds the length).
func (h History) Tail(n int) History {
	if n <= 0 || len(h) == 0 {
		return nil
	}
	start := 0
	if len(h) > n {
		start = len(h) - n
	}
	return append(History(nil), h[start:]...)
}

// Clone returns an independent copy.
func (h History) Clone() History {
	if h == nil {
		return nil
	}
	return append(History(nil), h...)
}
