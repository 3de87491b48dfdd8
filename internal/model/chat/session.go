package chat

// Session is the persisted transcript of one conversation. UpdatedAt is epoch
// seconds with sub-second precision.
type Session struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	History   History `json:"history"`
	UpdatedAt float64 `json:"updated_at"`
}

// Summary is the listing view of a Session.
type Summary struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	UpdatedAt float64 `json:"updated_at"`
}

// IsNew reports whether the session has not been persisted yet.
func (s Session) IsNew() bool {
	return s.ID == ""
}

// Clone returns a copy whose history can be appended to independently.
func (s Session) Clone() Session {
	s.History = s.History.Clone()
	return s
}
