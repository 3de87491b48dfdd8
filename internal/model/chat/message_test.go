package chat

import "testing"

func TestHistoryTail(t *testing.T) {
	history := History{
		{Role: RoleUser, Content: "1"},
		{Role: RoleAssistant, Content: "2"},
		{Role: RoleUser, Content: "3"},
	}

	tail := history.Tail(2)
	if len(tail) != 2 || tail[0].Content != "2" || tail[1].Content != "3" {
		t.Fatalf("unexpected tail: %+v", tail)
	}

	tail[0].Content = "changed"
	if history[1].Content != "2" {
		t.Fatal("tail must not alias the source history")
	}

	if got := history.Tail(10); len(got) != 3 {
		t.Fatalf("expected whole history, got %d", len(got))
	}
	if got := history.Tail(0); got != nil {
		t.Fatalf("expected nil for zero window, got %+v", got)
	}
}

func TestSessionCloneDetachesHistory(t *testing.T) {
	original := Session{ID: "a", History: History{{Role: RoleUser, Content: "hi"}}}
	clone := original.Clone()
	clone.History = append(clone.History, Message{Role: RoleAssistant, Content: "hello"})
	clone.History[0].Content = "bye"

	if len(original.History) != 1 || original.History[0].Content != "hi" {
		t.Fatalf("original mutated: %+v", original.History)
	}
}

func TestSessionIsNew(t *testing.T) {
	if !(Session{}).IsNew() {
		t.Fatal("expected zero session to be new")
	}
	if (Session{ID: "a"}).IsNew() {
		t.Fatal("expected session with id to be persisted")
	}
}
