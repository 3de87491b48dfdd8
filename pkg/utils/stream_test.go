package utils

import (
	"net/http/httptest"
	"testing"
)

func TestTokenWriterFlushesEachToken(t *testing.T) {
	rec := httptest.NewRecorder()
	SetupTextStreamHeaders(rec)

	write := TokenWriter(rec)
	write("Hel")
	if !rec.Flushed {
		t.Fatal("expected flush after first token")
	}
	write("lo")

	if rec.Body.String() != "Hello" {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "text/plain; charset=utf-8" {
		t.Fatalf("unexpected content type %q", got)
	}
}
