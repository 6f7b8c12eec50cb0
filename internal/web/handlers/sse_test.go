package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestEventStream(t *testing.T) {
	recorder := httptest.NewRecorder()

	stream, ok := openEventStream(recorder)
	if !ok {
		t.Fatal("expected the recorder to support flushing")
	}
	if err := stream.send("progress", map[string]int{"processed": 3}); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if err := stream.ping(); err != nil {
		t.Fatalf("ping failed: %v", err)
	}

	assertContentType(t, recorder, "text/event-stream")
	want := "event: progress\ndata: {\"processed\":3}\n\n: ping\n\n"
	if got := recorder.Body.String(); got != want {
		t.Errorf("unexpected stream body:\n got %q\nwant %q", got, want)
	}
	if !recorder.Flushed {
		t.Error("expected the stream to be flushed")
	}
}

func TestEventStreamUnencodable(t *testing.T) {
	stream, _ := openEventStream(httptest.NewRecorder())

	if err := stream.send("bad", func() {}); err == nil {
		t.Error("expected an encode error for a func payload")
	}
}

type noFlushWriter struct {
	http.ResponseWriter
}

func TestOpenEventStreamWithoutFlusher(t *testing.T) {
	recorder := httptest.NewRecorder()

	if _, ok := openEventStream(noFlushWriter{recorder}); ok {
		t.Fatal("expected failure without http.Flusher")
	}
	assertStatusCode(t, recorder, http.StatusInternalServerError)
}
