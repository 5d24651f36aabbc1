package sse

import (
	"io"
	"strings"
	"testing"
)

// chunkedReader returns its parts one Read at a time, regardless of buffer
// size, to simulate arbitrary network fragmentation.
type chunkedReader struct {
	parts []string
}

func (c *chunkedReader) Read(p []byte) (int, error) {
	if len(c.parts) == 0 {
		return 0, io.EOF
	}
	n := copy(p, c.parts[0])
	if n < len(c.parts[0]) {
		c.parts[0] = c.parts[0][n:]
	} else {
		c.parts = c.parts[1:]
	}
	return n, nil
}

func collect(t *testing.T, s *Scanner) []string {
	t.Helper()
	var out []string
	for {
		payload, err := s.Next()
		if err == io.EOF {
			return out
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		out = append(out, payload)
	}
}

func TestScannerBasicStream(t *testing.T) {
	stream := "data: {\"a\":1}\n\ndata: {\"b\":2}\n\ndata: [DONE]\n\n"
	got := collect(t, NewScanner(strings.NewReader(stream)))
	if len(got) != 2 {
		t.Fatalf("expected 2 payloads, got %d: %#v", len(got), got)
	}
	if got[0] != `{"a":1}` || got[1] != `{"b":2}` {
		t.Fatalf("unexpected payloads %#v", got)
	}
}

func TestScannerSplitMidPayload(t *testing.T) {
	r := &chunkedReader{parts: []string{
		"data: {\"choices\":[{\"del",
		"ta\":{\"content\":\"ahoj\"}}]}\n\nda",
		"ta: [DONE]\n\n",
	}}
	got := collect(t, NewScanner(r))
	if len(got) != 1 {
		t.Fatalf("expected 1 payload, got %#v", got)
	}
	text, ok := Delta(got[0])
	if !ok || text != "ahoj" {
		t.Fatalf("unexpected delta %q ok=%v", text, ok)
	}
}

func TestScannerStopsAtDone(t *testing.T) {
	stream := "data: {\"a\":1}\n\ndata: [DONE]\n\ndata: {\"late\":true}\n\n"
	got := collect(t, NewScanner(strings.NewReader(stream)))
	if len(got) != 1 {
		t.Fatalf("payloads after [DONE] must be dropped, got %#v", got)
	}
}

func TestScannerSkipsCommentsAndEvents(t *testing.T) {
	stream := ": keepalive\nevent: message_start\ndata: {\"x\":1}\n\n"
	got := collect(t, NewScanner(strings.NewReader(stream)))
	if len(got) != 1 || got[0] != `{"x":1}` {
		t.Fatalf("unexpected payloads %#v", got)
	}
}

func TestScannerCRLF(t *testing.T) {
	stream := "data: {\"x\":1}\r\n\r\ndata: [DONE]\r\n\r\n"
	got := collect(t, NewScanner(strings.NewReader(stream)))
	if len(got) != 1 || got[0] != `{"x":1}` {
		t.Fatalf("unexpected payloads %#v", got)
	}
}

func TestScannerEOFWithoutDone(t *testing.T) {
	got := collect(t, NewScanner(strings.NewReader("data: {\"x\":1}\n\n")))
	if len(got) != 1 {
		t.Fatalf("expected stream to end cleanly at EOF, got %#v", got)
	}
}

func TestDelta(t *testing.T) {
	if _, ok := Delta("not json"); ok {
		t.Fatalf("invalid JSON must not produce a delta")
	}
	if _, ok := Delta(`{"choices":[]}`); ok {
		t.Fatalf("empty choices must not produce a delta")
	}
	text, ok := Delta(`{"choices":[{"delta":{"content":"slovo"}}]}`)
	if !ok || text != "slovo" {
		t.Fatalf("unexpected delta %q ok=%v", text, ok)
	}
}
