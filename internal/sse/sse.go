// Package sse parses Server-Sent-Events streams as emitted by
// OpenAI-compatible chat completion endpoints.
package sse

import (
	"encoding/json"
	"io"
	"strings"
)

// DoneMarker terminates an OpenAI-style SSE stream.
const DoneMarker = "[DONE]"

// Scanner lazily splits an SSE byte stream into `data:` payloads. It pulls
// from the reader on demand, buffers partial lines across read boundaries
// (a payload split mid-JSON is held until its newline arrives) and stops
// cleanly at the [DONE] marker. A Scanner is finite and not restartable.
type Scanner struct {
	r       io.Reader
	buf     []byte
	pending string
	queue   []string
	err     error
	done    bool
}

// NewScanner wraps r. The reader is not closed by the Scanner.
func NewScanner(r io.Reader) *Scanner {
	return &Scanner{
		r:   r,
		buf: make([]byte, 8192),
	}
}

// Next returns the next data payload. It returns io.EOF after the [DONE]
// marker or when the upstream ends, and any read error otherwise.
func (s *Scanner) Next() (string, error) {
	for {
		if len(s.queue) > 0 {
			payload := s.queue[0]
			s.queue = s.queue[1:]
			return payload, nil
		}
		if s.done {
			return "", io.EOF
		}
		if s.err != nil {
			return "", s.err
		}

		n, err := s.r.Read(s.buf)
		if n > 0 {
			s.ingest(s.pending + string(s.buf[:n]))
		}
		if err != nil {
			if err == io.EOF {
				s.done = true
			} else {
				s.err = err
			}
		}
	}
}

// ingest splits data into complete lines, keeping the trailing fragment for
// the next read.
func (s *Scanner) ingest(data string) {
	lines := strings.Split(data, "\n")
	s.pending = lines[len(lines)-1]
	for _, line := range lines[:len(lines)-1] {
		if s.done {
			return
		}
		line = strings.TrimSuffix(line, "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, ":") {
			continue
		}
		if strings.HasPrefix(trimmed, "event:") {
			continue
		}
		if !strings.HasPrefix(trimmed, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(trimmed, "data:"))
		if payload == DoneMarker {
			s.done = true
			return
		}
		if payload != "" {
			s.queue = append(s.queue, payload)
		}
	}
}

// deltaEnvelope mirrors the path choices[0].delta.content of a streaming
// chunk. Unknown fields are ignored.
type deltaEnvelope struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Delta extracts the incremental text content from a chunk payload. The
// second return is false when the payload is not valid JSON or carries no
// content delta.
func Delta(payload string) (string, bool) {
	var env deltaEnvelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return "", false
	}
	if len(env.Choices) == 0 || env.Choices[0].Delta.Content == "" {
		return "", false
	}
	return env.Choices[0].Delta.Content, true
}
