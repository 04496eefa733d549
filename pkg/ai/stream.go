package ai

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
)

const (
	dataPrefix   = "data:"
	doneSentinel = "[DONE]"
)

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// StreamReader pulls content tokens out of a server-sent-events completion body.
// Transport lines split across network reads are reassembled before decoding.
type StreamReader struct {
	body io.Reader
	r    *bufio.Reader
	done bool
}

// NewStreamReader wraps a streaming response body
func NewStreamReader(body io.Reader) *StreamReader {
	return &StreamReader{body: body, r: bufio.NewReader(body)}
}

// Next returns the next non-empty content token, or io.EOF once the stream
// has ended or the terminator line was seen. Malformed frames are skipped.
func (s *StreamReader) Next() (string, error) {
	for !s.done {
		line, err := s.r.ReadString('\n')
		if err != nil && err != io.EOF {
			return "", err
		}
		if err == io.EOF {
			s.done = true
		}

		token, stop := decodeFrame(line)
		if stop {
			s.done = true
			break
		}
		if token != "" {
			return token, nil
		}
	}
	return "", io.EOF
}

// Consume drains the stream. onLine is invoked for every newline completed in
// the decoded content, then once more for a non-blank trailing partial line.
// It returns the full concatenated content, including on error.
func (s *StreamReader) Consume(onLine func(line string)) (string, error) {
	var full strings.Builder
	pending := ""

	for {
		token, err := s.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return full.String(), err
		}

		full.WriteString(token)
		pending += token
		for {
			i := strings.IndexByte(pending, '\n')
			if i < 0 {
				break
			}
			line := pending[:i]
			pending = pending[i+1:]
			if onLine != nil {
				onLine(line)
			}
		}
	}

	if strings.TrimSpace(pending) != "" && onLine != nil {
		onLine(pending)
	}
	return full.String(), nil
}

// Close releases the underlying body when it is closable
func (s *StreamReader) Close() error {
	s.done = true
	if c, ok := s.body.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// decodeFrame returns the content token carried by one transport line and
// whether the line terminates the stream.
func decodeFrame(line string) (string, bool) {
	t := strings.TrimSpace(line)
	if t == "" || !strings.HasPrefix(t, dataPrefix) {
		return "", false
	}
	payload := strings.TrimSpace(t[len(dataPrefix):])
	if payload == doneSentinel {
		return "", true
	}

	var chunk streamChunk
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		return "", false
	}
	if len(chunk.Choices) == 0 {
		return "", false
	}
	return chunk.Choices[0].Delta.Content, false
}
