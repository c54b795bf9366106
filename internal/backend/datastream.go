package backend

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Data-stream protocol: one part per line, "<type>:<json>\n".
const (
	PartText   = '0'
	PartError  = '3'
	PartFinish = 'd'

	// DataStreamHeader marks a response body as a data stream
	DataStreamHeader  = "X-Vercel-AI-Data-Stream"
	DataStreamVersion = "v1"

	maxPartSize = 1024 * 1024
)

// FinishPart terminates a data stream
type FinishPart struct {
	FinishReason string `json:"finishReason"`
	Usage        *Usage `json:"usage,omitempty"`
}

// Part is one decoded line of a data stream
type Part struct {
	Type   byte
	Text   string
	Finish *FinishPart
}

// WriteText writes a text fragment part
func WriteText(w io.Writer, text string) error {
	return writePart(w, PartText, text)
}

// WriteError writes an error part
func WriteError(w io.Writer, msg string) error {
	return writePart(w, PartError, msg)
}

// WriteFinish writes the closing part of a stream
func WriteFinish(w io.Writer, reason string, usage *Usage) error {
	return writePart(w, PartFinish, FinishPart{FinishReason: reason, Usage: usage})
}

func writePart(w io.Writer, typ byte, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal stream part: %w", err)
	}
	if _, err := fmt.Fprintf(w, "%c:%s\n", typ, data); err != nil {
		return fmt.Errorf("failed to write stream part: %w", err)
	}
	return nil
}

// ParsePart decodes a single data-stream line (without the trailing newline)
func ParsePart(line string) (Part, error) {
	if len(line) < 2 || line[1] != ':' {
		return Part{}, fmt.Errorf("malformed stream part %q", truncate(line))
	}
	part := Part{Type: line[0]}
	payload := []byte(line[2:])

	switch part.Type {
	case PartText, PartError:
		if err := json.Unmarshal(payload, &part.Text); err != nil {
			return Part{}, fmt.Errorf("failed to decode stream part: %w", err)
		}
	case PartFinish:
		var finish FinishPart
		if err := json.Unmarshal(payload, &finish); err != nil {
			return Part{}, fmt.Errorf("failed to decode finish part: %w", err)
		}
		part.Finish = &finish
	}
	// other part types are ignored by callers but still decoded as raw lines
	return part, nil
}

// PartReader reads data-stream parts from a response body
type PartReader struct {
	scanner *bufio.Scanner
}

// NewPartReader creates a PartReader over r
func NewPartReader(r io.Reader) *PartReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxPartSize)
	return &PartReader{scanner: scanner}
}

// Next returns the next part, or io.EOF when the body is exhausted
func (pr *PartReader) Next() (Part, error) {
	for pr.scanner.Scan() {
		line := strings.TrimRight(pr.scanner.Text(), "\r")
		if line == "" {
			continue
		}
		return ParsePart(line)
	}
	if err := pr.scanner.Err(); err != nil {
		return Part{}, fmt.Errorf("failed to read stream: %w", err)
	}
	return Part{}, io.EOF
}

func truncate(s string) string {
	if len(s) > 32 {
		return s[:32] + "..."
	}
	return s
}
