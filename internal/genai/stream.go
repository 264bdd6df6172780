package genai

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"strings"
)

// readStream consumes an SSE body. Each complete "data:" line is decoded on
// its own; undecodable lines are skipped. A trailing line without a newline is
// processed once the body reaches EOF.
func readStream(r io.Reader, onChunk func(fragment, accumulated string)) (string, int, error) {
	br := bufio.NewReader(r)
	var (
		acc    strings.Builder
		events int
	)
	handle := func(line string) error {
		line = strings.TrimRight(line, "\r\n")
		if !strings.HasPrefix(line, "data:") {
			return nil
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" || data == "[DONE]" {
			return nil
		}
		var chunk generateResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return nil
		}
		events++
		if chunk.Error != nil {
			return &ServiceError{Status: chunk.Error.Code, Code: chunk.Error.Status, Message: chunk.Error.Message}
		}
		fragment := chunk.text()
		if fragment == "" {
			return nil
		}
		acc.WriteString(fragment)
		if onChunk != nil {
			onChunk(fragment, acc.String())
		}
		return nil
	}

	for {
		line, err := br.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				if line != "" {
					if herr := handle(line); herr != nil {
						return acc.String(), events, herr
					}
				}
				return acc.String(), events, nil
			}
			return acc.String(), events, err
		}
		if herr := handle(line); herr != nil {
			return acc.String(), events, herr
		}
	}
}
