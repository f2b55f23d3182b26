package ai

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
)

type sseDelta struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// scanChatStream reads an OpenAI-style SSE body ("data: {...}" lines
// terminated by "data: [DONE]") and emits each non-empty delta in
// arrival order. Malformed data lines are skipped, matching how the
// upstream APIs intersperse keep-alive comments.
func scanChatStream(body io.Reader, emit func(fragment string) error) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			return nil
		}
		var chunk sseDelta
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		fragment := chunk.Choices[0].Delta.Content
		if fragment == "" {
			continue
		}
		if err := emit(fragment); err != nil {
			return err
		}
	}
	return scanner.Err()
}
