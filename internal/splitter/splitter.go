package splitter

import (
	"strings"
	"unicode/utf8"
)

// Splitter breaks extracted document text into chunks suitable for
// embedding. Implementations must never return blank chunks.
type Splitter interface {
	Split(text string) []string
}

var separators = []string{"\n\n", "\n", " "}

// RecursiveSplitter splits on paragraph, then line, then word
// boundaries, packing pieces into chunks of at most ChunkSize runes
// with an Overlap-rune tail carried between adjacent chunks.
type RecursiveSplitter struct {
	ChunkSize int
	Overlap   int
}

func NewRecursiveSplitter(chunkSize, overlap int) *RecursiveSplitter {
	if chunkSize <= 0 {
		chunkSize = 500
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 0
	}
	return &RecursiveSplitter{ChunkSize: chunkSize, Overlap: overlap}
}

func (s *RecursiveSplitter) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if utf8.RuneCountInString(text) <= s.ChunkSize {
		return []string{text}
	}
	pieces := s.breakPieces(text, 0)
	return s.pack(pieces)
}

// breakPieces reduces text to trimmed pieces of at most ChunkSize
// runes, trying coarser separators first and hard-cutting as a last
// resort.
func (s *RecursiveSplitter) breakPieces(text string, sepIdx int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if utf8.RuneCountInString(text) <= s.ChunkSize {
		return []string{text}
	}
	if sepIdx >= len(separators) {
		return hardCut(text, s.ChunkSize)
	}
	parts := strings.Split(text, separators[sepIdx])
	if len(parts) == 1 {
		return s.breakPieces(text, sepIdx+1)
	}
	var pieces []string
	for _, part := range parts {
		pieces = append(pieces, s.breakPieces(part, sepIdx+1)...)
	}
	return pieces
}

func (s *RecursiveSplitter) pack(pieces []string) []string {
	var chunks []string
	var cur strings.Builder
	curLen := 0
	for _, piece := range pieces {
		pieceLen := utf8.RuneCountInString(piece)
		if curLen > 0 && curLen+1+pieceLen > s.ChunkSize {
			chunk := cur.String()
			chunks = append(chunks, chunk)
			tail := overlapTail(chunk, s.Overlap)
			cur.Reset()
			cur.WriteString(tail)
			curLen = utf8.RuneCountInString(tail)
		}
		if curLen > 0 {
			cur.WriteString(" ")
			curLen++
		}
		cur.WriteString(piece)
		curLen += pieceLen
	}
	if curLen > 0 {
		chunks = append(chunks, cur.String())
	}
	return chunks
}

// overlapTail returns the last n runes of chunk, advanced to the next
// word boundary so the carried context starts on a whole word.
func overlapTail(chunk string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(chunk)
	if len(runes) <= n {
		return chunk
	}
	tail := string(runes[len(runes)-n:])
	if idx := strings.IndexByte(tail, ' '); idx >= 0 {
		tail = tail[idx+1:]
	}
	return strings.TrimSpace(tail)
}

func hardCut(text string, size int) []string {
	runes := []rune(text)
	var out []string
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		piece := strings.TrimSpace(string(runes[start:end]))
		if piece != "" {
			out = append(out, piece)
		}
	}
	return out
}
