package model

const (
	AnswerEventChunk = "answer_chunk"
	AnswerEventError = "error"
)

// AnswerEvent is one element of a streamed answer. Events arrive in
// token order; an "error" event is terminal.
type AnswerEvent struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}
