package model

// Conversation is one question/answer exchange bound to a chat.
// Exchanges are append-only; they are written once after a streamed
// answer completes and read back for history display.
type Conversation struct {
	ID       int64  `json:"id"`
	UserID   string `json:"user_id"`
	ChatID   string `json:"chat_id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Ctime    int64  `json:"timestamp"`
}
