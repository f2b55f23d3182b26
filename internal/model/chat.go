package model

// Chat is the scope that partitions stored chunks and conversation
// history per user session.
type Chat struct {
	ID        string `json:"chat_id"`
	UserID    string `json:"user_id"`
	Name      string `json:"chat_name"`
	Ctime     int64  `json:"created_at"`
	LastAsked int64  `json:"last_asked"`
}
