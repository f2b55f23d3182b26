package model

// Chunk is the unit of stored knowledge: a slice of an uploaded
// document's text plus its embedding, scoped to (user, chat).
// Chunks are immutable once stored; the embedding length is fixed by
// the embedding model configured for the deployment.
type Chunk struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	ChatID    string    `json:"chat_id"`
	Content   string    `json:"content"`
	Embedding []float32 `json:"-"`
	Ctime     int64     `json:"ctime"`
}
