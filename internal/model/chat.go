package model

// ChatMessage is one append-only chat entry. SenderName is snapshotted at
// send time; entries never change after being appended.
type ChatMessage struct {
	ID         int64  `json:"id"`
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName"`
	Message    string `json:"message"`
	Timestamp  int64  `json:"timestamp"`
}
