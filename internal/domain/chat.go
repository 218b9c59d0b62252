package domain

// Sender identifies who authored a transcript entry.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// ChatMessage is a single transcript entry. Pending marks a transient
// placeholder shown while a request is outstanding; it is the only kind of
// entry ever removed from a transcript.
type ChatMessage struct {
	ID      string
	Text    string
	Sender  Sender
	Pending bool
}
