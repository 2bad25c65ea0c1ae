package domain

// Message is an inbound chat message.
type Message struct {
	ChatID    int64
	MessageID int
	Text      string
	TraceID   string
}

// VideoSource is what gets handed to the delivery transport: either a local
// file to upload or a handle returned by an earlier delivery.
type VideoSource struct {
	FilePath string
	Handle   string
}

// IsCached reports whether the source refers to an already uploaded artifact.
func (s VideoSource) IsCached() bool {
	return s.Handle != ""
}

// Delivery describes a video message accepted by the transport.
type Delivery struct {
	MessageID int
	Handle    string
}
