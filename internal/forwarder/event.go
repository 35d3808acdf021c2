package forwarder

import (
	"context"
	"strconv"
)

// MediaKind names a re-sendable attachment type.
type MediaKind string

const (
	MediaPhoto     MediaKind = "photo"
	MediaVideo     MediaKind = "video"
	MediaDocument  MediaKind = "document"
	MediaAudio     MediaKind = "audio"
	MediaAnimation MediaKind = "animation"
	MediaVoice     MediaKind = "voice"
)

// Media references an attachment already stored by the backend.
type Media struct {
	Kind   MediaKind
	FileID string
}

// Event is one inbound message, built once from the backend update.
type Event struct {
	IsOutgoing   bool
	SourceChatID int64
	SourceHandle string
	SourceTitle  string
	SenderID     int64
	MessageID    int
	ThreadID     int
	// Text holds the message text, or the caption for media.
	Text  string
	Media *Media
}

// Label names the source for stats: @handle, else title, else the chat id.
func (ev Event) Label() string {
	switch {
	case ev.SourceHandle != "":
		return "@" + ev.SourceHandle
	case ev.SourceTitle != "":
		return ev.SourceTitle
	default:
		return strconv.FormatInt(ev.SourceChatID, 10)
	}
}

// Link names the source in the attribution footer.
func (ev Event) Link() string {
	if ev.SourceHandle == "" && ev.SourceTitle == "" {
		return "ID: " + strconv.FormatInt(ev.SourceChatID, 10)
	}
	return ev.Label()
}

// Payload is one outbound message.
type Payload struct {
	ChatID   int64
	ThreadID int
	Text     string
	Media    *Media
	Silent   bool
}

// Entity is a resolved channel.
type Entity struct {
	ID     int64
	Handle string
	Title  string
}

// Backend is the messaging connection the engine listens and sends through.
type Backend interface {
	// Connect validates the credential and returns the listener's own id.
	Connect(ctx context.Context) (int64, error)
	Resolve(ctx context.Context, identifier string) (Entity, error)
	Join(ctx context.Context, entity Entity) error
	Send(ctx context.Context, payload Payload) error
	// Listen delivers events until ctx is done or the connection drops.
	Listen(ctx context.Context, events chan<- Event) error
}
