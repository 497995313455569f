package enum

type EventKind string

const (
	EventOpen   EventKind = "open"
	EventClick  EventKind = "click"
	EventReply  EventKind = "reply"
	EventBounce EventKind = "bounce"
)

func (k EventKind) String() string {
	return string(k)
}

func (k EventKind) IsValid() bool {
	switch k {
	case EventOpen, EventClick, EventReply, EventBounce:
		return true
	default:
		return false
	}
}

type EventSource string

const (
	SourcePixel    EventSource = "pixel"
	SourceRedirect EventSource = "redirect"
	SourceImap     EventSource = "imap"
)

func (s EventSource) String() string {
	return string(s)
}

type BounceType string

const (
	BounceHard BounceType = "hard"
	BounceSoft BounceType = "soft"
)

func (b BounceType) String() string {
	return string(b)
}

// MessageClass is the classifier verdict for an inbound mailbox message.
type MessageClass string

const (
	MessageBounce      MessageClass = "bounce"
	MessageReply       MessageClass = "reply"
	MessageReadReceipt MessageClass = "read_receipt"
	MessageIgnored     MessageClass = "ignored"
)

func (c MessageClass) String() string {
	return string(c)
}
