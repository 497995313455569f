package enum

type SendStatus string

const (
	SendStatusSent   SendStatus = "sent"
	SendStatusFailed SendStatus = "failed"
)

func (s SendStatus) String() string {
	return string(s)
}

func GetSendStatus(s string) SendStatus {
	if SendStatus(s) == SendStatusFailed {
		return SendStatusFailed
	}
	return SendStatusSent
}

// EmailStatus is derived from the event log and never stored.
type EmailStatus string

const (
	EmailStatusFailed  EmailStatus = "failed"
	EmailStatusSent    EmailStatus = "sent"
	EmailStatusOpened  EmailStatus = "opened"
	EmailStatusClicked EmailStatus = "clicked"
	EmailStatusReplied EmailStatus = "replied"
	EmailStatusBounced EmailStatus = "bounced"
)

func (s EmailStatus) String() string {
	return string(s)
}

var emailStatusRank = map[EmailStatus]int{
	EmailStatusSent:    0,
	EmailStatusOpened:  1,
	EmailStatusClicked: 2,
	EmailStatusReplied: 3,
	EmailStatusBounced: 4,
}

// Rank orders statuses by severity: bounced > replied > clicked > opened > sent.
func (s EmailStatus) Rank() int {
	return emailStatusRank[s]
}

func StatusForEvent(kind EventKind) EmailStatus {
	switch kind {
	case EventOpen:
		return EmailStatusOpened
	case EventClick:
		return EmailStatusClicked
	case EventReply:
		return EmailStatusReplied
	case EventBounce:
		return EmailStatusBounced
	default:
		return EmailStatusSent
	}
}

type MonitorState string

const (
	MonitorDisconnected MonitorState = "disconnected"
	MonitorConnecting   MonitorState = "connecting"
	MonitorIdle         MonitorState = "idle"
	MonitorFetching     MonitorState = "fetching"
	MonitorStopped      MonitorState = "stopped"
)

func (s MonitorState) String() string {
	return string(s)
}
