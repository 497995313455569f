package dto

import "time"

// InboundMessage is a parsed mailbox message handed to the classifier.
type InboundMessage struct {
	// UserId owns the mailbox; unattributed events are kept under it
	UserId       string
	AccountId    string
	Folder       string
	UID          uint32
	MessageId    string
	From         string
	To           []string
	Subject      string
	Text         string
	InReplyTo    string
	References   []string
	CampaignHint string
	// FailedRecipients holds X-Failed-Recipients addresses
	FailedRecipients []string
	Date time.Time
	Raw  []byte
}

type ProcessResult struct {
	Duplicate  bool
	Ignored    bool
	Kind       string
	TrackingId string
	CampaignId string
	Attributed bool
}
