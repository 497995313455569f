package dto

import "time"

type MonitorStatus struct {
	UserId              string     `json:"userId"`
	AccountId           string     `json:"accountId"`
	Configured          bool       `json:"configured"`
	State               string     `json:"state"`
	Running             bool       `json:"running"`
	ConsecutiveFailures int        `json:"consecutiveFailures"`
	NextAttemptAt       *time.Time `json:"nextAttemptAt,omitempty"`
	LastTickAt          *time.Time `json:"lastTickAt,omitempty"`
	LastSuccessAt       *time.Time `json:"lastSuccessAt,omitempty"`
	LastError           string     `json:"lastError,omitempty"`
	SkippedTicks        int64      `json:"skippedTicks"`
	ProcessedMessages   int64      `json:"processedMessages"`
}

type MailboxInput struct {
	UserId       string `json:"userId"`
	EmailAddress string `json:"emailAddress"`
	ImapHost     string `json:"imapHost" binding:"required"`
	ImapPort     int    `json:"imapPort" binding:"required"`
	ImapUsername string `json:"imapUsername" binding:"required"`
	ImapPassword string `json:"imapPassword" binding:"required"`
	UseTLS       *bool  `json:"useTls"`
	Folder       string `json:"folder"`
}
