package classifier

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/customeros/mailtrack/dto"
	"github.com/customeros/mailtrack/internal/enum"
	"github.com/customeros/mailtrack/internal/utils"
)

var bounceKeywords = []string{
	"mailer-daemon",
	"postmaster",
	"delivery status notification",
	"undelivered mail",
	"delivery failed",
	"returned mail",
	"mail delivery failed",
	"undeliverable",
	"bounce",
}

var softBounceKeywords = []string{
	"mailbox full",
	"quota",
	"temporar",
	"try again",
	"deferred",
}

var readReceiptKeywords = []string{
	"read:",
	"read receipt",
	"return receipt",
	"message read",
	"opened:",
}

var (
	bounceRecipientRegex = regexp.MustCompile(`(?i)(?:to|recipient|address)[:.\s]+([a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,})`)
	campaignTagRegex     = regexp.MustCompile(`\[Campaign:([^\]]+)\]`)
)

type Classification struct {
	Class      enum.MessageClass
	Reason     string
	BounceType enum.BounceType
}

// Classify applies the heuristics in priority order: bounce, reply, read
// receipt. The first match wins; anything else is ignored.
func Classify(msg *dto.InboundMessage) Classification {
	if msg == nil {
		return Classification{Class: enum.MessageIgnored, Reason: "empty message"}
	}

	if bounce, reason := isBounce(msg); bounce {
		return Classification{
			Class:      enum.MessageBounce,
			Reason:     reason,
			BounceType: bounceType(msg),
		}
	}

	if isReply(msg) {
		reason := "IN-REPLY-TO header present"
		if strings.TrimSpace(msg.InReplyTo) == "" {
			reason = "REFERENCES header present"
		}
		return Classification{Class: enum.MessageReply, Reason: reason}
	}

	if receipt, reason := isReadReceipt(msg); receipt {
		return Classification{Class: enum.MessageReadReceipt, Reason: reason}
	}

	return Classification{Class: enum.MessageIgnored, Reason: "no tracking signal"}
}

func isBounce(msg *dto.InboundMessage) (bool, string) {
	if len(msg.FailedRecipients) > 0 {
		return true, "X-FAILED-RECIPIENTS header present"
	}
	if kw := firstKeyword(msg.From, bounceKeywords); kw != "" {
		return true, fmt.Sprintf("FROM contains bounce keyword '%s'", kw)
	}
	if kw := firstKeyword(msg.Subject, bounceKeywords); kw != "" {
		return true, fmt.Sprintf("SUBJECT contains bounce keyword '%s'", kw)
	}
	if kw := firstKeyword(msg.Text, bounceKeywords); kw != "" {
		return true, fmt.Sprintf("BODY contains bounce keyword '%s'", kw)
	}
	return false, ""
}

func bounceType(msg *dto.InboundMessage) enum.BounceType {
	if firstKeyword(msg.Subject, softBounceKeywords) != "" || firstKeyword(msg.Text, softBounceKeywords) != "" {
		return enum.BounceSoft
	}
	return enum.BounceHard
}

func isReply(msg *dto.InboundMessage) bool {
	if strings.TrimSpace(msg.InReplyTo) != "" {
		return true
	}
	for _, ref := range msg.References {
		if strings.TrimSpace(ref) != "" {
			return true
		}
	}
	return false
}

func isReadReceipt(msg *dto.InboundMessage) (bool, string) {
	if kw := firstKeyword(msg.Subject, readReceiptKeywords); kw != "" {
		return true, fmt.Sprintf("SUBJECT contains receipt keyword '%s'", kw)
	}
	if kw := firstKeyword(msg.Text, readReceiptKeywords); kw != "" {
		return true, fmt.Sprintf("BODY contains receipt keyword '%s'", kw)
	}
	return false, ""
}

func firstKeyword(s string, keywords []string) string {
	if s == "" {
		return ""
	}
	lower := strings.ToLower(s)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return kw
		}
	}
	return ""
}

// AttributionAddress returns the normalized address to look up in the send
// ledger. Bounces use the failed recipient from headers or body, falling
// back to the bounce's own To. Replies and receipts use From.
func AttributionAddress(msg *dto.InboundMessage, class enum.MessageClass) string {
	if msg == nil {
		return ""
	}
	switch class {
	case enum.MessageBounce:
		for _, addr := range msg.FailedRecipients {
			if normalized := utils.NormalizeEmail(addr); normalized != "" {
				return normalized
			}
		}
		if match := bounceRecipientRegex.FindStringSubmatch(msg.Text); len(match) > 1 {
			if normalized := utils.NormalizeEmail(match[1]); normalized != "" {
				return normalized
			}
		}
		for _, addr := range msg.To {
			if normalized := utils.NormalizeEmail(addr); normalized != "" {
				return normalized
			}
		}
		return ""
	case enum.MessageReply, enum.MessageReadReceipt:
		return utils.NormalizeEmail(msg.From)
	default:
		return ""
	}
}

// CampaignHint reads the campaign id from the X-Campaign-Id header or a
// [Campaign:xxx] subject tag.
func CampaignHint(header, subject string) string {
	if hint := strings.TrimSpace(header); hint != "" {
		return hint
	}
	if match := campaignTagRegex.FindStringSubmatch(subject); len(match) > 1 {
		return strings.TrimSpace(match[1])
	}
	return ""
}
