package imap

import (
	"bytes"
	"fmt"
	"net/mail"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jhillyerd/enmime"
	"github.com/pkg/errors"

	"github.com/customeros/mailtrack/dto"
	mterrors "github.com/customeros/mailtrack/internal/errors"
	"github.com/customeros/mailtrack/internal/utils"
	"github.com/customeros/mailtrack/services/classifier"
)

// MessageSource locates a fetched message within a mailbox
type MessageSource struct {
	UserID      string
	AccountID   string
	Folder      string
	UIDValidity uint32
}

// ParseMessage turns a raw RFC 5322 message into an InboundMessage.
// Failures wrap ErrParseMessage and are permanent.
func ParseMessage(src MessageSource, raw RawMessage) (*dto.InboundMessage, error) {
	if len(raw.Body) == 0 {
		return nil, errors.Wrapf(mterrors.ErrParseMessage, "uid %d has no body", raw.UID)
	}

	env, err := enmime.ReadEnvelope(bytes.NewReader(raw.Body))
	if err != nil {
		return nil, errors.Wrapf(mterrors.ErrParseMessage, "uid %d: %v", raw.UID, err)
	}

	msg := &dto.InboundMessage{
		UserId:           src.UserID,
		AccountId:        src.AccountID,
		Folder:           src.Folder,
		UID:              raw.UID,
		MessageId:        strings.TrimSpace(env.GetHeader("Message-Id")),
		From:             strings.TrimSpace(env.GetHeader("From")),
		To:               addressList(env, "To"),
		Subject:          env.GetHeader("Subject"),
		Text:             bodyText(env),
		InReplyTo:        strings.TrimSpace(env.GetHeader("In-Reply-To")),
		References:       utils.SplitMessageIDs(env.GetHeader("References")),
		FailedRecipients: failedRecipients(env.GetHeaderValues("X-Failed-Recipients")),
		Raw:              raw.Body,
	}
	msg.CampaignHint = classifier.CampaignHint(env.GetHeader("X-Campaign-Id"), msg.Subject)

	if msg.MessageId == "" {
		msg.MessageId = SyntheticMessageID(src.AccountID, src.Folder, src.UIDValidity, raw.UID)
	}

	if date, err := mail.ParseDate(env.GetHeader("Date")); err == nil {
		msg.Date = date.UTC()
	} else if !raw.InternalDate.IsZero() {
		msg.Date = raw.InternalDate.UTC()
	}

	return msg, nil
}

// SyntheticMessageID identifies a message that carries no Message-Id header.
// It is stable for as long as the folder keeps its UIDVALIDITY.
func SyntheticMessageID(accountID, folder string, uidValidity, uid uint32) string {
	return fmt.Sprintf("<%s.%s.%d.%d@mailtrack>", accountID, folder, uidValidity, uid)
}

func addressList(env *enmime.Envelope, header string) []string {
	list, err := env.AddressList(header)
	if err != nil || len(list) == 0 {
		if value := strings.TrimSpace(env.GetHeader(header)); value != "" {
			return []string{value}
		}
		return nil
	}
	addresses := make([]string, 0, len(list))
	for _, addr := range list {
		addresses = append(addresses, addr.Address)
	}
	return addresses
}

func failedRecipients(values []string) []string {
	var recipients []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if email := utils.ExtractEmailAddress(part); email != "" {
				recipients = append(recipients, email)
			}
		}
	}
	return recipients
}

func bodyText(env *enmime.Envelope) string {
	if strings.TrimSpace(env.Text) != "" || env.HTML == "" {
		return env.Text
	}
	text, err := HTMLToPlainText(env.HTML)
	if err != nil {
		return ""
	}
	return text
}

func HTMLToPlainText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	doc.Find("script, style").Each(func(i int, el *goquery.Selection) {
		el.Remove()
	})

	text := strings.TrimSpace(doc.Find("body").Text())
	text = strings.ReplaceAll(text, "\n\n", "\n")
	return text, nil
}
