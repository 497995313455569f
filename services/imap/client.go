package imap

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"sort"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	mterrors "github.com/customeros/mailtrack/internal/errors"
	"github.com/customeros/mailtrack/internal/models"
	"github.com/customeros/mailtrack/internal/tracing"
)

// RawMessage is one fetched message, unparsed
type RawMessage struct {
	UID          uint32
	InternalDate time.Time
	Body         []byte
}

// MailClient is the subset of IMAP the poller needs
type MailClient interface {
	// Select opens folder read-only and returns its UIDVALIDITY
	Select(folder string) (uint32, error)
	// SearchUIDs returns UIDs greater than afterUID, or when afterUID is 0,
	// UIDs of messages received since the given date. Ascending.
	SearchUIDs(afterUID uint32, since time.Time) ([]uint32, error)
	// FetchRaw fetches full bodies without setting \Seen
	FetchRaw(uids []uint32) ([]RawMessage, error)
	Logout() error
}

// Dialer opens an authenticated session for a mailbox
type Dialer func(ctx context.Context, mailbox *models.Mailbox) (MailClient, error)

type imapClient struct {
	c *client.Client
}

// NewDialer returns a Dialer over go-imap with the given connect and command timeout
func NewDialer(timeout time.Duration) Dialer {
	return func(ctx context.Context, mailbox *models.Mailbox) (MailClient, error) {
		return connectMailbox(ctx, mailbox, timeout)
	}
}

func connectMailbox(ctx context.Context, mailbox *models.Mailbox, timeout time.Duration) (MailClient, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IMAPClient.connectMailbox")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, mailbox.ID)
	span.SetTag("server", mailbox.ImapServer)
	span.SetTag("port", mailbox.ImapPort)
	span.SetTag("tls", mailbox.ImapTLS)

	serverAddr := fmt.Sprintf("%s:%d", mailbox.ImapServer, mailbox.ImapPort)

	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	dialer := &net.Dialer{
		Timeout:   timeout,
		KeepAlive: 30 * time.Second,
	}

	var c *client.Client
	var err error
	if mailbox.ImapTLS {
		c, err = client.DialWithDialerTLS(dialer, serverAddr, &tls.Config{ServerName: mailbox.ImapServer})
	} else {
		c, err = client.DialWithDialer(dialer, serverAddr)
	}
	if err != nil {
		tracing.TraceErr(span, err)
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, errors.Wrapf(mterrors.ErrConnectionTimeout, "failed to connect to %s", serverAddr)
		}
		return nil, fmt.Errorf("failed to connect to %s: %w", serverAddr, err)
	}

	c.Timeout = timeout

	if err := c.Login(mailbox.ImapUsername, mailbox.ImapPassword); err != nil {
		_ = c.Logout()
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to login as %s: %w", mailbox.ImapUsername, err)
	}

	span.SetTag("success", true)
	return &imapClient{c: c}, nil
}

func (ic *imapClient) Select(folder string) (uint32, error) {
	status, err := ic.c.Select(folder, true)
	if err != nil {
		return 0, fmt.Errorf("error selecting folder %s: %w", folder, err)
	}
	return status.UidValidity, nil
}

func (ic *imapClient) SearchUIDs(afterUID uint32, since time.Time) ([]uint32, error) {
	criteria := imap.NewSearchCriteria()
	if afterUID > 0 {
		criteria.Uid = new(imap.SeqSet)
		criteria.Uid.AddRange(afterUID+1, 0)
	} else {
		criteria.Since = since
	}

	uids, err := ic.c.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("error searching messages: %w", err)
	}

	// "n:*" always matches the highest UID, even when it is below n
	filtered := uids[:0]
	for _, uid := range uids {
		if uid > afterUID {
			filtered = append(filtered, uid)
		}
	}
	sort.Slice(filtered, func(i, j int) bool { return filtered[i] < filtered[j] })
	return filtered, nil
}

func (ic *imapClient) FetchRaw(uids []uint32) ([]RawMessage, error) {
	if len(uids) == 0 {
		return nil, nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uids...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchUid, imap.FetchInternalDate, section.FetchItem()}

	messages := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- ic.c.UidFetch(seqSet, items, messages)
	}()

	result, readErr := collectRaw(messages, section, len(uids))
	if err := <-done; err != nil {
		return nil, fmt.Errorf("error fetching messages: %w", err)
	}
	if readErr != nil {
		return nil, readErr
	}
	return result, nil
}

// collectRaw drains messages and reads each body literal. A failed read is
// reported after the channel is drained so the fetch goroutine can finish.
func collectRaw(messages <-chan *imap.Message, section *imap.BodySectionName, sizeHint int) ([]RawMessage, error) {
	result := make([]RawMessage, 0, sizeHint)
	var readErr error
	for msg := range messages {
		if readErr != nil {
			continue
		}
		raw := RawMessage{UID: msg.Uid, InternalDate: msg.InternalDate}
		if literal := msg.GetBody(section); literal != nil {
			body, err := io.ReadAll(literal)
			if err != nil {
				readErr = fmt.Errorf("error reading body of uid %d: %w", msg.Uid, err)
				continue
			}
			raw.Body = body
		}
		result = append(result, raw)
	}
	if readErr != nil {
		return nil, readErr
	}

	sort.Slice(result, func(i, j int) bool { return result[i].UID < result[j].UID })
	return result, nil
}

func (ic *imapClient) Logout() error {
	ic.c.Timeout = 5 * time.Second
	return ic.c.Logout()
}
