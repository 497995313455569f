package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/customeros/mailtrack/dto"
	"github.com/customeros/mailtrack/internal/enum"
)

func TestClassify_BounceKeywords(t *testing.T) {
	for _, kw := range bounceKeywords {
		t.Run(kw, func(t *testing.T) {
			fromSender := Classify(&dto.InboundMessage{From: kw + "@mail.example.com", Subject: "hello"})
			inSubject := Classify(&dto.InboundMessage{From: "x@example.com", Subject: "RE: " + kw})
			inBody := Classify(&dto.InboundMessage{From: "x@example.com", Subject: "hello", Text: "notice: " + kw})

			assert.Equal(t, enum.MessageBounce, inSubject.Class)
			assert.Equal(t, enum.MessageBounce, inBody.Class)
			if kw != "delivery status notification" && kw != "undelivered mail" && kw != "delivery failed" &&
				kw != "returned mail" && kw != "mail delivery failed" {
				assert.Equal(t, enum.MessageBounce, fromSender.Class)
			}
		})
	}
}

func TestClassify_BounceKeywordsAreCaseInsensitive(t *testing.T) {
	c := Classify(&dto.InboundMessage{From: "MAILER-DAEMON@google.com", Subject: "Delivery Status Notification (Failure)"})
	assert.Equal(t, enum.MessageBounce, c.Class)
	assert.Contains(t, c.Reason, "FROM")
}

func TestClassify_FailedRecipientsHeader(t *testing.T) {
	c := Classify(&dto.InboundMessage{From: "ops@example.com", Subject: "hi", FailedRecipients: []string{"a@b.com"}})
	assert.Equal(t, enum.MessageBounce, c.Class)
}

func TestClassify_BounceBeatsReply(t *testing.T) {
	c := Classify(&dto.InboundMessage{
		From:       "mailer-daemon@mx.example.com",
		Subject:    "Re: Quick question",
		InReplyTo:  "<orig@mailtrack>",
		References: []string{"<orig@mailtrack>"},
		Text:       "Your message could not be delivered",
	})
	assert.Equal(t, enum.MessageBounce, c.Class)
}

func TestClassify_BounceType(t *testing.T) {
	for _, kw := range softBounceKeywords {
		c := Classify(&dto.InboundMessage{From: "postmaster@x.com", Subject: "Undeliverable", Text: "Reason: " + kw})
		assert.Equal(t, enum.BounceSoft, c.BounceType, kw)
	}
	c := Classify(&dto.InboundMessage{From: "postmaster@x.com", Subject: "Undeliverable", Text: "user unknown"})
	assert.Equal(t, enum.BounceHard, c.BounceType)
}

func TestClassify_Reply(t *testing.T) {
	c := Classify(&dto.InboundMessage{From: "a@b.com", Subject: "Re: Hi", InReplyTo: "<m1@x>"})
	assert.Equal(t, enum.MessageReply, c.Class)
	assert.Equal(t, "IN-REPLY-TO header present", c.Reason)

	c = Classify(&dto.InboundMessage{From: "a@b.com", Subject: "Re: Hi", References: []string{"<m1@x>"}})
	assert.Equal(t, enum.MessageReply, c.Class)
	assert.Equal(t, "REFERENCES header present", c.Reason)

	c = Classify(&dto.InboundMessage{From: "a@b.com", Subject: "Hi", References: []string{" "}})
	assert.Equal(t, enum.MessageIgnored, c.Class)
}

func TestClassify_ReadReceiptKeywords(t *testing.T) {
	for _, kw := range readReceiptKeywords {
		t.Run(kw, func(t *testing.T) {
			assert.Equal(t, enum.MessageReadReceipt, Classify(&dto.InboundMessage{From: "a@b.com", Subject: kw + " Hello"}).Class)
			assert.Equal(t, enum.MessageReadReceipt, Classify(&dto.InboundMessage{From: "a@b.com", Subject: "Hello", Text: kw}).Class)
		})
	}
}

func TestClassify_ReplyBeatsReadReceipt(t *testing.T) {
	c := Classify(&dto.InboundMessage{From: "a@b.com", Subject: "Read: Hello", InReplyTo: "<m1@x>"})
	assert.Equal(t, enum.MessageReply, c.Class)
}

func TestClassify_Ignored(t *testing.T) {
	assert.Equal(t, enum.MessageIgnored, Classify(&dto.InboundMessage{From: "news@shop.com", Subject: "Weekly deals", Text: "Save 20%"}).Class)
	assert.Equal(t, enum.MessageIgnored, Classify(nil).Class)
}

func TestAttributionAddress(t *testing.T) {
	bounce := &dto.InboundMessage{
		From: "MAILER-DAEMON@mx.com",
		To:   []string{"Sender <sender@mine.com>"},
		Text: "Delivery to the following recipient failed permanently:\n\nRecipient: Jane@Example.com\n",
	}
	assert.Equal(t, "jane@example.com", AttributionAddress(bounce, enum.MessageBounce))

	bounce.Text = "no address here"
	assert.Equal(t, "sender@mine.com", AttributionAddress(bounce, enum.MessageBounce))

	bounce.FailedRecipients = []string{"failed@example.com"}
	assert.Equal(t, "failed@example.com", AttributionAddress(bounce, enum.MessageBounce))

	reply := &dto.InboundMessage{From: "Jane Doe <JANE@example.com>"}
	assert.Equal(t, "jane@example.com", AttributionAddress(reply, enum.MessageReply))
	assert.Equal(t, "jane@example.com", AttributionAddress(reply, enum.MessageReadReceipt))
	assert.Equal(t, "", AttributionAddress(reply, enum.MessageIgnored))
}

func TestCampaignHint(t *testing.T) {
	assert.Equal(t, "camp-1", CampaignHint(" camp-1 ", "[Campaign:other] Hi"))
	assert.Equal(t, "other", CampaignHint("", "Re: [Campaign:other] Hi"))
	assert.Equal(t, "", CampaignHint("", "Re: Hi"))
}
