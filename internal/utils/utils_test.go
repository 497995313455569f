package utils

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "jane@acme.com", NormalizeEmail("Jane Doe <Jane@Acme.com>"))
	assert.Equal(t, "a@b.com", NormalizeEmail("  a@b.com "))
	assert.Equal(t, "", NormalizeEmail(""))
	assert.Equal(t, "", NormalizeEmail("not-an-address"))
}

func TestExtractDomainFromEmail(t *testing.T) {
	assert.Equal(t, "acme.com", ExtractDomainFromEmail("Bob <bob@ACME.com>"))
	assert.Equal(t, "", ExtractDomainFromEmail("nobody"))
}

func TestRegistrableDomain(t *testing.T) {
	assert.Equal(t, "acme.co.uk", RegistrableDomain("mail.eu.acme.co.uk"))
	assert.Equal(t, "gmail.com", RegistrableDomain("gmail.com"))
	assert.Equal(t, "", RegistrableDomain(""))
}

func TestNormalizeMessageID(t *testing.T) {
	assert.Equal(t, "abc@host", NormalizeMessageID(" <abc@host> "))
}

func TestSplitMessageIDs(t *testing.T) {
	ids := SplitMessageIDs("<a@x> <b@y>,<c@z>")
	assert.Equal(t, []string{"a@x", "b@y", "c@z"}, ids)
	assert.Empty(t, SplitMessageIDs("   "))
}

func TestParseDateParam(t *testing.T) {
	d, err := ParseDateParam("2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), *d)

	d, err = ParseDateParam("2024-03-01T10:00:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, 8, d.Hour())

	d, err = ParseDateParam("")
	require.NoError(t, err)
	assert.Nil(t, d)

	_, err = ParseDateParam("yesterday")
	assert.Error(t, err)
}

func TestGenerateTrackingID(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		id := GenerateTrackingID()
		assert.Len(t, id, 21)
		_, dup := seen[id]
		assert.False(t, dup)
		seen[id] = struct{}{}
	}
	assert.Regexp(t, `^mbox_[0-9A-Za-z]{16}$`, GenerateNanoIDWithPrefix("mbox", 16))
}

func TestContextUserId(t *testing.T) {
	ctx := SetUserIdInContext(context.Background(), "user1")
	assert.Equal(t, "user1", GetUserIdFromContext(ctx))
	child := SetAppSourceInContext(ctx, "poller")
	assert.Equal(t, "poller", GetAppSourceFromContext(child))
	assert.Equal(t, "", GetAppSourceFromContext(ctx))
	assert.Equal(t, "", GetUserIdFromContext(context.Background()))
}
