package imap

import (
	"bytes"
	"errors"
	"testing"

	"github.com/emersion/go-imap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenLiteral struct{}

func (brokenLiteral) Read([]byte) (int, error) { return 0, errors.New("connection reset by peer") }

func (brokenLiteral) Len() int { return 128 }

// fetched builds a message the way the server returns it: the body is keyed
// by the response section, which never carries Peek.
func fetched(uid uint32, literal imap.Literal) *imap.Message {
	msg := imap.NewMessage(uid, nil)
	msg.Uid = uid
	msg.Body = map[*imap.BodySectionName]imap.Literal{{}: literal}
	return msg
}

func TestCollectRaw_SortsByUID(t *testing.T) {
	section := &imap.BodySectionName{Peek: true}
	messages := make(chan *imap.Message, 2)
	messages <- fetched(9, bytes.NewBufferString("second"))
	messages <- fetched(4, bytes.NewBufferString("first"))
	close(messages)

	raws, err := collectRaw(messages, section, 2)
	require.NoError(t, err)
	require.Len(t, raws, 2)
	assert.Equal(t, uint32(4), raws[0].UID)
	assert.Equal(t, []byte("first"), raws[0].Body)
	assert.Equal(t, uint32(9), raws[1].UID)
}

func TestCollectRaw_BodyReadErrorFailsBatch(t *testing.T) {
	section := &imap.BodySectionName{Peek: true}
	messages := make(chan *imap.Message, 3)
	messages <- fetched(1, bytes.NewBufferString("ok"))
	messages <- fetched(2, brokenLiteral{})
	messages <- fetched(3, bytes.NewBufferString("ok"))
	close(messages)

	raws, err := collectRaw(messages, section, 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "uid 2")
	assert.Nil(t, raws)
	assert.Empty(t, messages)
}
