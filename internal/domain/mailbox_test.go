package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMailboxSession(t *testing.T) {
	account := &Account{Address: "ab12cd34@example.test", Password: "secret", Token: "tok"}

	s := NewMailboxSession(42, account)

	assert.NotEmpty(t, s.ID)
	assert.Equal(t, OwnerID(42), s.Owner)
	assert.Equal(t, "ab12cd34@example.test", s.Address)
	assert.Equal(t, "tok", s.AuthToken)
	assert.Empty(t, s.Seen)
	assert.False(t, s.CreatedAt.IsZero())

	other := NewMailboxSession(42, account)
	assert.NotEqual(t, s.ID, other.ID)
}

func TestMailboxSession_Clone(t *testing.T) {
	s := NewMailboxSession(1, &Account{Address: "a@b.c", Token: "t"})
	s.Seen["m1"] = struct{}{}

	c := s.Clone()
	c.Seen["m2"] = struct{}{}

	assert.True(t, s.HasSeen("m1"))
	assert.False(t, s.HasSeen("m2"))
	assert.Equal(t, []string{"m1", "m2"}, c.SeenIDs())
}

func TestParseOwnerID(t *testing.T) {
	id, err := ParseOwnerID("-100123")
	require.NoError(t, err)
	assert.Equal(t, OwnerID(-100123), id)
	assert.Equal(t, "-100123", id.String())

	_, err = ParseOwnerID("abc")
	assert.Error(t, err)
}
