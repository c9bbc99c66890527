package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTer_IssueParse(t *testing.T) {
	j := &JWTer{Secret: []byte("k"), Issuer: "account-service", TTL: time.Hour}

	tok, exp, err := j.Issue("u-1", "a@b.co")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	c, err := j.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "u-1", c.UID)
	assert.Equal(t, "a@b.co", c.Email)
}

func TestJWTer_Rejects(t *testing.T) {
	j := &JWTer{Secret: []byte("k"), Issuer: "iss", TTL: time.Minute}
	tok, _, err := j.Issue("u-1", "a@b.co")
	require.NoError(t, err)

	other := &JWTer{Secret: []byte("other"), Issuer: "iss", TTL: time.Minute}
	_, err = other.Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	wrongIss := &JWTer{Secret: []byte("k"), Issuer: "x", TTL: time.Minute}
	_, err = wrongIss.Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = j.Parse("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTer_Expired(t *testing.T) {
	base := time.Now()
	j := &JWTer{Secret: []byte("k"), Issuer: "iss", TTL: time.Minute, Now: func() time.Time { return base }}
	tok, _, err := j.Issue("u-1", "a@b.co")
	require.NoError(t, err)

	j.Now = func() time.Time { return base.Add(10 * time.Minute) }
	_, err = j.Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
