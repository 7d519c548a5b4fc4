package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	issuer, err := NewIssuer(&Config{Secret: "test-secret", TTL: time.Minute})
	require.NoError(t, err)

	signed, exp, err := issuer.Issue("cand-1", "sess-1")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), exp, 2*time.Second)

	claims, err := issuer.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, "cand-1", claims.Subject)
	assert.Equal(t, "sess-1", claims.SessionID)
}

func TestParseRejectsExpired(t *testing.T) {
	issuer, err := NewIssuer(&Config{Secret: "test-secret", TTL: time.Minute})
	require.NoError(t, err)
	issuer.now = func() time.Time { return time.Now().Add(-time.Hour) }

	signed, _, err := issuer.Issue("cand-1", "sess-1")
	require.NoError(t, err)

	issuer.now = time.Now
	_, err = issuer.Parse(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsOtherSecretAndAlgorithm(t *testing.T) {
	issuer, err := NewIssuer(&Config{Secret: "test-secret"})
	require.NoError(t, err)
	other, err := NewIssuer(&Config{Secret: "other-secret"})
	require.NoError(t, err)

	signed, _, err := other.Issue("cand-1", "sess-1")
	require.NoError(t, err)
	_, err = issuer.Parse(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, RoomClaims{SessionID: "sess-1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = issuer.Parse(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewIssuer(&Config{})
	assert.Error(t, err)
}
