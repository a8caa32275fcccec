package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBearerToken(t *testing.T) {
	token, err := BearerToken("Bearer abc.def")
	require.NoError(t, err)
	assert.Equal(t, "abc.def", token)

	for _, header := range []string{"", "Bearer", "Bearer   ", "Basic abc", "abc"} {
		_, err := BearerToken(header)
		assert.ErrorIs(t, err, ErrMissingCredential, header)
	}
}

func TestJWTVerifierRoundTrip(t *testing.T) {
	v := NewJWTVerifier("secret", "apporbit")
	token, err := v.GenerateJWT("A@X.com", "A", time.Hour)
	require.NoError(t, err)

	identity, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", identity.Email)
	assert.Equal(t, "A", identity.Name)
}

func TestJWTVerifierRejects(t *testing.T) {
	v := NewJWTVerifier("secret", "apporbit")

	foreign, err := NewJWTVerifier("other", "apporbit").GenerateJWT("a@x.com", "", time.Hour)
	require.NoError(t, err)
	_, err = v.Verify(context.Background(), foreign)
	assert.ErrorIs(t, err, ErrInvalidCredential)

	expired, err := v.GenerateJWT("a@x.com", "", -time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(context.Background(), expired)
	assert.ErrorIs(t, err, ErrInvalidCredential)

	wrongIssuer, err := NewJWTVerifier("secret", "elsewhere").GenerateJWT("a@x.com", "", time.Hour)
	require.NoError(t, err)
	_, err = v.Verify(context.Background(), wrongIssuer)
	assert.ErrorIs(t, err, ErrInvalidCredential)

	_, err = v.Verify(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestWithTimeout(t *testing.T) {
	slow := VerifierFunc(func(ctx context.Context, _ string) (*Identity, error) {
		select {
		case <-time.After(time.Second):
			return &Identity{Email: "late@x.com"}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})

	_, err := WithTimeout(slow, 20*time.Millisecond).Verify(context.Background(), "t")
	assert.ErrorIs(t, err, ErrVerifierTimeout)

	fast := VerifierFunc(func(context.Context, string) (*Identity, error) {
		return &Identity{Email: "a@x.com"}, nil
	})
	identity, err := WithTimeout(fast, time.Second).Verify(context.Background(), "t")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", identity.Email)
}
