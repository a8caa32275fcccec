// internal/auth/verifier.go
package auth

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrMissingCredential = errors.New("missing or malformed bearer credential")
	ErrInvalidCredential = errors.New("credential failed verification")
	ErrVerifierTimeout   = errors.New("identity provider did not respond in time")
)

// Identity is the verified caller behind a bearer token.
type Identity struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Verifier checks a bearer token against an identity provider. Every call
// re-verifies; nothing is cached.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

type VerifierFunc func(ctx context.Context, token string) (*Identity, error)

func (f VerifierFunc) Verify(ctx context.Context, token string) (*Identity, error) {
	return f(ctx, token)
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" value.
func BearerToken(header string) (string, error) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", ErrMissingCredential
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", ErrMissingCredential
	}
	return token, nil
}

type timeoutVerifier struct {
	next    Verifier
	timeout time.Duration
}

// WithTimeout bounds every verification. A call that outlives the deadline
// fails with ErrVerifierTimeout.
func WithTimeout(next Verifier, timeout time.Duration) Verifier {
	return &timeoutVerifier{next: next, timeout: timeout}
}

func (v *timeoutVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	type outcome struct {
		identity *Identity
		err      error
	}
	done := make(chan outcome, 1)
	go func() {
		identity, err := v.next.Verify(ctx, token)
		done <- outcome{identity, err}
	}()

	select {
	case out := <-done:
		if out.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrVerifierTimeout
		}
		return out.identity, out.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrVerifierTimeout
		}
		return nil, ctx.Err()
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
