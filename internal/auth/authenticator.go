// Package auth verifies user identities and issues session tokens.
package auth

import (
	"context"
	"strings"

	"github.com/mmynk/groupledger/internal/models"
)

// Authenticator registers users and checks their credentials.
// PasswordAuthenticator is the only implementation today.
type Authenticator interface {
	// Register creates a user account. The credential format depends on the
	// implementation.
	Register(ctx context.Context, email, displayName, credential string) (*models.User, error)

	// Authenticate returns the user whose credential matches, or
	// ErrInvalidCredentials.
	Authenticate(ctx context.Context, email, credential string) (*models.User, error)

	// ValidateCredential rejects credentials that may not be registered.
	ValidateCredential(credential string) error
}

// NormalizeEmail trims and lower-cases an address so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
