package app

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"spherelink/internal/domain"
)

// Identity turns the authenticated subject (an email address) into a user record.
type Identity struct{ users domain.UserDirectory }

func NewIdentity(u domain.UserDirectory) *Identity { return &Identity{users: u} }

func (i *Identity) CurrentUser(ctx context.Context, email string) (domain.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return domain.User{}, domain.Unauthenticated("Authentication required")
	}
	return i.users.UserByEmail(ctx, email)
}

// UserByEmail looks up any user by address. The lookup is exact after trimming.
func (i *Identity) UserByEmail(ctx context.Context, email string) (domain.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return domain.User{}, domain.Validation("email is required")
	}
	return i.users.UserByEmail(ctx, email)
}

func (i *Identity) UserByID(ctx context.Context, id uuid.UUID) (domain.User, error) {
	return i.users.UserByID(ctx, id)
}
