package users

import (
	"context"
	"errors"
	"strings"

	"github.com/prepwise/prepwise/backend/auth-service/internal/models"
	"github.com/prepwise/prepwise/backend/auth-service/internal/password"
	"github.com/prepwise/prepwise/backend/auth-service/internal/validation"
)

var (
	// ErrInvalidCredentials is deliberately identical for "no such user" and
	// "wrong password" to resist account enumeration.
	ErrInvalidCredentials = errors.New("Invalid email or password")
	// ErrPasswordlessAccount means the identity was created via federated
	// sign-in and carries no password hash.
	ErrPasswordlessAccount = errors.New("Please sign in with Google for this account")
)

// ValidationError is a user-correctable input failure. Details carries the
// full list of violated rules when more than one applies.
type ValidationError struct {
	Message string
	Details string
}

func (e *ValidationError) Error() string { return e.Message }

// SignUpInput is the raw sign-up form.
type SignUpInput struct {
	Name            string
	Email           string
	Password        string
	ConfirmPassword string
}

// Service encapsulates identity business logic over the credential store.
type Service struct {
	repo   UserRepository
	hasher *password.Hasher
}

func NewService(r UserRepository, h *password.Hasher) *Service {
	return &Service{repo: r, hasher: h}
}

// SignUp validates the form, enforces email uniqueness and persists a new
// identity with a hashed secret. The caller issues tokens afterwards.
func (s *Service) SignUp(ctx context.Context, in SignUpInput) (*models.User, error) {
	if !validation.IsValidEmail(in.Email) {
		return nil, &ValidationError{Message: "Invalid email format"}
	}
	if !validation.IsValidName(in.Name) {
		return nil, &ValidationError{Message: "Name must be between 2-50 characters and contain only letters and spaces"}
	}
	if in.Password != in.ConfirmPassword {
		return nil, &ValidationError{Message: "Passwords do not match"}
	}
	if rules := password.ValidatePolicy(in.Password); len(rules) > 0 {
		return nil, &ValidationError{Message: "Password validation failed", Details: strings.Join(rules, ", ")}
	}

	email := validation.NormalizeEmail(in.Email)
	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if err != ErrNotFound {
		return nil, err
	}

	digest, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	u := &models.User{
		Email:        email,
		Name:         validation.SanitizeString(in.Name),
		PasswordHash: digest,
	}
	// the unique index catches a concurrent sign-up with the same email
	return s.repo.Create(ctx, u)
}

// SignIn authenticates an email/password pair. Absent identity and wrong
// secret collapse into the same ErrInvalidCredentials.
func (s *Service) SignIn(ctx context.Context, email, pass string) (*models.User, error) {
	if !validation.IsValidEmail(email) {
		return nil, &ValidationError{Message: "Invalid email format"}
	}
	if pass == "" {
		return nil, &ValidationError{Message: "Password is required"}
	}

	u, err := s.repo.FindByEmail(ctx, validation.NormalizeEmail(email))
	if err != nil {
		if err == ErrNotFound {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if u.PasswordHash == "" {
		return nil, ErrPasswordlessAccount
	}
	if !s.hasher.Verify(pass, u.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// ResolveFederated maps a verified federated assertion to a local identity,
// creating a verified passwordless one when absent. Repeated assertions for
// the same email resolve to the same identity; a creation race falls back
// to the winner's row.
func (s *Service) ResolveFederated(ctx context.Context, email, name string) (*models.User, error) {
	norm := validation.NormalizeEmail(email)
	u, err := s.repo.FindByEmail(ctx, norm)
	if err == nil {
		return u, nil
	}
	if err != ErrNotFound {
		return nil, err
	}
	if name == "" {
		name = "Google User"
	}
	created, err := s.repo.Create(ctx, &models.User{
		Email:      norm,
		Name:       validation.SanitizeString(name),
		IsVerified: true,
	})
	if err == ErrEmailTaken {
		return s.repo.FindByEmail(ctx, norm)
	}
	return created, err
}

// GetByID resolves an identity; used by the per-request verifier and the
// profile endpoints.
func (s *Service) GetByID(ctx context.Context, id string) (*models.User, error) {
	return s.repo.FindByID(ctx, id)
}

// UpdateProfile changes the display name.
func (s *Service) UpdateProfile(ctx context.Context, id, name string) (*models.User, error) {
	if !validation.IsValidName(name) {
		return nil, &ValidationError{Message: "Name must be between 2-50 characters and contain only letters and spaces"}
	}
	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	u.Name = validation.SanitizeString(name)
	return s.repo.Update(ctx, u)
}

// SetAvatarURL records the stored avatar object location on the identity.
func (s *Service) SetAvatarURL(ctx context.Context, id, url string) (*models.User, error) {
	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	u.AvatarURL = url
	return s.repo.Update(ctx, u)
}

// DeleteAccount removes the identity row. Session revocation is the
// caller's concern.
func (s *Service) DeleteAccount(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}
