package service

import (
	"context"
	"errors"
	"strings"

	"github.com/sandeepkv93/device-session-guard/internal/domain"
	"github.com/sandeepkv93/device-session-guard/internal/repository"
	"github.com/sandeepkv93/device-session-guard/internal/security"
)

const ProviderGoogle = "google"

type SocialSignInRequest struct {
	Provider   string
	OAuthToken string
	Device     DeviceContext
}

type LoginRequest struct {
	Email      string
	Password   string
	RememberMe *bool
	Device     DeviceContext
}

type LoginResult struct {
	User   *domain.User `json:"user"`
	Tokens *TokenPair   `json:"tokens"`
}

type AuthService struct {
	core      SessionCore
	users     repository.UserRepository
	roles     repository.RoleRepository
	passwords security.PasswordVerifier
	identity  IdentityVerifier
}

func NewAuthService(
	core SessionCore,
	users repository.UserRepository,
	roles repository.RoleRepository,
	passwords security.PasswordVerifier,
	identity IdentityVerifier,
) *AuthService {
	return &AuthService{core: core, users: users, roles: roles, passwords: passwords, identity: identity}
}

func (s *AuthService) SocialSignIn(ctx context.Context, req SocialSignInRequest) (*LoginResult, error) {
	provider := strings.ToLower(strings.TrimSpace(req.Provider))
	if provider == "" {
		return nil, validationError("provider is required")
	}
	if provider != ProviderGoogle {
		return nil, ErrUnsupportedProvider
	}
	if strings.TrimSpace(req.OAuthToken) == "" {
		return nil, validationError("oauth token is required")
	}

	ident, err := s.identity.Verify(ctx, strings.TrimSpace(req.OAuthToken))
	if err != nil {
		return nil, &Error{Kind: KindAuthentication, Message: "failed to verify google token", Err: err}
	}
	if ident.Email == "" {
		return nil, ErrEmailRequired
	}

	user, err := s.users.FindByEmail(ctx, ident.Email)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrUserNotFound):
		user, err = s.createSocialUser(ctx, ident)
		if err != nil {
			return nil, err
		}
	default:
		return nil, storeError("find user", err)
	}
	if !user.Active() {
		return nil, ErrInvalidCredentials
	}

	tokens, err := s.core.Issue(ctx, user, req.Device)
	if err != nil {
		return nil, err
	}
	return &LoginResult{User: user, Tokens: tokens}, nil
}

func (s *AuthService) createSocialUser(ctx context.Context, ident *ExternalIdentity) (*domain.User, error) {
	role, err := s.roles.FindByName(ctx, domain.DefaultUserRole)
	if err != nil {
		if errors.Is(err, repository.ErrRoleNotFound) {
			return nil, ErrRoleNotFound
		}
		return nil, storeError("find role", err)
	}
	user := &domain.User{
		Email:           ident.Email,
		FullName:        ident.FullName,
		FirstName:       ident.FirstName,
		LastName:        ident.LastName,
		ProfileImage:    ident.Picture,
		RoleID:          role.ID,
		Status:          domain.UserStatusActive,
		AccountVerified: ident.EmailVerified,
		GoogleID:        ident.Subject,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, storeError("create user", err)
	}
	user.Role = role
	return user, nil
}

func (s *AuthService) LoginUser(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		return nil, validationError("email and password are required")
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, storeError("find user", err)
	}
	if !user.Active() {
		return nil, ErrInvalidCredentials
	}
	if err := s.passwords.Verify(user.PasswordHash, req.Password); err != nil {
		return nil, ErrInvalidCredentials
	}
	if req.RememberMe != nil && *req.RememberMe != user.RememberMe {
		if err := s.users.UpdateRememberMe(ctx, user.ID, *req.RememberMe); err != nil {
			return nil, storeError("update remember me", err)
		}
		user.RememberMe = *req.RememberMe
	}

	tokens, err := s.core.Issue(ctx, user, req.Device)
	if err != nil {
		return nil, err
	}
	return &LoginResult{User: user, Tokens: tokens}, nil
}

func (s *AuthService) Refresh(ctx context.Context, req RefreshRequest) (*TokenPair, error) {
	return s.core.Refresh(ctx, req)
}

func (s *AuthService) Logout(ctx context.Context, accessToken string) error {
	return s.core.Logout(ctx, accessToken)
}
