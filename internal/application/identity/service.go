package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fieldsales/vendorsync/internal/domain/shared"
	"github.com/fieldsales/vendorsync/internal/infrastructure/auth"
	"github.com/fieldsales/vendorsync/internal/infrastructure/gateway"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Errors specific to the offline login path
var (
	ErrNoOfflineCredentials = shared.NewDomainError("NO_OFFLINE_CREDENTIALS",
		"No hay credenciales guardadas. Necesita conexión para el primer login.")
	ErrNoCachedUser = shared.NewDomainError("NO_CACHED_USER",
		"No hay datos del usuario. Necesita conexión.")
	// ErrLoginFailed wraps both causes when neither login path worked
	ErrLoginFailed = shared.NewDomainError("LOGIN_FAILED", "Error de login")
)

// Authenticator performs the online login
type Authenticator interface {
	Login(ctx context.Context, username, password string) (*gateway.User, error)
}

// TokenStore is the session token collaborator
type TokenStore interface {
	Get(ctx context.Context) (string, bool, error)
	Clear(ctx context.Context) error
}

// CredentialStore remembers the last online login
type CredentialStore interface {
	Remember(ctx context.Context, username, password string) error
	Verify(ctx context.Context, username, password string) error
	Forget(ctx context.Context) error
}

// Service handles vendor sign-in and sign-out
type Service struct {
	authenticator Authenticator
	tokens        TokenStore
	credentials   CredentialStore
	kv            shared.KeyValueStore
	validate      *validator.Validate
	now           func() time.Time
	logger        *zap.Logger
}

// NewService creates a new identity service
func NewService(
	authenticator Authenticator,
	tokens TokenStore,
	credentials CredentialStore,
	kv shared.KeyValueStore,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		authenticator: authenticator,
		tokens:        tokens,
		credentials:   credentials,
		kv:            kv,
		validate:      validator.New(),
		now:           time.Now,
		logger:        logger,
	}
}

// Login tries the server first. When the server cannot be reached the
// credentials are checked against the ones remembered by the last online
// login. A server that answers and rejects the credentials is final.
func (s *Service) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	input.Username = strings.TrimSpace(input.Username)
	if err := s.validate.StructCtx(ctx, input); err != nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Por favor ingrese usuario y contraseña")
	}

	s.logger.Info("Login attempt", zap.String("username", input.Username))

	wireUser, err := s.authenticator.Login(ctx, input.Username, input.Password)
	if err == nil {
		return s.completeOnline(ctx, input, wireUser)
	}

	if rejected(err) {
		s.logger.Warn("Login rejected by server", zap.String("username", input.Username), zap.Error(err))
		return nil, shared.NewDomainError("INVALID_CREDENTIALS", rejectionMessage(err))
	}

	s.logger.Warn("Online login failed, trying offline", zap.Error(err))
	result, offlineErr := s.loginOffline(ctx, input)
	if offlineErr != nil {
		if errors.Is(offlineErr, shared.ErrInvalidCredentials) {
			return nil, offlineErr
		}
		return nil, fmt.Errorf("%w: online: %w, offline: %w", ErrLoginFailed, err, offlineErr)
	}
	return result, nil
}

func (s *Service) completeOnline(ctx context.Context, input LoginInput, wireUser *gateway.User) (*LoginResult, error) {
	user := userFromWire(wireUser, input.Username, s.now())
	if err := s.kv.SetJSON(ctx, shared.KeyVendorUser, user); err != nil {
		return nil, fmt.Errorf("failed to cache user: %w", err)
	}
	if err := s.credentials.Remember(ctx, input.Username, input.Password); err != nil {
		// offline login will not be available; the online session is still valid
		s.logger.Error("Failed to remember credentials", zap.Error(err))
	}

	s.logger.Info("Login successful",
		zap.String("user_id", user.ID),
		zap.String("username", user.Username),
	)
	return &LoginResult{User: user}, nil
}

func (s *Service) loginOffline(ctx context.Context, input LoginInput) (*LoginResult, error) {
	if err := s.credentials.Verify(ctx, input.Username, input.Password); err != nil {
		if errors.Is(err, auth.ErrNoCredentials) {
			return nil, ErrNoOfflineCredentials
		}
		return nil, err
	}

	var user User
	ok, err := s.kv.GetJSON(ctx, shared.KeyVendorUser, &user)
	if err != nil || !ok {
		if err != nil {
			s.logger.Warn("Cached user unreadable", zap.Error(err))
		}
		return nil, ErrNoCachedUser
	}

	s.logger.Info("Offline login successful", zap.String("username", user.Username))
	return &LoginResult{User: user, Offline: true}, nil
}

// Logout clears the token, the cached user and the remembered credentials
func (s *Service) Logout(ctx context.Context) error {
	var errs []error
	if err := s.tokens.Clear(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.kv.Delete(ctx, shared.KeyVendorUser); err != nil {
		errs = append(errs, fmt.Errorf("failed to clear user: %w", err))
	}
	if err := s.credentials.Forget(ctx); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	s.logger.Info("Logged out")
	return nil
}

// CurrentUser returns the cached vendor, if any
func (s *Service) CurrentUser(ctx context.Context) (*User, bool, error) {
	var user User
	ok, err := s.kv.GetJSON(ctx, shared.KeyVendorUser, &user)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read user: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return &user, true, nil
}

// IsAuthenticated reports whether a session token is stored
func (s *Service) IsAuthenticated(ctx context.Context) (bool, error) {
	_, ok, err := s.tokens.Get(ctx)
	return ok, err
}

// rejected reports whether the server answered and refused the login
func rejected(err error) bool {
	if errors.Is(err, gateway.ErrLoginRejected) || errors.Is(err, gateway.ErrInvalidRequest) {
		return true
	}
	var httpErr *gateway.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode < http.StatusInternalServerError
	}
	var remote *gateway.RemoteError
	return errors.As(err, &remote)
}

func rejectionMessage(err error) string {
	var remote *gateway.RemoteError
	if errors.As(err, &remote) && remote.Message != "" {
		return remote.Message
	}
	if errors.Is(err, gateway.ErrLoginRejected) {
		if _, msg, ok := strings.Cut(err.Error(), gateway.ErrLoginRejected.Error()+": "); ok && msg != "" {
			return msg
		}
	}
	return shared.ErrInvalidCredentials.Message
}
