package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	"google.golang.org/api/people/v1"

	"github.com/iota-uz/saaskit/modules/auth/domain"
	"github.com/iota-uz/saaskit/pkg/composables"
	"github.com/iota-uz/saaskit/pkg/identity"
	"github.com/iota-uz/saaskit/pkg/logging"
	"github.com/iota-uz/saaskit/pkg/serrors"
)

var (
	ErrInvalidCredentials = serrors.NewError(serrors.CodeUnauthenticated, "Invalid email or password", "Login.Errors.InvalidCredentials")
	ErrEmailTaken         = serrors.NewError(serrors.CodeValidationFailed, "An account with this email already exists", "Signup.Errors.EmailTaken")
	ErrBanned             = serrors.NewError(serrors.CodeForbidden, "This account has been banned", "Login.Errors.Banned")
	ErrInvalidResetToken  = serrors.NewError(serrors.CodeValidationFailed, "The reset link is invalid or has expired", "ForgotPassword.Errors.InvalidToken")
	ErrGoogleDisabled     = serrors.NewError(serrors.CodeNotFound, "Google sign-in is not configured", "Login.Errors.GoogleDisabled")
)

type AuthServiceOptions struct {
	BcryptCost    int
	ResetTokenTTL time.Duration
	// Origin prefixes the links sent by e-mail.
	Origin string
	// Google is nil when Google sign-in is not configured.
	Google *oauth2.Config
	Logger logrus.FieldLogger
	// InTx defaults to composables.InTx.
	InTx func(ctx context.Context, fn func(context.Context) error) error
}

type AuthService struct {
	users         domain.UserRepository
	accounts      domain.AccountRepository
	verifications domain.VerificationRepository
	sessions      *SessionService
	mailer        Mailer
	opts          AuthServiceOptions
	now           func() time.Time
}

func NewAuthService(
	users domain.UserRepository,
	accounts domain.AccountRepository,
	verifications domain.VerificationRepository,
	sessions *SessionService,
	mailer Mailer,
	opts AuthServiceOptions,
) *AuthService {
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.ResetTokenTTL == 0 {
		opts.ResetTokenTTL = time.Hour
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.InTx == nil {
		opts.InTx = composables.InTx
	}
	return &AuthService{
		users:         users,
		accounts:      accounts,
		verifications: verifications,
		sessions:      sessions,
		mailer:        mailer,
		opts:          opts,
		now:           sessions.now,
	}
}

type SignUpDTO struct {
	Name     string
	Email    string
	Password string
}

// SignUp creates the user and signs them in within one transaction.
func (s *AuthService) SignUp(ctx context.Context, dto SignUpDTO) (*identity.User, *http.Cookie, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(dto.Password), s.opts.BcryptCost)
	if err != nil {
		return nil, nil, err
	}

	now := s.now()
	u := &identity.User{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(dto.Name),
		Email:     strings.ToLower(strings.TrimSpace(dto.Email)),
		Role:      identity.RoleUser,
		CreatedAt: now,
		UpdatedAt: now,
	}
	var cookie *http.Cookie
	err = s.opts.InTx(ctx, func(txCtx context.Context) error {
		if _, err := s.users.GetByEmail(txCtx, u.Email); err == nil {
			return ErrEmailTaken
		} else if !errors.Is(err, domain.ErrUserNotFound) {
			return err
		}
		if err := s.users.Create(txCtx, u, string(hash)); err != nil {
			return err
		}
		_, cookie, err = s.sessions.Create(txCtx, u.ID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	logging.Log(s.opts.Logger, logging.LevelInfo, identity.New(identity.AuthSession{User: *u}, identity.Membership{}), "user signed up", nil)
	return u, cookie, nil
}

// SignIn checks the password and opens a session. Unknown e-mails and wrong
// passwords produce the same error. A ban that has run out is lifted here.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (*identity.User, *http.Cookie, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, nil, err
	}
	hash, err := s.users.PasswordHash(ctx, u.ID)
	if err != nil {
		return nil, nil, err
	}
	if hash == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return nil, nil, ErrInvalidCredentials
	}
	if err := s.checkBan(ctx, u); err != nil {
		return nil, nil, err
	}
	_, cookie, err := s.sessions.Create(ctx, u.ID)
	if err != nil {
		return nil, nil, err
	}
	return u, cookie, nil
}

func (s *AuthService) checkBan(ctx context.Context, u *identity.User) error {
	if !u.Banned {
		return nil
	}
	if u.IsBanned(s.now()) {
		if u.BanReason != "" {
			return ErrBanned.WithMessage("This account has been banned: " + u.BanReason)
		}
		return ErrBanned
	}
	u.Banned, u.BanReason, u.BanExpires = false, "", nil
	u.UpdatedAt = s.now()
	return s.users.Update(ctx, u)
}

// RequestPasswordReset mails a reset link when the address is known. It reports
// success either way so addresses cannot be probed.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	token, err := newToken()
	if err != nil {
		return err
	}
	now := s.now()
	if err := s.verifications.Create(ctx, &domain.Verification{
		ID:         uuid.NewString(),
		Identifier: "reset-password:" + u.ID,
		Value:      token,
		ExpiresAt:  now.Add(s.opts.ResetTokenTTL),
		CreatedAt:  now,
	}); err != nil {
		return err
	}
	return s.mailer.SendPasswordReset(ctx, u.Email, s.opts.Origin+"/forgot-password/validate?token="+token)
}

// ResetPassword consumes token, sets the new password and signs the user out
// everywhere.
func (s *AuthService) ResetPassword(ctx context.Context, token, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.opts.BcryptCost)
	if err != nil {
		return err
	}
	return s.opts.InTx(ctx, func(txCtx context.Context) error {
		v, err := s.verifications.Consume(txCtx, token)
		if errors.Is(err, domain.ErrVerificationNotFound) {
			return ErrInvalidResetToken
		}
		if err != nil {
			return err
		}
		userID, ok := strings.CutPrefix(v.Identifier, "reset-password:")
		if !ok || v.Expired(s.now()) {
			return ErrInvalidResetToken
		}
		if err := s.users.SetPassword(txCtx, userID, string(hash)); err != nil {
			return err
		}
		_, err = s.sessions.RevokeUserSessions(txCtx, userID)
		return err
	})
}

func (s *AuthService) GoogleEnabled() bool {
	return s.opts.Google != nil
}

func (s *AuthService) GoogleAuthURL(state string) (string, error) {
	if s.opts.Google == nil {
		return "", ErrGoogleDisabled
	}
	return s.opts.Google.AuthCodeURL(state, oauth2.AccessTypeOnline), nil
}

// GoogleProfile is the part of a Google account the sign in flow uses.
type GoogleProfile struct {
	ID    string
	Email string
	Name  string
	Image string
}

func (s *AuthService) fetchGoogleProfile(ctx context.Context, code string) (*GoogleProfile, error) {
	token, err := s.opts.Google.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}
	svc, err := people.NewService(ctx, option.WithTokenSource(s.opts.Google.TokenSource(ctx, token)))
	if err != nil {
		return nil, err
	}
	p, err := svc.People.Get("people/me").PersonFields("emailAddresses,names,photos").Do()
	if err != nil {
		return nil, err
	}
	if len(p.EmailAddresses) == 0 {
		return nil, ErrInvalidCredentials
	}
	profile := &GoogleProfile{ID: strings.TrimPrefix(p.ResourceName, "people/"), Email: p.EmailAddresses[0].Value}
	if len(p.Names) > 0 {
		profile.Name = p.Names[0].DisplayName
	}
	if len(p.Photos) > 0 {
		profile.Image = p.Photos[0].Url
	}
	return profile, nil
}

// GoogleSignIn exchanges the OAuth code and signs the matching user in,
// creating and linking the account on first use.
func (s *AuthService) GoogleSignIn(ctx context.Context, code string) (*identity.User, *http.Cookie, error) {
	if s.opts.Google == nil {
		return nil, nil, ErrGoogleDisabled
	}
	profile, err := s.fetchGoogleProfile(ctx, code)
	if err != nil {
		return nil, nil, err
	}
	return s.SignInWithProfile(ctx, domain.ProviderGoogle, profile)
}

func (s *AuthService) SignInWithProfile(ctx context.Context, provider string, profile *GoogleProfile) (*identity.User, *http.Cookie, error) {
	var (
		u      *identity.User
		cookie *http.Cookie
	)
	err := s.opts.InTx(ctx, func(txCtx context.Context) error {
		var err error
		u, err = s.userForProfile(txCtx, provider, profile)
		if err != nil {
			return err
		}
		if err := s.checkBan(txCtx, u); err != nil {
			return err
		}
		_, cookie, err = s.sessions.Create(txCtx, u.ID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return u, cookie, nil
}

func (s *AuthService) userForProfile(ctx context.Context, provider string, profile *GoogleProfile) (*identity.User, error) {
	acc, err := s.accounts.Find(ctx, provider, profile.ID)
	if err == nil {
		return s.users.GetByID(ctx, acc.UserID)
	}
	if !errors.Is(err, domain.ErrAccountNotFound) {
		return nil, err
	}

	now := s.now()
	u, err := s.users.GetByEmail(ctx, profile.Email)
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		u = &identity.User{
			ID:            uuid.NewString(),
			Name:          profile.Name,
			Email:         strings.ToLower(profile.Email),
			EmailVerified: true,
			Image:         profile.Image,
			Role:          identity.RoleUser,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.users.Create(ctx, u, ""); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	}

	if err := s.accounts.Create(ctx, &domain.Account{
		ID:         uuid.NewString(),
		UserID:     u.ID,
		ProviderID: provider,
		AccountID:  profile.ID,
		CreatedAt:  now,
	}); err != nil {
		return nil, err
	}
	return u, nil
}
