package service

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/greencore/api/internal/apperr"
	"github.com/greencore/api/internal/mailer"
	"github.com/greencore/api/internal/model"
	"github.com/greencore/api/internal/repository"
	"github.com/greencore/api/internal/validation"
)

// TokenPair is one access/refresh token issuance. ExpiresIn is the
// access token lifetime in seconds.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// AccessClaims is the verified identity carried by an access token.
type AccessClaims struct {
	UserID string
	Role   string
}

// OAuthProfile is the normalized identity returned by an OAuth provider.
type OAuthProfile struct {
	Provider   string
	ProviderID string
	Email      string
	Name       string
	AvatarURL  string
}

// AuthOptions bundles the token and lockout knobs from configuration.
type AuthOptions struct {
	AccessSecret       string
	RefreshSecret      string
	AccessExpiry       time.Duration
	RefreshExpiry      time.Duration
	ResetExpiry        time.Duration
	BcryptCost         int
	MaxSessions        int
	LockoutMaxAttempts int
	LockoutDuration    time.Duration
	IsProduction       bool
}

type AuthService struct {
	userRepository    repository.UserRepository
	sessionRepository repository.SessionRepository
	mailer            *mailer.Mailer
	opts              AuthOptions
}

func NewAuthService(
	userRepository repository.UserRepository,
	sessionRepository repository.SessionRepository,
	mailer *mailer.Mailer,
	opts AuthOptions,
) *AuthService {
	return &AuthService{
		userRepository:    userRepository,
		sessionRepository: sessionRepository,
		mailer:            mailer,
		opts:              opts,
	}
}

func (s *AuthService) Register(name, username, email, password string) (*model.User, *TokenPair, error) {
	name = strings.TrimSpace(name)
	username = strings.ToLower(strings.TrimSpace(username))
	email = strings.TrimSpace(strings.ToLower(email))

	if err := validation.ValidateName(name); err != nil {
		return nil, nil, apperr.Validation(err.Error())
	}
	if err := validation.ValidateUsername(username); err != nil {
		return nil, nil, apperr.Validation(err.Error())
	}
	if err := validation.ValidateEmail(email); err != nil {
		return nil, nil, apperr.Validation(err.Error())
	}
	if err := validation.ValidatePassword(password); err != nil {
		return nil, nil, apperr.Validation(err.Error())
	}

	hash, err := s.HashPassword(password)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	user := &model.User{
		ID:           uuid.New().String(),
		Name:         name,
		Username:     username,
		Email:        email,
		PasswordHash: &hash,
		Role:         model.RoleUser,
		Provider:     model.ProviderLocal,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.userRepository.Create(user)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateUsername) {
			return nil, nil, apperr.Conflict("username already taken")
		}
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, nil, apperr.Conflict("email already registered")
		}
		return nil, nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.mailer.Enqueue(s.mailer.WelcomeMessage(user.Email, user.Name))

	tokens, err := s.issueTokens(user)
	if err != nil {
		return nil, nil, err
	}

	slog.Info("user registered", "user_id", user.ID, "email", user.Email)
	return user, tokens, nil
}

// Login authenticates by email or username. Failed attempts count toward
// lockout; an expired lock resets lazily on the next attempt.
func (s *AuthService) Login(identifier, password string) (*model.User, *TokenPair, error) {
	identifier = strings.TrimSpace(identifier)
	now := time.Now()

	var user *model.User
	var err error
	// Usernames and emails are stored lowercase, so lookups fold case.
	if strings.Contains(identifier, "@") {
		user, err = s.userRepository.ByEmail(strings.ToLower(identifier))
	} else {
		user, err = s.userRepository.ByUsername(strings.ToLower(identifier))
	}
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, nil, apperr.Authentication("invalid credentials")
		}
		return nil, nil, fmt.Errorf("failed to get user: %w", err)
	}

	if user.IsLocked(now) {
		return nil, nil, apperr.AccountLocked(*user.LockedUntil)
	}
	if user.LockedUntil != nil {
		// Lock expired, start a fresh attempt window.
		user.LockedUntil = nil
		user.LoginAttempts = 0
	}

	if !user.HasPassword() {
		return nil, nil, apperr.Authentication(fmt.Sprintf("this account signs in with %s", user.Provider))
	}

	err = s.ComparePassword(password, *user.PasswordHash)
	if err != nil {
		user.LoginAttempts++
		if user.LoginAttempts >= s.opts.LockoutMaxAttempts {
			until := now.Add(s.opts.LockoutDuration)
			user.LockedUntil = &until
			if updateErr := s.userRepository.Update(user); updateErr != nil {
				slog.Error("failed to persist account lock", "error", updateErr, "user_id", user.ID)
			}
			s.mailer.Enqueue(s.mailer.AccountLockedMessage(user.Email, user.Name, until))
			slog.Warn("account locked", "user_id", user.ID, "attempts", user.LoginAttempts)
			return nil, nil, apperr.AccountLocked(until)
		}
		if updateErr := s.userRepository.Update(user); updateErr != nil {
			slog.Error("failed to persist login attempt", "error", updateErr, "user_id", user.ID)
		}
		return nil, nil, apperr.Authentication("invalid credentials")
	}

	if !user.IsActive {
		return nil, nil, apperr.Forbidden("account is deactivated")
	}

	user.LoginAttempts = 0
	user.LockedUntil = nil
	user.LastLoginAt = &now
	err = s.userRepository.Update(user)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to update user: %w", err)
	}

	tokens, err := s.issueTokens(user)
	if err != nil {
		return nil, nil, err
	}

	slog.Info("user logged in", "user_id", user.ID)
	return user, tokens, nil
}

// Refresh rotates a refresh token: the presented token is revoked and a
// new pair is issued. A syntactically valid token with no matching
// session means it was already rotated, so every session for that user
// is revoked.
func (s *AuthService) Refresh(refreshToken string) (*model.User, *TokenPair, error) {
	claims, err := s.verifyRefreshToken(refreshToken)
	if err != nil {
		return nil, nil, err
	}

	userID, _ := claims["sub"].(string)
	hash := hashToken(refreshToken)

	session, err := s.sessionRepository.ByTokenHash(hash)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			if delErr := s.sessionRepository.DeleteByUser(userID); delErr != nil {
				slog.Error("failed to revoke sessions after token reuse", "error", delErr, "user_id", userID)
			}
			slog.Warn("refresh token reuse detected, all sessions revoked", "user_id", userID)
			return nil, nil, apperr.Authentication("session compromised, please sign in again")
		}
		return nil, nil, fmt.Errorf("failed to look up session: %w", err)
	}

	if session.IsExpired(time.Now()) {
		if delErr := s.sessionRepository.DeleteByTokenHash(hash); delErr != nil && !errors.Is(delErr, repository.ErrSessionNotFound) {
			slog.Warn("failed to delete expired session", "error", delErr)
		}
		return nil, nil, apperr.TokenExpired()
	}

	user, err := s.userRepository.ByID(session.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, nil, apperr.Authentication("invalid refresh token")
		}
		return nil, nil, fmt.Errorf("failed to get user: %w", err)
	}
	if !user.IsActive {
		return nil, nil, apperr.Forbidden("account is deactivated")
	}

	err = s.sessionRepository.DeleteByTokenHash(hash)
	if err != nil && !errors.Is(err, repository.ErrSessionNotFound) {
		return nil, nil, fmt.Errorf("failed to rotate session: %w", err)
	}

	tokens, err := s.issueTokens(user)
	if err != nil {
		return nil, nil, err
	}

	return user, tokens, nil
}

// Logout revokes the presented refresh token. Unknown tokens are a
// no-op so logout is idempotent.
func (s *AuthService) Logout(refreshToken string) error {
	if refreshToken == "" {
		return nil
	}

	err := s.sessionRepository.DeleteByTokenHash(hashToken(refreshToken))
	if err != nil && !errors.Is(err, repository.ErrSessionNotFound) {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// ForgotPassword always reports success so email addresses cannot be
// enumerated. The plaintext reset token only ever travels by email.
func (s *AuthService) ForgotPassword(email string) error {
	email = strings.TrimSpace(strings.ToLower(email))

	user, err := s.userRepository.ByEmail(email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			slog.Info("password reset requested for unknown email", "email", email)
			return nil
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	if !user.HasPassword() {
		slog.Info("password reset requested for social account", "user_id", user.ID)
		return nil
	}

	token, err := generateToken()
	if err != nil {
		return fmt.Errorf("failed to generate reset token: %w", err)
	}

	hash := hashToken(token)
	expires := time.Now().Add(s.opts.ResetExpiry)
	user.ResetTokenHash = &hash
	user.ResetTokenExpires = &expires

	err = s.userRepository.Update(user)
	if err != nil {
		return fmt.Errorf("failed to save reset token: %w", err)
	}

	s.mailer.Enqueue(s.mailer.PasswordResetMessage(user.Email, user.Name, token))

	slog.Info("password reset link sent", "user_id", user.ID)
	return nil
}

// ResetPassword consumes a reset token, sets the new password and
// revokes every live session.
func (s *AuthService) ResetPassword(token, newPassword string) error {
	if err := validation.ValidatePassword(newPassword); err != nil {
		return apperr.Validation(err.Error())
	}

	user, err := s.userRepository.ByResetTokenHash(hashToken(token), time.Now())
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return apperr.Validation("invalid or expired reset token")
		}
		return fmt.Errorf("failed to look up reset token: %w", err)
	}

	hash, err := s.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	user.PasswordHash = &hash
	user.ResetTokenHash = nil
	user.ResetTokenExpires = nil
	user.LoginAttempts = 0
	user.LockedUntil = nil

	err = s.userRepository.Update(user)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	err = s.sessionRepository.DeleteByUser(user.ID)
	if err != nil {
		slog.Warn("failed to revoke sessions after password reset", "error", err, "user_id", user.ID)
	}

	slog.Info("password reset completed", "user_id", user.ID)
	return nil
}

// RecoverUsername emails the username linked to an address. Always
// reports success to prevent enumeration.
func (s *AuthService) RecoverUsername(email string) error {
	email = strings.TrimSpace(strings.ToLower(email))

	user, err := s.userRepository.ByEmail(email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			slog.Info("username recovery requested for unknown email", "email", email)
			return nil
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	s.mailer.Enqueue(s.mailer.UsernameRecoveryMessage(user.Email, user.Name, user.Username))
	return nil
}

// AuthenticateOAuth signs in (or provisions) a user from a verified
// provider profile. Match order: provider identity first, then email
// for account linking, then a fresh account.
func (s *AuthService) AuthenticateOAuth(profile OAuthProfile) (*model.User, *TokenPair, error) {
	email := strings.TrimSpace(strings.ToLower(profile.Email))
	if err := validation.ValidateEmail(email); err != nil {
		return nil, nil, apperr.Validation("oauth provider returned an invalid email")
	}

	now := time.Now()

	user, err := s.userRepository.ByProvider(profile.Provider, profile.ProviderID)
	if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		return nil, nil, fmt.Errorf("failed to look up provider identity: %w", err)
	}

	if user == nil {
		// No provider identity yet, link to an existing account by email.
		user, err = s.userRepository.ByEmail(email)
		if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
			return nil, nil, fmt.Errorf("failed to look up user: %w", err)
		}

		if user != nil {
			user.Provider = profile.Provider
			providerID := profile.ProviderID
			user.ProviderID = &providerID
			slog.Info("oauth identity linked", "user_id", user.ID, "provider", profile.Provider)
		} else {
			user, err = s.createOAuthUser(profile, email, now)
			if err != nil {
				return nil, nil, err
			}
		}
	}

	if !user.IsActive {
		return nil, nil, apperr.Forbidden("account is deactivated")
	}

	if profile.AvatarURL != "" {
		avatar := profile.AvatarURL
		user.AvatarURL = &avatar
	}
	user.LastLoginAt = &now
	user.LoginAttempts = 0
	user.LockedUntil = nil

	err = s.userRepository.Update(user)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to update user: %w", err)
	}

	tokens, err := s.issueTokens(user)
	if err != nil {
		return nil, nil, err
	}

	slog.Info("user authenticated via oauth", "user_id", user.ID, "provider", profile.Provider)
	return user, tokens, nil
}

func (s *AuthService) createOAuthUser(profile OAuthProfile, email string, now time.Time) (*model.User, error) {
	username, err := s.dedupedUsername(email, profile.Name)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(profile.Name)
	if name == "" {
		name = username
	}

	providerID := profile.ProviderID
	user := &model.User{
		ID:         uuid.New().String(),
		Name:       name,
		Username:   username,
		Email:      email,
		Role:       model.RoleUser,
		Provider:   profile.Provider,
		ProviderID: &providerID,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
		// PasswordHash stays NULL; social accounts have no local password.
	}

	err = s.userRepository.Create(user)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth user: %w", err)
	}

	s.mailer.Enqueue(s.mailer.WelcomeMessage(user.Email, user.Name))

	slog.Info("new oauth user created", "user_id", user.ID, "provider", profile.Provider)
	return user, nil
}

// dedupedUsername derives a username from the email local part (or the
// display name as fallback) and appends a numeric suffix until free.
func (s *AuthService) dedupedUsername(email, name string) (string, error) {
	base := email
	if at := strings.Index(base, "@"); at > 0 {
		base = base[:at]
	}
	base = sanitizeUsername(base)
	if len(base) < 3 {
		base = sanitizeUsername(name)
	}
	if len(base) < 3 {
		base = "user"
	}
	if len(base) > 24 {
		base = base[:24]
	}

	candidate := base
	for i := 1; ; i++ {
		taken, err := s.userRepository.UsernameTaken(candidate)
		if err != nil {
			return "", fmt.Errorf("failed to check username: %w", err)
		}
		if !taken {
			return candidate, nil
		}
		candidate = base + strconv.Itoa(i)
	}
}

func sanitizeUsername(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '.', r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// issueTokens creates an access/refresh pair and persists the refresh
// session, evicting the oldest sessions above the per-user cap.
func (s *AuthService) issueTokens(user *model.User) (*TokenPair, error) {
	now := time.Now()

	accessClaims := jwt.MapClaims{
		"sub":  user.ID,
		"role": user.Role,
		"iat":  now.Unix(),
		"exp":  now.Add(s.opts.AccessExpiry).Unix(),
	}
	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims).SignedString([]byte(s.opts.AccessSecret))
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	refreshClaims := jwt.MapClaims{
		"sub":  user.ID,
		"type": "refresh",
		"jti":  uuid.New().String(),
		"iat":  now.Unix(),
		"exp":  now.Add(s.opts.RefreshExpiry).Unix(),
	}
	refreshToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims).SignedString([]byte(s.opts.RefreshSecret))
	if err != nil {
		return nil, fmt.Errorf("failed to sign refresh token: %w", err)
	}

	err = s.sessionRepository.PruneOldest(user.ID, s.opts.MaxSessions-1)
	if err != nil {
		return nil, fmt.Errorf("failed to prune sessions: %w", err)
	}

	session := &model.Session{
		UserID:    user.ID,
		TokenHash: hashToken(refreshToken),
		ExpiresAt: now.Add(s.opts.RefreshExpiry),
	}
	err = s.sessionRepository.Create(session)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.opts.AccessExpiry.Seconds()),
	}, nil
}

// VerifyAccessToken validates an access token and returns its claims.
func (s *AuthService) VerifyAccessToken(tokenString string) (*AccessClaims, error) {
	claims, err := parseHS256(tokenString, s.opts.AccessSecret)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperr.TokenExpired()
		}
		return nil, apperr.Authentication("invalid access token")
	}

	userID, _ := claims["sub"].(string)
	role, _ := claims["role"].(string)
	if userID == "" {
		return nil, apperr.Authentication("invalid access token")
	}

	return &AccessClaims{UserID: userID, Role: role}, nil
}

func (s *AuthService) verifyRefreshToken(tokenString string) (jwt.MapClaims, error) {
	claims, err := parseHS256(tokenString, s.opts.RefreshSecret)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperr.TokenExpired()
		}
		return nil, apperr.Authentication("invalid refresh token")
	}

	if kind, _ := claims["type"].(string); kind != "refresh" {
		return nil, apperr.Authentication("invalid refresh token")
	}
	if sub, _ := claims["sub"].(string); sub == "" {
		return nil, apperr.Authentication("invalid refresh token")
	}

	return claims, nil
}

func parseHS256(tokenString, secret string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

func (s *AuthService) HashPassword(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), s.opts.BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

func (s *AuthService) ComparePassword(password, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

func generateToken() (string, error) {
	bytes := make([]byte, 32)
	_, err := rand.Read(bytes)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (s *AuthService) SetAuthCookies(w http.ResponseWriter, tokens *TokenPair) {
	now := time.Now()
	http.SetCookie(w, &http.Cookie{
		Name:     "access_token",
		Value:    tokens.AccessToken,
		Expires:  now.Add(s.opts.AccessExpiry),
		Path:     "/",
		HttpOnly: true,
		Secure:   s.opts.IsProduction,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     "refresh_token",
		Value:    tokens.RefreshToken,
		Expires:  now.Add(s.opts.RefreshExpiry),
		Path:     "/api/auth",
		HttpOnly: true,
		Secure:   s.opts.IsProduction,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *AuthService) ClearAuthCookies(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     "access_token",
		Value:    "",
		Expires:  time.Unix(0, 0),
		Path:     "/",
		HttpOnly: true,
		Secure:   s.opts.IsProduction,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     "refresh_token",
		Value:    "",
		Expires:  time.Unix(0, 0),
		Path:     "/api/auth",
		HttpOnly: true,
		Secure:   s.opts.IsProduction,
		SameSite: http.SameSiteLaxMode,
	})
}
