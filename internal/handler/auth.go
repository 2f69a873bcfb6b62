package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"

	"github.com/greencore/api/internal/apperr"
	"github.com/greencore/api/internal/config"
	"github.com/greencore/api/internal/model"
	"github.com/greencore/api/internal/service"
)

type authHandler struct {
	authService       *service.AuthService
	googleOAuthConfig *oauth2.Config
	githubOAuthConfig *oauth2.Config
}

func NewAuthHandler(authService *service.AuthService, cfg *config.Config) *authHandler {
	return &authHandler{
		authService: authService,
		googleOAuthConfig: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.FrontendURL + "/auth/google/callback",
			Scopes:       []string{"https://www.googleapis.com/auth/userinfo.email", "https://www.googleapis.com/auth/userinfo.profile"},
			Endpoint:     google.Endpoint,
		},
		githubOAuthConfig: &oauth2.Config{
			ClientID:     cfg.GitHubClientID,
			ClientSecret: cfg.GitHubClientSecret,
			RedirectURL:  cfg.FrontendURL + "/auth/github/callback",
			Scopes:       []string{"user:email"},
			Endpoint:     github.Endpoint,
		},
	}
}

type authResponse struct {
	User   *model.User        `json:"user"`
	Tokens *service.TokenPair `json:"tokens"`
}

func (h *authHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	user, tokens, err := h.authService.Register(req.Name, req.Username, req.Email, req.Password)
	if err != nil {
		respondError(w, err)
		return
	}

	h.authService.SetAuthCookies(w, tokens)
	respondJSON(w, http.StatusCreated, authResponse{User: user, Tokens: tokens})
}

func (h *authHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Identifier string `json:"identifier"`
		Email      string `json:"email"`
		Password   string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	identifier := req.Identifier
	if identifier == "" {
		identifier = req.Email
	}

	user, tokens, err := h.authService.Login(identifier, req.Password)
	if err != nil {
		respondError(w, err)
		return
	}

	h.authService.SetAuthCookies(w, tokens)
	respondJSON(w, http.StatusOK, authResponse{User: user, Tokens: tokens})
}

// Refresh rotates the refresh token, taken from the body or the
// refresh_token cookie.
func (h *authHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	// Body is optional when the cookie is present.
	_ = decodeJSON(r, &req)

	token := req.RefreshToken
	if token == "" {
		if cookie, err := r.Cookie("refresh_token"); err == nil {
			token = cookie.Value
		}
	}
	if token == "" {
		respondError(w, apperr.Authentication("refresh token is required"))
		return
	}

	user, tokens, err := h.authService.Refresh(token)
	if err != nil {
		h.authService.ClearAuthCookies(w)
		respondError(w, err)
		return
	}

	h.authService.SetAuthCookies(w, tokens)
	respondJSON(w, http.StatusOK, authResponse{User: user, Tokens: tokens})
}

func (h *authHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	_ = decodeJSON(r, &req)

	token := req.RefreshToken
	if token == "" {
		if cookie, err := r.Cookie("refresh_token"); err == nil {
			token = cookie.Value
		}
	}

	err := h.authService.Logout(token)
	if err != nil {
		respondError(w, err)
		return
	}

	h.authService.ClearAuthCookies(w)
	respondJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func (h *authHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	err := h.authService.ForgotPassword(req.Email)
	if err != nil {
		// Never reveal lookup details; log and fall through to the
		// generic success message.
		slog.Warn("forgot password failed", "error", err)
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "if that email is registered, a reset link is on its way",
	})
}

func (h *authHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	err := h.authService.ResetPassword(req.Token, req.Password)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "password updated, please sign in"})
}

func (h *authHandler) RecoverUsername(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	err := h.authService.RecoverUsername(req.Email)
	if err != nil {
		slog.Warn("username recovery failed", "error", err)
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "if that email is registered, the username is on its way",
	})
}

// Google exchanges an authorization code from the frontend for a
// Google identity and signs the user in.
func (h *authHandler) Google(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if req.Code == "" {
		respondError(w, apperr.Validation("authorization code is required"))
		return
	}

	token, err := h.googleOAuthConfig.Exchange(r.Context(), req.Code)
	if err != nil {
		slog.Error("google oauth token exchange failed", "error", err)
		respondError(w, apperr.Authentication("oauth authentication failed"))
		return
	}

	client := h.googleOAuthConfig.Client(r.Context(), token)
	resp, err := client.Get("https://www.googleapis.com/oauth2/v2/userinfo")
	if err != nil {
		slog.Error("failed to get google user info", "error", err)
		respondError(w, apperr.Authentication("oauth authentication failed"))
		return
	}
	defer func() {
		closeErr := resp.Body.Close()
		if closeErr != nil {
			slog.Error("failed to close response body", "error", closeErr)
		}
	}()

	var userInfo struct {
		ID      string `json:"id"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	err = json.NewDecoder(resp.Body).Decode(&userInfo)
	if err != nil {
		slog.Error("failed to decode google user info", "error", err)
		respondError(w, apperr.Authentication("oauth authentication failed"))
		return
	}

	h.finishOAuth(w, service.OAuthProfile{
		Provider:   model.ProviderGoogle,
		ProviderID: userInfo.ID,
		Email:      userInfo.Email,
		Name:       userInfo.Name,
		AvatarURL:  userInfo.Picture,
	})
}

// GitHub exchanges an authorization code from the frontend for a
// GitHub identity and signs the user in. Private emails are resolved
// through the /user/emails endpoint.
func (h *authHandler) GitHub(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if req.Code == "" {
		respondError(w, apperr.Validation("authorization code is required"))
		return
	}

	token, err := h.githubOAuthConfig.Exchange(r.Context(), req.Code)
	if err != nil {
		slog.Error("github oauth token exchange failed", "error", err)
		respondError(w, apperr.Authentication("oauth authentication failed"))
		return
	}

	client := h.githubOAuthConfig.Client(r.Context(), token)
	resp, err := client.Get("https://api.github.com/user")
	if err != nil {
		slog.Error("failed to get github user info", "error", err)
		respondError(w, apperr.Authentication("oauth authentication failed"))
		return
	}
	defer func() {
		closeErr := resp.Body.Close()
		if closeErr != nil {
			slog.Error("failed to close response body", "error", closeErr)
		}
	}()

	var userInfo struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Name      string `json:"name"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
	}
	err = json.NewDecoder(resp.Body).Decode(&userInfo)
	if err != nil {
		slog.Error("failed to decode github user info", "error", err)
		respondError(w, apperr.Authentication("oauth authentication failed"))
		return
	}

	// GitHub omits the email when it is private; fetch the primary
	// address from /user/emails.
	if userInfo.Email == "" {
		emailResp, err := client.Get("https://api.github.com/user/emails")
		if err != nil {
			slog.Error("failed to get github user emails", "error", err)
			respondError(w, apperr.Authentication("oauth authentication failed"))
			return
		}
		defer func() {
			closeErr := emailResp.Body.Close()
			if closeErr != nil {
				slog.Error("failed to close email response body", "error", closeErr)
			}
		}()

		var emails []struct {
			Email    string `json:"email"`
			Primary  bool   `json:"primary"`
			Verified bool   `json:"verified"`
		}
		err = json.NewDecoder(emailResp.Body).Decode(&emails)
		if err != nil {
			slog.Error("failed to decode github emails", "error", err)
			respondError(w, apperr.Authentication("oauth authentication failed"))
			return
		}

		for _, e := range emails {
			if e.Primary {
				userInfo.Email = e.Email
				break
			}
		}
	}

	if userInfo.Email == "" {
		respondError(w, apperr.Validation("could not retrieve an email address from GitHub"))
		return
	}

	name := userInfo.Name
	if name == "" {
		name = userInfo.Login
	}

	h.finishOAuth(w, service.OAuthProfile{
		Provider:   model.ProviderGitHub,
		ProviderID: strconv.FormatInt(userInfo.ID, 10),
		Email:      userInfo.Email,
		Name:       name,
		AvatarURL:  userInfo.AvatarURL,
	})
}

func (h *authHandler) finishOAuth(w http.ResponseWriter, profile service.OAuthProfile) {
	user, tokens, err := h.authService.AuthenticateOAuth(profile)
	if err != nil {
		respondError(w, err)
		return
	}

	h.authService.SetAuthCookies(w, tokens)
	respondJSON(w, http.StatusOK, authResponse{User: user, Tokens: tokens})
}
