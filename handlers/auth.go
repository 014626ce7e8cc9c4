package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/prepwise/prepwise/backend/auth-service/internal/config"
	"github.com/prepwise/prepwise/backend/auth-service/internal/models"
	"github.com/prepwise/prepwise/backend/auth-service/internal/oidc"
	"github.com/prepwise/prepwise/backend/auth-service/internal/sessions"
	"github.com/prepwise/prepwise/backend/auth-service/internal/tokens"
	"github.com/prepwise/prepwise/backend/auth-service/internal/users"
	"github.com/prepwise/prepwise/backend/auth-service/pkg/logger"
	"github.com/prepwise/prepwise/backend/auth-service/pkg/metrics"
)

type SignUpRequest struct {
	Name            string `json:"name" binding:"required"`
	Email           string `json:"email" binding:"required"`
	Password        string `json:"password" binding:"required"`
	ConfirmPassword string `json:"confirmPassword" binding:"required"`
}

type SignInRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type GoogleAuthRequest struct {
	IDToken string `json:"idToken" binding:"required"`
}

// authPayload is the data block of every successful auth response.
type authPayload struct {
	User         *models.User `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
}

// AuthHandler holds dependencies
type AuthHandler struct {
	cfg      *config.Config
	users    *users.Service
	sessions *sessions.Service
	issuer   *tokens.Issuer
	verifier oidc.IDTokenVerifier
}

func NewAuthHandler(cfg *config.Config, u *users.Service, s *sessions.Service, v oidc.IDTokenVerifier) *AuthHandler {
	return &AuthHandler{
		cfg:      cfg,
		users:    u,
		sessions: s,
		issuer:   tokens.NewIssuer(cfg, s),
		verifier: v,
	}
}

// Register routes under /auth
func (h *AuthHandler) Register(rg *gin.RouterGroup) {
	a := rg.Group("/auth")
	a.POST("/signup", h.SignUp)
	a.POST("/signin", h.SignIn)
	a.POST("/refresh", h.Refresh)
	a.POST("/signout", h.SignOut)
	a.POST("/google/mobile", h.GoogleMobileAuth)
}

// SignUp registers a new identity and issues its first token pair.
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFail(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	u, err := h.users.SignUp(c.Request.Context(), users.SignUpInput{
		Name:            req.Name,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		metrics.SignUps.WithLabelValues("failure").Inc()
		h.respondAuthError(c, err)
		return
	}

	pair, err := h.issuer.Issue(c.Request.Context(), u)
	if err != nil {
		metrics.SignUps.WithLabelValues("failure").Inc()
		logger.Errorf("failed to issue token pair: %v", err)
		respondFail(c, http.StatusInternalServerError, "Failed to register user")
		return
	}

	metrics.SignUps.WithLabelValues("success").Inc()
	respondOK(c, http.StatusCreated, "User registered successfully", authPayload{
		User:         u.Public(),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

// SignIn authenticates an email/password pair and issues a token pair.
func (h *AuthHandler) SignIn(c *gin.Context) {
	var req SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFail(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	u, err := h.users.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		metrics.SignIns.WithLabelValues("failure").Inc()
		h.respondAuthError(c, err)
		return
	}

	pair, err := h.issuer.Issue(c.Request.Context(), u)
	if err != nil {
		metrics.SignIns.WithLabelValues("failure").Inc()
		logger.Errorf("failed to issue token pair: %v", err)
		respondFail(c, http.StatusInternalServerError, "Failed to sign in")
		return
	}

	metrics.SignIns.WithLabelValues("success").Inc()
	respondOK(c, http.StatusOK, "Sign in successful", authPayload{
		User:         u.Public(),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

// Refresh exchanges a live refresh token for a new pair. The presented
// token is consumed: a second exchange with the same value fails.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFail(c, http.StatusBadRequest, "Refresh token is required")
		return
	}

	sess, err := h.sessions.ValidateRefresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		metrics.TokenRefreshes.WithLabelValues("failure").Inc()
		h.respondAuthError(c, err)
		return
	}

	u, err := h.users.GetByID(c.Request.Context(), sess.UserID)
	if err != nil {
		metrics.TokenRefreshes.WithLabelValues("failure").Inc()
		if errors.Is(err, users.ErrNotFound) {
			// identity vanished between issuance and exchange
			_ = h.sessions.DeleteRefresh(c.Request.Context(), req.RefreshToken)
			respondFail(c, http.StatusUnauthorized, "Invalid refresh token")
			return
		}
		// a store fault must not revoke a live session
		logger.Errorf("refresh identity lookup failed: %v", err)
		respondFail(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	pair, err := h.issuer.Rotate(c.Request.Context(), req.RefreshToken, u)
	if err != nil {
		metrics.TokenRefreshes.WithLabelValues("failure").Inc()
		// a concurrent exchange may have consumed the token first
		h.respondAuthError(c, err)
		return
	}

	metrics.TokenRefreshes.WithLabelValues("success").Inc()
	respondOK(c, http.StatusOK, "Token refreshed successfully", gin.H{
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
	})
}

// SignOut deletes the refresh session and blacklists the presented access
// token for its remaining lifetime. Signing out twice is not an error.
func (h *AuthHandler) SignOut(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFail(c, http.StatusBadRequest, "Refresh token is required")
		return
	}

	// when the client also sent its access token, retire it early
	if raw := bearerFromHeader(c); raw != "" {
		if claims, err := tokens.ParseAccessToken(h.cfg, raw); err == nil && claims.ExpiresAt != nil {
			if ttl := time.Until(claims.ExpiresAt.Time); ttl > 0 {
				if err := sessions.BlacklistAccessToken(c.Request.Context(), raw, ttl); err != nil {
					logger.Warnf("failed to blacklist access token: %v", err)
				}
			}
		}
	}

	if err := h.sessions.DeleteRefresh(c.Request.Context(), req.RefreshToken); err != nil {
		logger.Errorf("failed to remove session: %v", err)
		respondFail(c, http.StatusInternalServerError, "Failed to sign out")
		return
	}
	respondOK(c, http.StatusOK, "Signed out successfully", nil)
}

// GoogleMobileAuth verifies a Google-issued ID token and signs the caller
// in, creating a verified passwordless identity on first contact.
func (h *AuthHandler) GoogleMobileAuth(c *gin.Context) {
	var req GoogleAuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFail(c, http.StatusBadRequest, "Google ID token is required")
		return
	}
	if h.verifier == nil {
		respondFail(c, http.StatusServiceUnavailable, "Google sign-in is not configured")
		return
	}

	tok, err := h.verifier.Verify(c.Request.Context(), req.IDToken)
	if err != nil {
		metrics.FederatedAuths.WithLabelValues("failure").Inc()
		logger.Warnf("google id token rejected: %v", err)
		respondFail(c, http.StatusUnauthorized, "Failed to authenticate with Google")
		return
	}

	var claims struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := tok.Claims(&claims); err != nil || claims.Email == "" {
		metrics.FederatedAuths.WithLabelValues("failure").Inc()
		respondFail(c, http.StatusUnauthorized, "Invalid Google token payload")
		return
	}

	u, err := h.users.ResolveFederated(c.Request.Context(), claims.Email, claims.Name)
	if err != nil {
		metrics.FederatedAuths.WithLabelValues("failure").Inc()
		logger.Errorf("federated identity resolve failed: %v", err)
		respondFail(c, http.StatusInternalServerError, "Failed to authenticate with Google")
		return
	}

	pair, err := h.issuer.Issue(c.Request.Context(), u)
	if err != nil {
		metrics.FederatedAuths.WithLabelValues("failure").Inc()
		logger.Errorf("failed to issue token pair: %v", err)
		respondFail(c, http.StatusInternalServerError, "Failed to authenticate with Google")
		return
	}

	metrics.FederatedAuths.WithLabelValues("success").Inc()
	respondOK(c, http.StatusOK, "Google sign in successful", authPayload{
		User:         u.Public(),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

// respondAuthError maps component failures onto the envelope. Anything
// unrecognized is a store or configuration problem and stays generic.
func (h *AuthHandler) respondAuthError(c *gin.Context, err error) {
	var verr *users.ValidationError
	switch {
	case errors.As(err, &verr):
		respondFailDetail(c, http.StatusBadRequest, verr.Message, verr.Details)
	case errors.Is(err, users.ErrEmailTaken):
		respondFail(c, http.StatusBadRequest, users.ErrEmailTaken.Error())
	case errors.Is(err, users.ErrInvalidCredentials):
		respondFail(c, http.StatusUnauthorized, users.ErrInvalidCredentials.Error())
	case errors.Is(err, users.ErrPasswordlessAccount):
		respondFail(c, http.StatusUnauthorized, users.ErrPasswordlessAccount.Error())
	case errors.Is(err, sessions.ErrExpired):
		respondFail(c, http.StatusUnauthorized, "Refresh token expired")
	case errors.Is(err, sessions.ErrNotFound):
		respondFail(c, http.StatusUnauthorized, "Invalid refresh token")
	default:
		logger.Errorf("auth operation failed: %v", err)
		respondFail(c, http.StatusInternalServerError, "Internal server error")
	}
}

func bearerFromHeader(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	const prefix = "Bearer "
	if len(auth) > len(prefix) && auth[:len(prefix)] == prefix {
		return auth[len(prefix):]
	}
	return ""
}
