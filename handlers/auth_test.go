package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/prepwise/prepwise/backend/auth-service/internal/config"
	"github.com/prepwise/prepwise/backend/auth-service/internal/models"
	"github.com/prepwise/prepwise/backend/auth-service/internal/oidc"
	"github.com/prepwise/prepwise/backend/auth-service/internal/password"
	"github.com/prepwise/prepwise/backend/auth-service/internal/sessions"
	"github.com/prepwise/prepwise/backend/auth-service/internal/users"
)

// memUserRepo is an in-memory users.UserRepository for handler tests.
// findByIDFailures injects that many transient lookup errors.
type memUserRepo struct {
	mu               sync.Mutex
	byEmail          map[string]*models.User
	byID             map[string]*models.User
	findByIDFailures int
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{
		byEmail: make(map[string]*models.User),
		byID:    make(map[string]*models.User),
	}
}

func (r *memUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byEmail[email]
	if !ok {
		return nil, users.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memUserRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findByIDFailures > 0 {
		r.findByIDFailures--
		return nil, errors.New("user store unavailable")
	}
	u, ok := r.byID[id]
	if !ok {
		return nil, users.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memUserRepo) Create(_ context.Context, u *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byEmail[u.Email]; ok {
		return nil, users.ErrEmailTaken
	}
	cp := *u
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	cp.CreatedAt = time.Now().UTC()
	cp.UpdatedAt = cp.CreatedAt
	r.byEmail[cp.Email] = &cp
	r.byID[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (r *memUserRepo) Update(_ context.Context, u *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.byID[u.ID]
	if !ok {
		return nil, users.ErrNotFound
	}
	delete(r.byEmail, old.Email)
	cp := *u
	cp.UpdatedAt = time.Now().UTC()
	r.byEmail[cp.Email] = &cp
	r.byID[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (r *memUserRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return users.ErrNotFound
	}
	delete(r.byEmail, u.Email)
	delete(r.byID, id)
	return nil
}

// memSessionRepo is an in-memory sessions.Repository for handler tests.
type memSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*sessions.Session
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: make(map[string]*sessions.Session)}
}

func (r *memSessionRepo) Create(_ context.Context, s *sessions.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.sessions[s.Token] = &cp
	return nil
}

func (r *memSessionRepo) GetByToken(_ context.Context, token string) (*sessions.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[token]
	if !ok {
		return nil, sessions.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *memSessionRepo) Replace(_ context.Context, oldToken string, s *sessions.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[oldToken]; !ok {
		return sessions.ErrNotFound
	}
	delete(r.sessions, oldToken)
	cp := *s
	r.sessions[s.Token] = &cp
	return nil
}

func (r *memSessionRepo) DeleteByToken(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, token)
	return nil
}

func (r *memSessionRepo) DeleteByUser(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for tok, s := range r.sessions {
		if s.UserID == userID {
			delete(r.sessions, tok)
		}
	}
	return nil
}

type authTestEnv struct {
	engine   *gin.Engine
	cfg      *config.Config
	userRepo *memUserRepo
	sessRepo *memSessionRepo
	usersSvc *users.Service
	sessions *sessions.Service
}

func newAuthTestEnv(t *testing.T) *authTestEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		JWT: config.JWTConfig{
			Secret:          "handler-test-secret",
			AccessTokenTTL:  15 * time.Minute,
			RefreshTokenTTL: 7 * 24 * time.Hour,
		},
		Bcrypt: config.BcryptConfig{Cost: 4},
	}

	userRepo := newMemUserRepo()
	sessRepo := newMemSessionRepo()
	usersSvc := users.NewService(userRepo, password.NewHasher(cfg.Bcrypt.Cost))
	sessSvc := sessions.NewService(sessRepo)

	engine := gin.New()
	api := engine.Group("/api")
	h := NewAuthHandler(cfg, usersSvc, sessSvc, oidc.NewInsecureVerifier())
	h.Register(api)

	return &authTestEnv{
		engine:   engine,
		cfg:      cfg,
		userRepo: userRepo,
		sessRepo: sessRepo,
		usersSvc: usersSvc,
		sessions: sessSvc,
	}
}

func (e *authTestEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

type tokenData struct {
	User struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Name  string `json:"name"`
	} `json:"user"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func decodeTokens(t *testing.T, env envelope) tokenData {
	t.Helper()
	var d tokenData
	require.NoError(t, json.Unmarshal(env.Data, &d))
	return d
}

func signUpJane(t *testing.T, e *authTestEnv) tokenData {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/auth/signup", gin.H{
		"name":            "Jane Doe",
		"email":           "jane@example.com",
		"password":        "Str0ng!Pass",
		"confirmPassword": "Str0ng!Pass",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	env := decodeEnvelope(t, w)
	require.True(t, env.Success)
	require.Equal(t, "User registered successfully", env.Message)
	d := decodeTokens(t, env)
	require.NotEmpty(t, d.AccessToken)
	require.NotEmpty(t, d.RefreshToken)
	require.Equal(t, "jane@example.com", d.User.Email)
	return d
}

func TestSignUpAndDuplicateEmail(t *testing.T) {
	e := newAuthTestEnv(t)
	signUpJane(t, e)

	w := e.do(t, http.MethodPost, "/api/auth/signup", gin.H{
		"name":            "Jane Again",
		"email":           "JANE@example.com",
		"password":        "Str0ng!Pass",
		"confirmPassword": "Str0ng!Pass",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	env := decodeEnvelope(t, w)
	require.False(t, env.Success)
	require.Equal(t, "User with this email already exists", env.Message)
}

func TestSignUpValidation(t *testing.T) {
	e := newAuthTestEnv(t)

	w := e.do(t, http.MethodPost, "/api/auth/signup", gin.H{
		"name":            "Jane Doe",
		"email":           "not-an-email",
		"password":        "Str0ng!Pass",
		"confirmPassword": "Str0ng!Pass",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	env := decodeEnvelope(t, w)
	require.False(t, env.Success)
	require.Equal(t, "Invalid email format", env.Message)

	w = e.do(t, http.MethodPost, "/api/auth/signup", gin.H{
		"name":            "Jane Doe",
		"email":           "jane2@example.com",
		"password":        "weak",
		"confirmPassword": "weak",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	env = decodeEnvelope(t, w)
	require.Equal(t, "Password validation failed", env.Message)
	require.NotEmpty(t, env.Error)
}

func TestSignInEnumerationResistance(t *testing.T) {
	e := newAuthTestEnv(t)
	signUpJane(t, e)

	unknown := e.do(t, http.MethodPost, "/api/auth/signin", gin.H{
		"email":    "nobody@example.com",
		"password": "Str0ng!Pass",
	})
	wrongPass := e.do(t, http.MethodPost, "/api/auth/signin", gin.H{
		"email":    "jane@example.com",
		"password": "Wr0ng!Pass1",
	})

	require.Equal(t, http.StatusUnauthorized, unknown.Code)
	require.Equal(t, http.StatusUnauthorized, wrongPass.Code)
	// unknown-account and bad-password responses must be indistinguishable
	require.Equal(t, unknown.Body.String(), wrongPass.Body.String())
	env := decodeEnvelope(t, unknown)
	require.Equal(t, "Invalid email or password", env.Message)
}

func TestSignInSuccess(t *testing.T) {
	e := newAuthTestEnv(t)
	signUpJane(t, e)

	w := e.do(t, http.MethodPost, "/api/auth/signin", gin.H{
		"email":    "jane@example.com",
		"password": "Str0ng!Pass",
	})
	require.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w)
	require.True(t, env.Success)
	d := decodeTokens(t, env)
	require.NotEmpty(t, d.AccessToken)
	require.NotEmpty(t, d.RefreshToken)
}

func TestRefreshRotationConsumesToken(t *testing.T) {
	e := newAuthTestEnv(t)
	first := signUpJane(t, e)

	w := e.do(t, http.MethodPost, "/api/auth/refresh", gin.H{
		"refreshToken": first.RefreshToken,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	env := decodeEnvelope(t, w)
	var rotated struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &rotated))
	require.NotEmpty(t, rotated.AccessToken)
	require.NotEmpty(t, rotated.RefreshToken)
	require.NotEqual(t, first.RefreshToken, rotated.RefreshToken)

	// the consumed token cannot be exchanged a second time
	w = e.do(t, http.MethodPost, "/api/auth/refresh", gin.H{
		"refreshToken": first.RefreshToken,
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "Invalid refresh token", decodeEnvelope(t, w).Message)

	// the replacement still works
	w = e.do(t, http.MethodPost, "/api/auth/refresh", gin.H{
		"refreshToken": rotated.RefreshToken,
	})
	require.Equal(t, http.StatusOK, w.Code)
}

func TestRefreshExpiredSessionIsPurged(t *testing.T) {
	e := newAuthTestEnv(t)
	d := signUpJane(t, e)

	token, err := e.sessions.CreateSession(context.Background(), d.User.ID, -time.Minute)
	require.NoError(t, err)

	w := e.do(t, http.MethodPost, "/api/auth/refresh", gin.H{"refreshToken": token})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "Refresh token expired", decodeEnvelope(t, w).Message)

	// the stale row is removed, so retrying reports an unknown token
	w = e.do(t, http.MethodPost, "/api/auth/refresh", gin.H{"refreshToken": token})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "Invalid refresh token", decodeEnvelope(t, w).Message)
}

func TestRefreshUnknownToken(t *testing.T) {
	e := newAuthTestEnv(t)

	w := e.do(t, http.MethodPost, "/api/auth/refresh", gin.H{"refreshToken": uuid.NewString()})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "Invalid refresh token", decodeEnvelope(t, w).Message)

	w = e.do(t, http.MethodPost, "/api/auth/refresh", gin.H{})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRefreshStoreFaultKeepsSession(t *testing.T) {
	e := newAuthTestEnv(t)
	d := signUpJane(t, e)

	// a transient identity-store failure is an internal fault,
	// not an authentication failure
	e.userRepo.mu.Lock()
	e.userRepo.findByIDFailures = 1
	e.userRepo.mu.Unlock()

	w := e.do(t, http.MethodPost, "/api/auth/refresh", gin.H{"refreshToken": d.RefreshToken})
	require.Equal(t, http.StatusInternalServerError, w.Code, w.Body.String())
	require.Equal(t, "Internal server error", decodeEnvelope(t, w).Message)

	// the session survives the fault and the same token works once the
	// store recovers
	w = e.do(t, http.MethodPost, "/api/auth/refresh", gin.H{"refreshToken": d.RefreshToken})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestRefreshVanishedIdentityPurgesSession(t *testing.T) {
	e := newAuthTestEnv(t)
	d := signUpJane(t, e)

	// drop the identity row while its refresh session is still live
	require.NoError(t, e.userRepo.Delete(context.Background(), d.User.ID))

	w := e.do(t, http.MethodPost, "/api/auth/refresh", gin.H{"refreshToken": d.RefreshToken})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "Invalid refresh token", decodeEnvelope(t, w).Message)

	// the orphaned session row is gone
	_, err := e.sessRepo.GetByToken(context.Background(), d.RefreshToken)
	require.ErrorIs(t, err, sessions.ErrNotFound)
}

func TestSignOutIsIdempotent(t *testing.T) {
	e := newAuthTestEnv(t)
	d := signUpJane(t, e)

	w := e.do(t, http.MethodPost, "/api/auth/signout", gin.H{"refreshToken": d.RefreshToken})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "Signed out successfully", decodeEnvelope(t, w).Message)

	// the revoked token can no longer be exchanged
	w = e.do(t, http.MethodPost, "/api/auth/refresh", gin.H{"refreshToken": d.RefreshToken})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// signing out again with the same token still succeeds
	w = e.do(t, http.MethodPost, "/api/auth/signout", gin.H{"refreshToken": d.RefreshToken})
	require.Equal(t, http.StatusOK, w.Code)
}

// fakeGoogleToken builds an unsigned three-segment JWT whose payload carries
// the given claims, good enough for the insecure verifier used in tests.
func fakeGoogleToken(t *testing.T, claims map[string]interface{}) string {
	t.Helper()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))
	payload, err := json.Marshal(claims)
	require.NoError(t, err)
	return header + "." + base64.RawURLEncoding.EncodeToString(payload) + "."
}

func TestGoogleMobileAuthCreatesAndReusesIdentity(t *testing.T) {
	e := newAuthTestEnv(t)

	idToken := fakeGoogleToken(t, map[string]interface{}{
		"email": "gina@example.com",
		"name":  "Gina Google",
	})

	w := e.do(t, http.MethodPost, "/api/auth/google/mobile", gin.H{"idToken": idToken})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	env := decodeEnvelope(t, w)
	require.Equal(t, "Google sign in successful", env.Message)
	first := decodeTokens(t, env)
	require.Equal(t, "gina@example.com", first.User.Email)
	require.Equal(t, "Gina Google", first.User.Name)

	// a second assertion for the same email resolves to the same identity
	w = e.do(t, http.MethodPost, "/api/auth/google/mobile", gin.H{"idToken": idToken})
	require.Equal(t, http.StatusOK, w.Code)
	second := decodeTokens(t, decodeEnvelope(t, w))
	require.Equal(t, first.User.ID, second.User.ID)
}

func TestGoogleMobileAuthReusesPasswordAccount(t *testing.T) {
	e := newAuthTestEnv(t)
	d := signUpJane(t, e)

	idToken := fakeGoogleToken(t, map[string]interface{}{
		"email": "jane@example.com",
		"name":  "Jane From Google",
	})
	w := e.do(t, http.MethodPost, "/api/auth/google/mobile", gin.H{"idToken": idToken})
	require.Equal(t, http.StatusOK, w.Code)
	got := decodeTokens(t, decodeEnvelope(t, w))
	require.Equal(t, d.User.ID, got.User.ID)
	// the existing profile name is kept
	require.Equal(t, "Jane Doe", got.User.Name)
}

func TestGoogleMobileAuthRejectsGarbage(t *testing.T) {
	e := newAuthTestEnv(t)

	w := e.do(t, http.MethodPost, "/api/auth/google/mobile", gin.H{"idToken": "not-a-jwt"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "Failed to authenticate with Google", decodeEnvelope(t, w).Message)

	w = e.do(t, http.MethodPost, "/api/auth/google/mobile", gin.H{})
	require.Equal(t, http.StatusBadRequest, w.Code)
}
