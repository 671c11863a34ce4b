package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/internai/internal/api"
	"github.com/charlesng35/internai/internal/app"
	iauth "github.com/charlesng35/internai/internal/auth"
	"github.com/charlesng35/internai/internal/auth/providers"
	"github.com/charlesng35/internai/internal/cache"
	sharedtestutil "github.com/charlesng35/internai/internal/database/testutil"
	"github.com/charlesng35/internai/internal/models"
	"github.com/charlesng35/internai/internal/services"
	"github.com/charlesng35/internai/pkg/crypto"
	"github.com/charlesng35/internai/pkg/mail"
	"github.com/charlesng35/internai/pkg/response"
)

const (
	// VerificationCode is the code every registration in an Env receives.
	VerificationCode = "123456"
	// FrontendURL is where redirect flows send the browser back to.
	FrontendURL = "http://localhost:5173"

	jwtSecret = "test-suite-super-secret-key-32-bytes!!"
)

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
// It keeps a cookie jar so consecutive requests behave like one browser.
type Env struct {
	T        *testing.T
	DB       *gorm.DB
	Router   *gin.Engine
	JWT      *iauth.JWTService
	Cookies  *iauth.CookieBinder
	Mailer   *RecordingMailer
	Google   *FakeGoogle
	Sessions *iauth.SessionService

	jar map[string]*http.Cookie
}

type envConfig struct {
	google     *FakeGoogle
	rateLimits bool
	clock      func() time.Time
	proxies    []string
}

// EnvOption customises NewEnv.
type EnvOption func(*envConfig)

// WithGoogle enables federated sign-in backed by the fake provider.
func WithGoogle(fake *FakeGoogle) EnvOption {
	return func(cfg *envConfig) {
		cfg.google = fake
	}
}

// WithoutRateLimits mounts the routes without request throttling.
func WithoutRateLimits() EnvOption {
	return func(cfg *envConfig) {
		cfg.rateLimits = false
	}
}

// WithClock drives token, registration and recovery expiry from clock.
func WithClock(clock func() time.Time) EnvOption {
	return func(cfg *envConfig) {
		cfg.clock = clock
	}
}

// WithTrustedProxies honours X-Forwarded-For from the given proxies.
func WithTrustedProxies(proxies ...string) EnvOption {
	return func(cfg *envConfig) {
		cfg.proxies = proxies
	}
}

// NewEnv provisions a fresh handler test environment with migrations applied.
func NewEnv(t *testing.T, opts ...EnvOption) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	settings := envConfig{rateLimits: true, clock: time.Now}
	for _, opt := range opts {
		opt(&settings)
	}

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithAutoMigrate())

	cfg := &app.Config{
		Server: app.ServerConfig{
			Port:           8000,
			Environment:    "test",
			CORSOrigins:    []string{FrontendURL},
			FrontendURL:    FrontendURL,
			TrustedProxies: settings.proxies,
		},
		Auth: app.AuthConfig{
			JWT: app.JWTSettings{
				Secret:     jwtSecret,
				Issuer:     "test-suite",
				AccessTTL:  15 * time.Minute,
				RefreshTTL: 24 * time.Hour,
			},
			PasswordReset: app.PasswordResetSettings{
				TokenTTL: time.Hour,
				URL:      FrontendURL + "/reset-password",
			},
		},
		Email: app.EmailConfig{DeliveryTimeout: time.Second},
	}

	jwtCfg := cfg.Auth.JWTServiceConfig()
	jwtCfg.Clock = settings.clock
	jwtSvc, err := iauth.NewJWTService(jwtCfg)
	require.NoError(t, err)

	cookies := iauth.NewCookieBinder(cfg.Auth.CookieConfig(cfg.Server.Environment))

	users, err := services.NewUserService(db)
	require.NoError(t, err)

	sessions, err := iauth.NewSessionService(jwtSvc, cookies, users)
	require.NoError(t, err)

	mailer := &RecordingMailer{}

	registrationOpts := append(cfg.RegistrationOptions(),
		services.WithRegistrationClock(settings.clock),
		services.WithCodeGenerator(func(int) (string, error) { return VerificationCode, nil }),
	)
	registration, err := services.NewRegistrationService(db, mailer, registrationOpts...)
	require.NoError(t, err)

	resets, err := services.NewPasswordResetService(db, mailer,
		append(cfg.PasswordResetOptions(), services.WithPasswordResetClock(settings.clock))...)
	require.NoError(t, err)

	localCfg := cfg.Auth.LocalProviderConfig()
	localCfg.Clock = settings.clock
	local, err := providers.NewLocalProvider(db, localCfg)
	require.NoError(t, err)

	store := cache.NewMemoryStore().WithClock(settings.clock)
	flows, err := iauth.NewFlowStateStore(store, 0, settings.clock)
	require.NoError(t, err)

	deps := api.Dependencies{
		Config:       cfg,
		DB:           db,
		Cookies:      cookies,
		Sessions:     sessions,
		Users:        users,
		Registration: registration,
		Resets:       resets,
		Local:        local,
		Flows:        flows,
	}
	if settings.rateLimits {
		deps.Cache = store
	}
	if settings.google != nil {
		deps.Google = settings.google
	}

	router, err := api.NewRouter(deps)
	require.NoError(t, err)

	return &Env{
		T:        t,
		DB:       db,
		Router:   router,
		JWT:      jwtSvc,
		Cookies:  cookies,
		Mailer:   mailer,
		Google:   settings.google,
		Sessions: sessions,
		jar:      make(map[string]*http.Cookie),
	}
}

// CreateUser inserts an active, verified user with the given password.
func (e *Env) CreateUser(email, password string, admin bool) *models.User {
	e.T.Helper()

	hashed, err := crypto.HashPassword(password)
	require.NoError(e.T, err)

	user := &models.User{
		Email:      email,
		Name:       "Test User",
		Password:   hashed,
		IsActive:   true,
		IsVerified: true,
		IsAdmin:    admin,
	}
	require.NoError(e.T, e.DB.Create(user).Error)
	return user
}

// Login signs in through the password endpoint and keeps the session cookies.
func (e *Env) Login(email, password string) UserPayload {
	e.T.Helper()

	w := e.Request(http.MethodPost, "/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
	require.Equal(e.T, http.StatusOK, w.Code, w.Body.String())

	var user UserPayload
	DecodeInto(e.T, DecodeResponse(e.T, w).Data, &user)
	require.NotEmpty(e.T, e.Cookie(iauth.DefaultAccessCookieName))
	require.NotEmpty(e.T, e.Cookie(iauth.DefaultRefreshCookieName))
	return user
}

// UserPayload captures the user fields returned from auth endpoints.
type UserPayload struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	AvatarURL  string `json:"avatar_url"`
	IsAdmin    bool   `json:"is_admin"`
	IsVerified bool   `json:"is_verified"`
	IsActive   bool   `json:"is_active"`
}

// PendingPayload mirrors the registration responses.
type PendingPayload struct {
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
	Delivered bool      `json:"delivered"`
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Message string              `json:"message"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// RequireError asserts the response is an error envelope with the given status and code.
func RequireError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
	resp := DecodeResponse(t, w)
	require.False(t, resp.Success)
	require.NotNil(t, resp.Error, w.Body.String())
	require.Equal(t, code, resp.Error.Code)
}

// Request executes a JSON request against the router, sending and updating the cookie jar.
func (e *Env) Request(method, path string, body any) *httptest.ResponseRecorder {
	e.T.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.T, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return e.Do(req)
}

// Do sends a prepared request with the jar's cookies attached.
func (e *Env) Do(req *http.Request) *httptest.ResponseRecorder {
	e.T.Helper()

	for _, c := range e.jar {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)

	resp := w.Result()
	defer resp.Body.Close()
	for _, c := range resp.Cookies() {
		if c.MaxAge < 0 || c.Value == "" {
			delete(e.jar, c.Name)
			continue
		}
		e.jar[c.Name] = c
	}
	return w
}

// Cookie returns the jar's value for name or "".
func (e *Env) Cookie(name string) string {
	if c, ok := e.jar[name]; ok {
		return c.Value
	}
	return ""
}

// SetCookie places a cookie in the jar, replacing any existing value.
func (e *Env) SetCookie(name, value string) {
	e.jar[name] = &http.Cookie{Name: name, Value: value}
}

// ClearCookies empties the jar.
func (e *Env) ClearCookies() {
	e.jar = make(map[string]*http.Cookie)
}

// RecordingMailer keeps every message it is asked to send.
type RecordingMailer struct {
	mu       sync.Mutex
	messages []mail.Message
	err      error
}

// Send records msg, or fails with the configured error.
func (m *RecordingMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, msg)
	return nil
}

// Fail makes every following Send return err. Pass nil to recover.
func (m *RecordingMailer) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Messages returns a copy of the recorded messages.
func (m *RecordingMailer) Messages() []mail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mail.Message(nil), m.messages...)
}

// Last returns the most recent message; the test fails if none was sent.
func (m *RecordingMailer) Last(t *testing.T) mail.Message {
	t.Helper()
	msgs := m.Messages()
	require.NotEmpty(t, msgs, "no mail was sent")
	return msgs[len(msgs)-1]
}

var resetTokenPattern = regexp.MustCompile(`[?&]token=([^\s&]+)`)

// ResetToken extracts the raw token from the most recent reset email.
func (m *RecordingMailer) ResetToken(t *testing.T) string {
	t.Helper()
	match := resetTokenPattern.FindStringSubmatch(m.Last(t).Body)
	require.Len(t, match, 2, "reset link not found in mail body")
	token, err := url.QueryUnescape(match[1])
	require.NoError(t, err)
	return token
}

// FakeGoogle is an in-memory RedirectProvider. ID tokens and authorization
// codes are looked up in Identities.
type FakeGoogle struct {
	mu         sync.Mutex
	Identities map[string]*providers.FederatedIdentity
	exchanges  []Exchange
}

// Exchange records the arguments of a code exchange.
type Exchange struct {
	Code     string
	Verifier string
	Nonce    string
}

// NewFakeGoogle returns a provider with no known tokens.
func NewFakeGoogle() *FakeGoogle {
	return &FakeGoogle{Identities: make(map[string]*providers.FederatedIdentity)}
}

// Add registers identity under token, usable both as ID token and code.
func (f *FakeGoogle) Add(token string, identity providers.FederatedIdentity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	identity.Provider = "google"
	f.Identities[token] = &identity
}

func (f *FakeGoogle) lookup(token string) (*providers.FederatedIdentity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	identity, ok := f.Identities[token]
	if !ok {
		return nil, providers.ErrFederatedTokenInvalid
	}
	clone := *identity
	return &clone, nil
}

// Verify resolves an ID token.
func (f *FakeGoogle) Verify(_ context.Context, idToken string) (*providers.FederatedIdentity, error) {
	return f.lookup(idToken)
}

// AuthCodeURL builds a consent URL carrying every argument in its query.
func (f *FakeGoogle) AuthCodeURL(state, nonce, verifier string) string {
	q := url.Values{}
	q.Set("state", state)
	q.Set("nonce", nonce)
	q.Set("code_challenge", verifier)
	return "https://accounts.example.com/o/oauth2/auth?" + q.Encode()
}

// Exchange resolves an authorization code and records the call.
func (f *FakeGoogle) Exchange(_ context.Context, code, verifier, nonce string) (*providers.FederatedIdentity, error) {
	f.mu.Lock()
	f.exchanges = append(f.exchanges, Exchange{Code: code, Verifier: verifier, Nonce: nonce})
	f.mu.Unlock()
	return f.lookup(code)
}

// Exchanges returns the recorded code exchanges.
func (f *FakeGoogle) Exchanges() []Exchange {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Exchange(nil), f.exchanges...)
}
