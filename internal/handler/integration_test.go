package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/sociopedia/internal/auth"
	"github.com/hitoshi/sociopedia/internal/auth/authtest"
	"github.com/hitoshi/sociopedia/internal/metrics"
	"github.com/hitoshi/sociopedia/internal/middleware"
	"github.com/hitoshi/sociopedia/internal/repository"
	"github.com/hitoshi/sociopedia/internal/security"
	"github.com/hitoshi/sociopedia/internal/storage"
	"github.com/hitoshi/sociopedia/internal/user"
)

// pngPicture はmimetypeがimage/pngと判定する最小限のバイト列。
var pngPicture = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

// integrationEnv はインメモリのリポジトリとローカルストレージで構成したAPIサーバー。
type integrationEnv struct {
	server   *httptest.Server
	accounts *repository.MemoryAccountRepo
	pictures *storage.LocalStore
	registry *prometheus.Registry
}

func newIntegrationEnv(t *testing.T, genericErrors bool) *integrationEnv {
	t.Helper()

	accounts := repository.NewMemoryAccountRepo()
	pictures, err := storage.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local store: %v", err)
	}

	authService := auth.NewService(
		accounts,
		auth.NewBcryptHasher(4), // bcrypt.MinCost
		auth.NewTokenIssuer("integration-secret", time.Hour),
		pictures,
		security.NewProfileSanitizer(),
		auth.ServiceConfig{MaxUploadSize: 1 << 20, GenericLoginErrors: genericErrors},
	)

	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(rl.Stop)

	registry := prometheus.NewRegistry()
	router := NewRouter(&RouterDeps{
		TokenVerifier:     authService,
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimiter:       rl,
		Metrics:           metrics.NewCollector(registry),
		MetricsGatherer:   registry,
		AuthService:       authService,
		AuthConfig:        AuthHandlerConfig{MaxUploadSize: 1 << 20},
		UserService:       user.NewService(accounts),
		Assets:            pictures,
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &integrationEnv{server: server, accounts: accounts, pictures: pictures, registry: registry}
}

func (e *integrationEnv) register(t *testing.T, filename string, picture []byte) *http.Response {
	t.Helper()
	req := newMultipartRequest(t, testRegistrationFields, filename, picture)
	return e.do(t, http.MethodPost, "/auth/register", req.Header.Get("Content-Type"), req.Body, "")
}

func (e *integrationEnv) login(t *testing.T, email, password string) *http.Response {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	return e.do(t, http.MethodPost, "/auth/login", "application/json", strings.NewReader(string(body)), "")
}

func (e *integrationEnv) do(t *testing.T, method, path, contentType string, body io.Reader, authorization string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, e.server.URL+path, body)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeJSON(t *testing.T, r io.Reader, v any) {
	t.Helper()
	if err := json.NewDecoder(r).Decode(v); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
}

// TestIntegration_RegisterLoginProtectedFlow は登録→ログイン→保護ルート→改ざんトークンの一連の流れを検証する。
func TestIntegration_RegisterLoginProtectedFlow(t *testing.T) {
	env := newIntegrationEnv(t, false)

	// 1. 画像なしで登録 → 201
	resp := env.register(t, "", nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	var created map[string]interface{}
	decodeJSON(t, resp.Body, &created)
	if _, ok := created["password"]; ok {
		t.Error("register response must not contain password")
	}
	accountID, _ := created["_id"].(string)
	if accountID == "" {
		t.Fatal("expected _id in register response")
	}

	// 保存された資格情報は平文ではない
	stored, err := env.accounts.FindByEmail(testContext(t), "a@b.com")
	if err != nil || stored == nil {
		t.Fatalf("FindByEmail = %v, %v", stored, err)
	}
	if stored.PasswordHash == "pw1" || stored.PasswordHash == "" {
		t.Errorf("stored credential = %q, want a hash", stored.PasswordHash)
	}

	// 2. 同じ資格情報でログイン → 200 + token
	resp = env.login(t, "a@b.com", "pw1")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var loggedIn struct {
		Token string                 `json:"token"`
		User  map[string]interface{} `json:"user"`
	}
	decodeJSON(t, resp.Body, &loggedIn)
	if loggedIn.Token == "" {
		t.Fatal("expected token")
	}
	if loggedIn.User["_id"] != accountID {
		t.Errorf("user._id = %v, want %q", loggedIn.User["_id"], accountID)
	}

	// 3. トークンで保護ルート → 200
	resp = env.do(t, http.MethodGet, "/users/me", "", nil, "Bearer "+loggedIn.Token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/users/me status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var me map[string]interface{}
	decodeJSON(t, resp.Body, &me)
	if me["_id"] != accountID {
		t.Errorf("me._id = %v, want %q", me["_id"], accountID)
	}

	// 接頭辞なしの生トークンも受け付ける
	resp = env.do(t, http.MethodGet, "/users/"+accountID, "", nil, loggedIn.Token)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/users/{id} with raw token status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	// 4. 1文字改ざんしたトークン → 401
	for _, tampered := range []string{
		authtest.TamperSignature(loggedIn.Token),
		authtest.TamperSignatureTail(loggedIn.Token),
	} {
		resp = env.do(t, http.MethodGet, "/users/me", "", nil, "Bearer "+tampered)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("tampered token %q: status = %d, want %d", tampered, resp.StatusCode, http.StatusUnauthorized)
		}
		var rejected map[string]string
		decodeJSON(t, resp.Body, &rejected)
		if rejected["error"] != middleware.MsgInvalidToken {
			t.Errorf("error = %q, want %q", rejected["error"], middleware.MsgInvalidToken)
		}
	}
}

func TestIntegration_LoginFailures(t *testing.T) {
	env := newIntegrationEnv(t, false)
	if resp := env.register(t, "", nil); resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status = %d", resp.StatusCode)
	}

	tests := []struct {
		name     string
		email    string
		password string
		wantMsg  string
	}{
		{"未登録メール", "nobody@b.com", "pw1", "USER DOES NOT EXIST."},
		{"パスワード不一致", "a@b.com", "wrong", "INVALID CREDENTIALS."},
		{"大文字のメールでも照合する", "A@B.COM", "wrong", "INVALID CREDENTIALS."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.login(t, tt.email, tt.password)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
			}
			var body map[string]interface{}
			decodeJSON(t, resp.Body, &body)
			if body["msg"] != tt.wantMsg {
				t.Errorf("msg = %v, want %q", body["msg"], tt.wantMsg)
			}
			if _, ok := body["token"]; ok {
				t.Error("token must not be issued")
			}
		})
	}
}

func TestIntegration_GenericLoginErrors_UnifiesMessages(t *testing.T) {
	env := newIntegrationEnv(t, true)
	if resp := env.register(t, "", nil); resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status = %d", resp.StatusCode)
	}

	for _, email := range []string{"nobody@b.com", "a@b.com"} {
		resp := env.login(t, email, "wrong")
		var body map[string]interface{}
		decodeJSON(t, resp.Body, &body)
		if resp.StatusCode != http.StatusBadRequest || body["msg"] != "INVALID CREDENTIALS." {
			t.Errorf("%s: status = %d, msg = %v", email, resp.StatusCode, body["msg"])
		}
	}
}

func TestIntegration_Register_EmailAndPasswordOnly_Returns201(t *testing.T) {
	env := newIntegrationEnv(t, false)

	req := newMultipartRequest(t, map[string]string{"email": "c@d.com", "password": "pw1"}, "", nil)
	resp := env.do(t, http.MethodPost, "/auth/register", req.Header.Get("Content-Type"), req.Body, "")
	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d, want %d: %s", resp.StatusCode, http.StatusCreated, body)
	}

	if resp := env.login(t, "c@d.com", "pw1"); resp.StatusCode != http.StatusOK {
		t.Errorf("login status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}

func TestIntegration_DuplicateEmail_Returns409(t *testing.T) {
	env := newIntegrationEnv(t, false)

	if resp := env.register(t, "", nil); resp.StatusCode != http.StatusCreated {
		t.Fatalf("first register status = %d", resp.StatusCode)
	}
	if resp := env.register(t, "", nil); resp.StatusCode != http.StatusConflict {
		t.Errorf("second register status = %d, want %d", resp.StatusCode, http.StatusConflict)
	}
}

func TestIntegration_PictureUpload_ServedFromAssets(t *testing.T) {
	env := newIntegrationEnv(t, false)

	resp := env.register(t, "me.png", pngPicture)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	var created map[string]interface{}
	decodeJSON(t, resp.Body, &created)

	picturePath, _ := created["picturePath"].(string)
	if !strings.HasSuffix(picturePath, "-me.png") {
		t.Fatalf("picturePath = %q, want <millis>-me.png", picturePath)
	}

	resp = env.do(t, http.MethodGet, "/assets/"+picturePath, "", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("asset status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	got, _ := io.ReadAll(resp.Body)
	if string(got) != string(pngPicture) {
		t.Error("served picture differs from uploaded bytes")
	}
}

func TestIntegration_UnsupportedPicture_NotStored(t *testing.T) {
	env := newIntegrationEnv(t, false)

	resp := env.register(t, "evil.png", []byte("<html><script>alert(1)</script></html>"))
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}

	objects, err := env.pictures.List(testContext(t))
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(objects) != 0 {
		t.Errorf("stored objects = %d, want 0", len(objects))
	}
	if acc, _ := env.accounts.FindByEmail(testContext(t), "a@b.com"); acc != nil {
		t.Error("account must not be created")
	}
}

func TestIntegration_ProtectedEndpoints_RequireToken(t *testing.T) {
	env := newIntegrationEnv(t, false)

	for _, path := range []string{"/users/me", "/users/some-id"} {
		resp := env.do(t, http.MethodGet, path, "", nil, "")
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("%s: status = %d, want %d", path, resp.StatusCode, http.StatusUnauthorized)
		}
		body, _ := io.ReadAll(resp.Body)
		if strings.TrimSpace(string(body)) != middleware.MsgNoToken {
			t.Errorf("%s: body = %q, want %q", path, body, middleware.MsgNoToken)
		}
	}
}

func TestIntegration_MetricsEndpoint_ReportsOutcomes(t *testing.T) {
	env := newIntegrationEnv(t, false)

	env.register(t, "", nil)
	env.login(t, "a@b.com", "wrong")

	resp := env.do(t, http.MethodGet, "/metrics", "", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	body, _ := io.ReadAll(resp.Body)
	for _, want := range []string{
		`sociopedia_registrations_total{outcome="success"} 1`,
		`sociopedia_logins_total{outcome="invalid_credentials"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output does not contain %q", want)
		}
	}
}

func TestIntegration_HealthAndSecurityHeaders(t *testing.T) {
	env := newIntegrationEnv(t, false)

	resp := env.do(t, http.MethodGet, "/health", "", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if got := resp.Header.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want %q", got, "nosniff")
	}
}
