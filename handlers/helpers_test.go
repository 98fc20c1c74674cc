package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/dflow-platform/dflow-api/internal/codegen"
	"github.com/dflow-platform/dflow-api/internal/config"
	"github.com/dflow-platform/dflow-api/internal/dflow"
	"github.com/dflow-platform/dflow-api/internal/dmodel/repository"
	"github.com/dflow-platform/dflow-api/internal/dmodel/service"
	"github.com/dflow-platform/dflow-api/internal/sessions"
	"github.com/dflow-platform/dflow-api/internal/storage"
	"github.com/dflow-platform/dflow-api/internal/tokens"
	"github.com/dflow-platform/dflow-api/internal/users"
	"github.com/dflow-platform/dflow-api/pkg/middleware"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

const testSecret = "handler-test-secret-32-bytes-xx"

type fakeToolchain struct {
	validateErr error
	generateErr error
}

func (f *fakeToolchain) Validate(ctx context.Context, modelPath string) error {
	return f.validateErr
}

func (f *fakeToolchain) Generate(ctx context.Context, modelPath, outDir string) error {
	if f.generateErr != nil {
		return f.generateErr
	}
	src, err := os.ReadFile(modelPath)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(outDir, "bot.py"), src, 0o600)
}

type testAPI struct {
	engine    *gin.Engine
	users     *users.Service
	models    *service.Service
	modelRepo *repository.MemoryRepo
	tc        *fakeToolchain
	jobs      *codegen.MemoryStore
	artifacts *storage.MemoryStorage
	merge     *MergeHandler
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := mr.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = rc.Close() })

	cfg := &config.Config{}
	cfg.JWT.Secret = testSecret
	cfg.JWT.AccessTokenTTL = 15 * time.Minute

	repo := repository.NewMemoryRepo()
	api := &testAPI{
		users:     users.NewService(users.NewMemoryUserRepository()),
		models:    service.New(repo),
		modelRepo: repo,
		tc:        &fakeToolchain{},
		jobs:      codegen.NewMemoryStore(),
		artifacts: storage.NewMemoryStorage(),
	}
	ds, err := dflow.NewService(api.tc, t.TempDir(), 5*time.Second)
	require.NoError(t, err)

	deny := sessions.NewDenylist(rc)
	protect := []gin.HandlerFunc{
		middleware.AuthMiddleware(tokens.NewVerifier(testSecret), deny),
		CurrentUser(api.users),
	}
	api.merge = NewMergeHandler(api.users, api.models, api.artifacts)

	r := gin.New()
	rg := r.Group("/")
	NewAuthHandler(cfg, api.users, sessions.NewService(sessions.NewRedisStore(rc, ""), time.Hour), deny).Register(rg, protect...)
	NewModelHandler(api.models).Register(rg, protect...)
	NewDflowHandler(ds, api.jobs, api.artifacts).Register(rg, protect...)
	api.merge.Register(rg, protect...)
	api.engine = r
	return api
}

func (a *testAPI) do(t *testing.T, method, path, token, contentType string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

func (a *testAPI) register(t *testing.T, username string) *httptest.ResponseRecorder {
	t.Helper()
	body := `{"new_user":{"username":"` + username + `","email":"` + username + `@example.com","password":"s3cret-pass"}}`
	return a.do(t, http.MethodPost, "/user", "", "application/json", strings.NewReader(body))
}

func (a *testAPI) login(t *testing.T, username, password string) *httptest.ResponseRecorder {
	t.Helper()
	form := url.Values{"username": {username}, "password": {password}}
	return a.do(t, http.MethodPost, "/user/login", "", "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
}

// signup registers username and returns its access and refresh tokens.
func (a *testAPI) signup(t *testing.T, username string) (string, string) {
	t.Helper()
	require.Equal(t, http.StatusCreated, a.register(t, username).Code)
	w := a.login(t, username, "s3cret-pass")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	return got["access_token"].(string), got["refresh_token"].(string)
}

func modelUpload(t *testing.T, name string, content []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("model_file", name)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got), w.Body.String())
	return got
}
