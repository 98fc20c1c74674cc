package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

// fakeToken implements Token
type fakeToken struct {
	data map[string]interface{}
}

func (t *fakeToken) Claims(v interface{}) error {
	if mm, ok := v.(*map[string]interface{}); ok {
		*mm = t.data
		return nil
	}
	return fmt.Errorf("unsupported claims type")
}

// fakeVerifier accepts a single raw token
type fakeVerifier struct {
	accept string
	claims map[string]interface{}
}

func (f *fakeVerifier) Verify(ctx context.Context, raw string) (Token, error) {
	if raw == f.accept {
		return &fakeToken{data: f.claims}, nil
	}
	return nil, fmt.Errorf("invalid token")
}

type fakeDenylist map[string]bool

func (d fakeDenylist) IsDenied(ctx context.Context, token string) (bool, error) {
	if token == "broken" {
		return false, errors.New("redis down")
	}
	return d[token], nil
}

func goodVerifier() *fakeVerifier {
	return &fakeVerifier{accept: "goodtoken", claims: map[string]interface{}{"sub": "user1", "email": "test@example.com"}}
}

func serve(t *testing.T, mw gin.HandlerFunc, header string) *httptest.ResponseRecorder {
	t.Helper()
	g := gin.New()
	g.GET("/", mw, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"username": Username(c)})
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rw := httptest.NewRecorder()
	g.ServeHTTP(rw, req)
	return rw
}

func TestAuthMiddleware_NoHeader(t *testing.T) {
	rw := serve(t, AuthMiddleware(goodVerifier(), nil), "")
	require.Equal(t, http.StatusUnauthorized, rw.Code)
	require.Equal(t, "Bearer", rw.Header().Get("WWW-Authenticate"))
}

func TestAuthMiddleware_InvalidHeader(t *testing.T) {
	rw := serve(t, AuthMiddleware(goodVerifier(), nil), "BadHeader")
	require.Equal(t, http.StatusUnauthorized, rw.Code)
	rw = serve(t, AuthMiddleware(goodVerifier(), nil), "Basic goodtoken")
	require.Equal(t, http.StatusUnauthorized, rw.Code)
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	rw := serve(t, AuthMiddleware(goodVerifier(), nil), "Bearer goodtoken")
	require.Equal(t, http.StatusOK, rw.Code)
	var got map[string]string
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &got))
	require.Equal(t, "user1", got["username"])
}

func TestAuthMiddleware_RejectsDeniedToken(t *testing.T) {
	deny := fakeDenylist{"goodtoken": true}
	rw := serve(t, AuthMiddleware(goodVerifier(), deny), "Bearer goodtoken")
	require.Equal(t, http.StatusUnauthorized, rw.Code)

	rw = serve(t, AuthMiddleware(goodVerifier(), deny), "Bearer broken")
	require.Equal(t, http.StatusInternalServerError, rw.Code)
}

func TestChainVerifier(t *testing.T) {
	oidcLike := &fakeVerifier{accept: "idp", claims: map[string]interface{}{"sub": "f3a1", "preferred_username": "carol"}}
	chain := ChainVerifier{goodVerifier(), nil, oidcLike}

	rw := serve(t, AuthMiddleware(chain, nil), "Bearer idp")
	require.Equal(t, http.StatusOK, rw.Code)
	require.Contains(t, rw.Body.String(), `"carol"`)

	rw = serve(t, AuthMiddleware(chain, nil), "Bearer goodtoken")
	require.Equal(t, http.StatusOK, rw.Code)

	rw = serve(t, AuthMiddleware(chain, nil), "Bearer other")
	require.Equal(t, http.StatusUnauthorized, rw.Code)

	_, err := ChainVerifier{}.Verify(context.Background(), "x")
	require.Error(t, err)
}
