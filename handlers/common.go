package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dflow-platform/dflow-api/internal/dflow"
	"github.com/dflow-platform/dflow-api/internal/models"
	"github.com/dflow-platform/dflow-api/internal/users"
	"github.com/dflow-platform/dflow-api/pkg/logger"
	"github.com/dflow-platform/dflow-api/pkg/middleware"
	"github.com/gin-gonic/gin"
)

const (
	userKey = "user"

	// dflowMediaType is served for model and merged-model downloads.
	dflowMediaType = "text/plain; charset=utf-8"

	maxModelBytes = 8 << 20
)

var errModelTooLarge = fmt.Errorf("model exceeds %d bytes", maxModelBytes)

func detail(c *gin.Context, code int, msg string) {
	c.AbortWithStatusJSON(code, gin.H{"detail": msg})
}

// CurrentUser loads the authenticated user for handlers behind
// middleware.AuthMiddleware. Unknown or inactive users are rejected.
func CurrentUser(svc *users.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := middleware.Username(c)
		if name == "" {
			detail(c, http.StatusUnauthorized, "Could not validate token credentials.")
			return
		}
		u, err := svc.GetByUsername(c.Request.Context(), name)
		if errors.Is(err, users.ErrUserNotFound) || (err == nil && !u.IsActive) {
			detail(c, http.StatusUnauthorized, "Not an authenticated user.")
			return
		}
		if err != nil {
			logger.Errorf("load current user %s: %v", name, err)
			detail(c, http.StatusInternalServerError, "user lookup failed")
			return
		}
		c.Set(userKey, u)
		c.Next()
	}
}

func currentUser(c *gin.Context) *models.User {
	u, _ := c.MustGet(userKey).(*models.User)
	return u
}

// usernameParam validates the :username path parameter, answering 422 when
// it is malformed.
func usernameParam(c *gin.Context) (string, bool) {
	name := c.Param("username")
	if !users.ValidUsername(name) {
		detail(c, http.StatusUnprocessableEntity, users.ErrInvalidUsername.Error())
		return "", false
	}
	return name, true
}

// readModelFile reads the multipart "model_file" field.
func readModelFile(c *gin.Context) ([]byte, error) {
	fh, err := c.FormFile("model_file")
	if err != nil {
		return nil, err
	}
	if fh.Size > maxModelBytes {
		return nil, errModelTooLarge
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, maxModelBytes))
}

// readB64 decodes the "fenc" parameter from the query string or form body.
func readB64(c *gin.Context) ([]byte, error) {
	enc, ok := c.GetQuery("fenc")
	if !ok {
		enc = c.PostForm("fenc")
	}
	return dflow.DecodeBase64(enc)
}

func attach(c *gin.Context, name, mediaType string, data []byte) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, mediaType, data)
}
