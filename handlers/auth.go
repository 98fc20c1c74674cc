package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/dflow-platform/dflow-api/internal/config"
	"github.com/dflow-platform/dflow-api/internal/sessions"
	"github.com/dflow-platform/dflow-api/internal/tokens"
	"github.com/dflow-platform/dflow-api/internal/users"
	"github.com/dflow-platform/dflow-api/pkg/logger"
	"github.com/dflow-platform/dflow-api/pkg/middleware"
	"github.com/gin-gonic/gin"
)

// AuthHandler serves registration, login and user lookup.
type AuthHandler struct {
	cfg      *config.Config
	users    *users.Service
	sessions *sessions.Service
	deny     *sessions.Denylist
}

func NewAuthHandler(cfg *config.Config, u *users.Service, s *sessions.Service, deny *sessions.Denylist) *AuthHandler {
	return &AuthHandler{cfg: cfg, users: u, sessions: s, deny: deny}
}

// Register mounts the public routes on rg and the rest behind protect.
func (h *AuthHandler) Register(rg *gin.RouterGroup, protect ...gin.HandlerFunc) {
	rg.POST("/user", h.RegisterUser)
	rg.POST("/user/login", h.Login)
	rg.POST("/user/refresh", h.Refresh)

	p := rg.Group("", protect...)
	p.POST("/user/logout", h.Logout)
	p.GET("/user/me", h.Me)
	p.GET("/user/:username", h.GetUser)
	p.GET("/user/:username/profile", h.GetProfile)
}

type newUserRequest struct {
	NewUser struct {
		Username string `json:"username" binding:"required"`
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	} `json:"new_user"`
}

func (h *AuthHandler) RegisterUser(c *gin.Context) {
	var req newUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	u, err := h.users.Register(c.Request.Context(), req.NewUser.Username, req.NewUser.Email, req.NewUser.Password)
	switch {
	case errors.Is(err, users.ErrUserExists):
		detail(c, http.StatusBadRequest, "That username or email is already taken. Please try another one.")
		return
	case errors.Is(err, users.ErrInvalidUsername), errors.Is(err, users.ErrInvalidEmail), errors.Is(err, users.ErrWeakPassword):
		detail(c, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		logger.Errorf("register %s: %v", req.NewUser.Username, err)
		detail(c, http.StatusInternalServerError, "registration failed")
		return
	}
	logger.Infof("registered user %s", u.Username)
	c.JSON(http.StatusCreated, u)
}

// Login implements the OAuth2 password form: username and password fields.
func (h *AuthHandler) Login(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")
	u, err := h.users.Authenticate(c.Request.Context(), username, password)
	if err != nil {
		if !errors.Is(err, users.ErrInvalidCredentials) {
			logger.Errorf("authenticate %s: %v", username, err)
		}
		c.Header("WWW-Authenticate", "Bearer")
		detail(c, http.StatusUnauthorized, "Authentication was unsuccessful.")
		return
	}
	access, err := tokens.GenerateAccessToken(h.cfg.JWT.Secret, u, h.cfg.JWT.AccessTokenTTL)
	if err != nil {
		logger.Errorf("sign access token: %v", err)
		detail(c, http.StatusInternalServerError, "failed to create access token")
		return
	}
	refresh, err := h.sessions.Issue(c.Request.Context(), u.Username)
	if err != nil {
		logger.Errorf("issue refresh token: %v", err)
		detail(c, http.StatusInternalServerError, "failed to create session")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token":  access,
		"token_type":    "bearer",
		"refresh_token": refresh,
		"expires_in":    int(h.cfg.JWT.AccessTokenTTL / time.Second),
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" form:"refresh_token" binding:"required"`
}

// Refresh exchanges a refresh token for a new access token.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBind(&req); err != nil {
		detail(c, http.StatusBadRequest, err.Error())
		return
	}
	g, err := h.sessions.Validate(c.Request.Context(), req.RefreshToken)
	if err != nil {
		logger.Errorf("validate refresh token: %v", err)
		detail(c, http.StatusInternalServerError, "validation failed")
		return
	}
	if g == nil {
		detail(c, http.StatusUnauthorized, "invalid refresh token")
		return
	}
	u, err := h.users.GetByUsername(c.Request.Context(), g.Username)
	if err != nil || !u.IsActive {
		detail(c, http.StatusUnauthorized, "invalid refresh token")
		return
	}
	access, err := tokens.GenerateAccessToken(h.cfg.JWT.Secret, u, h.cfg.JWT.AccessTokenTTL)
	if err != nil {
		detail(c, http.StatusInternalServerError, "failed to create access token")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token": access,
		"token_type":   "bearer",
		"expires_in":   int(h.cfg.JWT.AccessTokenTTL / time.Second),
	})
}

// Logout revokes the refresh token, if given, and deny-lists the bearer
// access token until it expires.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req refreshRequest
	_ = c.ShouldBind(&req)

	if at, ok := middleware.BearerToken(c); ok {
		if claims, err := tokens.ParseAccessToken(h.cfg.JWT.Secret, at); err == nil {
			if exp, err := tokens.ExpiresAt(claims); err == nil {
				if err := h.deny.Deny(c.Request.Context(), at, time.Until(exp)); err != nil {
					logger.Errorf("deny access token: %v", err)
					detail(c, http.StatusInternalServerError, "failed to revoke access token")
					return
				}
			}
		}
	}
	if req.RefreshToken != "" {
		if err := h.sessions.Revoke(c.Request.Context(), req.RefreshToken); err != nil {
			logger.Errorf("revoke refresh token: %v", err)
			detail(c, http.StatusInternalServerError, "failed to remove session")
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func (h *AuthHandler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, currentUser(c))
}

func (h *AuthHandler) GetUser(c *gin.Context) {
	name, ok := usernameParam(c)
	if !ok {
		return
	}
	u, err := h.users.GetByUsername(c.Request.Context(), name)
	if err != nil {
		detail(c, http.StatusBadRequest, "User does not exist")
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *AuthHandler) GetProfile(c *gin.Context) {
	name, ok := usernameParam(c)
	if !ok {
		return
	}
	p, err := h.users.Profile(c.Request.Context(), name)
	if err != nil {
		detail(c, http.StatusBadRequest, "User profile does not exist")
		return
	}
	c.JSON(http.StatusOK, p)
}
