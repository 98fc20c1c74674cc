package handlers

import (
	"errors"
	"net/http"

	"github.com/dflow-platform/dflow-api/internal/dmodel"
	"github.com/dflow-platform/dflow-api/internal/dmodel/service"
	"github.com/dflow-platform/dflow-api/pkg/logger"
	"github.com/gin-gonic/gin"
)

// ModelHandler stores and serves user models.
type ModelHandler struct {
	models *service.Service
}

func NewModelHandler(m *service.Service) *ModelHandler {
	return &ModelHandler{models: m}
}

// Register mounts the model routes; every route requires a current user.
func (h *ModelHandler) Register(rg *gin.RouterGroup, protect ...gin.HandlerFunc) {
	p := rg.Group("", protect...)
	p.POST("/model", h.StoreFile)
	p.POST("/model/b64", h.StoreB64)
	p.GET("/model/:id", h.Get)
	p.GET("/model/:id/file", h.GetFile)
	p.DELETE("/model/:id", h.Delete)
	p.GET("/user/:username/model/last", h.Last)
	p.GET("/user/:username/model/last/file", h.LastFile)
	p.GET("/user/:username/models", h.List)
}

func (h *ModelHandler) StoreFile(c *gin.Context) {
	raw, err := readModelFile(c)
	if err != nil {
		detail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	h.store(c, raw)
}

func (h *ModelHandler) StoreB64(c *gin.Context) {
	raw, err := readB64(c)
	if err != nil {
		detail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	h.store(c, raw)
}

func (h *ModelHandler) store(c *gin.Context, raw []byte) {
	u := currentUser(c)
	m, err := h.models.Store(c.Request.Context(), u, raw)
	switch {
	case errors.Is(err, service.ErrEmptyModel), errors.Is(err, service.ErrNotText):
		detail(c, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, service.ErrMalformedModel):
		detail(c, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		logger.Errorf("store model for %s: %v", u.Username, err)
		detail(c, http.StatusInternalServerError, "failed to store model")
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *ModelHandler) lookup(c *gin.Context, find func() (*dmodel.Model, error)) (*dmodel.Model, bool) {
	m, err := find()
	if errors.Is(err, service.ErrNotFound) {
		detail(c, http.StatusBadRequest, "Model does not exist")
		return nil, false
	}
	if err != nil {
		logger.Errorf("load model: %v", err)
		detail(c, http.StatusInternalServerError, "failed to load model")
		return nil, false
	}
	return m, true
}

func (h *ModelHandler) byID(c *gin.Context) (*dmodel.Model, bool) {
	return h.lookup(c, func() (*dmodel.Model, error) {
		return h.models.Get(c.Request.Context(), c.Param("id"))
	})
}

func (h *ModelHandler) lastFor(c *gin.Context) (*dmodel.Model, bool) {
	name, ok := usernameParam(c)
	if !ok {
		return nil, false
	}
	return h.lookup(c, func() (*dmodel.Model, error) {
		return h.models.LastForUser(c.Request.Context(), name)
	})
}

func (h *ModelHandler) Get(c *gin.Context) {
	if m, ok := h.byID(c); ok {
		c.JSON(http.StatusOK, m)
	}
}

func (h *ModelHandler) GetFile(c *gin.Context) {
	if m, ok := h.byID(c); ok {
		attach(c, m.FileName(), dflowMediaType, []byte(m.Raw))
	}
}

func (h *ModelHandler) Last(c *gin.Context) {
	if m, ok := h.lastFor(c); ok {
		c.JSON(http.StatusOK, m)
	}
}

func (h *ModelHandler) LastFile(c *gin.Context) {
	if m, ok := h.lastFor(c); ok {
		attach(c, m.FileName(), dflowMediaType, []byte(m.Raw))
	}
}

func (h *ModelHandler) List(c *gin.Context) {
	name, ok := usernameParam(c)
	if !ok {
		return
	}
	ms, err := h.models.ListForUser(c.Request.Context(), name)
	if err != nil {
		logger.Errorf("list models for %s: %v", name, err)
		detail(c, http.StatusInternalServerError, "failed to list models")
		return
	}
	if ms == nil {
		ms = []*dmodel.Model{}
	}
	c.JSON(http.StatusOK, ms)
}

// Delete removes a model owned by the current user. Deleting an unknown id
// succeeds.
func (h *ModelHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	m, err := h.models.Get(c.Request.Context(), id)
	if errors.Is(err, service.ErrNotFound) {
		c.JSON(http.StatusOK, gin.H{"deleted": id})
		return
	}
	if err != nil {
		logger.Errorf("load model %s: %v", id, err)
		detail(c, http.StatusInternalServerError, "failed to delete model")
		return
	}
	if m.Username != currentUser(c).Username {
		detail(c, http.StatusForbidden, "Model belongs to another user")
		return
	}
	if err := h.models.Delete(c.Request.Context(), id); err != nil && !errors.Is(err, service.ErrNotFound) {
		logger.Errorf("delete model %s: %v", id, err)
		detail(c, http.StatusInternalServerError, "failed to delete model")
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

