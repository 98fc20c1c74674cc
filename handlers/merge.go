package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dflow-platform/dflow-api/internal/dmodel/service"
	"github.com/dflow-platform/dflow-api/internal/merge"
	"github.com/dflow-platform/dflow-api/internal/storage"
	"github.com/dflow-platform/dflow-api/internal/users"
	"github.com/dflow-platform/dflow-api/pkg/logger"
	"github.com/dflow-platform/dflow-api/pkg/metrics"
	"github.com/gin-gonic/gin"
)

// MergeHandler merges the current model of every user.
type MergeHandler struct {
	users     *users.Service
	models    *service.Service
	artifacts storage.ArtifactStore
	now       func() time.Time
}

func NewMergeHandler(u *users.Service, m *service.Service, artifacts storage.ArtifactStore) *MergeHandler {
	return &MergeHandler{users: u, models: m, artifacts: artifacts, now: time.Now}
}

func (h *MergeHandler) Register(rg *gin.RouterGroup, protect ...gin.HandlerFunc) {
	rg.Group("", protect...).GET("/merge", h.Merge)
}

func (h *MergeHandler) Merge(c *gin.Context) {
	ctx := c.Request.Context()
	all, err := h.users.List(ctx)
	if err != nil {
		logger.Errorf("list users: %v", err)
		detail(c, http.StatusInternalServerError, "failed to list users")
		return
	}
	latest, err := h.models.LatestPerUser(ctx, all)
	if err != nil {
		logger.Errorf("collect models: %v", err)
		detail(c, http.StatusInternalServerError, "failed to load models")
		return
	}
	if len(latest) == 0 {
		metrics.Merges.WithLabelValues("empty").Inc()
		detail(c, http.StatusBadRequest, "Model storage is empty!")
		return
	}

	docs := make([]string, len(latest))
	for i, m := range latest {
		docs[i] = m.Raw
	}
	metrics.MergeInputs.Observe(float64(len(docs)))
	merged, err := merge.Merge(docs)
	if err != nil {
		metrics.Merges.WithLabelValues("error").Inc()
		var de *merge.DocumentError
		if errors.As(err, &de) && de.Index < len(latest) {
			err = fmt.Errorf("model %s of %s: %w", latest[de.Index].ID, latest[de.Index].Username, err)
		}
		logger.Warnf("merge failed: %v", err)
		detail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	metrics.Merges.WithLabelValues("ok").Inc()

	name := fmt.Sprintf("merged-%d.dflow", h.now().Unix())
	if h.artifacts != nil {
		key := storage.MergeKey(name)
		if err := h.artifacts.Upload(ctx, key, bytes.NewReader([]byte(merged)), int64(len(merged)), dflowMediaType); err != nil {
			logger.Errorf("upload merged model: %v", err)
		} else {
			c.Header(ArtifactHeader, key)
		}
	}
	attach(c, name, dflowMediaType, []byte(merged))
}
