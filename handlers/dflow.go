package handlers

import (
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/dflow-platform/dflow-api/internal/codegen"
	"github.com/dflow-platform/dflow-api/internal/dflow"
	"github.com/dflow-platform/dflow-api/internal/storage"
	"github.com/dflow-platform/dflow-api/pkg/logger"
	"github.com/gin-gonic/gin"
)

// ArtifactHeader carries the object key of an uploaded artifact.
const ArtifactHeader = "X-Artifact-Key"

// DflowHandler exposes the DSL toolchain: validation and code generation.
// Artifacts are uploaded when an ArtifactStore is configured.
type DflowHandler struct {
	svc       *dflow.Service
	jobs      codegen.Store
	artifacts storage.ArtifactStore
}

func NewDflowHandler(svc *dflow.Service, jobs codegen.Store, artifacts storage.ArtifactStore) *DflowHandler {
	return &DflowHandler{svc: svc, jobs: jobs, artifacts: artifacts}
}

func (h *DflowHandler) Register(rg *gin.RouterGroup, protect ...gin.HandlerFunc) {
	p := rg.Group("", protect...)
	p.POST("/validation/file", h.ValidateFile)
	p.POST("/validation/b64", h.ValidateB64)
	p.POST("/codegen/file", h.GenerateFile)
	p.POST("/codegen/b64", h.GenerateB64)
	p.GET("/codegen/jobs", h.ListJobs)
	p.GET("/codegen/jobs/:id", h.GetJob)
}

func (h *DflowHandler) ValidateFile(c *gin.Context) {
	raw, err := readModelFile(c)
	if err != nil {
		detail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	h.validate(c, raw)
}

func (h *DflowHandler) ValidateB64(c *gin.Context) {
	raw, err := readB64(c)
	if err != nil {
		detail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	h.validate(c, raw)
}

// validate always answers 200; the outcome is reported in the body.
func (h *DflowHandler) validate(c *gin.Context, raw []byte) {
	resp := gin.H{"status": http.StatusOK, "message": ""}
	if err := h.svc.ValidateModel(c.Request.Context(), raw); err != nil {
		resp["status"] = http.StatusNotFound
		resp["message"] = err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

func (h *DflowHandler) GenerateFile(c *gin.Context) {
	raw, err := readModelFile(c)
	if err != nil {
		detail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	h.generate(c, raw)
}

func (h *DflowHandler) GenerateB64(c *gin.Context) {
	raw, err := readB64(c)
	if err != nil {
		detail(c, http.StatusBadRequest, err.Error())
		return
	}
	h.generate(c, raw)
}

func (h *DflowHandler) generate(c *gin.Context, raw []byte) {
	ctx := c.Request.Context()
	u := currentUser(c)
	art, err := h.svc.Generate(ctx, raw)
	if err != nil {
		var te *dflow.ToolError
		code := http.StatusInternalServerError
		if errors.Is(err, dflow.ErrEmptyModel) || errors.As(err, &te) {
			code = http.StatusBadRequest
		}
		if te != nil {
			h.record(c, &codegen.Job{JobID: dflow.NewID(), Username: u.Username, Status: codegen.StatusError, Message: err.Error()})
		}
		logger.Warnf("codegen for %s failed: %v", u.Username, err)
		detail(c, code, err.Error())
		return
	}
	defer func() {
		if err := art.Cleanup(); err != nil {
			logger.Warnf("cleanup codegen %s: %v", art.ID, err)
		}
	}()

	job := &codegen.Job{JobID: art.ID, Username: u.Username, Status: codegen.StatusReady}
	if h.artifacts != nil {
		key := storage.CodegenKey(u.Username, art.ID)
		if err := h.upload(c, key, art.Path); err != nil {
			logger.Errorf("upload codegen %s: %v", art.ID, err)
		} else {
			job.ArtifactKey = key
			c.Header(ArtifactHeader, key)
		}
	}
	h.record(c, job)

	c.Header("Content-Type", dflow.TarballMediaType)
	c.FileAttachment(art.Path, art.Name)
}

func (h *DflowHandler) upload(c *gin.Context, key, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return err
	}
	return h.artifacts.Upload(c.Request.Context(), key, f, st.Size(), dflow.TarballMediaType)
}

func (h *DflowHandler) record(c *gin.Context, j *codegen.Job) {
	if h.jobs == nil {
		return
	}
	if err := h.jobs.Save(c.Request.Context(), j); err != nil {
		logger.Warnf("record codegen job %s: %v", j.JobID, err)
	}
}

func (h *DflowHandler) ListJobs(c *gin.Context) {
	if h.jobs == nil {
		c.JSON(http.StatusOK, []*codegen.Job{})
		return
	}
	jobs, err := h.jobs.ListForUser(c.Request.Context(), currentUser(c).Username)
	if err != nil {
		logger.Errorf("list codegen jobs: %v", err)
		detail(c, http.StatusInternalServerError, "failed to list jobs")
		return
	}
	if jobs == nil {
		jobs = []*codegen.Job{}
	}
	c.JSON(http.StatusOK, jobs)
}

// GetJob returns a job of the current user, with a presigned download URL
// when its artifact was stored.
func (h *DflowHandler) GetJob(c *gin.Context) {
	if h.jobs == nil {
		detail(c, http.StatusNotFound, "Job does not exist")
		return
	}
	j, err := h.jobs.Load(c.Request.Context(), c.Param("id"))
	if err != nil {
		logger.Errorf("load codegen job: %v", err)
		detail(c, http.StatusInternalServerError, "failed to load job")
		return
	}
	if j == nil || j.Username != currentUser(c).Username {
		detail(c, http.StatusNotFound, "Job does not exist")
		return
	}
	resp := gin.H{"job": j}
	if j.ArtifactKey != "" && h.artifacts != nil {
		if u, err := h.artifacts.PresignedURL(c.Request.Context(), j.ArtifactKey, 15*time.Minute); err == nil {
			resp["url"] = u
		} else {
			logger.Warnf("presign %s: %v", j.ArtifactKey, err)
		}
	}
	c.JSON(http.StatusOK, resp)
}
