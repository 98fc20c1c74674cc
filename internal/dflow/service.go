package dflow

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dflow-platform/dflow-api/pkg/logger"
	"github.com/dflow-platform/dflow-api/pkg/metrics"
	"github.com/google/uuid"
)

// TarballMediaType is the media type of generated output.
const TarballMediaType = "application/x-tar"

var (
	ErrEmptyModel = errors.New("model is empty")
	ErrInvalidB64 = errors.New("invalid base64 payload")
)

// Service stages models under a staging directory and runs the toolchain.
type Service struct {
	toolchain  Toolchain
	stagingDir string
	timeout    time.Duration
}

// NewService creates the staging directory if needed. A zero timeout
// disables the per-run deadline.
func NewService(tc Toolchain, stagingDir string, timeout time.Duration) (*Service, error) {
	if stagingDir == "" {
		return nil, errors.New("staging directory is required")
	}
	if err := os.MkdirAll(stagingDir, 0o750); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	return &Service{toolchain: tc, stagingDir: stagingDir, timeout: timeout}, nil
}

// Artifact is a generated tarball on disk.
type Artifact struct {
	ID   string
	Path string
	Name string

	files []string
}

// Cleanup removes the tarball and the staged inputs it was built from.
func (a *Artifact) Cleanup() error {
	var errs []error
	for _, p := range append([]string{a.Path}, a.files...) {
		if err := os.RemoveAll(p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewID returns a short random identifier used for staged files and jobs.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

func (s *Service) stage(name string, raw []byte) (string, error) {
	if strings.TrimSpace(string(raw)) == "" {
		return "", ErrEmptyModel
	}
	p := filepath.Join(s.stagingDir, name)
	if err := os.WriteFile(p, raw, 0o600); err != nil {
		return "", fmt.Errorf("stage model: %w", err)
	}
	return p, nil
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func observe(op string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.ToolchainRuns.WithLabelValues(op, result).Inc()
	metrics.ToolchainDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// ValidateModel checks raw with the toolchain validator.
func (s *Service) ValidateModel(ctx context.Context, raw []byte) (err error) {
	id := NewID()
	path, err := s.stage("model_for_validation-"+id+".dflow", raw)
	if err != nil {
		return err
	}
	defer os.Remove(path)

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	start := time.Now()
	defer func() { observe("validate", start, err) }()
	if err = s.toolchain.Validate(ctx, path); err != nil {
		logger.Debugf("validation %s failed: %v", id, err)
	}
	return err
}

// Generate runs the code generator on raw and packs its output directory.
// The caller owns the returned artifact and must call Cleanup.
func (s *Service) Generate(ctx context.Context, raw []byte) (_ *Artifact, err error) {
	id := NewID()
	modelPath, err := s.stage("model-"+id+".dflow", raw)
	if err != nil {
		return nil, err
	}
	genDir := filepath.Join(s.stagingDir, "gen-"+id)
	art := &Artifact{
		ID:    id,
		Path:  filepath.Join(s.stagingDir, id+".tar.gz"),
		Name:  id + ".tar.gz",
		files: []string{modelPath, genDir},
	}
	defer func() {
		if err != nil {
			_ = art.Cleanup()
		}
	}()
	if err := os.MkdirAll(genDir, 0o750); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	start := time.Now()
	err = s.toolchain.Generate(ctx, modelPath, genDir)
	observe("codegen", start, err)
	if err != nil {
		return nil, err
	}
	if err = MakeTarball(art.Path, genDir); err != nil {
		return nil, err
	}
	logger.Infof("codegen %s packed to %s", id, art.Path)
	return art, nil
}

// DecodeBase64 accepts standard or URL-safe base64, padded or not.
func DecodeBase64(enc string) ([]byte, error) {
	enc = strings.TrimSpace(enc)
	for _, e := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.RawURLEncoding} {
		if b, err := e.DecodeString(enc); err == nil {
			return b, nil
		}
	}
	return nil, ErrInvalidB64
}
