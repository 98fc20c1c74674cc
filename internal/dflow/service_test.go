package dflow

import (
	"archive/tar"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeToolchain struct {
	validateErr error
	seen        []string
	files       map[string]string
}

func (f *fakeToolchain) Validate(_ context.Context, modelPath string) error {
	f.seen = append(f.seen, modelPath)
	if _, err := os.Stat(modelPath); err != nil {
		return err
	}
	return f.validateErr
}

func (f *fakeToolchain) Generate(_ context.Context, modelPath, outDir string) error {
	f.seen = append(f.seen, modelPath)
	for name, body := range f.files {
		p := filepath.Join(outDir, name)
		if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
			return err
		}
		if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
			return err
		}
	}
	return nil
}

func readTarball(t *testing.T, path string) map[string]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	tr := tar.NewReader(gz)
	out := map[string]string{}
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		b, err := io.ReadAll(tr)
		require.NoError(t, err)
		out[hdr.Name] = string(b)
	}
	return out
}

func TestValidateModelStagesAndCleansUp(t *testing.T) {
	dir := t.TempDir()
	tc := &fakeToolchain{}
	svc, err := NewService(tc, dir, time.Second)
	require.NoError(t, err)

	require.NoError(t, svc.ValidateModel(context.Background(), []byte("entities\nend")))
	require.Len(t, tc.seen, 1)
	assert.True(t, strings.HasPrefix(filepath.Base(tc.seen[0]), "model_for_validation-"))
	assert.NoFileExists(t, tc.seen[0])

	tc.validateErr = &ToolError{Op: "validate", Output: "line 1: unexpected", Err: errors.New("exit status 1")}
	err = svc.ValidateModel(context.Background(), []byte("bogus"))
	var te *ToolError
	require.ErrorAs(t, err, &te)
	assert.Contains(t, err.Error(), "unexpected")
}

func TestEmptyModelRejected(t *testing.T) {
	svc, err := NewService(&fakeToolchain{}, t.TempDir(), 0)
	require.NoError(t, err)
	require.ErrorIs(t, svc.ValidateModel(context.Background(), []byte(" \n")), ErrEmptyModel)
	_, err = svc.Generate(context.Background(), nil)
	require.ErrorIs(t, err, ErrEmptyModel)
}

func TestGeneratePacksOutput(t *testing.T) {
	dir := t.TempDir()
	tc := &fakeToolchain{files: map[string]string{
		"domain.yml":      "intents: []",
		"actions/main.py": "print('hi')",
	}}
	svc, err := NewService(tc, dir, time.Second)
	require.NoError(t, err)

	art, err := svc.Generate(context.Background(), []byte("dialogues\nend"))
	require.NoError(t, err)
	assert.Equal(t, art.ID+".tar.gz", art.Name)
	assert.FileExists(t, art.Path)

	root := "gen-" + art.ID + "/"
	entries := readTarball(t, art.Path)
	names := make([]string, 0, len(entries))
	for n := range entries {
		names = append(names, n)
	}
	sort.Strings(names)
	assert.Equal(t, []string{root, root + "actions/", root + "actions/main.py", root + "domain.yml"}, names)
	assert.Equal(t, "intents: []", entries[root+"domain.yml"])

	require.NoError(t, art.Cleanup())
	left, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestDecodeBase64(t *testing.T) {
	for _, enc := range []string{"Pz8/", "Pz8_", "Pz8/\n"} {
		b, err := DecodeBase64(enc)
		require.NoError(t, err, enc)
		assert.Equal(t, "???", string(b))
	}
	_, err := DecodeBase64("not base64!")
	require.ErrorIs(t, err, ErrInvalidB64)
}

func TestNewServiceRequiresDir(t *testing.T) {
	_, err := NewService(&fakeToolchain{}, "", 0)
	require.Error(t, err)
}
