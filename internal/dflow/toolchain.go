// Package dflow stages dFlow models on disk and drives the external DSL
// toolchain (validator and code generator) as subprocesses.
package dflow

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/mattn/go-shellwords"
)

// Toolchain validates models and generates code from them. Implementations
// receive paths to staged files; the model grammar is opaque to this package.
type Toolchain interface {
	Validate(ctx context.Context, modelPath string) error
	Generate(ctx context.Context, modelPath, outDir string) error
}

// ToolError carries the output of a failed toolchain command.
type ToolError struct {
	Op     string
	Output string
	Err    error
}

func (e *ToolError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Err, e.Output)
}

func (e *ToolError) Unwrap() error { return e.Err }

// CommandToolchain runs configured commands. The model path (and for
// codegen, the output directory) are appended as trailing arguments.
type CommandToolchain struct {
	validate []string
	generate []string
}

// NewCommandToolchain parses shell-style command lines such as
// "python3 -m dflow validate".
func NewCommandToolchain(validateCmd, codegenCmd string) (*CommandToolchain, error) {
	v, err := parseCommand(validateCmd)
	if err != nil {
		return nil, fmt.Errorf("validate command: %w", err)
	}
	g, err := parseCommand(codegenCmd)
	if err != nil {
		return nil, fmt.Errorf("codegen command: %w", err)
	}
	return &CommandToolchain{validate: v, generate: g}, nil
}

func parseCommand(line string) ([]string, error) {
	argv, err := shellwords.Parse(line)
	if err != nil {
		return nil, err
	}
	if len(argv) == 0 {
		return nil, errors.New("empty command")
	}
	return argv, nil
}

func (t *CommandToolchain) Validate(ctx context.Context, modelPath string) error {
	return run(ctx, "validate", t.validate, modelPath)
}

func (t *CommandToolchain) Generate(ctx context.Context, modelPath, outDir string) error {
	return run(ctx, "codegen", t.generate, modelPath, outDir)
}

func run(ctx context.Context, op string, argv []string, extra ...string) error {
	args := append(append([]string{}, argv[1:]...), extra...)
	cmd := exec.CommandContext(ctx, argv[0], args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return &ToolError{Op: op, Output: strings.TrimSpace(string(out)), Err: err}
	}
	return nil
}
