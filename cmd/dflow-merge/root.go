package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/dflow-platform/dflow-api/internal/merge"
	"github.com/dflow-platform/dflow-api/pkg/logger"
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var outputPath string
	var force bool
	var check bool
	logLevel := "warn"

	cmd := &cobra.Command{
		Use:           "dflow-merge FILE...",
		Short:         "Merge dFlow model files section by section",
		Long:          "Merge dFlow model files section by section. Use - to read a model from stdin.",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger.Init(logLevel)

			docs := make([]string, 0, len(args))
			for _, name := range args {
				raw, err := readInput(cmd, name)
				if err != nil {
					return err
				}
				docs = append(docs, raw)
			}

			if check {
				return report(cmd.OutOrStdout(), args, docs)
			}

			merged, err := merge.Merge(docs)
			if err != nil {
				return describe(err, args)
			}
			if strings.TrimSpace(outputPath) == "" || outputPath == "-" {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), merged)
				return err
			}
			flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
			if !force {
				flags |= os.O_EXCL
			}
			f, err := os.OpenFile(outputPath, flags, 0o644)
			if err != nil {
				if os.IsExist(err) {
					return fmt.Errorf("%s exists (use --force to overwrite)", outputPath)
				}
				return err
			}
			if _, err := io.WriteString(f, merged+"\n"); err != nil {
				f.Close()
				return err
			}
			logger.Infof("merged %d models into %s", len(docs), outputPath)
			return f.Close()
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the merged model to this file instead of stdout")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite the output file if it exists")
	cmd.Flags().BoolVar(&check, "check", false, "Only report the sections each file defines")
	cmd.Flags().StringVar(&logLevel, "log-level", logLevel, "Log level (debug, info, warn, error)")
	return cmd
}

func readInput(cmd *cobra.Command, name string) (string, error) {
	var (
		b   []byte
		err error
	)
	if name == "-" {
		b, err = io.ReadAll(cmd.InOrStdin())
	} else {
		b, err = os.ReadFile(name)
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	logger.Debugf("read %s (%d bytes)", name, len(b))
	return string(b), nil
}

// describe names the offending file in a merge error.
func describe(err error, names []string) error {
	var de *merge.DocumentError
	if errors.As(err, &de) && de.Index < len(names) {
		return fmt.Errorf("%s: %w", names[de.Index], err)
	}
	return err
}

func report(w io.Writer, names, docs []string) error {
	var failed int
	for i, doc := range docs {
		bodies, err := merge.Extract(doc)
		if err != nil {
			var de *merge.DocumentError
			if errors.As(err, &de) {
				de.Index = i
			}
			failed++
			fmt.Fprintf(w, "%s: %v\n", names[i], err)
			continue
		}
		found := make([]string, 0, len(bodies))
		for name := range bodies {
			found = append(found, name)
		}
		sort.Strings(found)
		fmt.Fprintf(w, "%s: ok [%s]\n", names[i], strings.Join(found, " "))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d models cannot be merged", failed, len(docs))
	}
	return nil
}
