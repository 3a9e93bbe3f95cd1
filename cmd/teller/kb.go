package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/harborbank/teller/internal/config"
	"github.com/harborbank/teller/internal/retrieval"
)

func kbCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kb",
		Short: "Manage the knowledge base behind FAQ answers",
	}
	cmd.AddCommand(kbIngestCmd())
	return cmd
}

func kbIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <dir>",
		Short: "Load markdown and text documents into the knowledge base",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKBIngest(cmd, args[0])
		},
	}
}

func runKBIngest(cmd *cobra.Command, dir string) error {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	var paths []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".md", ".txt":
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	if len(paths) == 0 {
		return fmt.Errorf("no .md or .txt documents found under %s", dir)
	}

	store, err := retrieval.NewStore(cfg.Retrieval.DBPath)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	bar := progressbar.NewOptions(len(paths),
		progressbar.OptionSetWriter(cmd.OutOrStdout()),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("Ingesting documents..."),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(cmd.OutOrStdout())
		}),
	)

	ctx := cmd.Context()
	for _, path := range paths {
		content, err := os.ReadFile(path) //nolint:gosec // paths come from the user's own directory walk
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		if err := store.Add(ctx, filepath.Base(path), string(content)); err != nil {
			return err
		}
		_ = bar.Add(1)
	}

	total, err := store.Count(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Knowledge base now holds %d documents (%s)\n", total, cfg.Retrieval.DBPath)
	return nil
}
