package commands

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tally-dev/tally/internal/categorize"
	"github.com/tally-dev/tally/internal/config"
	"github.com/tally-dev/tally/internal/gitops"
)

func newInitCommand() *cobra.Command {
	var useGit bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new tally project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			return runInit(cmd.OutOrStdout(), absDir, useGit)
		},
	}

	cmd.Flags().BoolVar(&useGit, "git", false, "version the data directory with git and commit after every merge")
	return cmd
}

func runInit(out io.Writer, dir string, useGit bool) error {
	cfgPath := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(cfgPath); err == nil {
		return fmt.Errorf("%s already exists", cfgPath)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("checking %s: %w", cfgPath, err)
	}

	cfg := config.Default(dir)
	cfg.Git.AutoCommit = useGit

	// Create directory structure.
	dirs := []string{cfg.DataPath(), cfg.OutputPath(), filepath.Dir(cfg.ReportPath())}
	for _, w := range cfg.Watchers {
		dirs = append(dirs, cfg.Resolve(w.Dir))
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	if err := config.Save(cfgPath, cfg); err != nil {
		return err
	}

	cats, err := categorize.Load(cfg.CategoriesPath())
	if err != nil {
		return err
	}
	if err := cats.Save(); err != nil {
		return fmt.Errorf("writing category table: %w", err)
	}

	gitignore := "data/session.csv*\n.env\n"
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignore), 0o644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}

	if useGit {
		repo, err := gitops.Init(cfg.DataPath(), cfg.Git.AuthorName, cfg.Git.AuthorEmail)
		if err != nil {
			return err
		}
		if _, err := repo.Commit("init: category table", filepath.Base(cfg.CategoriesPath())); err != nil {
			return fmt.Errorf("initial commit: %w", err)
		}
	}

	fmt.Fprintf(out, "Initialized tally project at %s\n", dir)
	return nil
}
