package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/savecontext/savecontext/internal/config"
	"github.com/savecontext/savecontext/internal/scerror"
	"github.com/savecontext/savecontext/internal/storage/sqlite"
)

var initCmd = &cobra.Command{
	Use:     "init",
	GroupID: "setup",
	Short:   "Initialize the savecontext database and register the current project",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Initialize(); err != nil {
			return scerror.Wrap(scerror.CodeConfigError, "loading configuration", err)
		}
		if dbFlag != "" {
			config.Set("db", dbFlag)
		}

		path, err := config.DatabasePath()
		if err != nil {
			return scerror.Wrap(scerror.CodeConfigError, "resolving database path", err)
		}

		st, err := sqlite.Open(rootCtx, path, 30*time.Second)
		if err != nil {
			return scerror.Wrap(scerror.CodeNotInitialized, "creating database", err)
		}
		defer st.Close()

		cwd, err := os.Getwd()
		if err != nil {
			return scerror.Wrap(scerror.CodeIOError, "resolving current directory", err)
		}

		proj, err := st.GetOrCreateProject(rootCtx, cwd)
		if err != nil {
			return scerror.Wrap(scerror.CodeInternal, "registering project", err)
		}

		emit(proj, func() {
			fmt.Printf("initialized savecontext at %s\nproject: %s\n", path, proj.Path)
		})
		return nil
	},
}
