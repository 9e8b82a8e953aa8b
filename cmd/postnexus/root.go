// Package main provides the root command and shared lifecycle wiring.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kimhsiao/postnexus/internal/config"
	"github.com/kimhsiao/postnexus/internal/db"
	"github.com/kimhsiao/postnexus/internal/logging"
	"github.com/kimhsiao/postnexus/internal/remote"
	"github.com/kimhsiao/postnexus/internal/repo"
	"github.com/kimhsiao/postnexus/internal/uploader"
)

// Version is set at build time.
var Version = "0.1.0"

var (
	globalConfig   *config.Config
	globalDB       *db.DB
	globalRepo     *repo.Repository
	globalUploader *uploader.Synchronizer
)

// awaitTimeout bounds how long a CLI command waits on a repository future.
const awaitTimeout = 30 * time.Second

var rootCmd = &cobra.Command{
	Use:   "postnexus",
	Short: "Local-first post manager with one-shot remote publishing",
	Long: `PostNexus keeps your posts in a local SQLite store and can publish an
immutable snapshot of a post to a remote store exactly once.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "version" {
			return nil
		}

		// Optional .env for local development; absence is fine.
		_ = godotenv.Load()

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		globalConfig = cfg

		logging.Init(os.Stderr, cfg.LogLevel)

		dataDir, err := cfg.GetDataDir()
		if err != nil {
			return fmt.Errorf("failed to resolve data dir: %w", err)
		}
		database, err := db.Open(dataDir)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		globalDB = database

		if err := db.NewMigrator(database.DB).Up(); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}

		globalRepo = repo.New(db.NewStore(database), repo.Options{})

		if cfg.HasRemote() {
			store := remote.NewHTTPStore(remote.HTTPConfig{
				APIURL: cfg.Remote.APIURL,
				APIKey: cfg.Remote.APIKey,
			})
			globalUploader = uploader.New(globalRepo, store, cfg.PublishTimeout())
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if globalRepo != nil {
			globalRepo.Close()
			globalRepo = nil
		}
		if globalDB != nil {
			_ = globalDB.Close()
			globalDB = nil
		}
	},
}
