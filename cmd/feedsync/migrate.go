// ABOUTME: Migration command for copying the cache between storage backends
// ABOUTME: Copies every record from the configured backend into a target backend with safety checks

package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harper/feedsync/internal/config"
	"github.com/harper/feedsync/internal/storage"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate the cache between storage backends",
	Long: `Copy every cached record from the currently configured backend to a different backend.

The target's previous contents are replaced. Does NOT update the config file;
verify the migration was successful then update config.json or rerun setup.

Examples:
  feedsync migrate --to charm
  feedsync migrate --to sqlite --data-dir ~/feedsync-sqlite
  feedsync migrate --to sqlite --data-dir ~/old --force`,
	RunE: runMigrate,
}

var (
	migrateTo      string
	migrateDataDir string
	migrateForce   bool
)

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().StringVar(&migrateTo, "to", "", "target backend (sqlite or charm)")
	migrateCmd.Flags().StringVar(&migrateDataDir, "data-dir", "", "target data directory (defaults to current config data_dir)")
	migrateCmd.Flags().BoolVar(&migrateForce, "force", false, "allow writing into a non-empty target directory")
	_ = migrateCmd.MarkFlagRequired("to")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	sourceBackend := cfg.GetBackend()
	target, err := migrateTarget(cfg, migrateTo, migrateDataDir)
	if err != nil {
		return err
	}

	if target.GetBackend() == config.BackendSQLite {
		nonEmpty, err := storage.IsDirNonEmpty(target.GetDataDir())
		if err != nil {
			return fmt.Errorf("check target directory: %w", err)
		}
		if nonEmpty && !migrateForce {
			return fmt.Errorf("target directory %q is not empty; use --force to overwrite", target.GetDataDir())
		}
	}

	src, err := cfg.OpenStore()
	if err != nil {
		return fmt.Errorf("open source storage (%s): %w", sourceBackend, err)
	}
	defer src.Close()

	dst, err := target.OpenStore()
	if err != nil {
		return fmt.Errorf("open target storage (%s): %w", target.GetBackend(), err)
	}
	defer dst.Close()

	color.Yellow("Migrating feedsync cache:")
	fmt.Printf("  Source:  %s (%s)\n", sourceBackend, cfg.GetDataDir())
	fmt.Printf("  Target:  %s (%s)\n", target.GetBackend(), target.GetDataDir())
	fmt.Println()

	summary, err := storage.MigrateData(ctx, src, dst)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	color.Green("Migration complete!")
	fmt.Printf("  Records: %d\n", summary.Records)
	fmt.Println()
	color.Yellow("Note: config.json was NOT updated. To switch to the new backend, edit:")
	fmt.Printf("  %s\n", config.GetConfigPath())
	fmt.Printf("  Set \"backend\": %q", target.GetBackend())
	if migrateDataDir != "" {
		fmt.Printf(" and \"data_dir\": %q", migrateDataDir)
	}
	fmt.Println()

	return nil
}

// migrateTarget validates the target backend and returns a config for it.
// The memory backend is rejected since its contents vanish on exit.
func migrateTarget(current *config.Config, backend, dataDir string) (*config.Config, error) {
	switch backend {
	case config.BackendSQLite, config.BackendCharm:
	default:
		return nil, fmt.Errorf("invalid target backend %q: must be %q or %q", backend, config.BackendSQLite, config.BackendCharm)
	}

	target := *current
	target.Backend = backend
	if dataDir != "" {
		target.DataDir = dataDir
	}

	sameDir := backend == config.BackendCharm || target.GetDataDir() == current.GetDataDir()
	if target.GetBackend() == current.GetBackend() && sameDir {
		return nil, fmt.Errorf("target backend %q is the same as the current backend", backend)
	}
	return &target, nil
}
