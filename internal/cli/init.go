package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/kilupskalvis/lexmerge/internal/config"
	"github.com/kilupskalvis/lexmerge/internal/store"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new lexmerge repository",
	Long: `Initialize a new lexmerge repository in the current directory.
This creates a .lexmerge directory holding the configuration and the
operation database.`,
	Run: runInit,
}

var (
	initBackend     string
	initWeaviateURL string
	initActor       string
)

func init() {
	initCmd.Flags().StringVar(&initBackend, "backend", config.BackendBolt, "Entry backend (bolt, sqlite, weaviate)")
	initCmd.Flags().StringVar(&initWeaviateURL, "weaviate-url", "", "Weaviate server URL (weaviate backend)")
	initCmd.Flags().StringVar(&initActor, "actor", "", "Default actor recorded on operations")
}

func runInit(cmd *cobra.Command, args []string) {
	dir, err := os.Getwd()
	if err != nil {
		exitError("%v", err)
	}

	cfg := config.Default()
	cfg.Backend = initBackend
	cfg.WeaviateURL = initWeaviateURL
	cfg.Actor = initActor

	if err := initRepository(context.Background(), dir, cfg); err != nil {
		exitError("%v", err)
	}

	fmt.Printf("Initialized empty lexmerge repository in %s/\n", config.LexmergeDir)
	fmt.Printf("Entry backend: %s\n", cfg.Backend)
	if cfg.Backend == config.BackendWeaviate {
		fmt.Printf("Tracking Weaviate at %s\n", cfg.WeaviateURL)
	}
}

// initRepository writes the configuration, creates the operation
// database and checks that the entry backend can be opened.
func initRepository(ctx context.Context, dir string, cfg *config.Config) error {
	if _, err := config.FindRoot(dir); err == nil {
		return fmt.Errorf("lexmerge repository already exists")
	}

	cfg, err := config.Initialize(dir, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	st, err := store.New(cfg.DatabasePath())
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}
	if err := st.Initialize(); err != nil {
		st.Close()
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	st.Close()

	c, err := openRepository(ctx, cfg, os.Stderr)
	if err != nil {
		return err
	}
	c.Close()
	return nil
}
