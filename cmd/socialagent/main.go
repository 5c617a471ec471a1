package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/TobiSchelling/SocialAgent/internal/config"
	"github.com/TobiSchelling/SocialAgent/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "socialagent",
	Short:   "Trend-driven social content assistant",
	Long:    "SocialAgent turns trending topics into post ideas, adapts them per platform, checks them against brand rules and schedules them for publishing.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		if err := godotenv.Load(); err != nil && verbose {
			log.Println("No .env file loaded")
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if strings.EqualFold(cfg.Logging.Level, "debug") {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(trendsCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(ideasCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(analyticsCmd)
	rootCmd.AddCommand(accountsCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("socialagent", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/socialagent/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure trend feeds, brand rules, and the caption provider.")
		fmt.Println("Set OAUTH_STATE_SECRET and TOKEN_ENCRYPTION_KEY (or a .env file) to connect accounts.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		schema, err := db.SchemaVersion()
		if err != nil {
			return err
		}

		fmt.Printf("Database: %s (schema v%d)\n\n", db.Path(), schema)
		fmt.Println("Trends:")
		fmt.Printf("  Stored: %d\n", stats.Trends)
		fmt.Println("\nIdeas:")
		fmt.Printf("  Total: %d\n", stats.Ideas)
		fmt.Printf("  Draft: %d\n", stats.DraftIdeas)
		fmt.Printf("  Approved: %d\n", stats.ApprovedIdeas)
		fmt.Printf("  Scheduled: %d\n", stats.ScheduledIdeas)
		fmt.Println("\nPublishing:")
		fmt.Printf("  Scheduled posts: %d\n", stats.ScheduledPosts)
		fmt.Printf("  Published posts: %d\n", stats.Posts)
		fmt.Printf("  Metrics snapshots: %d\n", stats.Snapshots)
		fmt.Printf("  Connected accounts: %d\n", stats.Accounts)
		fmt.Printf("\nPipeline runs: %d\n", stats.Runs)

		if last, err := db.GetLastRun(); err == nil && last != nil {
			fmt.Printf("Last run: %s (%d ideas, %d passed, %d failed)\n",
				last.GeneratedAt, last.IdeaCount, last.PassedCount, last.FailedCount)
		}
		return nil
	},
}

// --- serve command ---

var (
	servePort       int
	publishInterval time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server and dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		lock := flock.New(filepath.Join(cfg.GetDataDir(), "serve.lock"))
		locked, err := lock.TryLock()
		if err != nil {
			return fmt.Errorf("acquiring server lock: %w", err)
		}
		if !locked {
			return fmt.Errorf("another socialagent server is already running on %s", cfg.GetDataDir())
		}
		defer lock.Unlock()

		opts := server.Options{
			OAuth:       a.auth,
			Metrics:     a.metrics,
			UserID:      cfg.OAuth.UserID,
			CORSOrigins: cfg.Server.CORSOrigins,
		}
		if verbose {
			opts.AccessLog = os.Stderr
		}
		srv, err := server.New(a.db, a.svc, opts)
		if err != nil {
			return err
		}

		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port = servePort
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if publishInterval > 0 && a.auth != nil {
			go runPublisherLoop(ctx, a, publishInterval)
		}

		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(ctx, srv, port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8000, "Port to run server on")
	serveCmd.Flags().DurationVar(&publishInterval, "publish-interval", 0, "Publish due posts at this interval (0 disables)")
}

func runPublisherLoop(ctx context.Context, a *app, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res, err := a.svc.RunPublisher(ctx)
			if err != nil {
				log.Printf("Publisher run failed: %v", err)
				continue
			}
			if res.Due > 0 {
				log.Printf("Publisher run: %d due, %d published, %d failed", res.Due, res.Published, res.Failed)
			}
		}
	}
}
