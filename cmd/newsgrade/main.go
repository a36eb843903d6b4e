package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/TobiSchelling/NewsGrade/internal/config"
	"github.com/TobiSchelling/NewsGrade/internal/database"
	"github.com/TobiSchelling/NewsGrade/internal/digest"
	"github.com/TobiSchelling/NewsGrade/internal/gateway"
	"github.com/TobiSchelling/NewsGrade/internal/news"
	"github.com/TobiSchelling/NewsGrade/internal/pipeline"
	"github.com/TobiSchelling/NewsGrade/internal/redisstore"
	"github.com/TobiSchelling/NewsGrade/internal/sentiment"
	"github.com/TobiSchelling/NewsGrade/internal/server"
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
	Use:     "newsgrade",
	Short:   "Graded news by category",
	Long:    "NewsGrade searches news for configured categories, removes near-duplicate headlines, and grades each story from BIG_GOOD to BIG_BAD.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		log.SetFlags(log.LstdFlags)

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			if verbose {
				log.SetFlags(log.LstdFlags | log.Lshortfile)
			}
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if verbose || cfg.Debug() {
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
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(digestCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("newsgrade", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in the XDG config directory",
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
		fmt.Println("Edit it to configure categories, queries, and the cache backend.")
		fmt.Println("Set NAVER_CLIENT_ID, NAVER_CLIENT_SECRET and HUGGINGFACE_API_KEY to enable search and model grading.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show cache and configuration status",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("Categories: %s\n", strings.Join(cfg.CategoryNames(), ", "))
		fmt.Printf("Cache backend: %s (TTL %s, max %d items)\n", cfg.Cache.Backend, cfg.CacheTTL(), cfg.Cache.MaxItems)
		fmt.Printf("Naver search: %s\n", configured(os.Getenv(cfg.Sources.Naver.ClientIDEnv) != "" && os.Getenv(cfg.Sources.Naver.ClientSecretEnv) != ""))
		fmt.Printf("Sentiment model: %s\n", configured(os.Getenv(cfg.Sentiment.APIKeyEnv) != ""))

		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		db, ok := store.(*database.DB)
		if !ok {
			fmt.Println("\nRow statistics are only available for SQL backends.")
			return nil
		}

		stats, err := db.CacheStats(cmd.Context(), time.Now().Add(-cfg.CacheTTL()))
		if err != nil {
			return fmt.Errorf("getting cache stats: %w", err)
		}
		fmt.Printf("\nCache (%s):\n", db.Dialect())
		if len(stats) == 0 {
			fmt.Println("  empty")
		}
		for _, s := range stats {
			fmt.Printf("  %s: %d rows, %d fresh, last write %s\n", s.Category, s.Total, s.Fresh, s.LastWrite.Local().Format(time.DateTime))
		}
		return nil
	},
}

func configured(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}

// --- fetch command ---

var (
	fetchRegion string
	fetchQuery  string
	fetchJSON   bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <category>",
	Short: "Fetch graded news for a category",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		items, err := loadNews(cmd.Context(), gateway.Request{Category: args[0], Region: fetchRegion, Search: fetchQuery})
		if err != nil {
			return err
		}

		if fetchJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(items)
		}

		if len(items) == 0 {
			fmt.Println("No news found.")
			return nil
		}
		for _, it := range items {
			fmt.Printf("[%-8s %.2f] %s\n", it.Grade.Label(), it.Confidence, it.Headline)
			fmt.Printf("    %s · %s\n", it.Source, it.PublishedAt.Local().Format(time.DateTime))
		}
		fmt.Printf("\n%d items\n", len(items))
		return nil
	},
}

func init() {
	fetchCmd.Flags().StringVarP(&fetchRegion, "region", "r", "", "Region within the category")
	fetchCmd.Flags().StringVarP(&fetchQuery, "query", "q", "", "Free-form search term (bypasses the cache)")
	fetchCmd.Flags().BoolVar(&fetchJSON, "json", false, "Print items as JSON")
}

// --- digest command ---

var digestRegion string

var digestCmd = &cobra.Command{
	Use:   "digest <category>",
	Short: "Print a Markdown digest of a category's graded news",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		items, err := loadNews(cmd.Context(), gateway.Request{Category: args[0], Region: digestRegion})
		if err != nil {
			return err
		}
		fmt.Print(digest.Compose(args[0], digestRegion, items).Markdown())
		return nil
	},
}

func init() {
	digestCmd.Flags().StringVarP(&digestRegion, "region", "r", "", "Region within the category")
}

// --- classify command ---

var classifyCmd = &cobra.Command{
	Use:   "classify <text>",
	Short: "Grade a piece of text",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, _ := sentiment.FromConfig(cfg.Sentiment).Classify(cmd.Context(), strings.Join(args, " "))
		fmt.Printf("%s (%.2f)\n", res.Grade.Label(), res.Confidence)
		return nil
	},
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		gw := gateway.New(store, pipeline.FromConfig(cfg), cfg, cfg.CacheTTL(), cfg.Cache.MaxItems)
		defer gw.Wait()

		port := servePort
		if !cmd.Flags().Changed("port") && cfg.Server.Port > 0 {
			port = cfg.Server.Port
		}
		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(gw, cfg.CategoryNames(), port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8000, "Port to run server on")
}

type cacheStore interface {
	gateway.Store
	Close() error
}

// loadNews runs one request through a short-lived gateway and waits for
// its cache write before returning.
func loadNews(ctx context.Context, req gateway.Request) ([]news.Item, error) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	store, err := openStore(ctx)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	gw := gateway.New(store, pipeline.FromConfig(cfg), cfg, cfg.CacheTTL(), cfg.Cache.MaxItems)
	defer gw.Wait()

	items, err := gw.News(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", req.Category, err)
	}
	return items, nil
}

func openStore(ctx context.Context) (cacheStore, error) {
	switch cfg.Cache.Backend {
	case "postgres":
		dsn := os.Getenv(cfg.Cache.PostgresDSNEnv)
		if dsn == "" {
			return nil, fmt.Errorf("postgres backend selected but %s is not set", cfg.Cache.PostgresDSNEnv)
		}
		return database.OpenPostgres(dsn)
	case "redis":
		return redisstore.New(ctx, cfg.Cache.RedisAddr)
	default:
		dataDir := cfg.GetDataDir()
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		return database.Open(filepath.Join(dataDir, "newsgrade.db"))
	}
}
