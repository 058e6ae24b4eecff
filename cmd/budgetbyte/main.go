package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/budgetbyte/budgetbyte/internal/ledger"
	"github.com/budgetbyte/budgetbyte/internal/receipt"
	"github.com/budgetbyte/budgetbyte/internal/scanning"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

// config is everything the flags and environment control
type config struct {
	port        int
	dbPath      string
	storagePath string
	scannerType string
	geminiKey   string
	geminiModel string
	ollamaURL   string
	ollamaModel string
	authUser    string
	authPass    string
	logLevel    slog.Level
	showVersion bool
}

// parseConfig reads flags, then BUDGETBYTE_* variables for anything unset
func parseConfig(args []string) (*config, error) {
	fs := ff.NewFlagSet("budgetbyte")
	var (
		port        = fs.IntLong("port", 8080, "HTTP server port")
		dbPath      = fs.StringLong("db", "budgetbyte.db", "Database file path")
		storagePath = fs.StringLong("storage", "./receipts", "Storage directory path")
		scannerType = fs.StringLong("scanner", "gemini", "Scanner type: 'gemini' or 'ollama'")
		geminiKey   = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel = fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name")
		ollamaURL   = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel = fs.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, llava-phi3, bakllava, qwen2-vl)")
		authUser    = fs.StringLong("auth-user", "", "Basic auth username, also the ledger owner (optional)")
		authPass    = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		logLevel    = fs.StringLong("log-level", "info", "Log level: debug, info, warn or error")
		showVersion = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, args, ff.WithEnvVarPrefix("BUDGETBYTE")); err != nil {
		return nil, fmt.Errorf("%s\n%w", ffhelp.Flags(fs), err)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", *logLevel, err)
	}

	cfg := &config{
		port:        *port,
		dbPath:      *dbPath,
		storagePath: *storagePath,
		scannerType: *scannerType,
		geminiKey:   *geminiKey,
		geminiModel: *geminiModel,
		ollamaURL:   *ollamaURL,
		ollamaModel: *ollamaModel,
		authUser:    *authUser,
		authPass:    *authPass,
		logLevel:    level,
		showVersion: *showVersion,
	}
	if cfg.geminiKey == "" {
		cfg.geminiKey = os.Getenv("GEMINI_API_KEY")
	}
	return cfg, nil
}

// newScanner builds the configured receipt scanner
func newScanner(ctx context.Context, cfg *config) (scanning.Scanner, error) {
	switch cfg.scannerType {
	case "gemini":
		if cfg.geminiKey == "" {
			return nil, errors.New("gemini API key is required: set --gemini-key or GEMINI_API_KEY")
		}
		slog.Info("Initializing Gemini scanner...", "model", cfg.geminiModel)
		return scanning.NewGemini(ctx, cfg.geminiKey, cfg.geminiModel)
	case "ollama":
		slog.Info("Initializing Ollama scanner...", "url", cfg.ollamaURL, "model", cfg.ollamaModel)
		return scanning.NewOllama(cfg.ollamaURL, cfg.ollamaModel)
	default:
		return nil, fmt.Errorf("invalid scanner type %q: want gemini or ollama", cfg.scannerType)
	}
}

func run(ctx context.Context, cfg *config) error {
	slog.Info("Initializing database...", "path", cfg.dbPath)
	db, err := receipt.NewBoltDB(cfg.dbPath)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer db.Close()

	// The ledger lives in the same bolt file as the receipts
	ledgerStore, err := ledger.NewBoltStore(db.Bolt())
	if err != nil {
		return fmt.Errorf("initializing ledger store: %w", err)
	}

	scanner, err := newScanner(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing scanner: %w", err)
	}
	defer scanner.Close()

	slog.Info("Initializing storage...", "path", cfg.storagePath)
	store, err := receipt.NewLocalStorage(cfg.storagePath)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}

	service := receipt.NewService(db, scanner, store, ledger.NewAggregator(ledgerStore))
	server := receipt.NewServer(service, receipt.BasicAuth{
		Username: cfg.authUser,
		Password: cfg.authPass,
	})

	addr := fmt.Sprintf(":%d", cfg.port)
	errc := make(chan error, 1)
	go func() {
		errc <- server.Start(addr)
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "version", version)
	if cfg.authUser != "" || cfg.authPass != "" {
		slog.Info("Basic auth enabled", "user", cfg.authUser)
	}

	select {
	case err := <-errc:
		return fmt.Errorf("serving http: %w", err)
	case <-ctx.Done():
		slog.Info("Shutting down...")
		return nil
	}
}

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	// A missing .env file is fine; the environment and flags still apply
	_ = godotenv.Load()

	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if cfg.showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.logLevel})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("Exiting", "error", err)
		stop()
		os.Exit(1)
	}
}
