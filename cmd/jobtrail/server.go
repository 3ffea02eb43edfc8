package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/jobtrail/internal/api"
	"github.com/kalambet/jobtrail/internal/config"
	"github.com/kalambet/jobtrail/internal/fetch"
	"github.com/kalambet/jobtrail/internal/handlers"
	"github.com/kalambet/jobtrail/internal/llm"
	"github.com/kalambet/jobtrail/internal/observability"
	"github.com/kalambet/jobtrail/internal/parser"
	"github.com/kalambet/jobtrail/internal/profile"
	"github.com/kalambet/jobtrail/internal/scheduler"
	"github.com/kalambet/jobtrail/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the jobtrail server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running jobtrail server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show jobtrail system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Trigger one scheduler pass on the running server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		url := fmt.Sprintf("http://127.0.0.1:%d/internal/cron", cfg.Server.Port)
		client := &http.Client{Timeout: 5 * time.Minute}
		resp, err := client.Post(url, "", nil)
		if err != nil {
			return fmt.Errorf("server not reachable — is jobtrail running? (%w)", err)
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusNoContent {
			return fmt.Errorf("server returned %d", resp.StatusCode)
		}
		printSuccess("Scheduler tick triggered")
		return nil
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "jobtrail.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func logLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "jobtrail version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.LLM.AnthropicAPIKey == "" {
		return fmt.Errorf("JOBTRAIL_ANTHROPIC_API_KEY is required to start the server")
	}
	if cfg.Server.AuthToken == "" {
		return fmt.Errorf("JOBTRAIL_AUTH_TOKEN is required to start the server")
	}

	logger := observability.NewLogger(cfg.Log.JSON, logLevel(cfg.Log.Level))
	slog.SetDefault(logger)

	// Refuse to start twice. The health endpoint tells a live server apart
	// from a stale PID file left by a crash.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("jobtrail is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("jobtrail is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	// Wire the pipeline: LLM client, content fetcher, parser, task handlers.
	llmClient := llm.New(cfg.LLM.AnthropicAPIKey)
	reader := fetch.NewReaderWithBaseURL(cfg.Reader.APIKey, cfg.Reader.BaseURL)
	extractor := parser.NewExtractor(llmClient, cfg.LLM.Model)
	jobParser := parser.New(reader, extractor)
	profileMgr := profile.NewManager(store)
	taskHandlers := handlers.New(store, llmClient, reader, profileMgr)
	sched := scheduler.New(store, taskHandlers.Registry(), cfg.Scheduler.Interval())

	appHandler := api.NewAppHandler(api.AppDeps{
		Store:   store,
		Profile: profileMgr,
		Parser:  jobParser,
		Ticker:  sched,
		Token:   cfg.Server.AuthToken,
		Logger:  logger,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: appHandler,
	}

	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Store:  store,
		Parser: jobParser,
	})
	mcpAddr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.MCPPort)
	mcpHTTP := server.NewStreamableHTTPServer(mcpSrv)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("jobtrail listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		slog.Info("MCP server listening", "addr", mcpAddr)
		if err := mcpHTTP.Start(mcpAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("MCP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		sched.Run(gctx)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		fmt.Fprintln(os.Stderr, "shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mcpHTTP.Shutdown(shutdownCtx); err != nil {
			slog.Warn("MCP shutdown", "error", err)
		}
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("jobtrail is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop jobtrail (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to jobtrail (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/health")
	running := false
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == 200 {
			running = true
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	printStatus("Model", "%s", cfg.LLM.Model)
	printStatus("Reader", "%s", cfg.Reader.BaseURL)

	if running && cfg.Server.AuthToken != "" {
		apiC := &apiClient{
			baseURL:    serverURL,
			token:      cfg.Server.AuthToken,
			httpClient: client,
		}
		if jobsResp, err := apiC.get(context.Background(), "/api/jobs"); err == nil {
			var jobs []struct {
				Status string `json:"status"`
			}
			if decodeJSON(jobsResp, &jobs) == nil {
				processing := 0
				for _, j := range jobs {
					if j.Status == "processing" {
						processing++
					}
				}
				printStatus("Jobs", "%d total, %d processing", len(jobs), processing)
			}
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
