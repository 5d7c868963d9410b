package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/gallery/internal/api"
	"github.com/kalambet/gallery/internal/auth"
	"github.com/kalambet/gallery/internal/client"
	"github.com/kalambet/gallery/internal/config"
	"github.com/kalambet/gallery/internal/media"
	"github.com/kalambet/gallery/internal/navigation"
	"github.com/kalambet/gallery/internal/profile"
	"github.com/kalambet/gallery/internal/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gallery HTTP server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server and account status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve read-only museum tools over MCP (stdio)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMCP(cmd.Context())
	},
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// newBucket opens media.bucket when set. Otherwise objects live under
// media.dir, or <data_dir>/media when that is unset too.
func newBucket(ctx context.Context, cfg config.Config) (*media.Bucket, error) {
	base := strings.TrimRight(cfg.Server.PublicURL, "/") + cfg.Media.BaseURL
	if cfg.Media.Bucket != "" {
		return media.OpenBucket(ctx, cfg.Media.Bucket, base)
	}
	dir := cfg.Media.Dir
	if dir == "" {
		dir = filepath.Join(cfg.Storage.DataDir, "media")
	}
	return media.NewFileBucket(dir, base)
}

// requestBase keeps request contexts alive past the shutdown signal so
// Shutdown can drain them.
func requestBase(ctx context.Context) func(net.Listener) context.Context {
	base := context.WithoutCancel(ctx)
	return func(net.Listener) context.Context { return base }
}

func runServer(parent context.Context) error {
	fmt.Fprintf(os.Stderr, "gallery version %s\n", version)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log.Level)

	authCfg, err := auth.LoadConfigFromEnv()
	if err != nil {
		return err
	}
	key, err := config.GetSessionSecret(authCfg.Secret)
	if err != nil {
		return fmt.Errorf("initializing session secret: %w", err)
	}
	sessions, err := auth.NewSessions(key, authCfg)
	if err != nil {
		return err
	}
	if authCfg.DevLogin {
		slog.Warn("dev login enabled: anyone can sign in by email")
	}

	ctx, stop := signalContext(parent)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("closing storage", "error", err)
		}
	}()

	bucket, err := newBucket(ctx, cfg)
	if err != nil {
		return err
	}
	defer bucket.Close()

	deps := api.AppDeps{
		Profiles: profile.NewManager(store),
		Sessions: sessions,
		Media:    bucket,
		Jobs:     store,
		Store:    store,
		DevLogin: authCfg.DevLogin,
	}
	if cfg.Media.Serve {
		deps.MediaHandler = bucket.Handler()
		deps.MediaPrefix = cfg.Media.BaseURL
	}

	addr := cfg.Server.Addr()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	if cfg.Server.MaxConns > 0 {
		ln = netutil.LimitListener(ln, cfg.Server.MaxConns)
	}

	srv := &http.Server{
		Handler:           api.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       requestBase(ctx),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		worker.NewWorker(store, bucket, cfg.Worker.Poll()).Run(gctx)
		return nil
	})
	g.Go(func() error {
		slog.Info("gallery listening", "addr", addr, "driver", cfg.Storage.Driver)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func runMCP(parent context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// stdout carries the protocol; keep logs on stderr.
	setupLogging(cfg.Log.Level)

	ctx, stop := signalContext(parent)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Profiles:  profile.NewManager(store),
		Museums:   store,
		Locations: navigation.DefaultRegistry(),
	}, version)

	slog.Info("MCP server started (stdio transport)")
	err = server.NewStdioServer(mcpSrv).Listen(ctx, os.Stdin, os.Stdout)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("MCP stdio server: %w", err)
	}
	return nil
}

func showStatus(ctx context.Context) error {
	c, cfg, err := clientFromFlags()
	if err != nil {
		// Still show partial status even if config fails.
		printError("config error: %v", err)
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.Health(pingCtx); err != nil {
		printStatus("Server", "unreachable at %s", cfg.Client.ServerURL)
	} else {
		printStatus("Server", "running at %s", cfg.Client.ServerURL)
		if cfg.Client.Token == "" {
			printStatus("Account", "signed out")
		} else if me, err := c.Me(pingCtx); err != nil {
			printStatus("Account", "session invalid (%v)", err)
		} else if me.UsernameRequired {
			printStatus("Account", "%s (no username yet)", me.Name)
		} else {
			printStatus("Account", "%s (@%s)", me.Name, me.Username)
		}
	}

	printStatus("Storage", "%s", cfg.Storage.Driver)
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

// newClient builds an API client from the CLI config. Replaced in tests.
var newClient = func(cfg config.Config) *client.Client {
	return client.New(cfg.Client.ServerURL, cfg.Client.Token)
}
