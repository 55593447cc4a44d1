package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rcrt-io/rcrt/internal/auth"
	"github.com/rcrt-io/rcrt/internal/breadcrumbsvc"
	"github.com/rcrt-io/rcrt/internal/config"
	"github.com/rcrt-io/rcrt/internal/embedding"
	"github.com/rcrt-io/rcrt/internal/eventbus"
	"github.com/rcrt-io/rcrt/internal/httpapi"
	"github.com/rcrt-io/rcrt/internal/hygiene"
	"github.com/rcrt-io/rcrt/internal/secrets"
	"github.com/rcrt-io/rcrt/internal/storage/postgres"
	"github.com/rcrt-io/rcrt/internal/transform"
)

var policyFile string

func init() {
	serveCmd.Flags().StringVar(&policyFile, "policy", "", "path to an embedding-policy yaml file (optional)")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the breadcrumb server: HTTP API, event publisher, and hygiene loop",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()
		return runServe(ctx)
	},
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := newLogger(cfg)

	store, err := postgres.Open(ctx, cfg.DBURL)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	bus, err := eventbus.New(cfg.NatsURL, log)
	if err != nil {
		return fmt.Errorf("open event bus: %w", err)
	}
	defer bus.Close()

	priv, err := auth.ParsePrivateKeyPEM(cfg.JWTPrivateKey)
	if err != nil {
		return fmt.Errorf("parse JWT_PRIVATE_KEY: %w", err)
	}
	pub, err := auth.ParsePublicKeyPEM(cfg.JWTPublicKey)
	if err != nil {
		return fmt.Errorf("parse JWT_PUBLIC_KEY: %w", err)
	}
	minter := auth.NewMinter(priv, cfg.JWTTokenTTL)
	verifier := auth.NewVerifier(pub)

	kek, err := secrets.NewKEK(cfg.LocalKEKBase64)
	if err != nil {
		return fmt.Errorf("init KEK: %w", err)
	}

	var denylist []string
	edgePolicy := breadcrumbsvc.DefaultEdgePolicy()
	if policyFile != "" {
		pf := config.LoadEmbeddingPolicyFile(policyFile)
		denylist = pf.SchemaDenylist
		if pf.TagEdgeMinShared > 0 {
			edgePolicy.TagEdgeMinShared = pf.TagEdgeMinShared
		}
		if pf.SemanticEdgeTopM > 0 {
			edgePolicy.SemanticEdgeTopM = pf.SemanticEdgeTopM
		}
		if pf.SemanticEdgeThreshold > 0 {
			edgePolicy.SemanticEdgeThreshold = pf.SemanticEdgeThreshold
		}
		if d, perr := time.ParseDuration(pf.TemporalWindow); perr == nil && d > 0 {
			edgePolicy.TemporalWindow = d
		}
	}

	embedPolicy := embedding.NewPolicy(denylist)
	embedModel := embedding.NewModel(log)
	engine := transform.NewEngine()
	hints := transform.NewSchemaHintsCache()

	svc := breadcrumbsvc.New(store, bus, embedModel, embedPolicy, engine, hints, kek, edgePolicy)

	ownerIDs, err := store.ListOwnerIDs(ctx)
	if err != nil {
		log.Warn("could not list owners for schema-hint warm-up", "error", err)
	}
	for _, ownerID := range ownerIDs {
		if err := svc.WarmSchemaHints(ctx, ownerID); err != nil {
			log.Warn("schema hint warm-up failed", "owner_id", ownerID, "error", err)
		}
	}

	worker := hygiene.NewWorker(store, bus, log, cfg.HygieneInterval, cfg.IdempotencyTTL)
	go worker.Run(ctx)

	srv := httpapi.NewServer(httpapi.Deps{
		Service:      svc,
		Store:        store,
		Bus:          bus,
		Minter:       minter,
		Verifier:     verifier,
		KEK:          kek,
		Log:          log,
		SSEKeepalive: cfg.SSEKeepalive,
		SSEBuffer:    cfg.SSESendBufferSize,
	})

	httpServer := &http.Server{
		Handler:      srv.Router(),
		ReadTimeout:  cfg.RequestTimeout,
		WriteTimeout: cfg.RequestTimeout,
		IdleTimeout:  120 * time.Second,
	}

	listener, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.ListenAddr, err)
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	log.Info("rcrtd listening", "addr", cfg.ListenAddr)
	if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
