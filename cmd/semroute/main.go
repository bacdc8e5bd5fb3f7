// Package main provides the semroute binary entry point.
// Semroute routes free-text queries to remote tool invocations over NATS
// JetStream, correlating asynchronous results back to waiting callers.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/spf13/cobra"

	appconfig "github.com/c360studio/semroute/config"
	"github.com/c360studio/semroute/event"
	"github.com/c360studio/semroute/gateway"
	"github.com/c360studio/semroute/ingress"
	"github.com/c360studio/semroute/processor/coordinator"
	"github.com/c360studio/semroute/processor/matcher"
	"github.com/c360studio/semroute/resultwatch"
	"github.com/c360studio/semstreams/component"
	"github.com/c360studio/semstreams/natsclient"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "semroute"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "semroute",
		Short: "Asynchronous tool router",
		Long: `Semroute routes free-text user requests to registered remote tools.

Requests are normalized, matched against keyword rules and a tool catalog,
executed through an external invocation service, and correlated back to the
caller over NATS JetStream.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath, logLevel)
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	var askTimeout time.Duration
	askCmd := &cobra.Command{
		Use:   "ask [query]",
		Short: "Submit a query and wait for its result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(configPath, logLevel, strings.Join(args, " "), askTimeout)
		},
	}
	askCmd.Flags().DurationVar(&askTimeout, "timeout", 0, "Wait timeout (default from config)")
	cmd.AddCommand(askCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

func setupLogging(logLevel string) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

func loadConfig(configPath string, logger *slog.Logger) (*appconfig.Config, error) {
	if configPath != "" {
		cfg, err := appconfig.LoadFromFile(configPath)
		if err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return cfg, nil
	}
	return appconfig.NewLoader(logger).Load()
}

// runServe starts the matcher and coordinator processors and blocks until a
// shutdown signal.
func runServe(configPath, logLevel string) error {
	printBanner()
	logger := setupLogging(logLevel)

	cfg, err := loadConfig(configPath, logger)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()
	natsClient, err := connectToNATS(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer natsClient.Close(ctx)

	if err := ensureStream(ctx, cfg, natsClient, logger); err != nil {
		return err
	}

	// Register component factories for discovery
	componentRegistry := component.NewRegistry()
	if err := matcher.Register(componentRegistry); err != nil {
		return fmt.Errorf("register matcher: %w", err)
	}
	if err := coordinator.Register(componentRegistry); err != nil {
		return fmt.Errorf("register coordinator: %w", err)
	}
	slog.Info("Component factories registered", "count", len(componentRegistry.ListFactories()))

	deps := component.Dependencies{
		NATSClient: natsClient,
		Logger:     logger,
	}

	matcherComp, err := buildMatcher(cfg, deps)
	if err != nil {
		return err
	}
	coordComp, err := buildCoordinator(cfg, deps)
	if err != nil {
		return err
	}

	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	components := []struct {
		name string
		comp component.LifecycleComponent
	}{
		{"coordinator", coordComp.(component.LifecycleComponent)},
		{"matcher", matcherComp.(component.LifecycleComponent)},
	}
	for _, c := range components {
		if err := c.comp.Initialize(); err != nil {
			return fmt.Errorf("initialize %s: %w", c.name, err)
		}
		if err := c.comp.Start(signalCtx); err != nil {
			return fmt.Errorf("start %s: %w", c.name, err)
		}
	}

	slog.Info("Semroute ready",
		"version", Version,
		"stream", cfg.Route.Stream,
		"registry", cfg.Registry.URL != "",
		"invoker", cfg.Invoker.URL != "")

	<-signalCtx.Done()
	slog.Info("Received shutdown signal")

	shutdownTimeout := 30 * time.Second
	for i := len(components) - 1; i >= 0; i-- {
		c := components[i]
		if err := c.comp.Stop(shutdownTimeout); err != nil {
			slog.Error("Error stopping component", "component", c.name, "error", err)
		}
	}

	slog.Info("Semroute shutdown complete")
	return nil
}

// runAsk submits one query through the full pipeline and prints the result.
func runAsk(configPath, logLevel, query string, timeout time.Duration) error {
	logger := setupLogging(logLevel)

	cfg, err := loadConfig(configPath, logger)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if timeout <= 0 {
		timeout = cfg.Route.WaitTimeout
	}

	ctx := context.Background()
	natsClient, err := connectToNATS(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer natsClient.Close(ctx)

	if err := ensureStream(ctx, cfg, natsClient, logger); err != nil {
		return err
	}

	watcher := resultwatch.New(natsClient, resultwatch.WithLogger(logger))
	if err := watcher.Start(ctx); err != nil {
		return fmt.Errorf("start result watcher: %w", err)
	}
	defer func() {
		if err := watcher.Stop(); err != nil {
			logger.Warn("Failed to stop result watcher", "error", err)
		}
	}()

	gw := gateway.New(
		ingress.New(natsClient, ingress.WithLogger(logger)),
		watcher,
		gateway.WithLogger(logger),
		gateway.WithTimeout(cfg.Route.WaitTimeout),
	)

	result, err := gw.SubmitAndWait(ctx, query, timeout)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

func buildMatcher(cfg *appconfig.Config, deps component.Dependencies) (component.Discoverable, error) {
	matcherCfg := matcher.DefaultConfig()
	matcherCfg.StreamName = cfg.Route.Stream
	matcherCfg.RegistryURL = cfg.Registry.URL
	matcherCfg.ConfidenceThreshold = cfg.Matcher.ConfidenceThreshold
	matcherCfg.RulesFile = cfg.Matcher.RulesFile
	matcherCfg.WatchRules = cfg.Matcher.WatchRules

	raw, err := json.Marshal(matcherCfg)
	if err != nil {
		return nil, fmt.Errorf("marshal matcher config: %w", err)
	}
	comp, err := matcher.NewComponent(raw, deps)
	if err != nil {
		return nil, fmt.Errorf("create matcher: %w", err)
	}
	return comp, nil
}

func buildCoordinator(cfg *appconfig.Config, deps component.Dependencies) (component.Discoverable, error) {
	coordCfg := coordinator.DefaultConfig()
	coordCfg.StreamName = cfg.Route.Stream
	coordCfg.InvokerURL = cfg.Invoker.URL
	coordCfg.ClaimTTL = cfg.Route.ClaimTTL.String()

	raw, err := json.Marshal(coordCfg)
	if err != nil {
		return nil, fmt.Errorf("marshal coordinator config: %w", err)
	}
	comp, err := coordinator.NewComponent(raw, deps)
	if err != nil {
		return nil, fmt.Errorf("create coordinator: %w", err)
	}
	return comp, nil
}

func printBanner() {
	fmt.Println("╔═══════════════════════════════════════════════╗")
	fmt.Println("║             Semroute v" + Version + "                   ║")
	fmt.Println("║      Asynchronous Tool Router                 ║")
	fmt.Println("╚═══════════════════════════════════════════════╝")
}

func connectToNATS(ctx context.Context, cfg *appconfig.Config, logger *slog.Logger) (*natsclient.Client, error) {
	natsURL := cfg.NATS.URL

	// Environment variable override takes precedence
	if envURL := os.Getenv("NATS_URL"); envURL != "" {
		natsURL = envURL
	} else if envURL := os.Getenv(appconfig.EnvNATSURL); envURL != "" {
		natsURL = envURL
	}

	logger.Info("Connecting to NATS", "url", natsURL)

	client, err := natsclient.NewClient(natsURL,
		natsclient.WithName(appName),
		natsclient.WithMaxReconnects(-1),
		natsclient.WithReconnectWait(time.Second),
		natsclient.WithHealthInterval(30*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("create NATS client: %w", err)
	}

	if err := client.Connect(ctx); err != nil {
		return nil, wrapNATSError(err, natsURL)
	}

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := client.WaitForConnection(connCtx); err != nil {
		return nil, wrapNATSError(err, natsURL)
	}

	logger.Info("Connected to NATS", "url", natsURL)
	return client, nil
}

// wrapNATSError provides helpful guidance when NATS connection fails.
func wrapNATSError(err error, url string) error {
	errStr := err.Error()

	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no servers available") ||
		strings.Contains(errStr, "timeout") {
		return fmt.Errorf(`NATS connection failed: %w

NATS is not running at %s.

To start NATS:
  docker compose up -d nats

Or set NATS_URL environment variable to point to your NATS server.`, err, url)
	}

	return fmt.Errorf("NATS connection failed: %w", err)
}

// ensureStream creates the routing stream if it does not exist.
func ensureStream(ctx context.Context, cfg *appconfig.Config, natsClient *natsclient.Client, logger *slog.Logger) error {
	js, err := natsClient.JetStream()
	if err != nil {
		return fmt.Errorf("get jetstream: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name: cfg.Route.Stream,
		Subjects: []string{
			event.SubjectRequest,
			event.SubjectToolSignal,
			event.SubjectPlan,
			event.SubjectResult,
		},
		Storage:  jetstream.FileStorage,
		MaxAge:   24 * time.Hour,
		Replicas: 1,
	})
	if err != nil {
		return fmt.Errorf("ensure stream %s: %w", cfg.Route.Stream, err)
	}

	logger.Debug("JetStream stream ready", "stream", cfg.Route.Stream)
	return nil
}
