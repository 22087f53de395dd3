package main

import (
	"chat-pipeline/gateway"
	"chat-pipeline/internal"
	"chat-pipeline/repositories"
	"chat-pipeline/runtime"
	"chat-pipeline/runtime/workers"
	"chat-pipeline/sink"
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/mama165/sdk-go/logs"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Chat pipeline terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires every component and blocks until a signal or a component failure.
// Deferred cleanups run before main exits.
func run(args []string) (int, error) {
	// 1. Flags, configuration & logger
	flags := pflag.NewFlagSet("chat-pipeline", pflag.ContinueOnError)
	envFile := flags.String("env-file", "", "load environment variables from this file")
	chatConfigPath := flags.String("chat-config", "", "chat configuration file (formats, filter, permissions), overrides CHAT_CONFIG_PATH")
	if err := flags.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return exitOK, nil
		}
		return exitConfig, err
	}

	config, err := internal.Load(*envFile)
	if err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if *chatConfigPath != "" {
		config.ChatConfigPath = *chatConfigPath
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	loader := runtime.NewChatConfigLoader(config.FilterMatchTimeout, log)
	chatConfig, err := loader.Load(config.ChatConfigPath)
	if err != nil {
		return exitConfig, err
	}

	// 2. Audit store
	ctx := context.Background()
	store, release, err := repositories.OpenAuditStore(ctx, repositories.StoreConfig{
		Kind:        config.AuditStore,
		BadgerPath:  config.BadgerFilepath,
		SQLitePath:  config.SQLiteFilepath,
		PostgresDSN: config.PostgresDSN,
		Breaker: repositories.BreakerSettings{
			MaxFailures: uint32(config.BreakerMaxFailures),
			OpenTimeout: config.BreakerOpenTimeout,
		},
	}, log)
	if err != nil {
		return exitRuntime, err
	}
	defer release()

	// 3. Pipeline, supervision & orchestration
	permissions := runtime.NewLivePermissions(chatConfig.Permissions)
	registry := runtime.NewRegistry(permissions)
	audit := runtime.NewAuditLogger(config.BufferSize, log)
	pipeline := runtime.NewPipeline(chatConfig, registry, nil, audit, sink.NewConsoleSink(os.Stdout, log), log)
	orchestrator := runtime.NewOrchestrator(log, workers.NewSupervisor(log, config.RestartInterval), audit, store, runtime.Settings{
		NumberOfWorkers:      config.NumberOfWorkers,
		WriteTimeout:         config.WriteTimeout,
		MetricInterval:       config.MetricInterval,
		LowCapacityThreshold: config.LowCapacityThreshold,
		DrainTimeout:         config.DrainTimeout,
	})
	server := gateway.NewServer(log, pipeline, registry, permissions, config.ServerTag, config.ConnectionBufferSize)

	// 4. Context & Signals
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	listener, err := net.Listen("tcp", config.Address())
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to listen on %s: %w", config.Address(), err)
	}

	// 5. Run until a signal or a failure
	g, gctx := errgroup.WithContext(ctx)
	// Workers outlive the signal until the audit queue is drained
	workersCtx, cancelWorkers := context.WithCancel(context.WithoutCancel(gctx))
	defer cancelWorkers()
	g.Go(func() error {
		log.Info("Starting orchestrator...")
		return orchestrator.Start(workersCtx)
	})
	g.Go(func() error {
		return server.Serve(gctx, listener)
	})
	g.Go(func() error {
		reloadOnHangup(gctx, loader, config.ChatConfigPath, pipeline, permissions, log)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		// Records submitted from now on are dropped and logged
		orchestrator.Stop()
		cancelWorkers()
		return nil
	})

	if err := g.Wait(); err != nil {
		return exitRuntime, err
	}
	log.Info("Program stopped cleanly", "dropped_audit_records", audit.Dropped())
	return exitOK, nil
}

// reloadOnHangup swaps the chat configuration on SIGHUP. A broken file keeps the current one.
func reloadOnHangup(ctx context.Context, loader *runtime.ChatConfigLoader, path string,
	pipeline *runtime.Pipeline, permissions *runtime.LivePermissions, log *slog.Logger) {
	hangup := make(chan os.Signal, 1)
	signal.Notify(hangup, syscall.SIGHUP)
	defer signal.Stop(hangup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hangup:
			chatConfig, err := loader.Load(path)
			if err != nil {
				log.Error("Chat configuration reload failed, keeping the current one", "error", err)
				continue
			}
			pipeline.Reload(chatConfig)
			permissions.Store(chatConfig.Permissions)
		}
	}
}
