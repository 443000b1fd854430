package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tinytelemetry/cascade/internal/httpserver"
	"github.com/tinytelemetry/cascade/internal/ingest"
	"github.com/tinytelemetry/cascade/internal/logger"
	"github.com/tinytelemetry/cascade/internal/namespace"
	"github.com/tinytelemetry/cascade/internal/scheduler"
	"github.com/tinytelemetry/cascade/internal/store"
	"github.com/tinytelemetry/cascade/internal/store/duck"
	"github.com/tinytelemetry/cascade/internal/tcpserver"
)

// runServer builds the namespace and runs ingestion, the HTTP API, and the
// metric schedule until a signal arrives.
func runServer(cfg appConfig) error {
	cleanupLogger := configureRuntimeLogger()
	defer cleanupLogger()

	doc, err := namespace.LoadFile(cfg.NamespaceFile)
	if err != nil {
		return fmt.Errorf("failed to load namespace document: %w", err)
	}

	registry := store.Builtin()
	duck.Register(registry)

	dispatcher := logger.NewDispatcher(logger.DispatcherConfig{
		QueueSize: cfg.DispatchQueue,
		Workers:   cfg.DispatchWorkers,
	})
	defer dispatcher.Drain()

	ns, err := namespace.Build(doc, registry, namespace.WithDispatcher(dispatcher))
	if err != nil {
		return fmt.Errorf("failed to build namespace: %w", err)
	}
	defer ns.Close()

	// Retention applies to every database-backed store in the namespace.
	for _, name := range ns.Stores() {
		st, _ := ns.GetStore(name)
		if ds, ok := st.(*duck.Store); ok {
			if rc := duck.NewRetentionCleaner(ds, cfg.LogRetention); rc != nil {
				defer rc.Stop()
			}
		}
	}

	if cfg.APIEnabled {
		apiServer := httpserver.NewServer(cfg.APIAddr, ns)
		if err := apiServer.Start(); err != nil {
			return fmt.Errorf("failed to start API server: %w", err)
		}
		defer apiServer.Stop()
	}

	if cfg.TCPEnabled {
		decoder, err := ingest.NewDecoder(ingest.Config{Format: cfg.LineFormat})
		if err != nil {
			return fmt.Errorf("failed to build line decoder: %w", err)
		}
		tcpServer := tcpserver.NewServer(cfg.TCPAddr, ns.Default(), decoder)
		if err := tcpServer.Start(); err != nil {
			return fmt.Errorf("failed to start TCP server: %w", err)
		}
		defer tcpServer.Stop()
	}

	var sched *scheduler.Scheduler
	if cfg.ScheduleEnabled {
		jobs := make([]scheduler.Job, 0, len(ns.Suites()))
		for _, name := range ns.Suites() {
			suite, _ := ns.GetSuite(name)
			jobs = append(jobs, scheduler.Job{Suite: suite, Interval: cfg.ScheduleInterval})
		}
		if len(jobs) > 0 {
			sched, err = scheduler.New(jobs)
			if err != nil {
				return fmt.Errorf("failed to build schedule: %w", err)
			}
			sched.Start()
		}
	}

	printStartupBanner(cfg, ns)

	// Set up context and signal handling before errgroup
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nShutting down gracefully... (press Ctrl+C again to force)")
		cancel()

		// Shutdown deadline starts now, not at boot.
		deadline := time.NewTimer(10 * time.Second)
		defer deadline.Stop()

		select {
		case <-sigCh:
			fmt.Println("\nForce shutdown.")
		case <-deadline.C:
			fmt.Println("Shutdown timed out, forcing exit.")
		}
		os.Exit(1)
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})
	if err := g.Wait(); err != nil {
		log.Printf("server: errgroup exited with error: %v", err)
	}

	if sched != nil {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer stopCancel()
		if err := sched.Stop(stopCtx); err != nil {
			log.Printf("server: %v", err)
		}
	}

	signal.Stop(sigCh)
	return nil
}

func printStartupBanner(cfg appConfig, ns *namespace.Namespace) {
	fmt.Printf("Cascade %s\n", version)
	fmt.Printf("  namespace: %s (%d stores, %d suites)\n",
		cfg.NamespaceFile, len(ns.Stores()), len(ns.Suites()))
	if cfg.TCPEnabled {
		fmt.Printf("  tcp ingest: %s\n", cfg.TCPAddr)
	}
	if cfg.APIEnabled {
		fmt.Printf("  http api:   http://%s/api/health\n", cfg.APIAddr)
	}
	if cfg.ScheduleEnabled {
		fmt.Printf("  schedule:   every %s\n", cfg.ScheduleInterval)
	}
}

func configureRuntimeLogger() func() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	home, err := os.UserHomeDir()
	if err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	logDir := filepath.Join(home, ".local", "state", "cascade")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	logPath := filepath.Join(logDir, "cascade.log")
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	log.SetOutput(f)
	return func() {
		_ = f.Close()
	}
}
