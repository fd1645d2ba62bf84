package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"famtree/internal/config"
	"famtree/internal/handler"
	"famtree/internal/hub"
	"famtree/internal/repository/sqlite"
	"famtree/internal/service"
	"famtree/internal/watcher"
)

func main() {
	// Command line flags override the config file
	configPath := flag.String("config", "", "Config file path (default: search standard locations)")
	addr := flag.String("addr", "", "HTTP listen address")
	dbPath := flag.String("db", "", "SQLite database path")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting FamTree server...")

	cfg, loadedFrom, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if loadedFrom != "" {
		log.Printf("Config loaded: %s", loadedFrom)
	} else {
		log.Println("No config file found, using defaults")
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	log.Printf("Config:\n%s", cfg.Summary())

	// Initialize SQLite repository
	repo, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer repo.Close()
	log.Printf("Database opened: %s", cfg.Database.Path)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Initialize event bus
	eventBus := service.NewEventBus()

	// Initialize SSE hub
	sseHub := hub.New()
	go sseHub.Run(ctx)

	// Connect event bus to SSE hub
	eventChan := make(chan service.Event, 100)
	eventBus.Subscribe(eventChan)
	go func() {
		for event := range eventChan {
			sseHub.Broadcast(string(event.Type), event.Payload)
		}
	}()

	treeSvc := service.NewTreeService(repo, eventBus)

	// Inbox watcher imports GEDCOM files dropped into the watch directory
	if dir := cfg.Import.WatchDir; dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create watch directory: %v", err)
		}
		inbox := watcher.NewInbox(dir, func(path string) {
			importInboxFile(ctx, treeSvc, path, cfg.Import.MaxBytes)
		}).WithDebounce(cfg.DebounceDuration())
		go func() {
			if err := inbox.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("Inbox watcher stopped: %v", err)
			}
		}()
	}

	// Initialize HTTP handlers
	treeHandler := handler.NewTreeHandler(treeSvc)
	treeHandler.SetExportDefaults(cfg.ExportOptions())
	treeHandler.SetMaxImportBytes(cfg.Import.MaxBytes)

	// Setup routes
	mux := http.NewServeMux()
	treeHandler.Register(mux)

	// SSE events endpoint
	mux.Handle("GET /events", sseHub)

	// Apply middleware
	finalHandler := handler.Chain(mux,
		handler.Recover,
		handler.CORS,
		handler.Logger,
	)

	// Create server. WriteTimeout is left unset for the SSE stream.
	server := &http.Server{
		Addr:        cfg.Server.Addr,
		Handler:     finalHandler,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on %s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Stops the watcher and closes SSE clients so Shutdown does not wait on them
	stop()

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}

func loadConfig(path string) (*config.Config, string, error) {
	if path == "" {
		return config.Load()
	}
	if err := config.LoadDotEnv(".env"); err != nil {
		return nil, path, err
	}
	cfg, _, err := config.LoadFromPath(path)
	if err != nil {
		return nil, path, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// importInboxFile imports a GEDCOM file picked up by the inbox watcher
func importInboxFile(ctx context.Context, svc *service.TreeService, path string, maxBytes int64) {
	info, err := os.Stat(path)
	if err != nil {
		log.Printf("Inbox: failed to stat %s: %v", path, err)
		return
	}
	if info.Size() > maxBytes {
		log.Printf("Inbox: %s is %d bytes, larger than the %d byte limit", path, info.Size(), maxBytes)
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("Inbox: failed to read %s: %v", path, err)
		return
	}

	result, err := svc.ImportGEDCOM(ctx, data)
	if err != nil {
		log.Printf("Inbox: import of %s failed: %v", path, err)
		return
	}

	log.Printf("Inbox: imported %s: %d people, %d families, %d errors, %d warnings",
		path, result.PeopleImported, result.FamiliesImported, len(result.Errors), len(result.Warnings))
	for _, e := range result.Errors {
		log.Printf("Inbox: %s: %s", path, e)
	}
}
