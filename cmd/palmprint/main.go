package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ayusman/palmprint/internal/app"
	"github.com/ayusman/palmprint/internal/config"
	"github.com/ayusman/palmprint/internal/server"
	"github.com/ayusman/palmprint/internal/session"
	"github.com/ayusman/palmprint/internal/store"
)

func main() {
	os.Exit(run())
}

func run() int {
	fs := flag.NewFlagSet("palmprint", flag.ExitOnError)
	configPath := fs.String("config", "", "path to a YAML or INI config file")
	serve := fs.Bool("serve", false, "serve the HTTP API instead of running one capture")
	_ = fs.Parse(os.Args[1:])

	settings := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
		settings = loaded
	}

	// Initialize the store
	dbPath, err := settings.ResolveDBPath()
	if err != nil {
		log.Printf("Failed to resolve database path: %v", err)
		return 1
	}
	st, err := store.New(dbPath)
	if err != nil {
		log.Printf("Failed to initialize store: %v", err)
		return 1
	}
	defer st.Close()

	a := app.New(app.Config{Settings: settings, Store: st})
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *serve {
		return serveHTTP(ctx, settings, st, a)
	}
	return captureOnce(ctx, a)
}

// captureOnce runs a single session on the local camera and prints the
// fingerprint on success.
func captureOnce(ctx context.Context, a *app.App) int {
	fmt.Println("Palmprint - hold your open palm inside the guide")

	last := -1
	out, err := a.Capture(ctx, func(st session.Status) {
		pct := int(st.Progress * 100)
		if pct == last {
			return
		}
		last = pct
		fmt.Printf("\r%-9s aligned=%-5t %3d%%", st.State, st.Aligned, pct)
	})
	fmt.Println()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	switch out.Result.State {
	case session.Completed:
		fmt.Println(out.Result.Fingerprint)
		if out.HookError != "" {
			fmt.Fprintf(os.Stderr, "hook: %s\n", out.HookError)
		}
		return 0
	case session.Cancelled:
		fmt.Fprintln(os.Stderr, "capture cancelled")
		return 130
	default:
		return 1
	}
}

// serveHTTP runs the API server until ctx is cancelled.
func serveHTTP(ctx context.Context, settings *config.Config, st *store.Store, a *app.App) int {
	webDir := findWebDir()
	if webDir != "" {
		fmt.Printf("Serving static files from: %s\n", webDir)
	}

	srv := &http.Server{
		Addr: settings.ListenAddr,
		Handler: server.New(server.Config{
			StaticDir: webDir,
			Store:     st,
			App:       a,
		}),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	fmt.Printf("Starting server on %s\n", settings.ListenAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("Server failed: %v", err)
		return 1
	}
	return 0
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.palmprint/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	homeWebDir := filepath.Join(homeDir, ".palmprint", "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}

	return ""
}
