package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/quantum-chess/signaling-server/internal/server"
	"github.com/quantum-chess/signaling-server/internal/signaling"
)

var (
	port    = flag.Int("port", 8000, "HTTP server port")
	host    = flag.String("host", "0.0.0.0", "HTTP server host")
	roomTTL = flag.Duration("room-ttl", signaling.DefaultRoomTTL, "Maximum age of a room before it is swept")
	debug   = flag.Bool("debug", false, "Enable debug logging")
	version = flag.Bool("version", false, "Show version information")
)

func main() {
	// Load .env file if it exists (ignore error if not found)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Warning: Error loading .env file: %v", err)
		}
	}

	flag.Parse()

	if *version {
		fmt.Printf("%s v%s\n", server.Name, server.Version)
		os.Exit(0)
	}

	if *debug {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	} else {
		log.SetFlags(log.LstdFlags)
	}

	// PORT env var wins over the flag default, for container platforms.
	addr := fmt.Sprintf("%s:%d", *host, *port)
	if envPort := os.Getenv("PORT"); envPort != "" && !flagPassed("port") {
		addr = fmt.Sprintf("%s:%s", *host, envPort)
	}

	// 1. Create the registry; it owns all room state for the process.
	registry := signaling.NewRegistry(*roomTTL)

	// 2. Run the background sweep alongside the opportunistic one on create.
	go sweepRoutine(registry)

	// 3. Build the HTTP boundary around it.
	srv := server.New(registry)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv,
		// No read/write timeouts: the websocket connections are
		// long-lived and idle pairs are kept by ping/pong, not killed.
		IdleTimeout: 60 * time.Second,
	}

	banner := color.New(color.FgCyan, color.Bold)
	banner.Printf("%s v%s\n", server.Name, server.Version)
	log.Printf("Listening on http://%s", addr)
	log.Printf("Pairing API: POST http://%s/api/rooms", addr)
	log.Printf("WebSocket: ws://%s/ws/{roomId}", addr)

	// 4. Serve until a shutdown signal arrives.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	sig := <-stop
	log.Printf("Received signal: %v. Shutting down...", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	log.Println("Server stopped")
}

// sweepRoutine periodically removes rooms that exceeded their TTL, so
// abandoned rooms disappear even when no create request triggers the
// opportunistic sweep.
func sweepRoutine(registry *signaling.Registry) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		if removed := registry.Sweep(); removed > 0 {
			log.Printf("Swept %d expired rooms", removed)
		}
	}
}

func flagPassed(name string) bool {
	passed := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			passed = true
		}
	})
	return passed
}
