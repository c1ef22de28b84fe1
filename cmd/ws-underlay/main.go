package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wansteer/internal/api"
	"wansteer/internal/config"
	"wansteer/internal/probe"
	"wansteer/internal/transport"

	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file.")
	flag.Parse()

	// Optional .env overrides for deployment-specific endpoints.
	_ = godotenv.Load()

	log.Println("Starting ws-underlay...")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if url := os.Getenv("WANSTEER_NATS_URL"); url != "" {
		cfg.NATS.URL = url
	}
	if addr := os.Getenv("WANSTEER_UNDERLAY_ADDR"); addr != "" {
		cfg.Underlay.ListenAddr = addr
	}
	log.Println("Configuration loaded successfully.")

	pub, err := transport.NewPublisher(cfg.NATS)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer pub.Close()

	engine := probe.NewEngine(cfg.Underlay, pub)
	engine.Start()

	if err := pub.ServeRequests(engine); err != nil {
		log.Fatalf("Failed to serve transport requests: %v", err)
	}

	server := &http.Server{
		Addr:    cfg.Underlay.ListenAddr,
		Handler: api.NewUnderlayRouter(engine),
	}
	go func() {
		log.Printf("Underlay API listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v", server.Addr, err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutdown signal received, cleaning up...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	engine.Stop()
	log.Println("Shutdown complete.")
}
