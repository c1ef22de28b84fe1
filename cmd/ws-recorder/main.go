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
	"wansteer/internal/history"
	"wansteer/internal/transport"

	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file.")
	flag.Parse()

	_ = godotenv.Load()

	log.Println("Starting ws-recorder...")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if url := os.Getenv("WANSTEER_NATS_URL"); url != "" {
		cfg.NATS.URL = url
	}
	log.Println("Configuration loaded successfully.")

	writer, err := history.NewWriter(cfg.Recorder)
	if err != nil {
		log.Fatalf("Failed to create history writer: %v", err)
	}
	writer.Start()

	sub, err := transport.NewMetricsSubscriber(cfg.NATS)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer sub.Close()

	if err := sub.Start(writer.Record, nil); err != nil {
		log.Fatalf("Failed to subscribe to samples: %v", err)
	}

	querier, err := history.NewQuerier(cfg.Recorder.ClickHouse)
	if err != nil {
		log.Fatalf("Failed to create querier: %v", err)
	}

	server := &http.Server{
		Addr:    cfg.Recorder.ListenAddr,
		Handler: api.NewRecorderRouter(querier),
	}
	go func() {
		log.Printf("Recorder API listening on %s", server.Addr)
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
	writer.Stop()
	log.Println("Shutdown complete.")
}
