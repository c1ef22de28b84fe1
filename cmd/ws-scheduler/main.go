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

	"wansteer/internal/alerter"
	"wansteer/internal/api"
	"wansteer/internal/config"
	"wansteer/internal/health"
	"wansteer/internal/model"
	"wansteer/internal/notification"
	"wansteer/internal/qos"
	"wansteer/internal/sched"
	"wansteer/internal/telemetry"
	"wansteer/internal/transport"

	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file.")
	snapshotPath := flag.String("snapshot", "data/health.snapshot", "Path for the persisted health snapshot.")
	flag.Parse()

	_ = godotenv.Load()

	log.Println("Starting ws-scheduler...")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if url := os.Getenv("WANSTEER_NATS_URL"); url != "" {
		cfg.NATS.URL = url
	}
	if addr := os.Getenv("WANSTEER_SCHEDULER_ADDR"); addr != "" {
		cfg.Scheduler.ListenAddr = addr
	}
	log.Println("Configuration loaded successfully.")

	// Unknown algorithm names fail here, before anything is started.
	selector, err := sched.NewSelector(cfg.Scheduler)
	if err != nil {
		log.Fatalf("Failed to create link selector: %v", err)
	}
	log.Printf("Using link selector: %s", selector.Name())

	aggregator := health.NewAggregator(cfg.Links, cfg.Failover, cfg.Scheduler.HealthyThreshold)
	if saved, ok, err := health.LoadSnapshot(*snapshotPath); err != nil {
		log.Printf("Could not load persisted snapshot: %v", err)
	} else if ok {
		aggregator.Restore(saved)
		log.Printf("Restored health snapshot from %s (%d links).", *snapshotPath, len(saved.Links))
	}

	classifier := qos.NewClassifier(cfg.Qos)
	pipeline := sched.NewPipeline(cfg.Scheduler, classifier, selector, aggregator)
	pipeline.Start()

	// The egress stage: a lower layer would frame scheduled packets onto the
	// wire here. This daemon only accounts them.
	go func() {
		for scheduled := range pipeline.Output() {
			if scheduled.SequenceNumber%10000 == 0 {
				log.Printf("Scheduled %d packets so far (latest: link=%s seq=%d).",
					scheduled.SequenceNumber, scheduled.LinkName, scheduled.SequenceNumber)
			}
		}
	}()

	sub, err := transport.NewMetricsSubscriber(cfg.NATS)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer sub.Close()

	err = sub.Start(func(interfaceName string, metrics model.LinkMetrics) {
		aggregator.IngestSample(interfaceName, metrics)
		telemetry.ObserveSnapshot(aggregator.Snapshot())
	}, aggregator.MarkStale)
	if err != nil {
		log.Fatalf("Failed to subscribe to samples: %v", err)
	}

	pktSub, err := transport.NewPacketSubscriber(cfg.NATS)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer pktSub.Close()

	err = pktSub.Start(func(pkt *model.Packet) {
		if _, err := pipeline.Submit(pkt); err != nil {
			log.Printf("Dropping streamed packet %d: %v", pkt.ID, err)
		}
	})
	if err != nil {
		log.Fatalf("Failed to subscribe to packets: %v", err)
	}

	var alertr *alerter.Alerter
	if cfg.Alerter.Enabled {
		var notifier model.Notifier
		if cfg.SMTP.Host != "" {
			notifier = notification.NewEmailNotifier(cfg.SMTP)
		}
		if notifier != nil {
			alertr, err = alerter.NewAlerter(cfg.Alerter, aggregator, notifier)
			if err != nil {
				log.Fatalf("Failed to create alerter: %v", err)
			}
			go alertr.Start()
			log.Println("Alerter enabled and initialized.")
		} else {
			log.Println("Alerter is enabled in config, but no notifiers are configured. Alerter will not run.")
		}
	}

	scheduleSvc, err := transport.NewScheduleService(cfg.NATS, pipeline)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer scheduleSvc.Close()
	if err := scheduleSvc.Start(); err != nil {
		log.Fatalf("Failed to serve schedule requests: %v", err)
	}

	server := &http.Server{
		Addr:    cfg.Scheduler.ListenAddr,
		Handler: api.NewSchedulerRouter(pipeline, aggregator),
	}
	go func() {
		log.Printf("Scheduler API listening on %s", server.Addr)
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

	pipeline.Stop()
	if alertr != nil {
		alertr.Stop()
	}

	if err := health.SaveSnapshot(aggregator.Snapshot(), *snapshotPath); err != nil {
		log.Printf("Failed to persist health snapshot: %v", err)
	} else {
		log.Printf("Health snapshot persisted to %s.", *snapshotPath)
	}
	log.Println("Shutdown complete.")
}
