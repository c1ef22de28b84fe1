// ws-ctl is an operator tool for poking a running deployment over NATS:
// trigger an on-demand probe, fetch last-known metrics, or submit a test
// packet through the scheduler.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"wansteer/internal/config"
	"wansteer/internal/model"
	"wansteer/internal/transport"

	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file.")
	mode := flag.String("mode", "metrics", "Command: 'probe', 'metrics' or 'schedule'.")
	iface := flag.String("iface", "", "Interface name for 'probe', optional filter for 'metrics'.")
	dest := flag.String("dest", "8.8.8.8", "Destination IP for the 'schedule' test packet.")
	proto := flag.String("proto", "UDP", "Protocol for the 'schedule' test packet.")
	timeout := flag.Duration("timeout", 10*time.Second, "Request timeout.")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if url := os.Getenv("WANSTEER_NATS_URL"); url != "" {
		cfg.NATS.URL = url
	}

	client, err := transport.NewClient(cfg.NATS, *timeout)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer client.Close()

	switch *mode {
	case "probe":
		if *iface == "" {
			log.Fatal("'probe' requires -iface.")
		}
		metrics, err := client.ProbeInterface(*iface)
		if err != nil {
			log.Fatalf("Probe failed: %v", err)
		}
		printJSON(metrics)
	case "metrics":
		var names []string
		if *iface != "" {
			names = append(names, *iface)
		}
		metrics, err := client.GetMetrics(names...)
		if err != nil {
			log.Fatalf("Metrics query failed: %v", err)
		}
		printJSON(metrics)
	case "schedule":
		pkt := &model.Packet{
			DestIP:    *dest,
			Protocol:  *proto,
			Timestamp: time.Now(),
		}
		scheduled, err := client.SchedulePacket(pkt)
		if err != nil {
			log.Fatalf("Schedule failed: %v", err)
		}
		printJSON(scheduled)
	default:
		log.Fatalf("Invalid mode: %s. Use 'probe', 'metrics' or 'schedule'.", *mode)
	}
}

func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("Error marshalling output: %v", err)
	}
	os.Stdout.Write(append(data, '\n'))
}
