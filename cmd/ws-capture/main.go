package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"wansteer/internal/capture"
	"wansteer/internal/config"
	"wansteer/internal/transport"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"
	"github.com/joho/godotenv"
)

const (
	snapshotLen int32 = 1600
	promiscuous       = true
	timeout           = pcap.BlockForever
)

// ws-capture sniffs an ingress interface and streams its packets to the
// scheduler's packet subject. It is the deployment's "packets arrive" source
// when no application submits packets directly.
func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file.")
	iface := flag.String("iface", "", "Interface to capture packets from.")
	file := flag.String("file", "", "Pcap file to replay instead of live capture.")
	flag.Parse()

	_ = godotenv.Load()

	if *iface == "" && *file == "" {
		log.Println("Error: one of -iface or -file is required.")
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if url := os.Getenv("WANSTEER_NATS_URL"); url != "" {
		cfg.NATS.URL = url
	}

	pub, err := transport.NewPacketSubscriber(cfg.NATS)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer pub.Close()

	var handle *pcap.Handle
	if *file != "" {
		handle, err = pcap.OpenOffline(*file)
		if err != nil {
			log.Fatalf("Error opening pcap file %s: %v", *file, err)
		}
		log.Printf("Replaying %s. Publishing packets to '%s'...", *file, cfg.NATS.PacketSubject)
	} else {
		handle, err = pcap.OpenLive(*iface, snapshotLen, promiscuous, timeout)
		if err != nil {
			log.Fatalf("Error opening device %s: %v", *iface, err)
		}
		log.Printf("Capture started on %s. Publishing packets to '%s'...", *iface, cfg.NATS.PacketSubject)
	}
	defer handle.Close()

	go func() {
		packetSource := gopacket.NewPacketSource(handle, handle.LinkType())
		var captured uint64
		for raw := range packetSource.Packets() {
			pkt, err := capture.ParseFrame(raw.Data())
			if err != nil {
				continue // Skip non-IPv4/TCP/UDP frames.
			}
			captured++
			pkt.ID = captured
			if err := pub.Publish(pkt); err != nil {
				log.Printf("Failed to publish packet: %v", err)
			}
			if captured%1000 == 0 {
				log.Printf("%d packets published...", captured)
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")
}
