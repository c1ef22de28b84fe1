package transport

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"wansteer/internal/config"
	"wansteer/internal/model"

	"github.com/nats-io/nats.go"
)

// SampleHandler processes one received probe sample.
type SampleHandler func(interfaceName string, metrics model.LinkMetrics)

// MetricsSubscriber feeds probe samples from NATS into a handler and watches
// for the stream going quiet. NATS delivers messages of one subscription in
// order, which preserves per-link sample order for the aggregator.
type MetricsSubscriber struct {
	nc         *nats.Conn
	sub        *nats.Subscription
	cfg        config.NATSConfig
	staleAfter time.Duration

	mu         sync.Mutex
	lastSample time.Time

	done chan struct{}
	wg   sync.WaitGroup
}

// NewMetricsSubscriber connects to NATS.
func NewMetricsSubscriber(cfg config.NATSConfig) (*MetricsSubscriber, error) {
	nc, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, err
	}
	log.Printf("Connected to NATS server at %s", cfg.URL)
	return &MetricsSubscriber{
		nc:         nc,
		cfg:        cfg,
		staleAfter: config.Duration(cfg.StaleAfter, 15*time.Second),
		done:       make(chan struct{}),
	}, nil
}

// Start subscribes to the sample subject. onStale fires once each time the
// stream has been quiet for stale_after; consumers use it to flag last-known
// data rather than erroring out.
func (s *MetricsSubscriber) Start(handler SampleHandler, onStale func()) error {
	sub, err := s.nc.Subscribe(s.cfg.SampleSubject, func(msg *nats.Msg) {
		var sample SampleMessage
		if err := json.Unmarshal(msg.Data, &sample); err != nil {
			log.Printf("Error unmarshalling sample: %v", err)
			return
		}

		s.mu.Lock()
		s.lastSample = time.Now()
		s.mu.Unlock()

		handler(sample.Interface, sample.Metrics)
	})
	if err != nil {
		return err
	}
	s.sub = sub
	log.Printf("Subscribed to '%s'. Waiting for samples...", s.cfg.SampleSubject)

	if onStale != nil {
		s.wg.Add(1)
		go s.watchdog(onStale)
	}
	return nil
}

// watchdog flags staleness when no sample arrives within stale_after.
func (s *MetricsSubscriber) watchdog(onStale func()) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.staleAfter / 3)
	defer ticker.Stop()

	flagged := false
	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			last := s.lastSample
			s.mu.Unlock()

			quiet := last.IsZero() || time.Since(last) > s.staleAfter
			if quiet && !flagged {
				log.Printf("No samples for %s, marking snapshot stale.", s.staleAfter)
				onStale()
				flagged = true
			} else if !quiet {
				flagged = false
			}
		case <-s.done:
			return
		}
	}
}

// Close unsubscribes, stops the watchdog and closes the connection.
func (s *MetricsSubscriber) Close() {
	close(s.done)
	s.wg.Wait()
	if s.sub != nil {
		s.sub.Unsubscribe()
	}
	if s.nc != nil {
		s.nc.Close()
		log.Println("NATS connection closed.")
	}
}

// PacketHandler processes one packet received from the packet subject.
type PacketHandler func(pkt *model.Packet)

// PacketSubscriber feeds externally captured packets into the scheduler.
type PacketSubscriber struct {
	nc  *nats.Conn
	sub *nats.Subscription
	cfg config.NATSConfig
}

// NewPacketSubscriber connects to NATS.
func NewPacketSubscriber(cfg config.NATSConfig) (*PacketSubscriber, error) {
	nc, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, err
	}
	return &PacketSubscriber{nc: nc, cfg: cfg}, nil
}

// Start subscribes to the packet subject and hands decoded packets to the
// handler.
func (s *PacketSubscriber) Start(handler PacketHandler) error {
	sub, err := s.nc.Subscribe(s.cfg.PacketSubject, func(msg *nats.Msg) {
		var pkt model.Packet
		if err := json.Unmarshal(msg.Data, &pkt); err != nil {
			log.Printf("Error unmarshalling packet: %v", err)
			return
		}
		handler(&pkt)
	})
	if err != nil {
		return err
	}
	s.sub = sub
	log.Printf("Subscribed to '%s'.", s.cfg.PacketSubject)
	return nil
}

// Publish sends one packet onto the packet subject. Used by the capture tool.
func (s *PacketSubscriber) Publish(pkt *model.Packet) error {
	data, err := json.Marshal(pkt)
	if err != nil {
		return err
	}
	return s.nc.Publish(s.cfg.PacketSubject, data)
}

// Close unsubscribes and closes the connection.
func (s *PacketSubscriber) Close() {
	if s.sub != nil {
		s.sub.Unsubscribe()
	}
	if s.nc != nil {
		s.nc.Close()
	}
}
