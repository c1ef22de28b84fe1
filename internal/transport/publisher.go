package transport

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"wansteer/internal/config"
	"wansteer/internal/model"
	"wansteer/internal/probe"

	"github.com/nats-io/nats.go"
)

// Publisher is the underlay daemon's side of the transport: it publishes one
// SampleMessage per probe cycle and answers probe/metrics requests.
type Publisher struct {
	nc   *nats.Conn
	cfg  config.NATSConfig
	subs []*nats.Subscription
}

// NewPublisher connects to NATS.
func NewPublisher(cfg config.NATSConfig) (*Publisher, error) {
	nc, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, err
	}
	log.Printf("Connected to NATS server at %s", cfg.URL)
	return &Publisher{nc: nc, cfg: cfg}, nil
}

// PublishSample implements probe.Sink.
func (p *Publisher) PublishSample(interfaceName string, metrics model.LinkMetrics) error {
	data, err := json.Marshal(SampleMessage{Interface: interfaceName, Metrics: metrics})
	if err != nil {
		return err
	}
	return p.nc.Publish(p.cfg.SampleSubject, data)
}

// ServeRequests subscribes the probe and metrics request subjects and answers
// them from the engine. Handlers run on NATS delivery goroutines, which the
// engine tolerates: on-demand probes and metric reads are concurrent-safe.
func (p *Publisher) ServeRequests(engine *probe.Engine) error {
	probeSub, err := p.nc.Subscribe(p.cfg.ProbeSubject, func(msg *nats.Msg) {
		var req ProbeRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			log.Printf("Error unmarshalling probe request: %v", err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		resp := ProbeResponse{InterfaceName: req.InterfaceName, Status: statusOK}
		metrics, err := engine.ProbeNow(ctx, req.InterfaceName)
		if err != nil {
			resp.Status = statusError
			resp.Error = err.Error()
		} else {
			resp.Metrics = metrics
		}
		p.respond(msg, resp)
	})
	if err != nil {
		return err
	}
	p.subs = append(p.subs, probeSub)

	metricsSub, err := p.nc.Subscribe(p.cfg.MetricsSubject, func(msg *nats.Msg) {
		var req MetricsRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			log.Printf("Error unmarshalling metrics request: %v", err)
			return
		}

		all := engine.Latest()
		if len(req.InterfaceNames) > 0 {
			filtered := make(map[string]model.LinkMetrics, len(req.InterfaceNames))
			for _, name := range req.InterfaceNames {
				if m, ok := all[name]; ok {
					filtered[name] = m
				}
			}
			all = filtered
		}
		p.respond(msg, MetricsResponse{Metrics: all, Timestamp: time.Now()})
	})
	if err != nil {
		return err
	}
	p.subs = append(p.subs, metricsSub)

	log.Printf("Serving probe requests on '%s' and metrics requests on '%s'",
		p.cfg.ProbeSubject, p.cfg.MetricsSubject)
	return nil
}

func (p *Publisher) respond(msg *nats.Msg, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Error marshalling response: %v", err)
		return
	}
	if err := msg.Respond(data); err != nil {
		log.Printf("Error responding on %s: %v", msg.Subject, err)
	}
}

// Close drains and closes the NATS connection.
func (p *Publisher) Close() {
	for _, sub := range p.subs {
		sub.Unsubscribe()
	}
	if p.nc != nil {
		p.nc.Drain()
		log.Println("NATS connection drained and closed.")
	}
}
