package probe

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"wansteer/internal/config"
	"wansteer/internal/model"
)

// Sink receives the sample produced by each probe cycle. The NATS publisher
// implements it in the deployed daemon; tests use an in-process sink.
type Sink interface {
	PublishSample(interfaceName string, metrics model.LinkMetrics) error
}

// Engine runs one independent probe loop per enabled interface. Loops never
// block each other: a stalled measurement on one link delays only that link's
// next cycle.
type Engine struct {
	prober     *Prober
	interfaces []config.InterfaceConfig
	sink       Sink

	mu     sync.RWMutex
	latest map[string]model.LinkMetrics

	done chan struct{}
	wg   sync.WaitGroup
}

// NewEngine builds an engine over the enabled interfaces.
func NewEngine(cfg config.UnderlayConfig, sink Sink) *Engine {
	return &Engine{
		prober:     NewProber(cfg.Probes),
		interfaces: cfg.Interfaces,
		sink:       sink,
		latest:     make(map[string]model.LinkMetrics),
		done:       make(chan struct{}),
	}
}

// Start launches one goroutine per enabled interface.
func (e *Engine) Start() {
	started := 0
	for _, iface := range e.interfaces {
		if !iface.Enabled {
			continue
		}
		interval := config.Duration(iface.ProbeInterval, 5*time.Second)
		e.wg.Add(1)
		go e.runLoop(iface, interval)
		started++
	}
	log.Printf("Probe engine started with %d interface loops.", started)
}

// Stop signals all loops and waits for each to reach its next suspension
// point and exit.
func (e *Engine) Stop() {
	close(e.done)
	e.wg.Wait()
	log.Println("Probe engine stopped.")
}

func (e *Engine) runLoop(iface config.InterfaceConfig, interval time.Duration) {
	defer e.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// First cycle immediately so the scheduler is not blind for a full
	// interval after startup.
	e.cycle(iface)

	for {
		select {
		case <-ticker.C:
			e.cycle(iface)
		case <-e.done:
			return
		}
	}
}

// cycle runs one probe round for the interface and publishes the sample.
func (e *Engine) cycle(iface config.InterfaceConfig) {
	ctx, cancel := context.WithTimeout(context.Background(), e.cycleBudget())
	defer cancel()

	e.mu.RLock()
	prev := e.latest[iface.Name]
	e.mu.RUnlock()

	metrics := e.prober.ProbeInterface(ctx, iface, prev)

	e.mu.Lock()
	e.latest[iface.Name] = metrics
	e.mu.Unlock()

	if err := e.sink.PublishSample(iface.Name, metrics); err != nil {
		log.Printf("Failed to publish sample for %s: %v", iface.Name, err)
	}
}

// cycleBudget bounds a whole cycle so a wedged measurement cannot pin the
// loop past its interval forever.
func (e *Engine) cycleBudget() time.Duration {
	return e.prober.icmpTimeout + e.prober.udpTimeout*time.Duration(e.prober.cfg.ProbeCount) + e.prober.testDuration
}

// ProbeNow runs a single on-demand probe cycle for the named interface,
// bypassing its schedule. Safe to call concurrently with the running loops.
func (e *Engine) ProbeNow(ctx context.Context, name string) (model.LinkMetrics, error) {
	for _, iface := range e.interfaces {
		if iface.Name != name {
			continue
		}

		e.mu.RLock()
		prev := e.latest[name]
		e.mu.RUnlock()

		metrics := e.prober.ProbeInterface(ctx, iface, prev)

		e.mu.Lock()
		e.latest[name] = metrics
		e.mu.Unlock()

		return metrics, nil
	}
	return model.LinkMetrics{}, fmt.Errorf("unknown interface %q", name)
}

// Latest returns a copy of the last sample per interface.
func (e *Engine) Latest() map[string]model.LinkMetrics {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make(map[string]model.LinkMetrics, len(e.latest))
	for name, metrics := range e.latest {
		out[name] = metrics
	}
	return out
}
