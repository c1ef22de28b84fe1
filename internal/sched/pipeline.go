package sched

import (
	"log"
	"sync"
	"sync/atomic"

	"wansteer/internal/config"
	"wansteer/internal/model"
	"wansteer/internal/qos"
	"wansteer/internal/telemetry"
)

// SnapshotSource hands the pipeline the current health snapshot. The health
// aggregator implements it.
type SnapshotSource interface {
	Snapshot() model.Snapshot
}

// request is one admitted packet waiting in the queue together with its
// submitter's reply channel.
type request struct {
	pkt   *model.Packet
	reply chan result
}

type result struct {
	scheduled model.ScheduledPacket
	err       error
}

// Pipeline is the scheduling loop: it pulls packets from the bounded
// admission queue, classifies them, selects a link against the current
// snapshot, stamps the next sequence number and emits the result.
//
// The sequence counter is the only cross-task mutable state it owns; it is
// advanced with an atomic add and only for packets that received a link.
type Pipeline struct {
	classifier *qos.Classifier
	selector   LinkSelector
	snapshots  SnapshotSource

	queue  chan request
	egress chan model.ScheduledPacket

	// mu orders Submit's enqueue against Stop's drain: once closed is set,
	// nothing enters the queue, so the drain answers every waiter.
	mu     sync.Mutex
	closed bool

	sequence atomic.Uint64
	dropped  atomic.Uint64

	batchSize int
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewPipeline wires the classifier, selector and snapshot source together.
// The admission queue and the egress buffer are bounded by max_queue_size.
func NewPipeline(cfg config.SchedulerConfig, classifier *qos.Classifier, selector LinkSelector, snapshots SnapshotSource) *Pipeline {
	return &Pipeline{
		classifier: classifier,
		selector:   selector,
		snapshots:  snapshots,
		queue:      make(chan request, cfg.MaxQueueSize),
		egress:     make(chan model.ScheduledPacket, cfg.MaxQueueSize),
		batchSize:  cfg.BatchSize,
		done:       make(chan struct{}),
	}
}

// Start launches the scheduling loop.
func (p *Pipeline) Start() {
	p.wg.Add(1)
	go p.run()
	log.Printf("Scheduling pipeline started with %s selector.", p.selector.Name())
}

// Stop shuts the loop down. Queued packets that were not processed are
// accounted as dropped and their submitters receive an error; nothing is
// lost unobserved.
func (p *Pipeline) Stop() {
	close(p.done)
	p.wg.Wait()

	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	// Drain whatever Submit managed to enqueue before the loop exited.
	for {
		select {
		case req := <-p.queue:
			p.dropped.Add(1)
			telemetry.PacketsRejected.WithLabelValues("dropped_on_shutdown").Inc()
			req.reply <- result{err: model.ErrQueueFull}
		default:
			close(p.egress)
			log.Printf("Scheduling pipeline stopped, %d packets dropped on shutdown.", p.dropped.Load())
			return
		}
	}
}

func (p *Pipeline) run() {
	defer p.wg.Done()
	for {
		select {
		case req := <-p.queue:
			req.reply <- p.process(req.pkt)
		case <-p.done:
			return
		}
	}
}

// process classifies one packet, selects a link and stamps the sequence
// number. Selection failures are returned to the submitter, never swallowed.
func (p *Pipeline) process(pkt *model.Packet) result {
	cls := p.classify(pkt)
	snap := p.snapshots.Snapshot()

	linkName, err := p.selector.SelectLink(pkt, cls, snap)
	if err != nil {
		telemetry.PacketsRejected.WithLabelValues("no_link").Inc()
		return result{err: err}
	}

	scheduled := model.ScheduledPacket{
		PacketID:       pkt.ID,
		LinkName:       linkName,
		SequenceNumber: p.sequence.Add(1),
		Priority:       cls.Priority,
	}

	select {
	case p.egress <- scheduled:
	case <-p.done:
		p.dropped.Add(1)
		telemetry.PacketsRejected.WithLabelValues("dropped_on_shutdown").Inc()
		return result{err: model.ErrQueueFull}
	}

	telemetry.PacketsScheduled.WithLabelValues(linkName).Inc()
	return result{scheduled: scheduled}
}

func (p *Pipeline) classify(pkt *model.Packet) Classification {
	cls := Classification{Priority: p.classifier.Priority(pkt)}
	if rule := p.classifier.Classify(pkt); rule != nil {
		cls.RuleName = rule.Name
		cls.LinkPreference = rule.Action.LinkPreference
		cls.BandwidthLimit = rule.Action.BandwidthLimit
		cls.LatencyThreshold = rule.Action.LatencyThreshold
	}
	return cls
}

// Submit admits one packet. When the queue is full it returns ErrQueueFull
// immediately instead of blocking; the caller decides retry or drop.
func (p *Pipeline) Submit(pkt *model.Packet) (model.ScheduledPacket, error) {
	req := request{pkt: pkt, reply: make(chan result, 1)}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		telemetry.PacketsRejected.WithLabelValues("queue_full").Inc()
		return model.ScheduledPacket{}, model.ErrQueueFull
	}
	select {
	case p.queue <- req:
		p.mu.Unlock()
	default:
		p.mu.Unlock()
		telemetry.PacketsRejected.WithLabelValues("queue_full").Inc()
		return model.ScheduledPacket{}, model.ErrQueueFull
	}

	// Every enqueued request is answered, by the loop or by Stop's drain.
	res := <-req.reply
	return res.scheduled, res.err
}

// SubmitBatch admits up to the configured batch size of packets and returns
// the per-packet outcomes, index-aligned with the input.
func (p *Pipeline) SubmitBatch(packets []*model.Packet) ([]model.ScheduledPacket, []error) {
	n := len(packets)
	if n > p.batchSize {
		n = p.batchSize
	}

	scheduled := make([]model.ScheduledPacket, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		scheduled[i], errs[i] = p.Submit(packets[i])
	}
	return scheduled, errs
}

// Output is the egress stage: the stream of scheduled packets, closed by
// Stop after the drain completes.
func (p *Pipeline) Output() <-chan model.ScheduledPacket {
	return p.egress
}

// Dropped reports packets dropped during shutdown.
func (p *Pipeline) Dropped() uint64 {
	return p.dropped.Load()
}
