package transport

import (
	"encoding/json"
	"errors"
	"log"

	"wansteer/internal/config"
	"wansteer/internal/model"
	"wansteer/internal/sched"

	"github.com/nats-io/nats.go"
)

// ScheduleService answers remote "schedule this packet" requests against the
// local pipeline, for deployments where the packet source runs in another
// process.
type ScheduleService struct {
	nc       *nats.Conn
	sub      *nats.Subscription
	cfg      config.NATSConfig
	pipeline *sched.Pipeline
}

// NewScheduleService connects to NATS.
func NewScheduleService(cfg config.NATSConfig, pipeline *sched.Pipeline) (*ScheduleService, error) {
	nc, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, err
	}
	return &ScheduleService{nc: nc, cfg: cfg, pipeline: pipeline}, nil
}

// Start subscribes the schedule subject. Per-packet failures travel back in
// the response frame; they are the caller's to handle.
func (s *ScheduleService) Start() error {
	sub, err := s.nc.Subscribe(s.cfg.ScheduleSubject, func(msg *nats.Msg) {
		var req PacketRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			log.Printf("Error unmarshalling packet request: %v", err)
			return
		}

		resp := PacketResponse{Status: statusOK}
		scheduled, err := s.pipeline.Submit(&req.Packet)
		if err != nil {
			resp.Status = statusError
			resp.Error = err.Error()
		} else {
			resp.Scheduled = scheduled
		}

		data, err := json.Marshal(resp)
		if err != nil {
			log.Printf("Error marshalling packet response: %v", err)
			return
		}
		if err := msg.Respond(data); err != nil {
			log.Printf("Error responding on %s: %v", msg.Subject, err)
		}
	})
	if err != nil {
		return err
	}
	s.sub = sub
	log.Printf("Serving schedule requests on '%s'", s.cfg.ScheduleSubject)
	return nil
}

// Close unsubscribes and closes the connection.
func (s *ScheduleService) Close() {
	if s.sub != nil {
		s.sub.Unsubscribe()
	}
	if s.nc != nil {
		s.nc.Close()
	}
}

// decodeError maps a response frame's error string back onto the shared
// sentinels so remote and local callers see the same errors.
func decodeError(message string) error {
	for _, sentinel := range []error{
		model.ErrNoLinkAvailable,
		model.ErrQueueFull,
		model.ErrProbeTimeout,
	} {
		if message == sentinel.Error() {
			return sentinel
		}
	}
	return errors.New(message)
}
