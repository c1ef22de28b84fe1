package model

import "errors"

// Sentinel errors shared across the probing and scheduling paths.
// Per-probe failures are absorbed locally, per-packet failures are returned
// to the caller, and only configuration errors are fatal at startup.
var (
	// ErrProbeTimeout marks a single measurement that did not complete within
	// its deadline. The prior value for that field is retained.
	ErrProbeTimeout = errors.New("probe timed out")

	// ErrNoLinkAvailable is returned when every configured link is Down or a
	// rule's link preference leaves no eligible candidate.
	ErrNoLinkAvailable = errors.New("no link available")

	// ErrQueueFull is returned when the admission queue rejects a packet.
	// The caller decides whether to retry or drop.
	ErrQueueFull = errors.New("admission queue full")

	// ErrUnknownAlgorithm is a startup-only failure for an unregistered
	// link-selection algorithm name.
	ErrUnknownAlgorithm = errors.New("unknown scheduler algorithm")

	// ErrInvalidConfig is a startup-only failure for a config file that
	// parsed but fails validation.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrSchedulerUnavailable marks the inter-process transport as
	// unreachable. Metrics consumers fall back to the last-known snapshot
	// with the staleness indicator set.
	ErrSchedulerUnavailable = errors.New("scheduler transport unavailable")
)
