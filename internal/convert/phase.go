package convert

import "sync/atomic"

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSendingMeta
	PhaseStreamingOut
	PhaseOutClosed
	PhaseInMetaReceived
	PhaseOutClosedInMetaReceived
	PhaseInClosed
	PhaseComplete
	PhaseFailed
)

var phaseNames = map[Phase]string{
	PhaseIdle:                    "idle",
	PhaseSendingMeta:             "sending meta",
	PhaseStreamingOut:            "streaming out",
	PhaseOutClosed:               "outbound closed",
	PhaseInMetaReceived:          "outcome received",
	PhaseOutClosedInMetaReceived: "outbound closed with outcome received",
	PhaseInClosed:                "inbound closed",
	PhaseComplete:                "complete",
	PhaseFailed:                  "failed",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return "unknown"
}

// Events recorded by the sender and receiver goroutines.
const (
	evMetaSending uint32 = 1 << iota
	evStreamingOut
	evOutClosed
	evInMeta
	evInClosed
	evComplete
	evFailed
)

// transfer tracks the progress of one conversion. Both directions record
// events concurrently; the phase is derived from the set of events seen.
type transfer struct {
	events atomic.Uint32
}

func (t *transfer) record(ev uint32) {
	t.events.Or(ev)
}

func (t *transfer) has(ev uint32) bool {
	return t.events.Load()&ev != 0
}

func (t *transfer) phase() Phase {
	ev := t.events.Load()
	is := func(e uint32) bool { return ev&e != 0 }

	switch {
	case is(evFailed):
		return PhaseFailed
	case is(evComplete):
		return PhaseComplete
	case is(evInClosed):
		return PhaseInClosed
	case is(evOutClosed) && is(evInMeta):
		return PhaseOutClosedInMetaReceived
	case is(evInMeta):
		return PhaseInMetaReceived
	case is(evOutClosed):
		return PhaseOutClosed
	case is(evStreamingOut):
		return PhaseStreamingOut
	case is(evMetaSending):
		return PhaseSendingMeta
	default:
		return PhaseIdle
	}
}

// fail captures the current phase, then marks the transfer failed.
func (t *transfer) fail(reason string, err error) *ConversionError {
	cerr := &ConversionError{Phase: t.phase(), Reason: reason, Err: err}
	t.record(evFailed)
	return cerr
}
