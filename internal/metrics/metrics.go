package metrics

// Counter names used across the bridge. Kept in one place so the sink and
// its call sites cannot drift apart.
const (
	PositionCallback = "position_callback"
	PositionDecode   = "position_decode"
	PositionReject   = "position_reject"
	PacketCallback   = "packet_callback"
	Reconnect        = "reconnect"
	XmitFail         = "xmit_fail"
	KnownTrackers    = "known_trackers"
	AllTrackers      = "all_trackers"
	SharedOut        = "shared_locs_out"
	SharedOutError   = "shared_locs_out_error"
	SharedIn         = "shared_locs_in"
	SharedInError    = "shared_locs_in_error"
	ConnectAttempts  = "connect"
	Sends            = "send"
	SendErrors       = "send_error"
)

// Sink records occurrence counts for named events. The core components take
// a Sink so they stay testable without a metrics backend.
type Sink interface {
	Increment(name string)
	IncrementWith(name string, labels map[string]string)
}

// Noop returns a sink that drops all counts.
func Noop() Sink { return noopSink{} }

type noopSink struct{}

func (noopSink) Increment(string)                        {}
func (noopSink) IncrementWith(string, map[string]string) {}
