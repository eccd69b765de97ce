// Package mesh is the boundary to the radio mesh transport. The vendor
// library itself (serial link, packet delivery, callback dispatch) stays
// outside this repository; the bridge consumes it through the Transport
// interface only.
package mesh

import "meshbridge/pkg/models"

// PacketHandler receives one inbound packet from the transport's own
// callback context. Handlers must return promptly; the transport's liveness
// tolerance is not ours to spend.
type PacketHandler func(pkt *models.MeshPacket)

// Transport is the liveness and subscription surface of the radio library.
type Transport interface {
	// Subscribe registers onPosition for position packets and onPacket for
	// every packet (used for liveness and debugging counters). Either may
	// be nil.
	Subscribe(onPosition, onPacket PacketHandler)

	// Alive reports whether the serial link to the radio is up.
	Alive() bool

	// Reconnect re-establishes the serial link after liveness loss.
	Reconnect() error

	// Close releases the link.
	Close() error
}
