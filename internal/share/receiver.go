package share

import (
	"errors"
	"fmt"
	"log"
	"net"
	"sync"

	"meshbridge/internal/metrics"
	"meshbridge/pkg/models"
)

// recvLen bounds one datagram read. Real payloads sit far under a typical
// MTU; a read that fills the buffer is logged as suspicious.
const recvLen = 1024

// queueDepth soft-bounds the handoff queue between the receive loop and the
// bridge's poll loop.
const queueDepth = 64

// Receiver listens for shared locations from peer instances. ReceiveOne
// blocks for a single datagram; Start runs a background loop that feeds the
// queue the bridge drains, keeping blocking network receipt out of the
// bridge's tick loop.
type Receiver struct {
	conn  *net.UDPConn
	allow map[string]struct{}
	sink  metrics.Sink
	queue chan *models.SharedLocation

	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewReceiver binds a UDP listener on ip:port. allowList restricts accepted
// source addresses; empty accepts all.
func NewReceiver(ip string, port int, allowList []string, sink metrics.Sink) (*Receiver, error) {
	addr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(ip, fmt.Sprintf("%d", port)))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve share listen address: %w", err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to bind share listener: %w", err)
	}

	var allow map[string]struct{}
	if len(allowList) > 0 {
		allow = make(map[string]struct{}, len(allowList))
		for _, ip := range allowList {
			allow[ip] = struct{}{}
		}
	}

	if sink == nil {
		sink = metrics.Noop()
	}
	return &Receiver{
		conn:  conn,
		allow: allow,
		sink:  sink,
		queue: make(chan *models.SharedLocation, queueDepth),
	}, nil
}

// Port returns the bound port, useful when listening on port 0.
func (r *Receiver) Port() int {
	return r.conn.LocalAddr().(*net.UDPAddr).Port
}

// Queue is the channel the background loop feeds.
func (r *Receiver) Queue() <-chan *models.SharedLocation {
	return r.queue
}

// ReceiveOne blocks until one datagram arrives and returns its location, or
// nil when the datagram was dropped (unauthorized source or malformed
// payload). The error is non-nil only for socket-level failures.
func (r *Receiver) ReceiveOne() (*models.SharedLocation, error) {
	buf := make([]byte, recvLen)
	n, src, err := r.conn.ReadFromUDP(buf)
	if err != nil {
		return nil, err
	}
	if n >= recvLen {
		log.Printf("Warning - received share datagram of %d bytes or more", recvLen)
	}

	if r.allow != nil {
		if _, ok := r.allow[src.IP.String()]; !ok {
			log.Printf("Received share data from unauthorized address: %s", src.IP)
			return nil, nil
		}
	}

	loc, err := ParseLocation(buf[:n])
	if err != nil {
		log.Printf("Error receiving shared location: %v", err)
		return nil, nil
	}
	return loc, nil
}

// Start launches the background receive loop. Successful receipts go onto
// the queue; drops and failures only bump counters.
func (r *Receiver) Start() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			loc, err := r.ReceiveOne()
			if err != nil {
				if errors.Is(err, net.ErrClosed) {
					return
				}
				log.Printf("Share receive error: %v", err)
				r.sink.Increment(metrics.SharedInError)
				continue
			}
			if loc == nil {
				r.sink.Increment(metrics.SharedInError)
				continue
			}

			select {
			case r.queue <- loc:
				r.sink.Increment(metrics.SharedIn)
			default:
				log.Printf("Warning - share queue full, dropping location from unit %d", loc.UnitNo)
				r.sink.Increment(metrics.SharedInError)
			}
		}
	}()
}

// Close shuts the socket, unblocking the receive loop, and waits for it.
func (r *Receiver) Close() error {
	var err error
	r.stopOnce.Do(func() {
		err = r.conn.Close()
		r.wg.Wait()
	})
	return err
}
