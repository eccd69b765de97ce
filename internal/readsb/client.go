package readsb

import (
	"errors"
	"fmt"
	"log"
	"net"
	"strings"
	"sync"

	"meshbridge/internal/metrics"
)

// ErrNotConnected is returned by Send when no connection is open.
var ErrNotConnected = errors.New("not connected to readsb")

// Client delivers raw command sentences to a readsb instance over TCP. No
// response is ever read; a send succeeds when the write does. Reconnection
// is bounded: SendWithRetry attempts exactly one reconnect so a dead decoder
// cannot stall the caller's real-time loop.
type Client struct {
	host string
	port int
	sink metrics.Sink

	mu   sync.Mutex
	conn net.Conn
}

// New creates a client for the given readsb host and port. It does not
// connect; call Connect first.
func New(host string, port int, sink metrics.Sink) *Client {
	if sink == nil {
		sink = metrics.Noop()
	}
	return &Client{host: host, port: port, sink: sink}
}

// Connect opens the stream connection. On failure the client stays
// disconnected; there is no internal retry.
func (c *Client) Connect() error {
	c.sink.Increment(metrics.ConnectAttempts)

	conn, err := net.Dial("tcp", net.JoinHostPort(c.host, fmt.Sprintf("%d", c.port)))
	if err != nil {
		log.Printf("Error connecting to readsb: %v", err)
		return fmt.Errorf("failed to connect to readsb: %w", err)
	}

	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
	}
	c.conn = conn
	c.mu.Unlock()

	log.Printf("Connected to readsb at %s:%d", c.host, c.port)
	return nil
}

// Close closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	log.Printf("Closed readsb connection")
	return err
}

// Send writes one message to the open connection.
func (c *Client) Send(message []byte) error {
	c.sink.Increment(metrics.Sends)

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		c.sink.Increment(metrics.SendErrors)
		return ErrNotConnected
	}
	if _, err := conn.Write(message); err != nil {
		c.sink.Increment(metrics.SendErrors)
		log.Printf("Error sending readsb message: %v", err)
		return fmt.Errorf("failed to send readsb message: %w", err)
	}
	return nil
}

// SendWithRetry sends a message, reconnecting at most once on failure. If
// the reconnect itself fails, no second send is attempted.
func (c *Client) SendWithRetry(message []byte) error {
	if err := c.Send(message); err != nil {
		log.Printf("Reconnecting to readsb")
		if err := c.Connect(); err != nil {
			return err
		}
		return c.Send(message)
	}
	return nil
}

// Inject formats the two sentences of one command as "*<HEX>;\n" lines,
// upper-cased, and delivers them in a single write.
func (c *Client) Inject(sentence1, sentence2 string) error {
	message := strings.ToUpper(fmt.Sprintf("*%s;\n*%s;\n", sentence1, sentence2))

	if err := c.SendWithRetry([]byte(message)); err != nil {
		log.Printf("Failed to send message to readsb")
		return err
	}
	return nil
}
