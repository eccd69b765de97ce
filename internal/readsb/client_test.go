package readsb

import (
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countSink records counter increments for assertions.
type countSink struct {
	mu     sync.Mutex
	counts map[string]int
}

func newCountSink() *countSink {
	return &countSink{counts: make(map[string]int)}
}

func (s *countSink) Increment(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[name]++
}

func (s *countSink) IncrementWith(name string, _ map[string]string) {
	s.Increment(name)
}

func (s *countSink) get(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[name]
}

// fakeConn is a net.Conn whose first failWrites writes fail.
type fakeConn struct {
	writes     int
	failWrites int
}

func (f *fakeConn) Write(p []byte) (int, error) {
	f.writes++
	if f.writes <= f.failWrites {
		return 0, errors.New("broken pipe")
	}
	return len(p), nil
}

func (f *fakeConn) Read([]byte) (int, error)         { return 0, io.EOF }
func (f *fakeConn) Close() error                     { return nil }
func (f *fakeConn) LocalAddr() net.Addr              { return &net.TCPAddr{} }
func (f *fakeConn) RemoteAddr() net.Addr             { return &net.TCPAddr{} }
func (f *fakeConn) SetDeadline(time.Time) error      { return nil }
func (f *fakeConn) SetReadDeadline(time.Time) error  { return nil }
func (f *fakeConn) SetWriteDeadline(time.Time) error { return nil }

// testListener accepts connections and streams everything read into recv.
func testListener(t *testing.T) (*net.TCPListener, <-chan []byte) {
	t.Helper()
	ln, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	recv := make(chan []byte, 16)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				buf := make([]byte, 4096)
				for {
					n, err := c.Read(buf)
					if n > 0 {
						data := make([]byte, n)
						copy(data, buf[:n])
						recv <- data
					}
					if err != nil {
						return
					}
				}
			}(conn)
		}
	}()
	return ln, recv
}

func TestSendWithoutConnect(t *testing.T) {
	sink := newCountSink()
	c := New("127.0.0.1", 1, sink)

	err := c.Send([]byte("hello"))
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Equal(t, 1, sink.get("send"))
	assert.Equal(t, 1, sink.get("send_error"))
}

func TestConnectFailure(t *testing.T) {
	// Grab a port with nothing listening on it.
	ln, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	sink := newCountSink()
	c := New("127.0.0.1", port, sink)
	assert.Error(t, c.Connect())
	assert.Equal(t, 1, sink.get("connect"))
}

func TestInjectFormatsAndDelivers(t *testing.T) {
	ln, recv := testListener(t)
	port := ln.Addr().(*net.TCPAddr).Port

	c := New("127.0.0.1", port, newCountSink())
	require.NoError(t, c.Connect())
	defer c.Close()

	require.NoError(t, c.Inject("8d00aa01580000000000000000ab", "8d00aa01580000000000000000cd"))

	select {
	case data := <-recv:
		assert.Equal(t,
			"*8D00AA01580000000000000000AB;\n*8D00AA01580000000000000000CD;\n",
			string(data))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for injected message")
	}
}

func TestSendWithRetryReconnects(t *testing.T) {
	ln, recv := testListener(t)
	port := ln.Addr().(*net.TCPAddr).Port

	sink := newCountSink()
	c := New("127.0.0.1", port, sink)

	// Simulate a dead connection: the first send fails, the reconnect
	// succeeds, and exactly one more send goes through.
	fake := &fakeConn{failWrites: 1}
	c.conn = fake

	require.NoError(t, c.SendWithRetry([]byte("payload")))
	assert.Equal(t, 1, fake.writes, "failed conn must see only the first attempt")
	assert.Equal(t, 2, sink.get("send"))
	assert.Equal(t, 1, sink.get("send_error"))
	assert.Equal(t, 1, sink.get("connect"))

	select {
	case data := <-recv:
		assert.Equal(t, "payload", string(data))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for retried message")
	}
}

func TestSendWithRetryGivesUpWhenReconnectFails(t *testing.T) {
	// Port with nothing listening: the reconnect can only fail.
	ln, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	sink := newCountSink()
	c := New("127.0.0.1", port, sink)

	fake := &fakeConn{failWrites: 99}
	c.conn = fake

	assert.Error(t, c.SendWithRetry([]byte("payload")))
	assert.Equal(t, 1, fake.writes, "no second send after a failed reconnect")
	assert.Equal(t, 1, sink.get("send"))
}
