package share

import (
	"fmt"
	"log"
	"net"

	"meshbridge/pkg/models"
)

// Sender transmits shared locations to one peer instance as single-datagram
// JSON over UDP.
type Sender struct {
	conn net.Conn
}

// NewSender opens a UDP socket toward the peer at ip:port.
func NewSender(ip string, port int) (*Sender, error) {
	conn, err := net.Dial("udp", net.JoinHostPort(ip, fmt.Sprintf("%d", port)))
	if err != nil {
		return nil, fmt.Errorf("failed to open share sender socket: %w", err)
	}
	return &Sender{conn: conn}, nil
}

// Send transmits one location. Serialization or transport failure is
// reported as an error, never a panic; the caller counts and continues.
func (s *Sender) Send(loc *models.SharedLocation) error {
	data, err := EncodeLocation(loc)
	if err != nil {
		log.Printf("Error encoding location data: %v", err)
		return err
	}

	if _, err := s.conn.Write(data); err != nil {
		log.Printf("Error sending location data: %v", err)
		return fmt.Errorf("failed to send location: %w", err)
	}
	return nil
}

// Close closes the socket.
func (s *Sender) Close() error {
	return s.conn.Close()
}
