// SPDX-License-Identifier: MIT
package udp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zthompson47/time2freq/internal/analysis"
	applog "github.com/zthompson47/time2freq/internal/log"
)

var log = applog.For("udp")

// ErrSenderClosed is returned by Send after Close.
var ErrSenderClosed = errors.New("UDP sender is closed")

/*
Level Packet (BigEndian)

+-------------------+-----------------------+---------------+-------------------------+
|  Sequence Number  |       Timestamp       |  Value Count  |         Values          |
|      uint32       |   int64, ns (epoch)   |    uint16     |      N * float32        |
+-------------------+-----------------------+---------------+-------------------------+
|<---- 4 Bytes ---->|<------ 8 Bytes ------>|<-- 2 Bytes -->|<----- N * 4 Bytes ----->|

Values are RMS left, RMS right, momentary loudness in LUFS.
*/

// PacketValues is the number of floats in every level packet.
const PacketValues = 3

const (
	headerSize = 4 + 8 + 2
	packetSize = headerSize + 4*PacketValues
)

// UDPSender writes level packets to one UDP peer. Each SendLevel takes the
// next sequence number, starting at 1.
type UDPSender struct {
	conn   *net.UDPConn
	target *net.UDPAddr

	mu     sync.Mutex // guards conn, seq and buf
	closed bool
	seq    uint32
	buf    [packetSize]byte

	sent   atomic.Uint64
	failed atomic.Uint64
}

// NewUDPSender dials targetAddress ("host:port").
func NewUDPSender(targetAddress string) (*UDPSender, error) {
	addr, err := net.ResolveUDPAddr("udp", targetAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve UDP target address '%s': %w", targetAddress, err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial UDP for target '%s': %w", targetAddress, err)
	}
	log.Infof("sending levels to %s", conn.RemoteAddr())
	return &UDPSender{conn: conn, target: addr}, nil
}

// SendLevel packs level with timestamp at and sends it.
func (s *UDPSender) SendLevel(level analysis.Level, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSenderClosed
	}
	s.seq++
	pkt := encodePacket(s.buf[:0], s.seq, at.UnixNano(), level.RMS[0], level.RMS[1], level.Loudness)
	return s.write(pkt)
}

// Send writes one raw datagram.
func (s *UDPSender) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSenderClosed
	}
	return s.write(data)
}

// write needs s.mu held.
func (s *UDPSender) write(data []byte) error {
	if _, err := s.conn.Write(data); err != nil {
		s.failed.Add(1)
		log.Debugf("send to %s failed: %v", s.target, err)
		return fmt.Errorf("failed to send UDP packet: %w", err)
	}
	s.sent.Add(1)
	return nil
}

// Sequence returns the sequence number of the last level packet.
func (s *UDPSender) Sequence() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// Sent and Failed count datagrams since the sender was created.
func (s *UDPSender) Sent() uint64   { return s.sent.Load() }
func (s *UDPSender) Failed() uint64 { return s.failed.Load() }

// Close closes the connection. Later sends return ErrSenderClosed.
func (s *UDPSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	log.Debugf("closing connection to %s after %d packets", s.target, s.sent.Load())
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close UDP connection: %w", err)
	}
	return nil
}

// encodePacket appends one level packet to dst.
func encodePacket(dst []byte, seq uint32, timestamp int64, values ...float32) []byte {
	dst = binary.BigEndian.AppendUint32(dst, seq)
	dst = binary.BigEndian.AppendUint64(dst, uint64(timestamp))
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(values)))
	for _, v := range values {
		dst = binary.BigEndian.AppendUint32(dst, math.Float32bits(v))
	}
	return dst
}

// Packet is a decoded level packet.
type Packet struct {
	Sequence  uint32
	Timestamp time.Time
	Values    []float32
}

// ErrShortPacket is returned by ParsePacket for truncated input.
var ErrShortPacket = errors.New("short level packet")

// ParsePacket decodes a packet written by SendLevel.
func ParsePacket(b []byte) (Packet, error) {
	if len(b) < headerSize {
		return Packet{}, ErrShortPacket
	}
	n := int(binary.BigEndian.Uint16(b[12:14]))
	if len(b) < headerSize+4*n {
		return Packet{}, ErrShortPacket
	}
	pkt := Packet{
		Sequence:  binary.BigEndian.Uint32(b[0:4]),
		Timestamp: time.Unix(0, int64(binary.BigEndian.Uint64(b[4:12]))),
		Values:    make([]float32, n),
	}
	for i := range pkt.Values {
		off := headerSize + 4*i
		pkt.Values[i] = math.Float32frombits(binary.BigEndian.Uint32(b[off : off+4]))
	}
	return pkt, nil
}
