// SPDX-License-Identifier: MIT
package udp

import (
	"errors"
	"net"
	"slices"
	"testing"
	"time"

	"github.com/zthompson47/time2freq/internal/analysis"
)

type fixedLevel analysis.Level

func (f fixedLevel) Latest() analysis.Level { return analysis.Level(f) }

func listen(t *testing.T) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestPublisherSendsLevelPackets(t *testing.T) {
	conn := listen(t)
	sender, err := NewUDPSender(conn.LocalAddr().String())
	if err != nil {
		t.Fatalf("NewUDPSender: %v", err)
	}
	defer sender.Close()

	level := fixedLevel{RMS: [2]float32{0.25, 0.5}, Loudness: -14}
	pub, err := NewUDPPublisher(5*time.Millisecond, sender, level)
	if err != nil {
		t.Fatalf("NewUDPPublisher: %v", err)
	}
	pub.Start()
	pub.Start() // no-op
	defer pub.Close()

	buf := make([]byte, 256)
	var last uint32
	for i := range 3 {
		_ = conn.SetReadDeadline(time.Now().Add(time.Second))
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			t.Fatalf("read packet %d: %v", i, err)
		}
		pkt, err := ParsePacket(buf[:n])
		if err != nil {
			t.Fatalf("ParsePacket: %v", err)
		}
		if n != packetSize {
			t.Errorf("packet size = %d", n)
		}
		if pkt.Sequence <= last {
			t.Errorf("sequence %d after %d", pkt.Sequence, last)
		}
		last = pkt.Sequence
		want := []float32{0.25, 0.5, -14}
		for j := range want {
			if pkt.Values[j] != want[j] {
				t.Errorf("values = %v, want %v", pkt.Values, want)
				break
			}
		}
		if time.Since(pkt.Timestamp) > 5*time.Second {
			t.Errorf("stale timestamp %v", pkt.Timestamp)
		}
	}

	if err := pub.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := pub.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}

func TestNewUDPPublisherErrors(t *testing.T) {
	if _, err := NewUDPPublisher(time.Millisecond, nil, fixedLevel{}); err == nil {
		t.Error("expected error for nil sender")
	}
	conn := listen(t)
	sender, err := NewUDPSender(conn.LocalAddr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer sender.Close()
	if _, err := NewUDPPublisher(time.Millisecond, sender, nil); err == nil {
		t.Error("expected error for nil provider")
	}
	pub, err := NewUDPPublisher(0, sender, fixedLevel{})
	if err != nil || pub.interval != 16*time.Millisecond {
		t.Errorf("interval = %v, err = %v", pub.interval, err)
	}
}

func TestSendLevel(t *testing.T) {
	conn := listen(t)
	sender, err := NewUDPSender(conn.LocalAddr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer sender.Close()

	at := time.Unix(1700000000, 123456789)
	levels := []analysis.Level{
		{RMS: [2]float32{0.1, 0.2}, Loudness: -23},
		{RMS: [2]float32{0, 0}, Loudness: -70},
	}
	buf := make([]byte, 256)
	for i, level := range levels {
		if err := sender.SendLevel(level, at); err != nil {
			t.Fatalf("SendLevel: %v", err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(time.Second))
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		pkt, err := ParsePacket(buf[:n])
		if err != nil {
			t.Fatalf("ParsePacket: %v", err)
		}
		if pkt.Sequence != uint32(i+1) || !pkt.Timestamp.Equal(at) {
			t.Errorf("packet %d: sequence %d timestamp %v", i, pkt.Sequence, pkt.Timestamp)
		}
		want := []float32{level.RMS[0], level.RMS[1], level.Loudness}
		if !slices.Equal(pkt.Values, want) {
			t.Errorf("values = %v, want %v", pkt.Values, want)
		}
	}
	if sender.Sent() != 2 || sender.Failed() != 0 || sender.Sequence() != 2 {
		t.Errorf("sent=%d failed=%d seq=%d", sender.Sent(), sender.Failed(), sender.Sequence())
	}
}

func TestSenderClosed(t *testing.T) {
	conn := listen(t)
	sender, err := NewUDPSender(conn.LocalAddr().String())
	if err != nil {
		t.Fatal(err)
	}
	if err := sender.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := sender.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := sender.Send([]byte{1}); !errors.Is(err, ErrSenderClosed) {
		t.Errorf("Send after Close = %v", err)
	}
	if err := sender.SendLevel(analysis.Level{}, time.Now()); !errors.Is(err, ErrSenderClosed) {
		t.Errorf("SendLevel after Close = %v", err)
	}
}

func TestNewUDPSenderBadAddress(t *testing.T) {
	if _, err := NewUDPSender("no-port"); err == nil {
		t.Error("expected error for address without port")
	}
}

func TestParsePacketShort(t *testing.T) {
	b := encodePacket(nil, 1, 0, 1, 2, 3)
	for _, n := range []int{0, headerSize - 1, len(b) - 1} {
		if _, err := ParsePacket(b[:n]); !errors.Is(err, ErrShortPacket) {
			t.Errorf("ParsePacket(%d bytes) = %v, want ErrShortPacket", n, err)
		}
	}
	if _, err := ParsePacket(b); err != nil {
		t.Errorf("ParsePacket(full) = %v", err)
	}
}

func TestEncodePacketZeroAllocations(t *testing.T) {
	var buf [packetSize]byte
	allocs := testing.AllocsPerRun(100, func() {
		_ = encodePacket(buf[:0], 1, 2, 0.1, 0.2, -23)
	})
	if allocs != 0 {
		t.Errorf("encodePacket allocates %.1f times per call", allocs)
	}
}

func BenchmarkEncodePacket(b *testing.B) {
	var buf [packetSize]byte
	for b.Loop() {
		_ = encodePacket(buf[:0], 1, 2, 0.1, 0.2, -23)
	}
}
