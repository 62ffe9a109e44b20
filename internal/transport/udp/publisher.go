// SPDX-License-Identifier: MIT
package udp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"audioviz/internal/log"
	"audioviz/internal/pipeline"
)

/*
Packet layout, big-endian:

	|<- 4 ->|<--- 8 --->|<- 1 ->|<- 2 ->|<-- N*4 -->|<- 2 ->|<-- M*4 -->|
	+-------+-----------+-------+-------+-----------+-------+-----------+
	|  seq  | timestamp | flags |   N   | spectrum  |   M   | waveform  |
	|uint32 |   int64   | uint8 |uint16 | float32[] |uint16 | float32[] |
	+-------+-----------+-------+-------+-----------+-------+-----------+

The timestamp is nanoseconds since the epoch. N is zero until the spectrum
is ready.
*/

const (
	// FlagReady is set when the packet carries a spectrum.
	FlagReady uint8 = 1 << iota
	// FlagSilent is set when the noise gate stayed closed for the frame.
	FlagSilent
)

const (
	headerSize = 4 + 8 + 1
	// MaxPacketSize is the largest UDP payload over IPv4.
	MaxPacketSize = 65507
)

var (
	// ErrPacketTooLarge is returned when a frame does not fit in one datagram.
	ErrPacketTooLarge = errors.New("udp: frame exceeds maximum datagram size")
	// ErrShortPacket is returned by DecodePacket for truncated input.
	ErrShortPacket = errors.New("udp: short packet")
)

// Packet is the decoded form of one datagram.
type Packet struct {
	Sequence  uint32
	Timestamp int64
	Flags     uint8
	Spectrum  []float32
	Waveform  []float32
}

func (p Packet) Ready() bool  { return p.Flags&FlagReady != 0 }
func (p Packet) Silent() bool { return p.Flags&FlagSilent != 0 }

// PacketSize returns the encoded size of a frame.
func PacketSize(f pipeline.Frame) int {
	return FrameSize(len(f.Spectrum), len(f.Waveform))
}

// FrameSize returns the encoded size of a frame carrying the given number of
// spectrum bins and waveform samples.
func FrameSize(bins, samples int) int {
	return headerSize + 2 + 4*bins + 2 + 4*samples
}

// AppendPacket encodes f onto dst.
func AppendPacket(dst []byte, f pipeline.Frame) ([]byte, error) {
	if size := PacketSize(f); size > MaxPacketSize {
		return dst, fmt.Errorf("%w: frame %d needs %d bytes", ErrPacketTooLarge, f.Sequence, size)
	}

	var flags uint8
	if f.Ready() {
		flags |= FlagReady
	}
	if f.Silent {
		flags |= FlagSilent
	}

	dst = binary.BigEndian.AppendUint32(dst, f.Sequence)
	dst = binary.BigEndian.AppendUint64(dst, uint64(f.Timestamp.UnixNano()))
	dst = append(dst, flags)
	dst = appendFloats(dst, f.Spectrum)
	dst = appendFloats(dst, f.Waveform)
	return dst, nil
}

func appendFloats(dst []byte, values []float32) []byte {
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(values)))
	for _, v := range values {
		dst = binary.BigEndian.AppendUint32(dst, math.Float32bits(v))
	}
	return dst
}

// DecodePacket parses a datagram produced by AppendPacket.
func DecodePacket(data []byte) (Packet, error) {
	if len(data) < headerSize {
		return Packet{}, ErrShortPacket
	}
	p := Packet{
		Sequence:  binary.BigEndian.Uint32(data),
		Timestamp: int64(binary.BigEndian.Uint64(data[4:])),
		Flags:     data[12],
	}

	rest := data[headerSize:]
	var err error
	if p.Spectrum, rest, err = readFloats(rest); err != nil {
		return Packet{}, fmt.Errorf("spectrum: %w", err)
	}
	if p.Waveform, rest, err = readFloats(rest); err != nil {
		return Packet{}, fmt.Errorf("waveform: %w", err)
	}
	if len(rest) != 0 {
		return Packet{}, fmt.Errorf("udp: %d trailing bytes", len(rest))
	}
	return p, nil
}

func readFloats(data []byte) ([]float32, []byte, error) {
	if len(data) < 2 {
		return nil, nil, ErrShortPacket
	}
	n := int(binary.BigEndian.Uint16(data))
	data = data[2:]
	if len(data) < 4*n {
		return nil, nil, ErrShortPacket
	}
	values := make([]float32, n)
	for i := range values {
		values[i] = math.Float32frombits(binary.BigEndian.Uint32(data[4*i:]))
	}
	return values, data[4*n:], nil
}

// Publisher is a pipeline.Renderer that sends every frame as one datagram.
type Publisher struct {
	sender *Sender
	buf    []byte // Reused across frames
}

// NewPublisher sends frames to target ("host:port").
func NewPublisher(target string) (*Publisher, error) {
	sender, err := NewSender(target)
	if err != nil {
		return nil, err
	}
	return &Publisher{sender: sender}, nil
}

// Render encodes and sends f. Oversized frames are rejected before sending.
func (p *Publisher) Render(f pipeline.Frame) error {
	packet, err := AppendPacket(p.buf[:0], f)
	if err != nil {
		return err
	}
	p.buf = packet

	if err := p.sender.Send(packet); err != nil {
		return err
	}
	log.Debugf("UDPPublisher: Sent packet %d (%d bytes)", f.Sequence, len(packet))
	return nil
}

// Close closes the underlying sender.
func (p *Publisher) Close() error {
	return p.sender.Close()
}

// Ensure Publisher satisfies the interface
var _ pipeline.Renderer = (*Publisher)(nil)
