// SPDX-License-Identifier: MIT
package udp

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"audioviz/internal/pipeline"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func listen(t *testing.T) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestPacketRoundTrip(t *testing.T) {
	frame := pipeline.Frame{
		Sequence:  42,
		Timestamp: time.Unix(0, 987654321),
		Spectrum:  []float32{0, 1.5, 3},
		Waveform:  []float32{-1, 0.5},
		Silent:    true,
	}

	data, err := AppendPacket(nil, frame)
	require.NoError(t, err)
	assert.Len(t, data, PacketSize(frame))
	assert.Equal(t, 13+2+12+2+8, len(data))

	p, err := DecodePacket(data)
	require.NoError(t, err)
	assert.Equal(t, uint32(42), p.Sequence)
	assert.Equal(t, int64(987654321), p.Timestamp)
	assert.True(t, p.Ready())
	assert.True(t, p.Silent())
	assert.Equal(t, frame.Spectrum, p.Spectrum)
	assert.Equal(t, frame.Waveform, p.Waveform)
}

func TestPacketHeaderLayout(t *testing.T) {
	data, err := AppendPacket(nil, pipeline.Frame{Sequence: 0x01020304, Timestamp: time.Unix(0, 0x0A)})
	require.NoError(t, err)
	assert.Equal(t, []byte{
		0x01, 0x02, 0x03, 0x04, // seq
		0, 0, 0, 0, 0, 0, 0, 0x0A, // timestamp
		0x00,       // flags: not ready, not silent
		0x00, 0x00, // no spectrum
		0x00, 0x00, // no waveform
	}, data)
}

func TestPacketTooLarge(t *testing.T) {
	frame := pipeline.Frame{Spectrum: make([]float32, 16385)}
	_, err := AppendPacket(nil, frame)
	assert.ErrorIs(t, err, ErrPacketTooLarge)
}

func TestFrameSize(t *testing.T) {
	frame := pipeline.Frame{Spectrum: make([]float32, 3), Waveform: make([]float32, 5)}
	assert.Equal(t, PacketSize(frame), FrameSize(3, 5))
	assert.Equal(t, headerSize+4, FrameSize(0, 0))
	assert.LessOrEqual(t, FrameSize(3072/2+1, 3072), MaxPacketSize)
	assert.Greater(t, FrameSize(1<<14+1, 1<<15), MaxPacketSize)
}

func TestDecodePacketErrors(t *testing.T) {
	good, err := AppendPacket(nil, pipeline.Frame{Spectrum: []float32{1}, Waveform: []float32{2}})
	require.NoError(t, err)

	tests := []struct {
		name string
		data []byte
	}{
		{"Empty", nil},
		{"Header only", good[:headerSize]},
		{"Truncated spectrum", good[:headerSize+4]},
		{"Truncated waveform", good[:len(good)-1]},
		{"Trailing bytes", append(append([]byte{}, good...), 0xFF)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodePacket(tt.data)
			assert.Error(t, err)
		})
	}
}

func TestPublisherSendsFrames(t *testing.T) {
	listener := listen(t)

	pub, err := NewPublisher(listener.LocalAddr().String())
	require.NoError(t, err)
	defer pub.Close()

	for seq := uint32(1); seq <= 2; seq++ {
		require.NoError(t, pub.Render(pipeline.Frame{
			Sequence: seq,
			Spectrum: []float32{float32(seq)},
			Waveform: []float32{0.25},
		}))
	}

	buf := make([]byte, MaxPacketSize)
	for seq := uint32(1); seq <= 2; seq++ {
		require.NoError(t, listener.SetReadDeadline(time.Now().Add(2*time.Second)))
		n, _, err := listener.ReadFromUDP(buf)
		require.NoError(t, err)

		p, err := DecodePacket(buf[:n])
		require.NoError(t, err)
		assert.Equal(t, seq, p.Sequence)
		assert.Equal(t, []float32{float32(seq)}, p.Spectrum)
	}
}

func TestPublisherAfterClose(t *testing.T) {
	listener := listen(t)
	pub, err := NewPublisher(listener.LocalAddr().String())
	require.NoError(t, err)

	require.NoError(t, pub.Close())
	assert.NoError(t, pub.Close())
	assert.ErrorIs(t, pub.Render(pipeline.Frame{}), ErrSenderClosed)
}

func TestNewPublisherBadAddress(t *testing.T) {
	_, err := NewPublisher("no-port")
	assert.Error(t, err)
}

func BenchmarkAppendPacket(b *testing.B) {
	frame := pipeline.Frame{Spectrum: make([]float32, 1537), Waveform: make([]float32, 3072)}
	buf := make([]byte, 0, PacketSize(frame))

	b.ReportAllocs()
	for b.Loop() {
		buf, _ = AppendPacket(buf[:0], frame)
	}
}
