// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"audioviz/internal/log"
)

// DefaultFramesPerBuffer is the chunk size used when none is configured.
const DefaultFramesPerBuffer = 512

// WAVOptions controls file replay.
type WAVOptions struct {
	// FramesPerBuffer is the number of frames per delivered chunk.
	FramesPerBuffer int
	// Paced delivers chunks at the file's real-time rate. Unpaced replay
	// delivers as fast as the sink accepts them.
	Paced bool
	// Loop rewinds to the start of the PCM data at end of file.
	Loop bool
}

// WAVSource replays a PCM WAV file as a capture stream.
type WAVSource struct {
	path     string
	file     *os.File
	decoder  *wav.Decoder
	format   Format
	bitDepth int
	opts     WAVOptions

	started   atomic.Bool
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

var _ Source = (*WAVSource)(nil)

// OpenWAV opens path and reads its headers. The file stays open until Close.
func OpenWAV(path string, opts WAVOptions) (*WAVSource, error) {
	if opts.FramesPerBuffer <= 0 {
		opts.FramesPerBuffer = DefaultFramesPerBuffer
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open WAV file: %w", err)
	}

	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		file.Close()
		if err := decoder.Err(); err != nil {
			return nil, fmt.Errorf("invalid WAV file %s: %w", path, err)
		}
		return nil, fmt.Errorf("invalid WAV file %s", path)
	}

	s := &WAVSource{
		path:     path,
		file:     file,
		decoder:  decoder,
		bitDepth: int(decoder.BitDepth),
		format: Format{
			Channels:   int(decoder.NumChans),
			SampleRate: float64(decoder.SampleRate),
		},
		opts: opts,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	log.Debugf("Opened %s: %s, %d-bit", path, s.format, s.bitDepth)
	return s, nil
}

func (s *WAVSource) Format() Format { return s.format }

// Start begins replay on a new goroutine. A source can only be started once.
func (s *WAVSource) Start(sink Sink) error {
	if !s.started.CompareAndSwap(false, true) {
		return errors.New("wav source already started")
	}
	go s.run(sink)
	return nil
}

// Done is closed once replay ends, either at end of file or after Close.
func (s *WAVSource) Done() <-chan struct{} { return s.done }

// Close stops replay, waits for the replay goroutine and closes the file.
func (s *WAVSource) Close() error {
	s.closeOnce.Do(func() {
		close(s.stop)
		if s.started.Load() {
			<-s.done
		}
		s.closeErr = s.file.Close()
	})
	return s.closeErr
}

func (s *WAVSource) run(sink Sink) {
	defer close(s.done)

	channels := s.format.Channels
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{NumChannels: channels, SampleRate: int(s.format.SampleRate)},
		Data:   make([]int, s.opts.FramesPerBuffer*channels),
	}
	chunk := make([]float32, len(buf.Data))
	scale, offset := sampleScale(s.bitDepth)

	var tick <-chan time.Time
	if s.opts.Paced {
		period := time.Duration(float64(s.opts.FramesPerBuffer) / s.format.SampleRate * float64(time.Second))
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		tick = ticker.C
	}

	rewound := false
	for {
		n, err := s.decoder.PCMBuffer(buf)
		if err != nil {
			sink.StreamError(fmt.Errorf("decoding %s: %w", s.path, err))
			return
		}

		if n == 0 {
			// A rewind that yields nothing means the file has no PCM data.
			if !s.opts.Loop || rewound {
				log.Debugf("Replay of %s finished", s.path)
				return
			}
			if err := s.decoder.Rewind(); err != nil {
				sink.StreamError(err)
				return
			}
			rewound = true
			continue
		}
		rewound = false

		for i, v := range buf.Data[:n] {
			chunk[i] = float32(float64(v-offset) * scale)
		}
		sink.Deliver(chunk[:n])

		if tick != nil {
			select {
			case <-s.stop:
				return
			case <-tick:
			}
			continue
		}

		select {
		case <-s.stop:
			return
		default:
		}
	}
}

// sampleScale returns the factor and offset that map integer PCM of the
// given bit depth into [-1, 1). 8-bit WAV data is unsigned.
func sampleScale(bitDepth int) (scale float64, offset int) {
	if bitDepth == 8 {
		return 1.0 / 128, 128
	}
	return 1.0 / float64(int64(1)<<(bitDepth-1)), 0
}
