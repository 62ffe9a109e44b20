// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sync"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrRecorderClosed is returned by Write after Close.
var ErrRecorderClosed = errors.New("audio: recorder closed")

const recordBitDepth = 16

// Recorder writes interleaved float32 chunks to a 16-bit PCM WAV file.
type Recorder struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	encoder *wav.Encoder
	buf     *goaudio.IntBuffer // Reusable buffer for format conversion
	frames  int64
	closed  bool
}

// NewRecorder creates path and prepares a WAV encoder for format.
func NewRecorder(path string, format Format) (*Recorder, error) {
	if format.Channels < 1 || format.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid recording format %s", format)
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create recording: %w", err)
	}

	return &Recorder{
		path:    path,
		file:    file,
		encoder: wav.NewEncoder(file, int(format.SampleRate), recordBitDepth, format.Channels, 1),
		buf: &goaudio.IntBuffer{
			Format: &goaudio.Format{
				NumChannels: format.Channels,
				SampleRate:  int(format.SampleRate),
			},
			SourceBitDepth: recordBitDepth,
		},
	}, nil
}

// Write appends the complete frames of chunk. Samples are clamped to [-1, 1].
func (r *Recorder) Write(chunk []float32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRecorderClosed
	}

	channels := r.buf.Format.NumChannels
	n := len(chunk) - len(chunk)%channels
	if n == 0 {
		return nil
	}

	if cap(r.buf.Data) < n {
		r.buf.Data = make([]int, n)
	}
	r.buf.Data = r.buf.Data[:n]
	for i, s := range chunk[:n] {
		r.buf.Data[i] = int(math.Round(float64(min(max(s, -1), 1)) * math.MaxInt16))
	}

	if err := r.encoder.Write(r.buf); err != nil {
		return fmt.Errorf("error writing to WAV file: %w", err)
	}
	r.frames += int64(n / channels)
	return nil
}

// Frames returns the number of frames written so far.
func (r *Recorder) Frames() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

func (r *Recorder) Path() string { return r.path }

// Close finalises the WAV headers and closes the file. It is safe to call
// more than once.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	encErr := r.encoder.Close()
	fileErr := r.file.Close()
	if encErr != nil {
		return fmt.Errorf("failed to finalise recording: %w", encErr)
	}
	return fileErr
}
