// Package audio plays synthesized resource grids through a sound card as
// real-valued OFDM, and converts captured samples back into grids.
package audio

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

const NumChannels = 1

// Init initializes PortAudio.
func Init() error {
	return portaudio.Initialize()
}

// Terminate cleans up PortAudio.
func Terminate() error {
	return portaudio.Terminate()
}

// Player writes float32 samples to the default output device, one OFDM
// symbol per buffer.
type Player struct {
	stream    *portaudio.Stream
	outputBuf []float32
	mu        sync.Mutex
}

// OpenPlayer opens the default output stream with framesPerBuf samples per
// write.
func OpenPlayer(sampleRate float64, framesPerBuf int) (*Player, error) {
	p := &Player{outputBuf: make([]float32, framesPerBuf)}
	stream, err := portaudio.OpenDefaultStream(
		0,           // input channels
		NumChannels, // output channels
		sampleRate,
		framesPerBuf,
		p.outputBuf,
	)
	if err != nil {
		return nil, fmt.Errorf("open output stream: %w", err)
	}
	p.stream = stream

	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("start output stream: %w", err)
	}
	return p, nil
}

// Write plays samples in buffer-sized chunks, zero-padding the last one.
func (p *Player) Write(samples []float32) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream == nil {
		return fmt.Errorf("output stream closed")
	}
	for _, chunk := range Chunk(samples, len(p.outputBuf)) {
		copy(p.outputBuf, chunk)
		if err := p.stream.Write(); err != nil {
			return fmt.Errorf("write: %w", err)
		}
	}
	return nil
}

// Close stops and closes the stream.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream == nil {
		return nil
	}
	var errs []error
	if err := p.stream.Stop(); err != nil {
		errs = append(errs, err)
	}
	if err := p.stream.Close(); err != nil {
		errs = append(errs, err)
	}
	p.stream = nil
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// Chunk splits samples into n-sample buffers, zero-padding the last one.
func Chunk(samples []float32, n int) [][]float32 {
	var out [][]float32
	for i := 0; i < len(samples); i += n {
		chunk := make([]float32, n)
		copy(chunk, samples[i:min(i+n, len(samples))])
		out = append(out, chunk)
	}
	return out
}
