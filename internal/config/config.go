// Package config loads the YAML configuration shared by the generator,
// the receiver, the audio sink and the server.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jeongseonghan/nr-sync/internal/acquisition"
	"github.com/jeongseonghan/nr-sync/internal/logging"
	"github.com/jeongseonghan/nr-sync/internal/nr"
	"github.com/jeongseonghan/nr-sync/internal/ssb"
)

// Config is the top-level configuration.
type Config struct {
	Grid     GridConfig     `yaml:"grid"`
	Detector DetectorConfig `yaml:"detector"`
	Message  MessageConfig  `yaml:"message"`
	Audio    AudioConfig    `yaml:"audio"`
	Server   ServerConfig   `yaml:"server"`
	Log      logging.Config `yaml:"log"`
}

// GridConfig describes the transmitted resource grid.
type GridConfig struct {
	NRB            int     `yaml:"n_rb"`
	NID1           int     `yaml:"n_id1"`
	NID2           int     `yaml:"n_id2"`
	KSSB           int     `yaml:"k_ssb"`
	Mu             int     `yaml:"mu"`
	FrequencyHz    float64 `yaml:"frequency_hz"`
	SharedSpectrum bool    `yaml:"shared_spectrum"`
	PairedSpectrum bool    `yaml:"paired_spectrum"`
}

// DetectorConfig tunes the receiver.
type DetectorConfig struct {
	Threshold float64 `yaml:"threshold"`
	Equalize  bool    `yaml:"equalize"`
}

// MessageConfig controls payload framing across a burst.
type MessageConfig struct {
	ParityBlocks int `yaml:"parity_blocks"`
}

// AudioConfig configures the acoustic OFDM sink.
type AudioConfig struct {
	SampleRate int     `yaml:"sample_rate"`
	FFTSize    int     `yaml:"fft_size"`
	CPLen      int     `yaml:"cp_len"`
	StartBin   int     `yaml:"start_bin"`
	Amplitude  float64 `yaml:"amplitude"`
	Device     string  `yaml:"device"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the configuration of the reference cell: 20 resource
// blocks at 30 kHz with shared spectrum access, cell 0/1.
func Default() *Config {
	return &Config{
		Grid: GridConfig{
			NRB:            20,
			NID1:           0,
			NID2:           1,
			Mu:             1,
			SharedSpectrum: true,
		},
		Detector: DetectorConfig{Threshold: 80},
		Message:  MessageConfig{ParityBlocks: 2},
		Audio: AudioConfig{
			SampleRate: 48000,
			FFTSize:    1024,
			CPLen:      64,
			StartBin:   16,
			Amplitude:  0.5,
		},
		Server: ServerConfig{Addr: ":8080"},
		Log:    logging.Config{Level: "info", Format: "text"},
	}
}

// Load reads filename over the defaults and validates the result.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every parameter range.
func (c *Config) Validate() error {
	if err := c.SSBGrid().Validate(); err != nil {
		return fmt.Errorf("grid: %w", err)
	}
	if c.Detector.Threshold <= 0 {
		return fmt.Errorf("detector: %w: threshold %g must be positive", nr.ErrInvalidConfig, c.Detector.Threshold)
	}
	if lMax := c.SSBGrid().LMax(); c.Message.ParityBlocks < 0 || (lMax > 0 && c.Message.ParityBlocks >= lMax) {
		return fmt.Errorf("message: %w: %d parity blocks for L_max %d", nr.ErrInvalidConfig, c.Message.ParityBlocks, lMax)
	}

	a := c.Audio
	if a.SampleRate <= 0 {
		return fmt.Errorf("audio: %w: sample rate %d", nr.ErrInvalidConfig, a.SampleRate)
	}
	if a.CPLen < 0 || a.CPLen > a.FFTSize {
		return fmt.Errorf("audio: %w: cyclic prefix %d", nr.ErrInvalidConfig, a.CPLen)
	}
	if a.Amplitude <= 0 || a.Amplitude > 1 {
		return fmt.Errorf("audio: %w: amplitude %g not in (0,1]", nr.ErrInvalidConfig, a.Amplitude)
	}
	return nil
}

// ValidateAudio checks that nSC subcarriers fit the audio band below
// Nyquist. Only playback needs it.
func (c *Config) ValidateAudio(nSC int) error {
	a := c.Audio
	if a.StartBin < 1 || a.StartBin+nSC >= a.FFTSize/2 {
		return fmt.Errorf("audio: %w: %d subcarriers from bin %d do not fit an FFT of %d",
			nr.ErrInvalidConfig, nSC, a.StartBin, a.FFTSize)
	}
	return nil
}

// Cell returns the configured cell identity.
func (c *Config) Cell() nr.CellIdentity {
	return nr.CellIdentity{NID1: c.Grid.NID1, NID2: c.Grid.NID2}
}

// SSBGrid converts the grid section for ssb.BuildGrid.
func (c *Config) SSBGrid() ssb.GridConfig {
	return ssb.GridConfig{
		NRB:            c.Grid.NRB,
		Cell:           c.Cell(),
		KSSB:           c.Grid.KSSB,
		Mu:             c.Grid.Mu,
		Frequency:      c.Grid.FrequencyHz,
		SharedSpectrum: c.Grid.SharedSpectrum,
		PairedSpectrum: c.Grid.PairedSpectrum,
	}
}

// Receiver converts the detector section for acquisition.NewReceiver.
func (c *Config) Receiver() acquisition.ReceiverConfig {
	g := c.SSBGrid()
	nSC, _ := g.Dimensions()
	return acquisition.ReceiverConfig{
		NSC:       nSC,
		LMax:      g.LMax(),
		Threshold: c.Detector.Threshold,
		Equalize:  c.Detector.Equalize,
	}
}
