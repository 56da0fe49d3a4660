package audio

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/gordonklaus/portaudio"
)

// OutputDevice describes a device able to play a mono stream.
type OutputDevice struct {
	Name       string
	HostAPI    string
	Channels   int
	SampleRate float64
	Latency    time.Duration
	Default    bool
}

// OutputDevices returns the devices with at least one output channel.
// Init must have been called.
func OutputDevices() ([]OutputDevice, error) {
	infos, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	def, _ := portaudio.DefaultOutputDevice()

	var out []OutputDevice
	for _, info := range infos {
		if info.MaxOutputChannels < NumChannels {
			continue
		}
		dev := OutputDevice{
			Name:       info.Name,
			Channels:   info.MaxOutputChannels,
			SampleRate: info.DefaultSampleRate,
			Latency:    info.DefaultLowOutputLatency,
			Default:    def != nil && info.Name == def.Name,
		}
		if info.HostApi != nil {
			dev.HostAPI = info.HostApi.Name
		}
		out = append(out, dev)
	}
	return out, nil
}

// HasOutputDevice reports whether a default output device is available.
func HasOutputDevice() bool {
	_, err := portaudio.DefaultOutputDevice()
	return err == nil
}

// PrintDevices writes a table of output devices to w.
func PrintDevices(w io.Writer) error {
	devices, err := OutputDevices()
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		fmt.Fprintln(w, "no output devices found")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tNAME\tHOST API\tCH\tRATE\tLATENCY\t")
	for i, d := range devices {
		mark := ""
		if d.Default {
			mark = "*"
		}
		fmt.Fprintf(tw, "%d%s\t%s\t%s\t%d\t%.0f\t%s\t\n", i, mark, d.Name, d.HostAPI, d.Channels, d.SampleRate, d.Latency)
	}
	return tw.Flush()
}
