package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/jeongseonghan/nr-sync/internal/acquisition"
	"github.com/jeongseonghan/nr-sync/internal/audio"
	"github.com/jeongseonghan/nr-sync/internal/config"
	"github.com/jeongseonghan/nr-sync/internal/gridio"
	"github.com/jeongseonghan/nr-sync/internal/logging"
	"github.com/jeongseonghan/nr-sync/internal/modem"
	"github.com/jeongseonghan/nr-sync/internal/protocol"
	"github.com/jeongseonghan/nr-sync/internal/server"
	"github.com/jeongseonghan/nr-sync/internal/ssb"
)

// gridFlags are the grid settings every command can override.
type gridFlags struct {
	configFile string
	nRB        int
	nid1, nid2 int
	kSSB       int
	mu         int
	freq       float64
	shared     bool
	paired     bool
	threshold  float64
	equalize   bool
}

func (g *gridFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&g.configFile, "config", "c", "", "YAML configuration file")
	fs.IntVar(&g.nRB, "n-rb", 0, "carrier bandwidth in resource blocks")
	fs.IntVar(&g.nid1, "nid1", 0, "cell identity group N_ID1 (0-335)")
	fs.IntVar(&g.nid2, "nid2", 0, "sector identity N_ID2 (0-2)")
	fs.IntVar(&g.kSSB, "k-ssb", 0, "subcarrier offset of the block")
	fs.IntVar(&g.mu, "mu", 0, "numerology (0-4)")
	fs.Float64Var(&g.freq, "freq", 0, "carrier frequency in Hz")
	fs.BoolVar(&g.shared, "shared", false, "shared spectrum channel access")
	fs.BoolVar(&g.paired, "paired", false, "paired spectrum operation")
	fs.Float64Var(&g.threshold, "threshold", 0, "PSS correlation threshold")
	fs.BoolVar(&g.equalize, "equalize", false, "equalize PBCH against the DM-RS")
}

// load reads the configuration and applies the flags that were set.
func (g *gridFlags) load(fs *pflag.FlagSet) (*config.Config, error) {
	cfg := config.Default()
	if g.configFile != "" {
		var err error
		if cfg, err = config.Load(g.configFile); err != nil {
			return nil, err
		}
	}

	set := func(name string, apply func()) {
		if fs.Changed(name) {
			apply()
		}
	}
	set("n-rb", func() { cfg.Grid.NRB = g.nRB })
	set("nid1", func() { cfg.Grid.NID1 = g.nid1 })
	set("nid2", func() { cfg.Grid.NID2 = g.nid2 })
	set("k-ssb", func() { cfg.Grid.KSSB = g.kSSB })
	set("mu", func() { cfg.Grid.Mu = g.mu })
	set("freq", func() { cfg.Grid.FrequencyHz = g.freq })
	set("shared", func() { cfg.Grid.SharedSpectrum = g.shared })
	set("paired", func() { cfg.Grid.PairedSpectrum = g.paired })
	set("threshold", func() { cfg.Detector.Threshold = g.threshold })
	set("equalize", func() { cfg.Detector.Equalize = g.equalize })

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newFlagSet(name string, stdout io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(stdout)
	return fs
}

// buildGrid synthesizes the configured grid, framing msg across the burst
// when it is non-empty.
func buildGrid(cfg *config.Config, msg string, msgID byte) (*ssb.Grid, error) {
	gc := cfg.SSBGrid()
	var payload []byte
	if msg != "" {
		burst, err := protocol.NewBurst(gc.LMax(), cfg.Message.ParityBlocks)
		if err != nil {
			return nil, err
		}
		if payload, err = burst.Pack(msgID, []byte(msg)); err != nil {
			return nil, err
		}
	}
	return ssb.BuildGrid(gc, payload)
}

func runGenerate(ctx context.Context, args []string, stdout io.Writer) error {
	fs := newFlagSet("generate", stdout)
	var gf gridFlags
	gf.register(fs)
	output := fs.StringP("output", "o", "grid.npy", "output file (.npy or .npy.zst)")
	message := fs.StringP("message", "m", "", "message framed across the burst PBCH payloads")
	msgID := fs.Uint8("msg-id", 1, "message identifier")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := gf.load(fs)
	if err != nil {
		return err
	}
	log := logging.NewFromEnv(cfg.Log)

	grid, err := buildGrid(cfg, *message, *msgID)
	if err != nil {
		return err
	}
	if err := gridio.WriteFile(*output, grid); err != nil {
		return err
	}

	log.Info("grid written",
		logging.String("path", *output),
		logging.String("cell", cfg.Cell().String()),
		logging.Int("subcarriers", grid.NSC),
		logging.Int("symbols", grid.NSymb),
		logging.Int("blocks", cfg.SSBGrid().LMax()),
	)
	return nil
}

// receiverFor configures a receiver for grid, taking the subcarrier count
// from the grid itself.
func receiverFor(cfg *config.Config, grid *ssb.Grid, log logging.Logger, metrics *acquisition.Metrics) (*acquisition.Receiver, error) {
	rc := cfg.Receiver()
	rc.NSC = grid.NSC
	if rc.LMax < 1 {
		rc.LMax = 1
	}
	return acquisition.NewReceiver(rc, log, metrics)
}

func runDetect(ctx context.Context, args []string, stdout io.Writer) error {
	fs := newFlagSet("detect", stdout)
	var gf gridFlags
	gf.register(fs)
	frames := fs.Int("frames", 1, "number of passes over the grid")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("detect: expected one grid file")
	}
	if *frames < 1 {
		return fmt.Errorf("detect: frames must be at least 1")
	}

	cfg, err := gf.load(fs)
	if err != nil {
		return err
	}
	log := logging.NewFromEnv(cfg.Log)

	grid, err := gridio.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	rx, err := receiverFor(cfg, grid, log, nil)
	if err != nil {
		return err
	}

	reasm := protocol.NewReassembler()
	src := ssb.NewGridSource(grid)
	found := 0
	fmt.Fprintf(stdout, "%-6s %-5s %-5s %-5s %-5s %-8s %-8s\n", "CELL", "NID1", "NID2", "ISSB", "KSSB", "PSS", "SSS")
	total := grid.NSymb * *frames
	for range total {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := rx.Process(src.Next())
		if errors.Is(err, acquisition.ErrDecode) {
			log.Warn("dropping block", logging.Err(err))
			continue
		}
		if err != nil {
			return err
		}
		if res == nil {
			continue
		}
		found++
		fmt.Fprintf(stdout, "%-6d %-5d %-5d %-5d %-5d %-8.1f %-8.1f\n",
			res.Cell.CellID(), res.Cell.NID1, res.Cell.NID2, res.ISSB, res.KSSB, res.PSSCorrelation, res.SSSCorrelation)

		msg, ok, err := reasm.Add(res.Payload)
		if err != nil {
			log.Debug("payload is not a message frame", logging.Int("issb", res.ISSB), logging.Err(err))
			continue
		}
		if ok {
			fmt.Fprintf(stdout, "message: %s\n", msg)
		}
	}

	log.Info("detection finished", logging.Int("blocks", found), logging.Int("symbols", total))
	return nil
}

func runServe(ctx context.Context, args []string, stdout io.Writer) error {
	fs := newFlagSet("serve", stdout)
	var gf gridFlags
	gf.register(fs)
	addr := fs.String("addr", "", "listen address (overrides server.addr)")
	input := fs.StringP("input", "i", "", "grid file to replay (default: synthesize from config)")
	message := fs.StringP("message", "m", "", "message to frame into a synthesized grid")
	interval := fs.Duration("symbol-interval", time.Millisecond, "delay between replayed symbols")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *interval <= 0 {
		return fmt.Errorf("serve: symbol-interval must be positive")
	}

	cfg, err := gf.load(fs)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	log := logging.NewFromEnv(cfg.Log)

	var grid *ssb.Grid
	if *input != "" {
		grid, err = gridio.ReadFile(*input)
	} else {
		grid, err = buildGrid(cfg, *message, 1)
	}
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	metrics, err := acquisition.NewMetrics(reg)
	if err != nil {
		return err
	}
	rx, err := receiverFor(cfg, grid, log, metrics)
	if err != nil {
		return err
	}

	handlers := server.NewHandlers(cfg, log)
	srv := server.NewServer(cfg.Server.Addr, handlers, metrics.Handler(), log)

	symbols := make(chan []complex128)
	results := make(chan acquisition.CellSearchResult)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Start(ctx) })
	g.Go(func() error {
		defer close(symbols)
		src := ssb.NewGridSource(grid)
		ticker := time.NewTicker(*interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
			select {
			case symbols <- src.Next():
			case <-ctx.Done():
				return nil
			}
		}
	})
	g.Go(func() error {
		defer close(results)
		if err := rx.Run(ctx, symbols, results); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		reasm := protocol.NewReassembler()
		for res := range results {
			handlers.RecordDetection(res)
			if msg, ok, err := reasm.Add(res.Payload); err == nil && ok {
				handlers.RecordMessage(msg)
			}
		}
		return nil
	})

	fmt.Fprintf(stdout, "\n  nrsync receiver running at http://%s\n\n", cfg.Server.Addr)
	return g.Wait()
}

func runPlay(ctx context.Context, args []string, stdout io.Writer) error {
	fs := newFlagSet("play", stdout)
	var gf gridFlags
	gf.register(fs)
	input := fs.StringP("input", "i", "", "grid file to play (default: synthesize from config)")
	message := fs.StringP("message", "m", "", "message to frame into a synthesized grid")
	repeat := fs.Int("repeat", 1, "number of frames to play (0 = until interrupted)")
	listDevices := fs.Bool("list-devices", false, "list audio output devices and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := gf.load(fs)
	if err != nil {
		return err
	}
	log := logging.NewFromEnv(cfg.Log)

	if err := audio.Init(); err != nil {
		return fmt.Errorf("initialize PortAudio: %w", err)
	}
	defer audio.Terminate()

	if *listDevices {
		return audio.PrintDevices(stdout)
	}
	if !audio.HasOutputDevice() {
		return fmt.Errorf("no audio output device")
	}

	var grid *ssb.Grid
	if *input != "" {
		grid, err = gridio.ReadFile(*input)
	} else {
		grid, err = buildGrid(cfg, *message, 1)
	}
	if err != nil {
		return err
	}

	if err := cfg.ValidateAudio(grid.NSC); err != nil {
		return err
	}
	ac := cfg.Audio
	mod, err := modem.NewAudioModulator(grid.NSC, ac.StartBin, ac.FFTSize, ac.CPLen)
	if err != nil {
		return err
	}
	samples, gain, err := audio.RenderFrame(grid, mod, ac.Amplitude)
	if err != nil {
		return err
	}

	player, err := audio.OpenPlayer(float64(ac.SampleRate), mod.SymbolLen())
	if err != nil {
		return err
	}
	defer player.Close()

	frameDur := time.Duration(float64(len(samples)) / float64(ac.SampleRate) * float64(time.Second))
	log.Info("playing grid",
		logging.Int("symbols", grid.NSymb),
		logging.Float("gain", gain),
		logging.String("frame", frameDur.String()),
	)
	for n := 0; *repeat == 0 || n < *repeat; n++ {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if err := player.Write(samples); err != nil {
			return err
		}
	}
	return nil
}

func runCandidates(ctx context.Context, args []string, stdout io.Writer) error {
	fs := newFlagSet("candidates", stdout)
	var gf gridFlags
	gf.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := gf.load(fs)
	if err != nil {
		return err
	}
	gc := cfg.SSBGrid()

	all := ssb.CandidateIndices(gc.Mu, gc.Frequency, gc.SharedSpectrum, gc.PairedSpectrum)
	selected := gc.SSBIndices()
	fmt.Fprintf(stdout, "candidates (%d): %s\n", len(all), joinInts(all))
	fmt.Fprintf(stdout, "transmitted (L_max=%d):\n", len(selected))
	for _, c := range ssb.Candidates(selected, gc.KSSB) {
		fmt.Fprintf(stdout, "  i_ssb=%-3d l=%-5d k_ssb=%d\n", c.Index, c.TimeOffset, c.KSSB)
	}
	return nil
}

func joinInts(v []int) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = fmt.Sprint(x)
	}
	return strings.Join(parts, " ")
}
