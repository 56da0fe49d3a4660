package acquisition

import (
	"context"
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/jeongseonghan/nr-sync/internal/logging"
	"github.com/jeongseonghan/nr-sync/internal/modem"
	"github.com/jeongseonghan/nr-sync/internal/nr"
	"github.com/jeongseonghan/nr-sync/internal/sequence"
	"github.com/jeongseonghan/nr-sync/internal/ssb"
)

// ErrDecode marks a detected block that could not be decoded. The
// receiver stays usable after it.
var ErrDecode = errors.New("block decode failed")

// CellSearchResult is a decoded SS/PBCH block.
type CellSearchResult struct {
	Cell           nr.CellIdentity
	ISSB           int
	KSSB           int
	PSSCorrelation float64
	SSSCorrelation float64
	Payload        []byte // 864 descrambled PBCH bits
	Block          *ssb.Grid
}

// ReceiverConfig configures a Receiver.
type ReceiverConfig struct {
	NSC       int
	LMax      int
	Threshold float64
	Equalize  bool // zero-force PBCH against the DM-RS channel estimate
}

// Receiver chains the streaming detector with SSS and PBCH decoding.
// It is not safe for concurrent use.
type Receiver struct {
	stream   *Stream
	lMax     int
	equalize bool
	log      logging.Logger
	metrics  *Metrics
}

// NewReceiver creates a receiver. log and metrics may be nil.
func NewReceiver(cfg ReceiverConfig, log logging.Logger, metrics *Metrics) (*Receiver, error) {
	det, err := NewDetector(cfg.NSC, cfg.LMax, cfg.Threshold)
	if err != nil {
		return nil, fmt.Errorf("create detector: %w", err)
	}
	if log == nil {
		log = logging.Noop()
	}
	return &Receiver{
		stream:   NewStream(det),
		lMax:     cfg.LMax,
		equalize: cfg.Equalize,
		log:      log,
		metrics:  metrics,
	}, nil
}

// Process consumes one OFDM symbol. The result is non-nil when the symbol
// completes a block that decodes.
func (r *Receiver) Process(symbol []complex128) (*CellSearchResult, error) {
	det, err := r.stream.Process(symbol)
	if err != nil {
		return nil, err
	}

	st := r.stream.State()
	r.metrics.observeStep(st)
	if st.Restarted {
		r.log.Debug("collection restarted",
			logging.Int("issb", st.ISSB),
			logging.Float("correlation", st.Peak.Correlation))
	}
	if det == nil {
		return nil, nil
	}
	r.metrics.observeDetection(det)

	res, err := r.Decode(det)
	r.metrics.observeDecode(err)
	if err != nil {
		return nil, fmt.Errorf("%w: block %d: %w", ErrDecode, det.ISSB, err)
	}

	r.log.Info("cell detected",
		logging.String("cell", res.Cell.String()),
		logging.Int("issb", res.ISSB),
		logging.Int("k_ssb", res.KSSB),
		logging.Float("pss_corr", res.PSSCorrelation),
		logging.Float("sss_corr", res.SSSCorrelation))
	return res, nil
}

// Decode resolves N_ID1 from the SSS and descrambles the PBCH of a
// detected block.
func (r *Receiver) Decode(det *Detection) (*CellSearchResult, error) {
	sss, err := ssb.UnmapSSS(det.Block)
	if err != nil {
		return nil, err
	}
	corr, err := CorrelateSSS(sss, det.NID2)
	if err != nil {
		return nil, err
	}
	nid1 := floats.MaxIdx(corr)

	cell := nr.CellIdentity{NID1: nid1, NID2: det.NID2}
	dims := ssb.DimensionsFor(cell)

	data, dmrs, err := ssb.UnmapPBCH(det.Block, dims)
	if err != nil {
		return nil, err
	}
	if r.equalize {
		known := sequence.DMRS(det.ISSB, cell.CellID(), r.lMax, 0)
		if data, err = equalizePBCH(dims.Nu, data, dmrs, known); err != nil {
			return nil, fmt.Errorf("equalize: %w", err)
		}
	}

	payload, err := DecodePBCH(data, r.lMax, cell.CellID(), det.ISSB)
	if err != nil {
		return nil, err
	}

	return &CellSearchResult{
		Cell:           cell,
		ISSB:           det.ISSB,
		KSSB:           det.KSSB,
		PSSCorrelation: det.Correlation,
		SSSCorrelation: corr[nid1],
		Payload:        payload,
		Block:          det.Block,
	}, nil
}

// equalizePBCH estimates the channel of each PBCH symbol from its DM-RS
// and zero-forces the PBCH resource elements of that symbol.
func equalizePBCH(nu int, data, dmrs, known []complex128) ([]complex128, error) {
	out := make([]complex128, len(data))
	copy(out, data)

	for l := 1; l < nr.SSBSymbols; l++ {
		pilots, pf := ssb.DMRSSubcarriers(nu, l)
		carriers, df := ssb.PBCHSubcarriers(nu, l)

		eq := modem.NewEqualizer(nr.SSBSubcarriers)
		if err := eq.EstimateChannel(pilots, dmrs[pf:pf+len(pilots)], known[pf:pf+len(pilots)]); err != nil {
			return nil, err
		}
		copy(out[df:], eq.Equalize(carriers, data[df:df+len(carriers)]))
	}
	return out, nil
}

// Run feeds symbols to the receiver until the channel closes or ctx is
// done, sending every decoded block to results. Blocks that fail to
// decode are logged and skipped.
func (r *Receiver) Run(ctx context.Context, symbols <-chan []complex128, results chan<- CellSearchResult) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sym, ok := <-symbols:
			if !ok {
				return nil
			}
			res, err := r.Process(sym)
			if err != nil {
				if !errors.Is(err, ErrDecode) {
					return err
				}
				r.log.Warn("dropping block", logging.Err(err))
				continue
			}
			if res == nil {
				continue
			}
			select {
			case results <- *res:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// Reset discards any partially collected block and restarts the block
// counter.
func (r *Receiver) Reset() { r.stream.Reset() }
