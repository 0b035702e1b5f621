package backtest

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/Anamican/jbooktrader/pkg/dispatcher"
	"github.com/Anamican/jbooktrader/pkg/gateway"
	"github.com/Anamican/jbooktrader/pkg/stats"
	"github.com/Anamican/jbooktrader/pkg/strategy"
	"github.com/Anamican/jbooktrader/pkg/trader"
)

const defaultProgressEvery = 10000

// Result summarizes one replay run.
type Result struct {
	Snapshots   int
	Trades      int
	RealizedPnL float64
	MaxDrawdown float64
	Start       time.Time
	End         time.Time
	Elapsed     time.Duration
}

func (r Result) String() string {
	return fmt.Sprintf("%d snapshots (%s - %s), %d trades, realized P&L %.2f, max drawdown %.2f, replay took %s",
		r.Snapshots,
		r.Start.Format("2006-01-02 15:04:05"),
		r.End.Format("2006-01-02 15:04:05"),
		r.Trades,
		r.RealizedPnL,
		r.MaxDrawdown,
		r.Elapsed.Round(time.Millisecond))
}

// Engine replays a snapshot stream through one strategy. Replay is
// deterministic: fills are simulated instantly at the expected price and the
// position is forced flat after the last snapshot.
type Engine struct {
	reader     SnapshotReader
	dispatcher *dispatcher.Dispatcher

	// ProgressEvery is the snapshot interval between progress reports.
	// Zero means 10000.
	ProgressEvery int

	// OnProgress, when set, is called instead of the default log report.
	OnProgress func(processed int)
}

// NewEngine creates a replay engine over the reader.
func NewEngine(reader SnapshotReader, disp *dispatcher.Dispatcher) *Engine {
	return &Engine{
		reader:        reader,
		dispatcher:    disp,
		ProgressEvery: defaultProgressEvery,
	}
}

// Execute replays the full snapshot stream through the strategy. The
// strategy is registered with a replay coordinator whose gateway is never
// connected, so every reconciliation runs the full order path (single-flight
// gate, order ids, session guard, audit trail) and fills through the
// simulated routing. Per snapshot the engine advances the strategy clock,
// updates indicators, runs the decision callback inside the trading window
// (or flattens outside it) and reconciles the position. Reader errors abort
// the replay.
func (e *Engine) Execute(s strategy.Strategy) (*Result, error) {
	started := time.Now()
	report := e.dispatcher.EventReport()

	coordinator := trader.New(trader.Config{}, gateway.NewSimGateway(), e.dispatcher)
	coordinator.AddStrategy(s)
	book := s.MarketBook()

	progressEvery := e.ProgressEvery
	if progressEvery <= 0 {
		progressEvery = defaultProgressEvery
	}

	result := &Result{}
	equity := stats.NewTimeSeries("realized-pnl", 0)
	for {
		snapshot, err := e.reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("replay aborted after %d snapshots: %w", result.Snapshots, err)
		}

		if result.Snapshots == 0 {
			result.Start = snapshot.Time
		}
		result.End = snapshot.Time

		book.Add(snapshot)
		s.SetTime(snapshot.Time)
		inSchedule := s.TradingSchedule().Contains(snapshot.Time)
		s.SetActive(inSchedule)

		s.Indicators().UpdateAll(book)

		if inSchedule {
			if s.Indicators().HasValidIndicators() {
				s.OnBookChange()
			}
		} else {
			s.ClosePosition()
		}

		s.Position().Trade()
		equity.Append(s.Position().RealizedPnL(), snapshot.Time)

		result.Snapshots++
		if result.Snapshots%progressEvery == 0 {
			if e.OnProgress != nil {
				e.OnProgress(result.Snapshots)
			} else {
				report.Report("Backtest", fmt.Sprintf("Processed %d snapshots", result.Snapshots))
			}
		}
	}

	// Force flat at end of data
	s.ClosePosition()
	s.Position().Trade()
	s.SetActive(false)

	equity.Append(s.Position().RealizedPnL(), result.End)
	result.Trades = s.Position().Trades()
	result.RealizedPnL = s.Position().RealizedPnL()
	result.MaxDrawdown = equity.MaxDrawdown()
	result.Elapsed = time.Since(started)

	e.dispatcher.Fire(dispatcher.StrategyUpdate, s)
	report.Report("Backtest", result.String())
	return result, nil
}
