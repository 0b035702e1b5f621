package backtest

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Anamican/jbooktrader/pkg/contract"
	"github.com/Anamican/jbooktrader/pkg/dispatcher"
	"github.com/Anamican/jbooktrader/pkg/marketbook"
	"github.com/Anamican/jbooktrader/pkg/schedule"
	"github.com/Anamican/jbooktrader/pkg/strategy"
)

// scriptedStrategy sets a predetermined target on each decision callback.
type scriptedStrategy struct {
	*strategy.BaseStrategy
	targets []int
	calls   int
}

func (s *scriptedStrategy) OnBookChange() {
	if s.calls < len(s.targets) {
		s.SetPosition(s.targets[s.calls])
	}
	s.calls++
}

func newScripted(t *testing.T, start, end string, targets ...int) *scriptedStrategy {
	t.Helper()
	sched, err := schedule.New(start, end, "UTC")
	require.NoError(t, err)
	c := contract.Futures("ES", "GLOBEX", "202609")
	return &scriptedStrategy{
		BaseStrategy: strategy.NewBaseStrategy("Scripted", c, sched, 0.5),
		targets:      targets,
	}
}

func quietDispatcher() *dispatcher.Dispatcher {
	report := dispatcher.NewEventReportWithOutput(func(string, ...interface{}) {})
	return dispatcher.New(dispatcher.BackTest, report)
}

func snap(ts time.Time, mid float64) marketbook.MarketSnapshot {
	return marketbook.MarketSnapshot{
		Time: ts, Bid: mid - 0.25, Ask: mid + 0.25, BidSize: 5, AskSize: 5,
	}
}

func TestExecute_ReplayScenario(t *testing.T) {
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	snapshots := []marketbook.MarketSnapshot{
		snap(base, 100.0),
		snap(base.Add(time.Second), 101.0),
		snap(base.Add(2*time.Second), 102.0),
	}

	s := newScripted(t, "00:00:00", "23:59:59", 1, 1, -1)
	engine := NewEngine(NewSliceReader(snapshots), quietDispatcher())

	result, err := engine.Execute(s)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Snapshots)
	assert.Equal(t, base, result.Start)
	assert.Equal(t, base.Add(2*time.Second), result.End)

	// Buy 1 at snapshot 1, sell 2 at snapshot 3, forced flat at the end
	assert.Equal(t, 3, result.Trades)
	assert.Zero(t, s.Position().CurrentPosition())
	assert.False(t, s.IsActive())

	// Long 100.25 -> 101.75 realizes +1.50; short 101.75 covered at
	// 102.25 realizes -0.50
	assert.InDelta(t, 1.0, result.RealizedPnL, 1e-9)
	assert.InDelta(t, 0.5, result.MaxDrawdown, 1e-9)
}

func TestExecute_OutsideScheduleFlattens(t *testing.T) {
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	snapshots := []marketbook.MarketSnapshot{
		snap(base, 100.0),                // inside, goes long
		snap(base.Add(8*time.Hour), 105), // 18:00, outside
	}

	s := newScripted(t, "09:30:00", "16:00:00", 1, 1)
	engine := NewEngine(NewSliceReader(snapshots), quietDispatcher())

	result, err := engine.Execute(s)
	require.NoError(t, err)

	// The decision callback never ran outside the window
	assert.Equal(t, 1, s.calls)
	assert.Zero(t, s.Position().CurrentPosition())
	assert.Equal(t, 2, result.Trades) // entry plus the flatten
}

func TestExecute_SessionGuardAppliesInReplay(t *testing.T) {
	// Ten minutes before the close the decision still runs, but the
	// coordinator refuses to open a fresh position
	base := time.Date(2026, 3, 2, 15, 50, 0, 0, time.UTC)
	snapshots := []marketbook.MarketSnapshot{
		snap(base, 100.0),
		snap(base.Add(time.Second), 101.0),
	}

	s := newScripted(t, "09:30:00", "16:00:00", 1, 1)
	engine := NewEngine(NewSliceReader(snapshots), quietDispatcher())

	result, err := engine.Execute(s)
	require.NoError(t, err)

	assert.Equal(t, 2, s.calls)
	assert.Zero(t, result.Trades)
	assert.Zero(t, s.Position().CurrentPosition())
	assert.Zero(t, result.RealizedPnL)
}

func TestExecute_NearCloseStillFlattens(t *testing.T) {
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	snapshots := []marketbook.MarketSnapshot{
		// 10:00 entry, 15:55 exit
		snap(base, 100.0),
		snap(base.Add(5*time.Hour+55*time.Minute), 103.0),
	}

	// The entry is accepted mid-session; near the close only the exit is
	s := newScripted(t, "09:30:00", "16:00:00", 1, 0)
	engine := NewEngine(NewSliceReader(snapshots), quietDispatcher())

	result, err := engine.Execute(s)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Trades)
	assert.Zero(t, s.Position().CurrentPosition())
	// Long 100.25 sold at 102.75
	assert.InDelta(t, 2.5, result.RealizedPnL, 1e-9)
}

type failingReader struct{ after int }

func (r *failingReader) Next() (marketbook.MarketSnapshot, error) {
	if r.after <= 0 {
		return marketbook.MarketSnapshot{}, errors.New("corrupt record")
	}
	r.after--
	return snap(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), 100), nil
}

func (r *failingReader) Close() error { return nil }

func TestExecute_ReaderErrorIsFatal(t *testing.T) {
	s := newScripted(t, "00:00:00", "23:59:59")
	engine := NewEngine(&failingReader{after: 2}, quietDispatcher())

	_, err := engine.Execute(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupt record")
}

func TestExecute_ProgressReporting(t *testing.T) {
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	snapshots := make([]marketbook.MarketSnapshot, 25)
	for i := range snapshots {
		snapshots[i] = snap(base.Add(time.Duration(i)*time.Second), 100)
	}

	s := newScripted(t, "00:00:00", "23:59:59")
	engine := NewEngine(NewSliceReader(snapshots), quietDispatcher())
	engine.ProgressEvery = 10

	var reports []int
	engine.OnProgress = func(processed int) { reports = append(reports, processed) }

	_, err := engine.Execute(s)
	require.NoError(t, err)
	assert.Equal(t, []int{10, 20}, reports)
}

func TestCSVReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshots.csv")
	data := "time,bid,ask,bid_size,ask_size,last_price,volume,balance\n" +
		"# comment line\n" +
		"2026-03-02 10:00:00,99.75,100.25,5,7,100.0,12,33.5\n" +
		"2026-03-02 10:00:01,99.50,100.00,4,6,99.75,13,-10.0\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	reader, err := NewCSVReader(path, time.UTC)
	require.NoError(t, err)
	defer reader.Close()

	first, err := reader.Next()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), first.Time)
	assert.Equal(t, 99.75, first.Bid)
	assert.Equal(t, int64(7), first.AskSize)
	assert.Equal(t, 33.5, first.Balance)

	second, err := reader.Next()
	require.NoError(t, err)
	assert.Equal(t, -10.0, second.Balance)

	_, err = reader.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestCSVReader_BadRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	data := "2026-03-02 10:00:00,not-a-number,100.25,5,7,100.0,12,33.5\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	reader, err := NewCSVReader(path, time.UTC)
	require.NoError(t, err)
	defer reader.Close()

	_, err = reader.Next()
	assert.Error(t, err)
}
