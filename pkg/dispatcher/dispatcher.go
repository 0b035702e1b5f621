// Package dispatcher owns the process-wide operating mode and fans model
// events out to registered listeners.
package dispatcher

import (
	"fmt"
	"sync"
)

// Event identifies a model change delivered to listeners.
type Event int

const (
	StrategyUpdate Event = iota
	ModeChanged
	TimeUpdate
	Error
)

func (e Event) String() string {
	switch e {
	case StrategyUpdate:
		return "StrategyUpdate"
	case ModeChanged:
		return "ModeChanged"
	case TimeUpdate:
		return "TimeUpdate"
	case Error:
		return "Error"
	default:
		return "Unknown"
	}
}

// ModelListener receives model change notifications. Listeners must not
// block; they are invoked synchronously on the calling goroutine.
type ModelListener interface {
	ModelChanged(event Event, value interface{})
}

// Dispatcher holds the operating mode and the listener set. Once ForceClose
// is entered through the safety path, transitions to any other mode are
// refused until Restart is called explicitly.
type Dispatcher struct {
	mu          sync.RWMutex
	mode        Mode
	forceClosed bool // safety latch
	listeners   []ModelListener
	eventReport *EventReport
}

// New creates a dispatcher starting in the given mode.
func New(mode Mode, eventReport *EventReport) *Dispatcher {
	if eventReport == nil {
		eventReport = NewEventReport()
	}
	return &Dispatcher{
		mode:        mode,
		eventReport: eventReport,
	}
}

// Mode returns the current operating mode.
func (d *Dispatcher) Mode() Mode {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.mode
}

// EventReport returns the shared operator event sink.
func (d *Dispatcher) EventReport() *EventReport {
	return d.eventReport
}

// SetMode transitions to a new mode. After the safety latch is set by
// ForceCloseMode, only ForceClose itself is accepted; use Restart to leave.
func (d *Dispatcher) SetMode(mode Mode) error {
	d.mu.Lock()
	if d.forceClosed && mode != ForceClose {
		current := d.mode
		d.mu.Unlock()
		return fmt.Errorf("mode is latched at %s, cannot transition to %s without restart", current, mode)
	}
	changed := d.mode != mode
	d.mode = mode
	d.mu.Unlock()

	if changed {
		d.eventReport.Report("Dispatcher", "Mode changed to "+mode.String())
		d.Fire(ModeChanged, mode)
	}
	return nil
}

// ForceCloseMode enters ForceClose and sets the safety latch: no later
// SetMode call can move to a less safe mode.
func (d *Dispatcher) ForceCloseMode() {
	d.mu.Lock()
	changed := d.mode != ForceClose
	d.mode = ForceClose
	d.forceClosed = true
	d.mu.Unlock()

	if changed {
		d.eventReport.Report("Dispatcher", "Mode changed to ForceClose (safety latch set)")
		d.Fire(ModeChanged, ForceClose)
	}
}

// Restart clears the safety latch and sets the mode. This is the only path
// out of a latched ForceClose.
func (d *Dispatcher) Restart(mode Mode) {
	d.mu.Lock()
	d.forceClosed = false
	d.mode = mode
	d.mu.Unlock()

	d.eventReport.Report("Dispatcher", "Restarted in mode "+mode.String())
	d.Fire(ModeChanged, mode)
}

// AddListener registers a model listener.
func (d *Dispatcher) AddListener(listener ModelListener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, listener)
}

// Fire delivers an event to all listeners. A panicking listener is reported
// and does not affect the others.
func (d *Dispatcher) Fire(event Event, value interface{}) {
	d.mu.RLock()
	listeners := make([]ModelListener, len(d.listeners))
	copy(listeners, d.listeners)
	d.mu.RUnlock()

	for _, listener := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					d.eventReport.Report("Dispatcher", fmt.Sprintf("Panic in listener for %s: %v", event, r))
				}
			}()
			listener.ModelChanged(event, value)
		}()
	}
}
