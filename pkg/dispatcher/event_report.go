package dispatcher

import "log"

// EventReport is the operator-facing event sink. Reporting is fire-and-forget
// and never fails: code running on gateway callback goroutines relies on that.
type EventReport struct {
	out func(format string, v ...interface{})
}

// NewEventReport creates a sink writing to the standard logger.
func NewEventReport() *EventReport {
	return &EventReport{out: log.Printf}
}

// NewEventReportWithOutput creates a sink with a custom output, used in tests.
func NewEventReportWithOutput(out func(format string, v ...interface{})) *EventReport {
	return &EventReport{out: out}
}

// Report records a message from a named source.
func (r *EventReport) Report(source, message string) {
	defer func() { _ = recover() }()
	r.out("[%s] %s", source, message)
}

// ReportError records an error.
func (r *EventReport) ReportError(err error) {
	if err == nil {
		return
	}
	defer func() { _ = recover() }()
	r.out("[Error] %v", err)
}
