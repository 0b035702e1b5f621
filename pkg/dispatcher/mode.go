package dispatcher

// Mode is the process-wide operating context. It governs order routing and
// risk posture: BackTest and Optimization never route live orders, ForceClose
// routes only to flatten positions.
type Mode int

const (
	BackTest Mode = iota
	ForwardTest
	Optimization
	Trade
	ForceClose
)

func (m Mode) String() string {
	switch m {
	case BackTest:
		return "BackTest"
	case ForwardTest:
		return "ForwardTest"
	case Optimization:
		return "Optimization"
	case Trade:
		return "Trade"
	case ForceClose:
		return "ForceClose"
	default:
		return "Unknown"
	}
}

// IsLive reports whether orders in this mode are forwarded to the exchange
// gateway rather than simulated.
func (m Mode) IsLive() bool {
	return m == Trade || m == ForceClose
}
