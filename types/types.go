package types

// Shared types for the status-monitoring pipeline. Monitors publish
// LogicalState values; the coordinator reduces them to an Indication; the
// indicator renders the Indication on the physical output.

// -----------------------------------------------------------------------------
// Monitor side
// -----------------------------------------------------------------------------

// Domain names used throughout the pipeline and on the bus.
const (
	DomainCharge = "charge"
	DomainLink   = "link"
)

// LogicalState is the debounced classification of one binary input.
// Unknown doubles as the error/fault state and always bypasses debounce.
type LogicalState uint8

const (
	StateUnknown LogicalState = iota
	StateAsserted
	StateDeasserted
)

func (s LogicalState) String() string {
	switch s {
	case StateAsserted:
		return "asserted"
	case StateDeasserted:
		return "deasserted"
	default:
		return "unknown"
	}
}

// ChargeLabel renders a charge-domain state the way the log lines spell it.
// Asserted means the charger's status pin is active (charging).
func ChargeLabel(s LogicalState) string {
	switch s {
	case StateAsserted:
		return "CHARGING"
	case StateDeasserted:
		return "FULL"
	default:
		return "ERROR"
	}
}

// LinkLabel renders a link-domain state. Asserted means connected.
func LinkLabel(s LogicalState) string {
	switch s {
	case StateAsserted:
		return "CONNECTED"
	case StateDeasserted:
		return "DISCONNECTED"
	default:
		return "ERROR"
	}
}

// AcquisitionMode reports how a monitor is currently sampling.
type AcquisitionMode uint8

const (
	ModePolling AcquisitionMode = iota
	ModeInterrupt
)

func (m AcquisitionMode) String() string {
	if m == ModeInterrupt {
		return "interrupt"
	}
	return "polling"
}

// MonitorStats is the diagnostics snapshot exposed per domain.
type MonitorStats struct {
	Domain            string          `json:"domain"`
	State             LogicalState    `json:"state"`
	Mode              AcquisitionMode `json:"mode"`
	LastChangeMs      int64           `json:"last_change_ms"`
	ChangeCount       uint32          `json:"change_count"`
	InterruptCount    uint32          `json:"interrupt_count"`
	IRQDrops          uint32          `json:"irq_drops"`
	ConsecutiveErrors uint32          `json:"consecutive_errors"`
	HardwareFault     bool            `json:"hardware_fault"`
}

// -----------------------------------------------------------------------------
// Indication side
// -----------------------------------------------------------------------------

// Target names the condition the indicator is showing.
type Target uint8

const (
	TargetOff Target = iota
	TargetCharging
	TargetFullCharge
	TargetLinkConnected
	TargetLinkDisconnected
	TargetError
)

func (t Target) String() string {
	switch t {
	case TargetCharging:
		return "charging"
	case TargetFullCharge:
		return "full_charge"
	case TargetLinkConnected:
		return "link_connected"
	case TargetLinkDisconnected:
		return "link_disconnected"
	case TargetError:
		return "error"
	default:
		return "off"
	}
}

// LEDMode selects the output pattern.
type LEDMode uint8

const (
	LEDOff LEDMode = iota
	LEDOn
	LEDBlinkSlow
	LEDBlinkFast
	LEDPulse
)

func (m LEDMode) String() string {
	switch m {
	case LEDOn:
		return "on"
	case LEDBlinkSlow:
		return "blink_slow"
	case LEDBlinkFast:
		return "blink_fast"
	case LEDPulse:
		return "pulse"
	default:
		return "off"
	}
}

// Periodic reports whether the mode needs a running cycle.
func (m LEDMode) Periodic() bool {
	switch m {
	case LEDBlinkSlow, LEDBlinkFast, LEDPulse:
		return true
	default:
		return false
	}
}

// Indication is the coordinator's full output, recomputed from scratch on
// every input change.
type Indication struct {
	Target     Target  `json:"target"`
	Mode       LEDMode `json:"mode"`
	IntervalMs uint32  `json:"interval_ms"`
}

// Valid checks the mode/interval invariant: static modes carry no interval,
// periodic modes always carry one.
func (i Indication) Valid() bool {
	if i.Mode.Periodic() {
		return i.IntervalMs > 0
	}
	return i.IntervalMs == 0
}

// Same reports whether o would be a no-op for the pattern driver.
func (i Indication) Same(o Indication) bool {
	return i.Target == o.Target && i.Mode == o.Mode
}
