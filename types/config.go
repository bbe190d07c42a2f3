package types

// Minimal JSON config structures for the status service.

// MonitorConfig carries every tunable of one signal monitor. Zero values are
// filled in by Normalize so an empty config is a working slow-domain monitor.
type MonitorConfig struct {
	DebounceMs    uint32 `json:"debounce_ms,omitempty"`
	MinStableMs   uint32 `json:"min_stable_ms,omitempty"`
	SettleReads   int    `json:"settle_reads,omitempty"`
	SettleDelayMs uint32 `json:"settle_delay_ms,omitempty"`

	PollBusyMs     uint32 `json:"poll_busy_ms,omitempty"`
	PollIdleMs     uint32 `json:"poll_idle_ms,omitempty"`
	PollErrorMs    uint32 `json:"poll_error_ms,omitempty"`
	PollBackstopMs uint32 `json:"poll_backstop_ms,omitempty"`

	IdleTimeoutMs  uint32 `json:"idle_timeout_ms,omitempty"`
	IdleMultiplier uint32 `json:"idle_multiplier,omitempty"`
	ErrorCapMs     uint32 `json:"error_cap_ms,omitempty"`
	MaxErrors      uint32 `json:"max_errors,omitempty"`

	FaultWindowMs  uint32 `json:"fault_window_ms,omitempty"`
	FaultThreshold int    `json:"fault_threshold,omitempty"`
}

// Normalize fills defaults in place and returns the config for chaining.
func (c *MonitorConfig) Normalize() *MonitorConfig {
	if c.DebounceMs == 0 {
		c.DebounceMs = 1000
	}
	if c.MinStableMs == 0 {
		c.MinStableMs = 500
	}
	if c.SettleReads <= 0 {
		c.SettleReads = 3
	}
	// SettleDelayMs 0 is valid: back-to-back reads.
	if c.PollBusyMs == 0 {
		c.PollBusyMs = 2000
	}
	if c.PollIdleMs == 0 {
		c.PollIdleMs = 10000
	}
	if c.PollErrorMs == 0 {
		c.PollErrorMs = 30000
	}
	if c.PollBackstopMs == 0 {
		c.PollBackstopMs = 30000
	}
	if c.IdleTimeoutMs == 0 {
		c.IdleTimeoutMs = 30000
	}
	if c.IdleMultiplier == 0 {
		c.IdleMultiplier = 2
	}
	if c.ErrorCapMs == 0 {
		c.ErrorCapMs = 120000
	}
	if c.MaxErrors == 0 {
		c.MaxErrors = 5
	}
	if c.FaultWindowMs == 0 {
		c.FaultWindowMs = 60000
	}
	if c.FaultThreshold <= 0 {
		c.FaultThreshold = 10
	}
	return c
}

// ChargeCfg wires the charge-domain monitor to its input.
type ChargeCfg struct {
	Pin       int           `json:"pin"`
	ActiveLow bool          `json:"active_low,omitempty"` // TP4056 CHRG is active low
	Pull      string        `json:"pull,omitempty"`       // "up" | "down" | "none"
	I2CBus    string        `json:"i2c_bus,omitempty"`    // use charger status register instead of a pin
	I2CAddr   uint16        `json:"i2c_addr,omitempty"`
	I2CReg    byte          `json:"i2c_reg,omitempty"`
	I2CBit    uint8         `json:"i2c_bit,omitempty"`
	Monitor   MonitorConfig `json:"monitor,omitempty"`
}

// LinkCfg wires the link-domain monitor. The probe itself is injected by the
// platform; the config only carries monitor tunables.
type LinkCfg struct {
	Monitor MonitorConfig `json:"monitor,omitempty"`
}

// LEDCfg wires the indicator output.
type LEDCfg struct {
	Pin       int    `json:"pin"`
	ActiveLow bool   `json:"active_low,omitempty"`
	Pulse     string `json:"pulse,omitempty"` // "blink" (default) | "ramp"
}

// StatusConfig is the whole pipeline's config document.
type StatusConfig struct {
	Version        int        `json:"version"`
	BootDelayMs    uint32     `json:"boot_delay_ms,omitempty"`
	ChargePriority *bool      `json:"charge_priority,omitempty"` // nil => true
	SlowBlinkMs    uint32     `json:"slow_blink_ms,omitempty"`   // default 2000
	Charge         *ChargeCfg `json:"charge,omitempty"`
	Link           *LinkCfg   `json:"link,omitempty"`
	LED            *LEDCfg    `json:"led,omitempty"`
}
