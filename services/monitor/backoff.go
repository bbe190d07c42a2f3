// services/monitor/backoff.go
package monitor

import (
	"time"

	"statusmon-go/types"
	"statusmon-go/x/mathx"
)

// backoffPolicy computes the next poll delay from the monitor's situation.
// One policy serves every monitor; the per-variant interval arithmetic that
// used to be scattered across sampler implementations lives only here.
type backoffPolicy struct {
	cfg types.MonitorConfig
}

// next returns the delay before the next scheduled check.
//
// Rules, in order:
//   - consecutive errors dominate: error base grows by half the error count
//     and is capped at ErrorCapMs, regardless of acquisition mode;
//   - interrupt mode polls only as a slow backstop;
//   - otherwise the published state picks the base (busy domains poll fast,
//     settled domains poll slow, unknown uses the error base);
//   - an idle system stretches the interval unless the domain is busy.
func (p backoffPolicy) next(mode types.AcquisitionMode, state types.LogicalState, consecErrors uint32, idle bool) time.Duration {
	var base uint32
	switch {
	case consecErrors > 0:
		errs := mathx.Min(consecErrors, p.cfg.MaxErrors)
		base = p.cfg.PollErrorMs * (1 + errs/2)
		base = mathx.Min(base, p.cfg.ErrorCapMs)
	case mode == types.ModeInterrupt:
		base = p.cfg.PollBackstopMs
	default:
		switch state {
		case types.StateAsserted:
			base = p.cfg.PollBusyMs
		case types.StateDeasserted:
			base = p.cfg.PollIdleMs
		default:
			base = mathx.Min(p.cfg.PollErrorMs, p.cfg.ErrorCapMs)
		}
	}

	if idle && state != types.StateAsserted {
		base = mathx.Min(base*p.cfg.IdleMultiplier, p.cfg.ErrorCapMs)
	}
	return time.Duration(base) * time.Millisecond
}
