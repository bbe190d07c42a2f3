//go:build rp2040 || rp2350

package platform

import (
	"context"
	"strings"
	"sync"

	"machine"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"

	"statusmon-go/errcode"
)

// UARTLink talks to a radio modem over UART and tracks whether its link is
// up. The modem reports state as "+CONN:<0|1>" lines, both in answer to the
// query and unsolicited on changes; a single reader goroutine owns the
// receive side and parses either kind.
type UARTLink struct {
	mu     sync.Mutex
	port   *uartx.UART
	up     bool
	events chan struct{}
}

const linkQuery = "AT+CONN?\r\n"

// NewUARTLink configures uart0/uart1 with the given pins. Call Start before
// using the probe.
func NewUARTLink(id string, baud uint32, tx, rx int) (*UARTLink, error) {
	var hw *uartx.UART
	switch id {
	case "uart0":
		hw = uartx.UART0
	case "uart1":
		hw = uartx.UART1
	default:
		return nil, errcode.InvalidParams
	}
	if err := hw.Configure(uartx.UARTConfig{
		BaudRate: baud,
		TX:       machine.Pin(tx),
		RX:       machine.Pin(rx),
	}); err != nil {
		return nil, &errcode.E{C: errcode.InitFailed, Op: "uart_configure", Err: err}
	}
	return &UARTLink{port: hw, events: make(chan struct{}, 1)}, nil
}

// Start launches the reader and asks for an initial report.
func (l *UARTLink) Start(ctx context.Context) {
	go l.reader(ctx)
	_, _ = l.port.Write([]byte(linkQuery))
}

// Connected is the link monitor's probe. It nudges the modem for a fresh
// report and returns the last parsed state; the answer lands before the next
// poll rather than blocking this one.
func (l *UARTLink) Connected() bool {
	_, _ = l.port.Write([]byte(linkQuery))
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.up
}

// Events signals unsolicited link changes; wire it to Deps.LinkEvents so a
// change forces a check instead of waiting out the poll interval.
func (l *UARTLink) Events() <-chan struct{} { return l.events }

func (l *UARTLink) reader(ctx context.Context) {
	buf := make([]byte, 64)
	line := make([]byte, 0, 64)
	for {
		n, err := l.port.RecvSomeContext(ctx, buf)
		if err != nil {
			return
		}
		for _, b := range buf[:n] {
			if b == '\r' || b == '\n' {
				if len(line) > 0 {
					l.handleLine(string(line))
					line = line[:0]
				}
				continue
			}
			if len(line) < cap(line) {
				line = append(line, b)
			}
		}
	}
}

func (l *UARTLink) handleLine(s string) {
	var up bool
	switch {
	case strings.HasPrefix(s, "+CONN:1"):
		up = true
	case strings.HasPrefix(s, "+CONN:0"):
		up = false
	default:
		return
	}

	l.mu.Lock()
	changed := up != l.up
	l.up = up
	l.mu.Unlock()

	if changed {
		select {
		case l.events <- struct{}{}:
		default:
		}
	}
}
