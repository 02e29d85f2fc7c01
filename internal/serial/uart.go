package serial

import (
	"fmt"

	bugst "go.bug.st/serial"
)

// UART writes diagnostics to a host serial port, 8N1. Each call drains the
// port before returning, so it blocks like the bit-banged transmitter.
type UART struct {
	port bugst.Port
}

// OpenUART opens the named port at the given baud rate.
func OpenUART(name string, baud int) (*UART, error) {
	mode := &bugst.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   bugst.NoParity,
		StopBits: bugst.OneStopBit,
	}
	port, err := bugst.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("open uart %s: %w", name, err)
	}
	return &UART{port: port}, nil
}

// Transmit sends one byte.
func (u *UART) Transmit(b byte) error {
	return u.write([]byte{b})
}

// Print sends s.
func (u *UART) Print(s string) error {
	return u.write([]byte(s))
}

func (u *UART) write(p []byte) error {
	if _, err := u.port.Write(p); err != nil {
		return fmt.Errorf("uart write: %w", err)
	}
	if err := u.port.Drain(); err != nil {
		return fmt.Errorf("uart drain: %w", err)
	}
	return nil
}

// Close releases the port.
func (u *UART) Close() error {
	return u.port.Close()
}
