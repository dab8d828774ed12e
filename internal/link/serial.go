package link

import (
	"context"
	"io"

	"go.bug.st/serial"
)

// DefaultBaudRate matches the sniffer firmware's console speed.
const DefaultBaudRate = 115200

// SerialDialer returns a Dialer that opens a serial-attached sniffer unit.
// A baud of zero uses the default.
func SerialDialer(path string, baud int) Dialer {
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	return func(ctx context.Context) (io.ReadCloser, error) {
		port, err := serial.Open(path, mode)
		if err != nil {
			return nil, err
		}
		return port, nil
	}
}

// SerialRemediation is the guidance surfaced when a serial unit cannot be
// opened.
func SerialRemediation(path string) []string {
	return []string{
		"Check that the sniffer unit is plugged in",
		"Verify the configured serial port: " + path,
		"Confirm the current user can open serial devices (dialout group)",
	}
}
