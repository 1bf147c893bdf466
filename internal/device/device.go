package device

import (
	"errors"
	"io"
	"time"

	"go.bug.st/serial"
)

// Furnace is the capability surface of the calibration furnace: a Modbus RTU
// slave exposing process value and setpoint registers. Implemented by the
// real client and by the simulator; callers never inspect which.
type Furnace interface {
	Connect(port string) error
	Disconnect()
	Connected() bool
	ReadTemperature() (float64, error)
	ReadSetpoint() (float64, error)
	SetSetpoint(value float64) error
}

// Multimeter is the capability surface of the scanning multimeter: a text
// command/response instrument with a channel scanner in front of it.
type Multimeter interface {
	Connect(port string) error
	Disconnect()
	Connected() bool
	Identification() string
	ConfigureChannel(channel, sensorType string) error
	ReadTemperature() (float64, error)
	RawValue() (float64, error)
}

// Sentinel conditions. ErrOverflow is not a protocol failure: it means the
// sensor reads open/over-range right now and the channel is unusable this
// cycle. Callers skip the sample without raising an error event.
var (
	ErrNotConnected = errors.New("device: not connected")
	ErrOverflow     = errors.New("device: sensor overflow")
	ErrBadResponse  = errors.New("device: malformed response")
	ErrReadTimeout  = errors.New("device: read timeout")
)

// transport is the byte pipe beneath a protocol client. go.bug.st/serial
// ports satisfy it; tests substitute scripted implementations.
type transport interface {
	io.ReadWriter
	Close() error
	ResetInputBuffer() error
}

// portOpener dials a named serial port. Swapped out in tests.
type portOpener func(name string) (transport, error)

// Both instruments speak 9600 8N1.
const serialBaudRate = 9600

func openSerialPort(name string, readTimeout time.Duration) (transport, error) {
	mode := &serial.Mode{
		BaudRate: serialBaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, err
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		_ = port.Close()
		return nil, err
	}
	return port, nil
}
