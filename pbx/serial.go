package pbx

import (
	"errors"

	"go.bug.st/serial"
)

var ErrNoSerialPortFound = errors.New("pbx: didn't find any available serial port")

// DefaultSerialConfig is 8N1 at BaudRate.
var DefaultSerialConfig = &serial.Mode{
	BaudRate: BaudRate,
	Parity:   serial.NoParity,
	DataBits: 8,
	StopBits: serial.OneStopBit,
}

// SerialConnection is the transport of a Driver opened on a serial device.
type SerialConnection struct {
	serial.Port
	path   string
	config *serial.Mode

	// Drain makes Write wait until the bytes have left the output buffer.
	Drain bool
}

func NewSerial(port serial.Port, config *serial.Mode, name string) *SerialConnection {
	return &SerialConnection{
		Port:   port,
		path:   name,
		config: config,
	}
}

// Write sends b in a single call to the port.
func (sc *SerialConnection) Write(b []byte) (int, error) {
	n, err := sc.Port.Write(b)
	if err == nil && sc.Drain {
		err = sc.Port.Drain()
	}
	return n, err
}

// Path returns device name / path of serial port.
func (sc *SerialConnection) Path() string {
	return sc.path
}

// Mode returns the line settings the port was opened with.
func (sc *SerialConnection) Mode() serial.Mode {
	return *sc.config
}

// OpenPortName opens name with mode, DefaultSerialConfig when mode is nil.
func OpenPortName(name string, mode *serial.Mode) (port serial.Port, config *serial.Mode, err error) {
	if mode == nil {
		mode = DefaultSerialConfig
	}
	config = new(serial.Mode)
	*config = *mode
	port, err = serial.Open(name, config)
	return port, config, err
}

// FindPorts lists the serial ports present on the host.
func FindPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, err
	}
	if len(ports) == 0 {
		return nil, ErrNoSerialPortFound
	}
	return ports, nil
}
