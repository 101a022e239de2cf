package transport

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"sync"

	"go.bug.st/serial"
)

// DefaultBaudRate is used when no baud rate is configured.
const DefaultBaudRate = 115200

// SerialLink talks to a hub dongle over a serial port, one frame per
// CR/LF-terminated line.
type SerialLink struct {
	port   serial.Port
	reader *bufio.Reader

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// OpenSerial opens portName at baudRate, 8N1.
func OpenSerial(portName string, baudRate int) (*SerialLink, error) {
	if baudRate <= 0 {
		baudRate = DefaultBaudRate
	}
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("serial link: open %s: %w", portName, err)
	}

	// USB CDC ACM dongles expect DTR/RTS asserted.
	_ = port.SetDTR(true)
	_ = port.SetRTS(true)

	return &SerialLink{
		port:   port,
		reader: bufio.NewReader(port),
	}, nil
}

// ReadLine returns the next non-empty line without its terminator. The
// serial read cannot be interrupted by ctx; Close unblocks it.
func (l *SerialLink) ReadLine(ctx context.Context) ([]byte, error) {
	for {
		line, err := l.reader.ReadBytes('\n')
		if err != nil {
			return nil, err
		}
		line = bytes.TrimSpace(line)
		if len(line) > 0 {
			return line, nil
		}
	}
}

func (l *SerialLink) WriteLine(ctx context.Context, line []byte) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	buf := make([]byte, 0, len(line)+2)
	buf = append(buf, line...)
	buf = append(buf, '\r', '\n')
	_, err := l.port.Write(buf)
	return err
}

func (l *SerialLink) Close() error {
	var err error
	l.closeOnce.Do(func() { err = l.port.Close() })
	return err
}
