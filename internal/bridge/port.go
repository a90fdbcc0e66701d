package bridge

import (
	"time"

	"github.com/pkg/errors"
	"github.com/tarm/serial"
)

// Port — последовательный порт моста
type Port struct {
	port *serial.Port
	name string
}

// OpenPort открывает последовательный порт. readTimeout 0 — блокирующее чтение (сторона сервера).
func OpenPort(device string, baud int, readTimeout time.Duration) (*Port, error) {
	c := &serial.Config{
		Name:        device,
		Baud:        baud,
		ReadTimeout: readTimeout,
	}
	p, err := serial.OpenPort(c)
	if err != nil {
		return nil, errors.Wrapf(err, "serial open %s", device)
	}
	return &Port{port: p, name: device}, nil
}

func (p *Port) Read(b []byte) (int, error) {
	return p.port.Read(b)
}

func (p *Port) Write(b []byte) (int, error) {
	return p.port.Write(b)
}

func (p *Port) String() string {
	return p.name
}

// Close закрывает порт
func (p *Port) Close() error {
	if p.port == nil {
		return nil
	}
	return p.port.Close()
}
