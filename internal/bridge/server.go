package bridge

import (
	"context"
	"io"
	"sync"

	"github.com/pkg/errors"

	"github.com/shiwa/timecard-mini/tcxo-disc/internal/logger"
)

// RegisterBus — байтовый доступ к регистрам (internal/device.Device).
type RegisterBus interface {
	ReadReg(addr uint8) uint8
	WriteReg(addr, v uint8)
	IRQ() bool
}

// Server отвечает на кадры REG-* поверх RegisterBus.
type Server struct {
	bus RegisterBus
}

// NewServer создаёт сервер моста.
func NewServer(bus RegisterBus) *Server {
	return &Server{bus: bus}
}

// Serve обслуживает rw до EOF или отмены ctx. При отмене rw закрывается, если умеет.
// Кадры с неверной контрольной суммой пропускаются.
func (s *Server) Serve(ctx context.Context, rw io.ReadWriter) error {
	done := make(chan struct{})
	var wg sync.WaitGroup
	defer func() {
		close(done)
		wg.Wait()
	}()
	if c, ok := rw.(io.Closer); ok {
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case <-ctx.Done():
				c.Close()
			case <-done:
			}
		}()
	}

	logger.Info("bridge: session started")
	for {
		req, err := ReadFrame(rw)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				logger.Info("bridge: session closed")
				return nil
			}
			if errors.Is(err, ErrChecksum) || errors.Is(err, ErrTooLong) {
				logger.Error("bridge: drop frame: %v", err)
				continue
			}
			return errors.Wrap(err, "bridge serve")
		}
		if err := WriteFrame(rw, s.Handle(req)); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "bridge reply")
		}
	}
}

// Handle выполняет один запрос и возвращает ответный кадр.
func (s *Server) Handle(req Frame) Frame {
	if req.Class != ClassREG {
		return nak(req)
	}
	switch req.ID {
	case IDRead:
		if len(req.Payload) != 2 {
			return nak(req)
		}
		addr, n := req.Payload[0], int(req.Payload[1])
		out := make([]byte, 0, n+1)
		out = append(out, addr)
		for i := 0; i < n; i++ {
			out = append(out, s.bus.ReadReg(addr+uint8(i)))
		}
		logger.Debug("bridge: read %#02x x%d", addr, n)
		return Frame{Class: ClassREG, ID: IDRead, Payload: out}
	case IDWrite:
		if len(req.Payload) < 2 {
			return nak(req)
		}
		addr := req.Payload[0]
		for i, v := range req.Payload[1:] {
			s.bus.WriteReg(addr+uint8(i), v)
		}
		logger.Debug("bridge: write %#02x % x", addr, req.Payload[1:])
		return ack(req)
	case IDIRQ:
		var level byte
		if s.bus.IRQ() {
			level = 1
		}
		return Frame{Class: ClassREG, ID: IDIRQ, Payload: []byte{level}}
	default:
		return nak(req)
	}
}
