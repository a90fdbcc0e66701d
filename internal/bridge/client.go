package bridge

import (
	"io"
	"sync"

	"github.com/pkg/errors"
)

// Client — сторона хоста: запросы REG-* по последовательному порту.
// Реализует drivers.I2C, так что pkg/hostdrv работает через мост без изменений.
type Client struct {
	mu sync.Mutex
	rw io.ReadWriter
}

// NewClient создаёт клиента поверх rw.
func NewClient(rw io.ReadWriter) *Client {
	return &Client{rw: rw}
}

func (c *Client) roundTrip(req Frame) (Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := WriteFrame(c.rw, req); err != nil {
		return Frame{}, err
	}
	resp, err := ReadFrame(c.rw)
	if err != nil {
		return Frame{}, errors.Wrap(err, "read reply")
	}
	if resp.Class == ClassACK && resp.ID == IDNAK {
		return resp, errors.Wrapf(ErrNAK, "class %#02x id %#02x", req.Class, req.ID)
	}
	return resp, nil
}

// Read читает n байт начиная с addr.
func (c *Client) Read(addr uint8, n int) ([]byte, error) {
	if n <= 0 || n > 255 {
		return nil, errors.Errorf("bridge: bad read length %d", n)
	}
	resp, err := c.roundTrip(Frame{Class: ClassREG, ID: IDRead, Payload: []byte{addr, uint8(n)}})
	if err != nil {
		return nil, err
	}
	if resp.Class != ClassREG || resp.ID != IDRead || len(resp.Payload) != n+1 || resp.Payload[0] != addr {
		return nil, errors.Errorf("bridge: unexpected reply %#02x/%#02x len %d", resp.Class, resp.ID, len(resp.Payload))
	}
	return resp.Payload[1:], nil
}

// Write пишет data начиная с addr.
func (c *Client) Write(addr uint8, data ...byte) error {
	if len(data) == 0 {
		return errors.New("bridge: empty write")
	}
	resp, err := c.roundTrip(Frame{Class: ClassREG, ID: IDWrite, Payload: append([]byte{addr}, data...)})
	if err != nil {
		return err
	}
	if resp.Class != ClassACK || resp.ID != IDACK {
		return errors.Errorf("bridge: unexpected reply %#02x/%#02x", resp.Class, resp.ID)
	}
	return nil
}

// IRQ опрашивает уровень линии прерывания.
func (c *Client) IRQ() (bool, error) {
	resp, err := c.roundTrip(Frame{Class: ClassREG, ID: IDIRQ})
	if err != nil {
		return false, err
	}
	if resp.Class != ClassREG || resp.ID != IDIRQ || len(resp.Payload) != 1 {
		return false, errors.Errorf("bridge: unexpected reply %#02x/%#02x", resp.Class, resp.ID)
	}
	return resp.Payload[0] != 0, nil
}

// Tx реализует drivers.I2C: w[0] — регистр, w[1:] — данные записи, r читается с автоинкрементом
// после записанных байт, как у I2C-цели.
// Адрес шины не используется: на порту одно устройство.
func (c *Client) Tx(_ uint16, w, r []byte) error {
	if len(w) == 0 {
		if len(r) == 0 {
			return nil
		}
		return errors.New("bridge: read without register address")
	}
	if len(w) > 1 {
		if err := c.Write(w[0], w[1:]...); err != nil {
			return err
		}
	}
	if len(r) > 0 {
		data, err := c.Read(w[0]+uint8(len(w)-1), len(r))
		if err != nil {
			return err
		}
		copy(r, data)
	}
	return nil
}
