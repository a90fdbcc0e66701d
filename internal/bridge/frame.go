// Package bridge — доступ к регистрам контроллера по последовательному порту.
//
// Кадр как у UBX: 0xB5 0x62, класс, ID, длина (uint16 LE), payload, ckA ckB (Fletcher-8 от класса до конца payload).
//
//	REG-READ  (0x0A 0x01) запрос [addr, n]        ответ [addr, data...]
//	REG-WRITE (0x0A 0x02) запрос [addr, data...]  ответ ACK-ACK
//	REG-IRQ   (0x0A 0x03) запрос []               ответ [level]
//	ACK-ACK (0x05 0x01) / ACK-NAK (0x05 0x00), payload [class, id] запроса
package bridge

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// Sync bytes
const (
	Sync1 = 0xB5
	Sync2 = 0x62
)

// Классы и ID сообщений
const (
	ClassREG = 0x0A
	IDRead   = 0x01
	IDWrite  = 0x02
	IDIRQ    = 0x03

	ClassACK = 0x05
	IDACK    = 0x01
	IDNAK    = 0x00
)

// MaxPayload — предел длины payload; длиннее — кадр отбрасывается.
const MaxPayload = 512

var (
	// ErrChecksum — контрольная сумма кадра не сошлась.
	ErrChecksum = errors.New("bridge: checksum mismatch")
	// ErrNAK — устройство отвергло запрос.
	ErrNAK = errors.New("bridge: request not acknowledged")
	// ErrTooLong — длина payload больше MaxPayload.
	ErrTooLong = errors.New("bridge: payload too long")
)

// Frame — разобранный кадр.
type Frame struct {
	Class   uint8
	ID      uint8
	Payload []byte
}

// Checksum вычисляет контрольную сумму (без sync bytes)
func Checksum(data []byte) (ckA, ckB uint8) {
	for _, b := range data {
		ckA += b
		ckB += ckA
	}
	return ckA, ckB
}

// Encode собирает полный кадр: header + payload + checksum
func Encode(class, id uint8, payload []byte) []byte {
	buf := make([]byte, 0, 6+len(payload)+2)
	buf = append(buf, Sync1, Sync2, class, id)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(payload)))
	buf = append(buf, payload...)
	ckA, ckB := Checksum(buf[2:])
	return append(buf, ckA, ckB)
}

// Bytes кодирует кадр.
func (f Frame) Bytes() []byte {
	return Encode(f.Class, f.ID, f.Payload)
}

// WriteFrame отправляет кадр.
func WriteFrame(w io.Writer, f Frame) error {
	if len(f.Payload) > MaxPayload {
		return ErrTooLong
	}
	_, err := w.Write(f.Bytes())
	return errors.Wrap(err, "write frame")
}

// ReadFrame читает один кадр: ждёт sync, затем заголовок, payload и checksum.
// Мусор до sync пропускается.
func ReadFrame(r io.Reader) (Frame, error) {
	var prev, b [1]byte
	for {
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return Frame{}, err
		}
		if prev[0] == Sync1 && b[0] == Sync2 {
			break
		}
		prev = b
	}
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Frame{}, errors.Wrap(err, "read frame header")
	}
	n := int(binary.LittleEndian.Uint16(hdr[2:]))
	if n > MaxPayload {
		return Frame{}, errors.Wrapf(ErrTooLong, "class %#02x id %#02x length %d", hdr[0], hdr[1], n)
	}
	rest := make([]byte, n+2)
	if _, err := io.ReadFull(r, rest); err != nil {
		return Frame{}, errors.Wrap(err, "read frame payload")
	}
	ckA, ckB := Checksum(append(hdr[:], rest[:n]...))
	if rest[n] != ckA || rest[n+1] != ckB {
		return Frame{}, errors.Wrapf(ErrChecksum, "class %#02x id %#02x", hdr[0], hdr[1])
	}
	return Frame{Class: hdr[0], ID: hdr[1], Payload: rest[:n]}, nil
}

func ack(req Frame) Frame {
	return Frame{Class: ClassACK, ID: IDACK, Payload: []byte{req.Class, req.ID}}
}

func nak(req Frame) Frame {
	return Frame{Class: ClassACK, ID: IDNAK, Payload: []byte{req.Class, req.ID}}
}
