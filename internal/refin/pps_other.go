//go:build !linux

package refin

import (
	"fmt"
	"time"
)

// KernelPPS — заглушка: PPS API ядра есть только в Linux.
type KernelPPS struct{}

// OpenKernelPPS всегда возвращает ErrUnsupported.
func OpenKernelPPS(index int) (*KernelPPS, error) {
	return nil, fmt.Errorf("/dev/pps%d: %w", index, ErrUnsupported)
}

// Name возвращает имя источника
func (*KernelPPS) Name() string { return "pps" }

// Wait реализует EdgeSource.
func (*KernelPPS) Wait(time.Duration) (Edge, bool, error) { return Edge{}, false, ErrUnsupported }

// Close реализует EdgeSource.
func (*KernelPPS) Close() error { return nil }
