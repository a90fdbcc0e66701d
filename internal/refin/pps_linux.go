//go:build linux

package refin

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Linux PPS API (include/uapi/linux/pps.h): PPS_FETCH ждёт следующее событие
// не дольше pps_fdata.timeout и возвращает последний assert.

// KernelPPS — /dev/pps{N}
type KernelPPS struct {
	f    *os.File
	path string
	last uint32
	have bool
}

// OpenKernelPPS открывает /dev/pps{index}.
func OpenKernelPPS(index int) (*KernelPPS, error) {
	path := filepath.Join("/dev", fmt.Sprintf("pps%d", index))
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &KernelPPS{f: f, path: path}, nil
}

// Name возвращает имя источника
func (k *KernelPPS) Name() string {
	return "pps:" + k.path
}

// Wait реализует EdgeSource.
func (k *KernelPPS) Wait(timeout time.Duration) (Edge, bool, error) {
	var fd unix.PPSFData
	fd.Timeout.Sec = int64(timeout / time.Second)
	fd.Timeout.Nsec = int32(timeout % time.Second)
	if err := ioctlPPSFetch(int(k.f.Fd()), &fd); err != nil {
		if errors.Is(err, unix.ETIMEDOUT) || errors.Is(err, unix.EINTR) {
			return Edge{}, false, nil
		}
		return Edge{}, false, fmt.Errorf("PPS_FETCH %s: %w", k.path, err)
	}
	seq := fd.Info.Assert_sequence
	if k.have && seq == k.last {
		// проснулись по clear-событию
		return Edge{}, false, nil
	}
	e := Edge{
		Seq:  seq,
		Time: time.Unix(fd.Info.Assert_tu.Sec, int64(fd.Info.Assert_tu.Nsec)),
	}
	if k.have {
		e.Missed = seq - k.last - 1
	}
	k.last, k.have = seq, true
	return e, true, nil
}

// ioctlPPSFetch выполняет PPS_FETCH; ядро заполняет fd.Info.
func ioctlPPSFetch(fd int, data *unix.PPSFData) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(unix.PPS_FETCH), uintptr(unsafe.Pointer(data)))
	if errno != 0 {
		return errno
	}
	return nil
}

// Close закрывает устройство
func (k *KernelPPS) Close() error {
	return k.f.Close()
}
