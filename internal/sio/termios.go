package sio

import (
	"errors"

	"golang.org/x/sys/unix"
)

// setupRx puts an attached receive fd into the raw mode the guest expects:
// newline translation and signal generation survive, but local echo and
// canonical line buffering do not. Non-TTY descriptors (files, pipes,
// sockets) are left untouched.
func setupRx(fd int) error {
	return adjustTermios(fd, func(t *unix.Termios) {
		t.Iflag |= unix.INLCR
		t.Iflag &^= unix.IGNCR | unix.ICRNL
		t.Lflag |= unix.ISIG
		t.Lflag &^= unix.ECHO | unix.ECHOE | unix.ECHOK | unix.ECHONL | unix.ICANON
	})
}

// setupTx puts an attached transmit fd into raw mode for output.
func setupTx(fd int) error {
	return adjustTermios(fd, func(t *unix.Termios) {
		t.Oflag |= unix.ONOCR
		t.Oflag &^= unix.OFILL
		t.Lflag |= unix.ISIG
		t.Lflag &^= unix.ECHO | unix.ECHOE | unix.ECHOK | unix.ECHONL | unix.ICANON
	})
}

func adjustTermios(fd int, adjust func(*unix.Termios)) error {
	t, err := unix.IoctlGetTermios(fd, ioctlGetTermios)
	if err != nil {
		if errors.Is(err, unix.ENOTTY) {
			return nil
		}
		return err
	}
	adjust(t)
	return unix.IoctlSetTermios(fd, ioctlSetTermios, t)
}
