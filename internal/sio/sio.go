// Package sio implements an MC6850-style ACIA serial channel: status and
// control registers, a poll-driven non-blocking clock step, and raw-mode
// termios setup for file descriptors that are attached TTYs.
package sio

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// ACIA status register flags.
const (
	statRDRF uint8 = 0b00000001 // Receive Data Register Full
	statTDRE uint8 = 0b00000010 // Transmit Data Register Empty
	statDCD  uint8 = 0b00000100 // Data Carrier Detect
	statCTS  uint8 = 0b00001000 // Clear-To-Send
	statFE   uint8 = 0b00010000 // Framing Error
	statOVRN uint8 = 0b00100000 // Receiver Overrun
	statPE   uint8 = 0b01000000 // Parity Error
	statIRQ  uint8 = 0b10000000 // Interrupt Request
)

// ACIA control register flags.
const (
	ctrlCR0 uint8 = 0b00000001
	ctrlCR1 uint8 = 0b00000010
	ctrlCR2 uint8 = 0b00000100
	ctrlCR3 uint8 = 0b00001000
	ctrlCR4 uint8 = 0b00010000
	ctrlCR5 uint8 = 0b00100000
	ctrlCR6 uint8 = 0b01000000
	ctrlIRQ uint8 = 0b10000000 // Receive Interrupt Enable
)

// noFD marks a detached endpoint.
const noFD = -1

// IRQRaiser receives the channel's interrupt request.
type IRQRaiser interface {
	SioIntrRq()
}

// Channel is one MC6850-style ACIA serial channel.
type Channel struct {
	vm IRQRaiser

	// autoBind attaches rxFd/txFd to stdin/stdout on Reset if they are
	// still detached; only channel 0 does this (see Open Questions).
	autoBind bool

	rxFd, txFd       int
	status, control  uint8
	rxData, txData   uint8
	enabled          bool
}

// New builds a detached channel reporting interrupts to vm. Channel 0 of
// a machine should pass autoBind=true; channel 1 stays detached until
// explicitly bound with BindRx/BindTx.
func New(vm IRQRaiser, autoBind bool) *Channel {
	return &Channel{
		vm:       vm,
		autoBind: autoBind,
		rxFd:     noFD,
		txFd:     noFD,
	}
}

// BindRx attaches the receive endpoint to an open file descriptor.
func (c *Channel) BindRx(fd int) { c.rxFd = fd }

// BindTx attaches the transmit endpoint to an open file descriptor.
func (c *Channel) BindTx(fd int) { c.txFd = fd }

// Reset binds stdin/stdout for an auto-binding channel, applies raw-mode
// termios to any attached TTY, and clears the register file.
func (c *Channel) Reset() error {
	if c.autoBind && c.rxFd == noFD {
		c.rxFd = unix.Stdin
	}
	if c.rxFd != noFD {
		if err := setupRx(c.rxFd); err != nil {
			return fmt.Errorf("sio: setup rx: %w", err)
		}
	}
	if c.autoBind && c.txFd == noFD {
		c.txFd = unix.Stdout
	}
	if c.txFd != noFD {
		if err := setupTx(c.txFd); err != nil {
			return fmt.Errorf("sio: setup tx: %w", err)
		}
	}
	c.status = 0
	c.control = 0
	c.rxData = 0
	c.txData = 0
	c.enabled = false
	return nil
}

// Clock performs one non-blocking poll of the channel's endpoints, moving
// at most one byte in each direction, and raises an interrupt when both
// the status and control IRQ bits are set.
func (c *Channel) Clock() {
	if !c.enabled {
		return
	}

	fds := make([]unix.PollFd, 0, 2)
	rdIdx, wrIdx := -1, -1
	if c.rxFd >= 0 && c.status&statRDRF == 0 {
		fds = append(fds, unix.PollFd{Fd: int32(c.rxFd), Events: unix.POLLIN | unix.POLLERR | unix.POLLHUP})
		rdIdx = len(fds) - 1
	}
	if c.txFd >= 0 && c.status&statTDRE == 0 {
		fds = append(fds, unix.PollFd{Fd: int32(c.txFd), Events: unix.POLLOUT | unix.POLLERR | unix.POLLHUP})
		wrIdx = len(fds) - 1
	}

	if len(fds) > 0 {
		if n, _ := unix.Poll(fds, 0); n > 0 {
			if rdIdx >= 0 && fds[rdIdx].Revents&unix.POLLIN != 0 {
				var buf [1]byte
				if k, _ := unix.Read(c.rxFd, buf[:]); k > 0 {
					c.rxData = buf[0]
				}
				c.status |= statRDRF | statIRQ
			}
			if wrIdx >= 0 && fds[wrIdx].Revents&unix.POLLOUT != 0 {
				unix.Write(c.txFd, []byte{c.txData})
				c.status |= statTDRE
			}
		}
	}

	if c.status&statIRQ != 0 && c.control&ctrlIRQ != 0 {
		c.vm.SioIntrRq()
	}
}

func (c *Channel) firstTouchEnable() {
	if c.enabled {
		return
	}
	c.status &^= statRDRF
	c.status |= statTDRE
	c.status &^= statDCD
	c.status &^= statCTS
	c.status &^= statFE
	c.status &^= statOVRN
	c.status &^= statPE
	c.status &^= statIRQ
	c.enabled = true
}

// RdStat yields the status register, enabling the channel on first touch.
func (c *Channel) RdStat() uint8 {
	c.firstTouchEnable()
	return c.status
}

// WrCtrl stores the control register, enabling the channel on first touch.
func (c *Channel) WrCtrl(data uint8) {
	c.firstTouchEnable()
	c.control = data
}

// RdData clears RDRF|IRQ and yields the received byte when RDRF is set,
// translating DEL (0x7F) to backspace (0x08); otherwise it yields the
// input data unchanged and leaves status untouched.
func (c *Channel) RdData(data uint8) uint8 {
	if c.status&statRDRF != 0 {
		c.status &^= statRDRF | statIRQ
		data = c.rxData
		if data == 0x7F {
			data = 0x08
		}
	}
	return data
}

// WrData stores the transmit byte and clears TDRE when it was set.
func (c *Channel) WrData(data uint8) {
	if c.status&statTDRE != 0 {
		c.status &^= statTDRE
		c.txData = data
	}
}

// Print writes data directly and synchronously to the transmit endpoint,
// bypassing the buffered register path. Used for MMU console-out and the
// trailing newline at shutdown.
func (c *Channel) Print(data uint8) {
	c.txData = data
	if c.txFd >= 0 {
		unix.Write(c.txFd, []byte{data})
	}
}
