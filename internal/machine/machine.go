// Package machine implements the virtual machine core: the bus that
// routes CPU memory/IO requests to the MMU and SIO channels, the
// fractional-accumulator scheduler that interleaves CPU/VDU/SIO steps at
// independent rates, and the two-write halt lifecycle.
package machine

import (
	"fmt"
	"log/slog"

	"rc2014vm/internal/cpu"
	"rc2014vm/internal/mmu"
	"rc2014vm/internal/sio"
	"rc2014vm/internal/vdu"
)

// Config carries the rate numerators and boot images a VirtualMachine is
// reset with. Rates are numerators against the scheduler's own common
// denominator (MaxClock), not absolute Hz.
type Config struct {
	CPUClock uint32 // RC2014-like default: 7_372_800
	VDUClock uint32 // NTSC-like default: 4_134_375
	SIOClock uint32 // ACIA-like default: 115_200

	BankPaths [4]string

	// WatchdogTicks, when non-zero, causes an automatic Reset every
	// WatchdogTicks scheduler iterations.
	WatchdogTicks uint32
}

// DefaultConfig returns the RC2014-class rate numerators from the source
// hardware this machine models.
func DefaultConfig() Config {
	return Config{
		CPUClock: 7_372_800,
		VDUClock: 4_134_375,
		SIOClock: 115_200,
	}
}

// VirtualMachine owns the CPU, MMU, VDU and both SIO channels, and
// implements the capability interfaces each device uses to report events
// back to it.
type VirtualMachine struct {
	cfg Config
	log *slog.Logger

	cpuClock, vduClock, sioClock uint32
	cpuTicks, vduTicks, sioTicks uint32
	maxClock                    uint32
	hltCount                    uint32
	wdtCount                    uint32
	stopped, ready              bool

	cpu  *cpu.CPU
	mmu  *mmu.MMU
	vdu  *vdu.VDU
	sio0 *sio.Channel
	sio1 *sio.Channel

	onQuit func()
}

// New constructs a VirtualMachine and all of its owned devices, wired
// through capability interfaces back to the VM itself. Call Reset before
// the first Clock.
func New(cfg Config, log *slog.Logger) *VirtualMachine {
	vm := &VirtualMachine{cfg: cfg, log: log}
	vm.cpu = cpu.NewCPU(vm)
	vm.mmu = mmu.New(vm)
	vm.vdu = vdu.New(vm)
	vm.sio0 = sio.New(vm, true)  // channel 0 auto-binds stdin/stdout
	vm.sio1 = sio.New(vm, false) // channel 1 stays detached
	return vm
}

// SetOnQuit installs a callback invoked the first time Stop takes effect.
func (vm *VirtualMachine) SetOnQuit(fn func()) { vm.onQuit = fn }

// Close emits the trailing newline each SIO channel writes at shutdown.
func (vm *VirtualMachine) Close() {
	vm.sio0.Print('\n')
	vm.sio1.Print('\n')
}

// Stopped reports whether the VM has reached its terminal state.
func (vm *VirtualMachine) Stopped() bool { return vm.stopped }

// Reset zeroes the scheduler's ticks and counters, recomputes MaxClock,
// resets every device, and loads the four bank images.
func (vm *VirtualMachine) Reset() error {
	vm.cpuClock = vm.cfg.CPUClock
	vm.vduClock = vm.cfg.VDUClock
	vm.sioClock = vm.cfg.SIOClock
	vm.cpuTicks, vm.vduTicks, vm.sioTicks = 0, 0, 0
	vm.maxClock = maxOf3(vm.cpuClock, vm.vduClock, vm.sioClock)
	vm.hltCount = 0
	vm.wdtCount = vm.cfg.WatchdogTicks
	vm.stopped = false
	vm.ready = false

	vm.cpu.Reset()

	vm.mmu.Reset()
	for index, path := range vm.cfg.BankPaths {
		if err := vm.mmu.LoadBank(path, index); err != nil {
			return fmt.Errorf("machine: reset: %w", err)
		}
	}

	vm.vdu.Reset()

	if err := vm.sio0.Reset(); err != nil {
		return fmt.Errorf("machine: reset sio0: %w", err)
	}
	if err := vm.sio1.Reset(); err != nil {
		return fmt.Errorf("machine: reset sio1: %w", err)
	}
	return nil
}

// Clock runs the scheduler until a frame boundary (VSYNC) or stop.
func (vm *VirtualMachine) Clock() {
	if vm.stopped {
		vm.ready = true
		return
	}
	vm.ready = false
	for {
		cpuDue, vduDue, sioDue := stepAccumulators(
			&vm.cpuTicks, &vm.vduTicks, &vm.sioTicks,
			vm.cpuClock, vm.vduClock, vm.sioClock, vm.maxClock,
		)
		if cpuDue {
			vm.cpu.Clock()
		}
		if vduDue {
			vm.vdu.Clock()
		}
		if sioDue {
			vm.sio0.Clock()
			vm.sio1.Clock()
		}

		if vm.cfg.WatchdogTicks > 0 {
			vm.wdtCount--
			if vm.wdtCount == 0 {
				if err := vm.Reset(); err != nil && vm.log != nil {
					vm.log.Error("watchdog reset failed", "error", err)
				}
			}
		}

		if vm.stopped {
			vm.ready = true
		}
		if vm.ready {
			break
		}
	}
}

// Stop idempotently ends emulation: the next Clock call returns
// immediately, and every pending iteration observes ready.
func (vm *VirtualMachine) Stop() {
	if !vm.stopped {
		vm.stopped = true
		vm.ready = true
		if vm.onQuit != nil {
			vm.onQuit()
		}
	}
}

// stepAccumulators performs one Bresenham-style fractional-accumulation
// step: each rate numerator is added to its running accumulator, and
// whenever an accumulator reaches maxClock it wraps and its device is due
// to step this iteration. Factored out of Clock so the rate-fidelity
// property can be tested without driving real devices.
func stepAccumulators(cpuTicks, vduTicks, sioTicks *uint32, cpuClock, vduClock, sioClock, maxClock uint32) (cpuDue, vduDue, sioDue bool) {
	*cpuTicks += cpuClock
	if *cpuTicks >= maxClock {
		*cpuTicks -= maxClock
		cpuDue = true
	}
	*vduTicks += vduClock
	if *vduTicks >= maxClock {
		*vduTicks -= maxClock
		vduDue = true
	}
	*sioTicks += sioClock
	if *sioTicks >= maxClock {
		*sioTicks -= maxClock
		sioDue = true
	}
	return cpuDue, vduDue, sioDue
}

func maxOf3(a, b, c uint32) uint32 {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	return m
}

// --- cpu.Bus ---

func (vm *VirtualMachine) MreqM1(addr uint16, data uint8) uint8 { return vm.mmu.RdByte(addr) }
func (vm *VirtualMachine) MreqRd(addr uint16, data uint8) uint8 { return vm.mmu.RdByte(addr) }
func (vm *VirtualMachine) MreqWr(addr uint16, data uint8) uint8 { return vm.mmu.WrByte(addr, data) }

// IorqM1 acknowledges a maskable interrupt. No device here drives a
// vector onto the bus, so it always returns 0x00.
func (vm *VirtualMachine) IorqM1(port uint16, data uint8) uint8 { return 0x00 }

func (vm *VirtualMachine) IorqRd(port uint16, data uint8) uint8 {
	switch {
	case port&0x00FF == 0x0001:
		return 0xFF
	case port&0x00C0 == 0x0080:
		if port&0x0001 != 0 {
			return vm.sio0.RdData(data)
		}
		return vm.sio0.RdStat()
	case port&0x00C0 == 0x0040:
		if port&0x0001 != 0 {
			return vm.sio1.RdData(data)
		}
		return vm.sio1.RdStat()
	default:
		return data
	}
}

func (vm *VirtualMachine) IorqWr(port uint16, data uint8) uint8 {
	switch {
	case port&0x00FF == 0x0001:
		if data == 0x00 {
			vm.hltCount++
			if vm.hltCount == 2 {
				vm.Stop()
			}
		} else {
			vm.hltCount = 0
		}
	case port&0x00C0 == 0x0080:
		if port&0x0001 != 0 {
			vm.sio0.WrData(data)
		} else {
			vm.sio0.WrCtrl(data)
		}
	case port&0x00C0 == 0x0040:
		if port&0x0001 != 0 {
			vm.sio1.WrData(data)
		} else {
			vm.sio1.WrCtrl(data)
		}
	}
	return data
}

// --- mmu.CharWriter ---

func (vm *VirtualMachine) MmuCharWr(data uint8) { vm.sio0.Print(data) }

// --- vdu.SyncCallback ---

// VduSyncHs is a non-terminating edge; HSYNC never ends a frame.
func (vm *VirtualMachine) VduSyncHs(hsync bool) {}

// VduSyncVs marks the current frame complete.
func (vm *VirtualMachine) VduSyncVs(vsync bool) { vm.ready = true }

// --- sio.IRQRaiser (shared by both channels) ---

func (vm *VirtualMachine) SioIntrRq() { vm.cpu.PulseInt() }
