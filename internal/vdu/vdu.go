// Package vdu implements the CRT timing unit: two free-running
// accumulators that emit HSYNC/VSYNC edges at a fixed rate against a
// pixel-clock denominator.
package vdu

// SyncCallback receives the VDU's horizontal and vertical sync edges.
type SyncCallback interface {
	VduSyncHs(hsync bool)
	VduSyncVs(vsync bool)
}

// Defaults mirror an NTSC-like timebase: 4,134,375 Hz pixel clock over a
// 15,750 Hz horizontal rate and a 60 Hz vertical rate.
const (
	DefaultPixelClock uint32 = 4_134_375
	DefaultHFreq      uint32 = 15750
	DefaultVFreq      uint32 = 60
)

// VDU is the horizontal/vertical sync generator.
type VDU struct {
	vm SyncCallback

	pixelClock uint32
	hfreq      uint32
	vfreq      uint32
	hcntr      uint32
	vcntr      uint32
}

// New builds a VDU with the NTSC-like default rates, reporting sync edges
// to vm.
func New(vm SyncCallback) *VDU {
	return &VDU{
		vm:         vm,
		pixelClock: DefaultPixelClock,
		hfreq:      DefaultHFreq,
		vfreq:      DefaultVFreq,
	}
}

// Reset clears the accumulators. The configured rates survive reset.
func (v *VDU) Reset() {
	v.hcntr = 0
	v.vcntr = 0
}

// Clock advances both accumulators by one tick, emitting HSYNC and/or
// VSYNC when they overflow the pixel clock.
func (v *VDU) Clock() {
	v.hcntr += v.hfreq
	if v.hcntr >= v.pixelClock {
		v.hcntr -= v.pixelClock
		v.vm.VduSyncHs(false)
	}
	v.vcntr += v.vfreq
	if v.vcntr >= v.pixelClock {
		v.vcntr -= v.pixelClock
		v.vm.VduSyncVs(false)
	}
}
