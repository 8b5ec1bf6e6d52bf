package vdu

import "testing"

type fakeSync struct {
	hs, vs int
}

func (f *fakeSync) VduSyncHs(bool) { f.hs++ }
func (f *fakeSync) VduSyncVs(bool) { f.vs++ }

func TestResetClearsAccumulators(t *testing.T) {
	v := New(&fakeSync{})
	v.hcntr = 1234
	v.vcntr = 5678
	v.Reset()
	if v.hcntr != 0 || v.vcntr != 0 {
		t.Fatalf("accumulators not cleared: h=%d v=%d", v.hcntr, v.vcntr)
	}
}

func TestHSyncFrequency(t *testing.T) {
	sync := &fakeSync{}
	v := New(sync)
	v.pixelClock = 100
	v.hfreq = 30
	v.vfreq = 1 // avoid interference from vsync bookkeeping in this test

	for i := 0; i < 10; i++ {
		v.Clock()
	}
	// hcntr accumulates 30 per tick against 100: overflows roughly every
	// 3.33 ticks, so 10 ticks yields 3 HSYNCs.
	if sync.hs != 3 {
		t.Fatalf("hs = %d, want 3", sync.hs)
	}
}

func TestVSyncSetsOnOverflow(t *testing.T) {
	sync := &fakeSync{}
	v := New(sync)
	v.pixelClock = 10
	v.hfreq = 0
	v.vfreq = 5

	v.Clock()
	if sync.vs != 0 {
		t.Fatalf("vs = %d after one tick, want 0", sync.vs)
	}
	v.Clock()
	if sync.vs != 1 {
		t.Fatalf("vs = %d after two ticks, want 1", sync.vs)
	}
}
