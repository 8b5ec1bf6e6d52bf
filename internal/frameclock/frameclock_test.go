package frameclock

import (
	"testing"
	"time"
)

func TestWaitPacesToInterval(t *testing.T) {
	c := New(20*time.Millisecond, false)

	start := time.Now()
	c.Wait() // first call: no previous tick, returns immediately
	c.Wait() // second call: should block roughly one interval
	elapsed := time.Since(start)

	if elapsed < 15*time.Millisecond {
		t.Fatalf("Wait did not pace: elapsed = %v", elapsed)
	}
}

func TestTurboNeverBlocks(t *testing.T) {
	c := New(time.Hour, true)

	start := time.Now()
	c.Wait()
	c.Wait()
	c.Wait()
	elapsed := time.Since(start)

	if elapsed > 100*time.Millisecond {
		t.Fatalf("turbo clock blocked: elapsed = %v", elapsed)
	}
}

func TestSetTurboTakesEffectImmediately(t *testing.T) {
	c := New(time.Hour, false)
	c.Wait()
	c.SetTurbo(true)

	start := time.Now()
	c.Wait()
	if time.Since(start) > 100*time.Millisecond {
		t.Fatal("SetTurbo(true) should stop pacing immediately")
	}
}
