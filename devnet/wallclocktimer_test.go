//go:build linux

package devnet

import (
	"testing"
	"time"
)

func TestWallClockTimer_WouldBlockThenReady(t *testing.T) {
	timer := NewWallClockTimer()
	timer.Start(20 * time.Millisecond)

	res, err := timer.Wait()
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if res != WouldBlock {
		t.Fatalf("Wait() immediately after Start = %v, want WouldBlock", res)
	}

	time.Sleep(30 * time.Millisecond)

	res, err = timer.Wait()
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if res != Ready {
		t.Fatalf("Wait() after deadline elapsed = %v, want Ready", res)
	}
}
