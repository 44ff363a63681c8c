package orchestrator

import (
	"testing"
	"time"
)

// Monitors sized like the production defaults: 100ms ticks, 8s warn,
// 30s auto-stop, so a tick count reads as deciseconds.
func pttMonitor() *silenceMonitor {
	return newSilenceMonitor(100*time.Millisecond, 8*time.Second, 30*time.Second, func() bool { return false })
}

func toggleMonitor() *silenceMonitor {
	return newSilenceMonitor(100*time.Millisecond, 8*time.Second, 30*time.Second, func() bool { return true })
}

func feedN(m *silenceMonitor, speech bool, n int) silenceEvent {
	var last silenceEvent
	for i := 0; i < n; i++ {
		last = m.Tick(speech)
	}
	return last
}

func TestSilenceWarnAfter8s(t *testing.T) {
	m := pttMonitor()
	// 79 ticks of silence, no warning yet
	for i := 0; i < 79; i++ {
		if ev := m.Tick(false); ev != silenceNone {
			t.Fatalf("unexpected event at tick %d: %d", i, ev)
		}
	}
	// 80th tick triggers warning (8s)
	if ev := m.Tick(false); ev != silenceWarn {
		t.Fatalf("expected silenceWarn at tick 80, got %d", ev)
	}
}

func TestSilenceWarnClearsOnSpeech(t *testing.T) {
	m := pttMonitor()
	feedN(m, false, 80) // triggers warn

	// Sustained speech clears warning (need 25% of 80-tick window)
	for i := 0; i < 80; i++ {
		if ev := m.Tick(true); ev == silenceCleared {
			return
		}
	}
	t.Fatal("expected silenceCleared after speech")
}

func TestNoWarnDuringSpeech(t *testing.T) {
	m := pttMonitor()
	for i := 0; i < 200; i++ {
		if ev := m.Tick(true); ev == silenceWarn {
			t.Fatalf("unexpected warn during speech at tick %d", i)
		}
	}
}

func TestToggleRepeatCue(t *testing.T) {
	m := toggleMonitor()
	feedN(m, false, 80) // warn at tick 80
	// Next repeat at tick 160
	var gotRepeat bool
	for i := 0; i < 100; i++ {
		if ev := m.Tick(false); ev == silenceRepeat {
			gotRepeat = true
			break
		}
	}
	if !gotRepeat {
		t.Fatal("expected silenceRepeat in toggle mode")
	}
}

func TestAutoStopPriorityOverRepeat(t *testing.T) {
	m := toggleMonitor()
	for i := 0; i < 400; i++ {
		ev := m.Tick(false)
		if ev == silenceAutoStop {
			return
		}
		if i >= 300 && ev == silenceRepeat {
			t.Fatalf("silenceRepeat fired at tick %d instead of silenceAutoStop", i)
		}
	}
	t.Fatal("expected silenceAutoStop within 400 ticks")
}

func TestNoAutoStopInHoldMode(t *testing.T) {
	m := pttMonitor()
	for i := 0; i < 400; i++ {
		if ev := m.Tick(false); ev == silenceAutoStop {
			t.Fatalf("unexpected auto-stop in hold mode at tick %d", i)
		}
	}
}

func TestAutoStopPreventedBySpeech(t *testing.T) {
	m := toggleMonitor()
	for i := 0; i < 500; i++ {
		speech := i%10 < 7
		if ev := m.Tick(speech); ev == silenceAutoStop {
			t.Fatalf("unexpected auto-stop with speech at tick %d", i)
		}
	}
}

func TestNoRepeatInHoldMode(t *testing.T) {
	m := pttMonitor()
	for i := 0; i < 300; i++ {
		if ev := m.Tick(false); ev == silenceRepeat {
			t.Fatalf("unexpected silenceRepeat in hold mode at tick %d", i)
		}
	}
}

func TestWarnOnlyOnce(t *testing.T) {
	m := pttMonitor()
	warns := 0
	for i := 0; i < 300; i++ {
		if ev := m.Tick(false); ev == silenceWarn {
			warns++
		}
	}
	if warns != 1 {
		t.Fatalf("expected exactly 1 warn in hold mode, got %d", warns)
	}
}

func TestWarnStaysDuringNoise(t *testing.T) {
	m := pttMonitor()
	feedN(m, false, 80) // triggers warn

	// Occasional classifier false positives (< 25% speech) should NOT clear
	clears := 0
	for i := 0; i < 80; i++ {
		speech := i%10 == 0 // 10% speech, below the clear threshold
		if ev := m.Tick(speech); ev == silenceCleared {
			clears++
		}
	}
	if clears > 0 {
		t.Fatalf("expected warning to stay with 10%% speech, got %d clears", clears)
	}
}

func TestAutoStopDisabled(t *testing.T) {
	m := newSilenceMonitor(100*time.Millisecond, 8*time.Second, 0, func() bool { return true })
	for i := 0; i < 600; i++ {
		if ev := m.Tick(false); ev == silenceAutoStop {
			t.Fatalf("auto-stop fired at tick %d despite being disabled", i)
		}
	}
}
