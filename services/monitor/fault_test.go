package monitor

import "testing"

func TestRingNotFaultyUntilFull(t *testing.T) {
	var r instabilityRing
	r.init(3)
	if r.push(100, 1000) || r.push(200, 1000) || r.push(300, 1000) {
		t.Fatal("faulty before the ring wrapped")
	}
}

func TestRingFaultyInsideWindow(t *testing.T) {
	var r instabilityRing
	r.init(3)
	r.push(100, 1000)
	r.push(200, 1000)
	r.push(300, 1000)
	if !r.push(900, 1000) {
		t.Fatal("expected fault: 4 events inside the window")
	}
}

func TestRingOldEventsAgeOut(t *testing.T) {
	var r instabilityRing
	r.init(3)
	r.push(100, 1000)
	r.push(200, 1000)
	r.push(300, 1000)
	if r.push(5000, 1000) {
		t.Fatal("oldest event is outside the window")
	}
	// The ring keeps sliding: dense pushes after quiet time still trip it.
	r.push(5010, 1000)
	r.push(5020, 1000)
	if !r.push(5030, 1000) {
		t.Fatal("expected fault after the burst")
	}
}

func TestRingMinimumThreshold(t *testing.T) {
	var r instabilityRing
	r.init(0) // clamped to 2
	r.push(10, 1000)
	r.push(20, 1000)
	if !r.push(30, 1000) {
		t.Fatal("expected fault with clamped threshold")
	}
}
