package analyses

import (
	"testing"
	"time"
)

func TestPollLimiterSpacesPollsPerTask(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := newPollLimiter(time.Second, func() time.Time { return now })

	if ok, _ := l.Allow("u1", "t1"); !ok {
		t.Fatalf("first poll must pass")
	}
	ok, wait := l.Allow("u1", "t1")
	if ok || wait != time.Second {
		t.Fatalf("expected block with 1s wait, got %v %v", ok, wait)
	}
	if ok, _ := l.Allow("u1", "t2"); !ok {
		t.Fatalf("other task must not be limited")
	}
	if ok, _ := l.Allow("u2", "t1"); !ok {
		t.Fatalf("other user must not be limited")
	}

	now = now.Add(400 * time.Millisecond)
	if _, wait := l.Allow("u1", "t1"); wait != 600*time.Millisecond {
		t.Fatalf("expected 600ms wait, got %v", wait)
	}
	now = now.Add(600 * time.Millisecond)
	if ok, _ := l.Allow("u1", "t1"); !ok {
		t.Fatalf("poll after window must pass")
	}
}

func TestNilPollLimiterAllows(t *testing.T) {
	var l *pollLimiter
	if ok, _ := l.Allow("u", "t"); !ok {
		t.Fatalf("nil limiter must allow")
	}
}
