package driver

import (
	"context"
	"testing"
	"time"
)

func TestIdentityMatchesLiveChild(t *testing.T) {
	p := spawnSh(t, "sleep 60; true")
	defer p.Stop(context.Background(), 2*time.Second)

	id := IdentityOf(p.PID(), "sh")
	if !id.Matches() {
		t.Errorf("expected identity %+v to match its own process", id)
	}
}

func TestIdentityRejectsWrongCommand(t *testing.T) {
	p := spawnSh(t, "sleep 60; true")
	defer p.Stop(context.Background(), 2*time.Second)

	id := IdentityOf(p.PID(), "sh")
	id.Command = "definitely-not-this"
	if id.Matches() {
		t.Error("expected mismatched command to fail")
	}
}

func TestIdentityRejectsWrongStartTime(t *testing.T) {
	p := spawnSh(t, "sleep 60; true")
	defer p.Stop(context.Background(), 2*time.Second)

	id := IdentityOf(p.PID(), "sh")
	if id.StartTime == 0 {
		t.Skip("start time not available on this platform")
	}
	id.StartTime++
	if id.Matches() {
		t.Error("expected mismatched start time to fail")
	}
}

func TestIdentityDeadProcess(t *testing.T) {
	p := spawnSh(t, "true")
	pid := p.PID()
	p.Wait()

	if (Identity{PID: pid}).Matches() {
		t.Error("expected reaped pid not to match")
	}
	if (Identity{}).Matches() {
		t.Error("expected zero identity not to match")
	}
}
