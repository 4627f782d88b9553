package monitor

import (
	"testing"

	"github.com/nerrad567/gray-logic-displays/internal/access"
)

func TestConfidence(t *testing.T) {
	fail := access.Fail(access.TransmissionFailed, "bus")

	c := NewConfidence(3, 5)
	if ok, _ := c.Controllable(); !ok {
		t.Fatal("new counter should be controllable")
	}

	for i := 0; i < 2; i++ {
		c.Observe(fail)
	}
	if ok, _ := c.Controllable(); !ok {
		t.Fatal("two failures should not exhaust initial allowance of 3")
	}

	c.Observe(fail)
	ok, msg := c.Controllable()
	if ok {
		t.Fatal("three failures should exhaust initial allowance")
	}
	if msg != "transmission_failed: bus" {
		t.Errorf("message = %q", msg)
	}

	c.Observe(access.OK)
	if ok, msg := c.Controllable(); !ok || msg != "" {
		t.Fatalf("one success should restore confidence, got %v %q", ok, msg)
	}

	// Normal allowance applies after the first success.
	for i := 0; i < 4; i++ {
		c.Observe(fail)
	}
	if ok, _ := c.Controllable(); !ok {
		t.Error("four failures should not exhaust normal allowance of 5")
	}
	c.Observe(fail)
	if ok, _ := c.Controllable(); ok {
		t.Error("five failures should exhaust normal allowance")
	}
}

func TestConfidence_NotSupportedIgnored(t *testing.T) {
	c := NewConfidence(1, 1)
	c.Observe(access.Unsupported("contrast"))
	if ok, _ := c.Controllable(); !ok {
		t.Error("NotSupported should not count as a failure")
	}
}

func TestConfidence_Defaults(t *testing.T) {
	c := NewConfidence(0, 0)
	for i := 0; i < DefaultInitialAllowance-1; i++ {
		c.Observe(access.Result{Status: access.Failed})
	}
	if ok, _ := c.Controllable(); !ok {
		t.Error("default initial allowance exhausted too early")
	}
}
