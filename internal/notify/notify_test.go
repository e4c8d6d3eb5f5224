package notify

import (
	"testing"
	"time"
)

func TestCurrentReturnsActiveNotice(t *testing.T) {
	c := NewCenter()
	c.Success("Conversation archived")

	n, ok := c.Current()
	if !ok {
		t.Fatal("expected active notice")
	}
	if n.Level != LevelSuccess || n.Message != "Conversation archived" {
		t.Errorf("notice = %+v", n)
	}
}

func TestNoticeExpires(t *testing.T) {
	c := NewCenter()
	base := time.Now()
	c.now = func() time.Time { return base }
	c.Failure("Connection problem")

	c.now = func() time.Time { return base.Add(errorTTL + time.Second) }
	if _, ok := c.Current(); ok {
		t.Error("notice should have expired")
	}
}

func TestFailureReplacesSuccess(t *testing.T) {
	c := NewCenter()
	c.Success("done")
	c.Failure("broke")

	n, ok := c.Current()
	if !ok || n.Level != LevelError {
		t.Errorf("got %+v ok=%v, want error notice", n, ok)
	}
}
