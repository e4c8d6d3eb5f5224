package notify

import (
	"sync"
	"time"
)

// Level distinguishes confirmations from failures.
type Level int

const (
	LevelSuccess Level = iota
	LevelError
)

// Notice is one transient notification.
type Notice struct {
	Level   Level
	Message string
}

const (
	successTTL = 3 * time.Second
	errorTTL   = 6 * time.Second
)

// Center holds the current transient notice. Mutation coordinators and
// the send pipeline push confirmations and classified failure messages
// here; the UI polls Current on each frame.
type Center struct {
	mu      sync.RWMutex
	notice  Notice
	expires time.Time
	now     func() time.Time
}

// NewCenter creates an empty notification center.
func NewCenter() *Center {
	return &Center{now: time.Now}
}

// Success shows a short-lived confirmation.
func (c *Center) Success(msg string) {
	c.set(Notice{Level: LevelSuccess, Message: msg}, successTTL)
}

// Failure shows an error notice. Errors linger longer than
// confirmations.
func (c *Center) Failure(msg string) {
	c.set(Notice{Level: LevelError, Message: msg}, errorTTL)
}

func (c *Center) set(n Notice, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notice = n
	c.expires = c.now().Add(ttl)
}

// Current returns the active notice, or false once it has expired.
func (c *Center) Current() (Notice, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.now().After(c.expires) {
		return Notice{}, false
	}
	return c.notice, true
}
