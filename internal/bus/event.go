package bus

import "time"

// Well-known event kinds. Subscribers filter by prefix, so "change."
// matches every canonical-data change event regardless of table.
const (
	KindConversationChanged = "change.conversations"
	KindMessageChanged      = "change.messages"
	KindSendAck             = "send.ack"
	KindSendFailed          = "send.failed"
	KindConnState           = "conn.state"
)

// Event represents a domain event published on the bus. Table is set on
// change.* events and names the canonical table the change touched.
type Event struct {
	Kind      string
	Table     string
	Timestamp time.Time
	Payload   any
}
