package channel

// ConnectionState describes the producer's link to the receiver.
type ConnectionState int32

const (
	// StateDisconnected means no connection exists and no attempt is in
	// progress.
	StateDisconnected ConnectionState = iota
	// StateConnecting means a dial attempt is in progress.
	StateConnecting
	// StateConnected means records are flowing.
	StateConnected
)

// String returns the lowercase state name.
func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}
