package runtime

import "post-lab/contract"

// ChannelSink is the standard ClientSink: a buffered channel the
// transport layer drains toward the socket. Send never blocks; when the
// buffer is full the message is dropped, which is the gateway's
// best-effort contract.
type ChannelSink struct {
	ch chan contract.OutboundMessage
}

func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{ch: make(chan contract.OutboundMessage, buffer)}
}

func (s *ChannelSink) Send(msg contract.OutboundMessage) bool {
	select {
	case s.ch <- msg:
		return true
	default:
		return false
	}
}

// Messages exposes the delivery channel to the transport layer.
func (s *ChannelSink) Messages() <-chan contract.OutboundMessage {
	return s.ch
}
