package insteon

import "sync"

// fakeLink is a minimal insteon.Link double for engine/device tests:
// every Write is recorded, and tests drive inbound traffic and
// disconnects by pushing onto the two channels directly.
type fakeLink struct {
	mu       sync.Mutex
	written  []*Message
	inbound  chan *Message
	disc     chan error
	writeErr error
}

func newFakeLink() *fakeLink {
	return &fakeLink{
		inbound: make(chan *Message, 16),
		disc:    make(chan error, 1),
	}
}

func (f *fakeLink) Write(msg *Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.written = append(f.written, msg)
	return nil
}

func (f *fakeLink) Inbound() <-chan *Message { return f.inbound }

func (f *fakeLink) Disconnected() <-chan error { return f.disc }

func (f *fakeLink) lastWritten() *Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.written) == 0 {
		return nil
	}
	return f.written[len(f.written)-1]
}

// ack synthesizes and returns a direct-ACK reply to the given outbound
// message; the caller delivers it on the inbound channel, the way the
// PLM link would echo a device's acknowledgement back to the engine.
func ack(msg *Message) *Message {
	return &Message{
		Src:     msg.Dst,
		Dst:     msg.Dst,
		Flags:   NewFlags(MsgTypeDirectAck, msg.Flags.IsExtended(), 3, 3),
		Command: msg.Command,
	}
}
