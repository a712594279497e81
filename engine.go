package insteon

import (
	"sync"
	"time"
)

// HandlerResult is the outcome of feeding an inbound message to the
// currently active Handler.
type HandlerResult int

const (
	ResultUnknown HandlerResult = iota
	ResultContinue
	ResultFinished
)

// TimeoutResult is a Handler's decision when its deadline expires.
type TimeoutResult int

const (
	TimeoutRetry TimeoutResult = iota
	TimeoutFail
)

// Handler is the closed set of per-request state machines described
// in spec.md 4.4. Exactly one Handler is active in a ProtocolEngine
// at a time.
type Handler interface {
	// MsgReceived is fed every inbound message while this handler is
	// active. It returns Finished once the request is satisfied.
	MsgReceived(msg *Message) HandlerResult

	// OnTimeout is invoked when the handler's deadline passes while
	// it is still active.
	OnTimeout() TimeoutResult

	// OnDone is the terminal callback, invoked exactly once.
	OnDone(success bool, status string, payload interface{})

	// Timeout is the handler's requested per-attempt deadline.
	Timeout() time.Duration

	// Retries is the handler's total retry budget.
	Retries() int
}

// DefaultTimeout and DefaultRetries are the spec.md 4.3 defaults used
// by handler constructors that don't override them.
const (
	DefaultTimeout = 5 * time.Second
	DefaultRetries = 3
)

// SuppressWindow is the default broadcast de-duplication window
// (spec.md 4.3); configurable per ProtocolEngine.
const SuppressWindow = 500 * time.Millisecond

// Link is the narrow surface the ProtocolEngine needs from the PLM
// link layer. plm.PLM implements this interface structurally.
type Link interface {
	Write(msg *Message) error
	Inbound() <-chan *Message
	Disconnected() <-chan error
}

// BroadcastFunc handles an inbound all-link broadcast that the active
// handler did not consume.
type BroadcastFunc func(msg *Message)

type broadcastKey struct {
	Address Address
	Group   Group
}

type outboundEntry struct {
	msg     *Message
	handler Handler
}

type suppressKey struct {
	From Address
	Grp  Group
	Cmd1 byte
}

// ProtocolEngine mediates between the PLM Link and the rest of the
// system: a single in-flight handler slot, an outbound priority
// queue, a broadcast-suppression cache and a timeout wheel, all owned
// by one goroutine (engine.run) so no mutation needs a lock -- this is
// the Go realization of spec.md 5's single-threaded cooperative core
// (see SPEC_FULL.md 5.1).
type ProtocolEngine struct {
	link           Link
	suppressWindow time.Duration

	sendCh    chan outboundEntry
	cancelCh  chan struct{}
	closeCh   chan chan struct{}
	listenMu  sync.Mutex
	listeners map[broadcastKey]BroadcastFunc

	highQueue []outboundEntry
	normQueue []outboundEntry

	active   *outboundEntry
	deadline time.Time
	retries  int
	timer    *time.Timer
	generation int

	suppress map[suppressKey]time.Time
}

// NewProtocolEngine creates an engine bound to link and starts its
// goroutine. suppressWindow of zero uses SuppressWindow.
func NewProtocolEngine(link Link, suppressWindow time.Duration) *ProtocolEngine {
	if suppressWindow <= 0 {
		suppressWindow = SuppressWindow
	}
	e := &ProtocolEngine{
		link:           link,
		suppressWindow: suppressWindow,
		sendCh:         make(chan outboundEntry, 16),
		cancelCh:       make(chan struct{}),
		closeCh:        make(chan chan struct{}),
		listeners:      make(map[broadcastKey]BroadcastFunc),
		suppress:       make(map[suppressKey]time.Time),
		timer:          time.NewTimer(time.Hour),
	}
	e.timer.Stop()
	go e.run()
	return e
}

// Send enqueues msg/handler for transmission. High priority entries
// jump ahead of normal entries but preserve FIFO order among
// themselves (spec.md 3's Outbound Entry).
func (e *ProtocolEngine) Send(msg *Message, handler Handler, highPriority bool) {
	entry := outboundEntry{msg: msg, handler: handler}
	if highPriority {
		// no sentinel field is needed: sendHigh wraps the handler so
		// run() knows which queue to use.
		e.sendHigh(entry)
		return
	}
	e.sendCh <- entry
}

// sendHigh routes directly into the engine goroutine via the same
// channel, tagged with a wrapper so run() can tell queues apart
// without adding a mutable field to the public entry type.
type highPriorityEntry struct {
	outboundEntry
}

func (e *ProtocolEngine) sendHigh(entry outboundEntry) {
	e.sendCh <- outboundEntry{msg: entry.msg, handler: &highWrap{entry.handler}}
}

// highWrap tags a handler so the engine loop enqueues it into the
// high priority queue, then transparently delegates every call.
type highWrap struct{ Handler }

// AddBroadcastHandler registers fn to receive broadcasts whose source
// address is addr and whose group matches group, persisting across
// the active handler's lifetime (spec.md 4.3's broadcast listener
// registry).
func (e *ProtocolEngine) AddBroadcastHandler(addr Address, group Group, fn BroadcastFunc) {
	e.listenMu.Lock()
	defer e.listenMu.Unlock()
	e.listeners[broadcastKey{addr, group}] = fn
}

// RemoveBroadcastHandler undoes AddBroadcastHandler.
func (e *ProtocolEngine) RemoveBroadcastHandler(addr Address, group Group) {
	e.listenMu.Lock()
	defer e.listenMu.Unlock()
	delete(e.listeners, broadcastKey{addr, group})
}

// Close shuts the engine down, finalizing every queued and active
// handler's OnDone exactly once with status "link closed" (spec.md 5's
// shutdown guarantee).
func (e *ProtocolEngine) Close() {
	done := make(chan struct{})
	e.closeCh <- done
	<-done
}

func (e *ProtocolEngine) run() {
	defer e.timer.Stop()
	for {
		select {
		case entry := <-e.sendCh:
			e.enqueue(entry)
			e.pump()
		case msg := <-e.link.Inbound():
			e.dispatch(msg)
			e.pump()
		case err := <-e.link.Disconnected():
			e.handleDisconnect(err)
		case <-e.timer.C:
			e.handleTimeout()
			e.pump()
		case done := <-e.closeCh:
			e.shutdown()
			close(done)
			return
		}
	}
}

func (e *ProtocolEngine) enqueue(entry outboundEntry) {
	if wrap, ok := entry.handler.(*highWrap); ok {
		entry.handler = wrap.Handler
		e.highQueue = append(e.highQueue, entry)
		return
	}
	e.normQueue = append(e.normQueue, entry)
}

// pump installs the next queued entry as active if the engine is
// idle, per the state table in spec.md 4.3.
func (e *ProtocolEngine) pump() {
	if e.active != nil {
		return
	}

	var entry outboundEntry
	if len(e.highQueue) > 0 {
		entry, e.highQueue = e.highQueue[0], e.highQueue[1:]
	} else if len(e.normQueue) > 0 {
		entry, e.normQueue = e.normQueue[0], e.normQueue[1:]
	} else {
		return
	}

	e.active = &entry
	e.retries = entry.handler.Retries()
	e.writeActive()
}

func (e *ProtocolEngine) writeActive() {
	to := e.active.handler.Timeout()
	if to <= 0 {
		to = DefaultTimeout
	}
	e.deadline = time.Now().Add(to)
	e.generation++
	e.resetTimer(to)

	if err := e.link.Write(e.active.msg); err != nil {
		Log.Infof("insteon: write failed: %v", err)
		e.finalize(false, "write error", nil)
		return
	}
	if e.active.msg.Local {
		// A PLM-local send (e.g. a scene trigger) has already completed:
		// Link.Write waited for the modem's own ACK/NAK of it, and no
		// device will echo a further message back to dispatch().
		e.finalize(true, "ok", nil)
	}
}

func (e *ProtocolEngine) resetTimer(d time.Duration) {
	if !e.timer.Stop() {
		select {
		case <-e.timer.C:
		default:
		}
	}
	e.timer.Reset(d)
}

func (e *ProtocolEngine) dispatch(msg *Message) {
	if e.active != nil {
		// Protocol errors (spec.md 7): a direct NAK addressed back
		// from the device we last wrote to fails the active handler
		// unconditionally, without consulting it.
		if msg.Nak() && msg.Src == e.active.msg.Dst {
			e.finalize(false, "nak", msg)
			return
		}

		result := e.active.handler.MsgReceived(msg)
		switch result {
		case ResultFinished:
			e.finalize(true, "ok", msg)
			return
		case ResultContinue:
			e.resetTimer(e.timeRemainingOr(e.active.handler.Timeout()))
			return
		}
	}

	if msg.Broadcast() {
		e.dispatchBroadcast(msg)
		return
	}

	Log.Debugf("insteon: unhandled message %v", msg)
}

func (e *ProtocolEngine) timeRemainingOr(d time.Duration) time.Duration {
	if d <= 0 {
		d = DefaultTimeout
	}
	e.deadline = time.Now().Add(d)
	return d
}

func (e *ProtocolEngine) dispatchBroadcast(msg *Message) {
	key := suppressKey{From: msg.Src, Grp: msg.Group(), Cmd1: msg.Command[0]}
	now := time.Now()
	if last, ok := e.suppress[key]; ok && now.Sub(last) < e.suppressWindow {
		return
	}
	e.suppress[key] = now
	e.pruneSuppressCache(now)

	e.listenMu.Lock()
	fn, ok := e.listeners[broadcastKey{msg.Src, msg.Group()}]
	e.listenMu.Unlock()
	if ok {
		fn(msg)
	} else {
		Log.Debugf("insteon: unhandled broadcast %v", msg)
	}
}

func (e *ProtocolEngine) pruneSuppressCache(now time.Time) {
	for k, t := range e.suppress {
		if now.Sub(t) > e.suppressWindow {
			delete(e.suppress, k)
		}
	}
}

func (e *ProtocolEngine) handleTimeout() {
	if e.active == nil {
		return
	}
	if time.Now().Before(e.deadline) {
		// stale timer fired before a reset was observed; ignore.
		return
	}

	if e.retries <= 0 {
		e.finalize(false, "timeout", nil)
		return
	}

	switch e.active.handler.OnTimeout() {
	case TimeoutRetry:
		e.retries--
		e.writeActive()
	case TimeoutFail:
		e.finalize(false, "timeout", nil)
	}
}

func (e *ProtocolEngine) finalize(success bool, status string, payload interface{}) {
	entry := e.active
	e.active = nil
	e.timer.Stop()
	if entry == nil {
		return
	}
	entry.handler.OnDone(success, status, payload)
	e.pump()
}

func (e *ProtocolEngine) handleDisconnect(err error) {
	Log.Infof("insteon: link disconnected: %v", err)
	if e.active != nil {
		entry := e.active
		e.active = nil
		entry.handler.OnDone(false, "link closed", nil)
	}
	for _, entry := range e.highQueue {
		entry.handler.OnDone(false, "link closed", nil)
	}
	for _, entry := range e.normQueue {
		entry.handler.OnDone(false, "link closed", nil)
	}
	e.highQueue = nil
	e.normQueue = nil
}

func (e *ProtocolEngine) shutdown() {
	if e.active != nil {
		e.active.handler.OnDone(false, "link closed", nil)
		e.active = nil
	}
	for _, entry := range e.highQueue {
		entry.handler.OnDone(false, "link closed", nil)
	}
	for _, entry := range e.normQueue {
		entry.handler.OnDone(false, "link closed", nil)
	}
	e.highQueue = nil
	e.normQueue = nil
}
