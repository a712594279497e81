package insteon

import "time"

// DoneFunc is the terminal callback signature every Handler and
// CommandSequence eventually invokes exactly once.
type DoneFunc func(success bool, status string, payload interface{})

// baseHandler supplies the Timeout/Retries/OnDone plumbing shared by
// every concrete Handler, including the guard against a handler's
// on_done firing twice (spec.md 4.5's "violations are logged and
// ignored", applied here to Handler as well as CommandSequence).
type baseHandler struct {
	timeout   time.Duration
	retries   int
	done      DoneFunc
	doneFired bool
}

func (b *baseHandler) Timeout() time.Duration {
	if b.timeout <= 0 {
		return DefaultTimeout
	}
	return b.timeout
}

func (b *baseHandler) Retries() int {
	if b.retries <= 0 {
		return DefaultRetries
	}
	return b.retries
}

func (b *baseHandler) OnTimeout() TimeoutResult {
	return TimeoutRetry
}

func (b *baseHandler) OnDone(success bool, status string, payload interface{}) {
	if b.doneFired {
		Log.Errorf("insteon: %v, ignoring duplicate on_done(%v, %q)", ErrDuplicateCompletion, success, status)
		return
	}
	b.doneFired = true
	if b.done != nil {
		b.done(success, status, payload)
	}
}

// StandardCmd matches a single direct ACK from the target address
// with a matching cmd1 (spec.md 4.4). NAK handling is centralized in
// the ProtocolEngine (spec.md 7).
type StandardCmd struct {
	baseHandler
	Addr Address
	Cmd  Command
}

// NewStandardCmd builds a StandardCmd handler for a message already
// addressed to addr carrying cmd.
func NewStandardCmd(addr Address, cmd Command, done DoneFunc) *StandardCmd {
	return &StandardCmd{Addr: addr, Cmd: cmd, baseHandler: baseHandler{done: done}}
}

func (h *StandardCmd) MsgReceived(msg *Message) HandlerResult {
	if msg.Src == h.Addr && msg.MatchesCommand(h.Cmd) && msg.Ack() {
		return ResultFinished
	}
	return ResultUnknown
}

// LocalCmd finalizes as soon as the engine's write to the PLM link
// succeeds rather than waiting for an inbound Message: a PLM-local
// all-link trigger (Message.Local) completes with the modem's own ACK
// of the send, which plm.PLM.Write already waits for synchronously, so
// no device ever echoes a matching InpStandard back (spec.md 4.7's
// scene trigger path).
type LocalCmd struct {
	baseHandler
}

// NewLocalCmd builds a LocalCmd handler for a Message.Local send.
func NewLocalCmd(done DoneFunc) *LocalCmd {
	return &LocalCmd{baseHandler: baseHandler{done: done}}
}

func (h *LocalCmd) MsgReceived(msg *Message) HandlerResult {
	return ResultUnknown
}

// ExtendedCmdResponse first matches the direct ACK of the outbound
// extended command (cmd1 match), then waits for the subsequent
// InpExtended from the target whose cmd1 equals respCmd (spec.md
// 4.4's two-stage extended response handler, e.g. 0x2e).
type ExtendedCmdResponse struct {
	baseHandler
	Addr       Address
	Cmd        Command
	RespCmd    Command
	ackSeen    bool
	lastAckMsg *Message
}

// NewExtendedCmdResponse builds the handler for an outbound extended
// command cmd whose eventual data reply carries respCmd in cmd1.
func NewExtendedCmdResponse(addr Address, cmd, respCmd Command, done DoneFunc) *ExtendedCmdResponse {
	return &ExtendedCmdResponse{Addr: addr, Cmd: cmd, RespCmd: respCmd, baseHandler: baseHandler{done: done}}
}

func (h *ExtendedCmdResponse) MsgReceived(msg *Message) HandlerResult {
	if !h.ackSeen {
		if msg.Src == h.Addr && msg.MatchesCommand(h.Cmd) && msg.Ack() {
			h.ackSeen = true
			h.lastAckMsg = msg
			return ResultContinue
		}
		return ResultUnknown
	}

	if msg.Src == h.Addr && msg.Flags.IsExtended() && msg.Command[0] == h.RespCmd[0] {
		return ResultFinished
	}
	return ResultUnknown
}

// DeviceRefresh issues 0x19 0x01; on ACK, cmd2 carries current state
// and the hop-stripped flags byte carries the device's all-link
// database delta (spec.md 4.4). The done callback receives a
// *DeviceRefreshResult carrying the state byte (cmd2), the delta, and
// Stale, which reports whether the delta differs from the local
// database -- the caller chains into DeviceDbGet when Stale is true.
type DeviceRefresh struct {
	baseHandler
	Addr      Address
	LocalDb   *DeviceDatabase
	stateByte byte
	delta     byte
}

// NewDeviceRefresh builds a DeviceRefresh handler. done receives
// (success, status, *DeviceRefreshResult).
func NewDeviceRefresh(addr Address, db *DeviceDatabase, done DoneFunc) *DeviceRefresh {
	return &DeviceRefresh{Addr: addr, LocalDb: db, baseHandler: baseHandler{done: done}}
}

// DeviceRefreshResult is the payload delivered to DeviceRefresh's
// done callback.
type DeviceRefreshResult struct {
	State byte
	Delta byte
	Stale bool
}

func (h *DeviceRefresh) MsgReceived(msg *Message) HandlerResult {
	if msg.Src != h.Addr || !msg.MatchesCommand(CmdLightStatusReq01) || !msg.Ack() {
		return ResultUnknown
	}
	h.stateByte = msg.Command[1]
	h.delta = byte(msg.Flags.StripHops())

	h.OnDone(true, "ok", &DeviceRefreshResult{
		State: h.stateByte,
		Delta: h.delta,
		Stale: h.LocalDb == nil || !h.LocalDb.DeltaMatches(h.delta),
	})
	return ResultFinished
}

// RefreshRequest builds the outbound 0x19 0x01 status request message
// for addr.
func RefreshRequest(addr Address) *Message {
	return &Message{Dst: addr, Flags: StandardDirectMessage, Command: CmdLightStatusReq01}
}

// DeviceDbGetStep drives a single find-first/find-next exchange of an
// iterative all-link database download (spec.md 4.4). Each step
// requests one record; the caller (DeviceDatabase.Refresh) chains
// steps by re-invoking with the next memory address until a record
// comes back unused-and-last, or the empty-record limit is hit.
type DeviceDbGetStep struct {
	baseHandler
	Addr Address
}

// NewDeviceDbGetStep builds a single ext-message all-link-record-read
// step handler. done receives (success, status, *LinkRecord).
func NewDeviceDbGetStep(addr Address, done DoneFunc) *DeviceDbGetStep {
	return &DeviceDbGetStep{Addr: addr, baseHandler: baseHandler{done: done}}
}

func (h *DeviceDbGetStep) MsgReceived(msg *Message) HandlerResult {
	if msg.Src != h.Addr || !msg.Flags.IsExtended() || msg.Command[0] != CmdAllLinkRecResp[0] {
		return ResultUnknown
	}
	rec := &LinkRecord{}
	if len(msg.Payload) >= 13 {
		_ = rec.UnmarshalBinary(msg.Payload[5:13])
		rec.MemAddress = MemAddress(msg.Payload[2])<<8 | MemAddress(msg.Payload[3])
	}
	h.OnDone(true, "ok", rec)
	return ResultFinished
}

// DbReadRequest builds the extended all-link-record-read request for
// a single memory address.
func DbReadRequest(addr Address, mem MemAddress) *Message {
	payload := make([]byte, 14)
	payload[1] = 0x00 // read one record
	payload[2] = byte(mem >> 8)
	payload[3] = byte(mem)
	payload[4] = 0x01 // read one record
	return &Message{Dst: addr, Flags: ExtendedDirectMessage, Command: CmdReadWriteALDB, Payload: payload}
}
