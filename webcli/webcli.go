// Package webcli implements the administrative command endpoint:
// pushing an "insteon-mqtt <config>" invocation's arguments onto a
// FIFO, running it, and streaming its combined stdout/stderr back
// line by line. It is a direct port of original_source's
// hassio/webcli/app.py (Flask-SocketIO), adapted to a single TCP
// listener speaking newline-delimited JSON since the corpus carries
// no HTTP/WebSocket framework dependency for the core binary to lean
// on (spec.md 4.11).
package webcli

import (
	"bufio"
	"encoding/json"
	"net"
	"os/exec"
	"strings"
	"sync"

	"github.com/krkeegan/insteon-mqtt"
)

// forbiddenPrefixes mirrors app.py's guardrails: a user-submitted
// command whose first token contains any of these is rejected rather
// than queued, since the binary path and config file are already
// prepended automatically and start/stop would fight the supervising
// process.
var forbiddenPrefixes = []string{"insteon-mqtt", "start", "stop", "config.yaml"}

// Event is one line of output pushed to a connected client, encoded
// as newline-delimited JSON.
type Event struct {
	Type string `json:"type"`
	Line string `json:"line"`
}

// request is one line of input read from a connected client.
type request struct {
	Type string   `json:"type"`
	Args []string `json:"args"`
}

// Worker owns the command FIFO and the subprocess currently running
// against it, the same role app.py's Worker class plays: pop a
// command, run it, stream its output, repeat.
type Worker struct {
	binary     string
	configPath string

	mu      sync.Mutex
	queue   [][]string
	running bool
	cancel  func()

	subMu       sync.Mutex
	subscribers map[chan Event]struct{}
}

// NewWorker builds a Worker that runs binary configPath <args...> for
// each queued command.
func NewWorker(binary, configPath string) *Worker {
	return &Worker{
		binary:      binary,
		configPath:  configPath,
		subscribers: make(map[chan Event]struct{}),
	}
}

// subscribe registers a per-connection event channel; every emitted
// Event is broadcast to all current subscribers, mirroring
// Flask-SocketIO's emit-to-all-clients behavior in app.py.
func (w *Worker) subscribe() chan Event {
	ch := make(chan Event, 64)
	w.subMu.Lock()
	w.subscribers[ch] = struct{}{}
	w.subMu.Unlock()
	return ch
}

func (w *Worker) unsubscribe(ch chan Event) {
	w.subMu.Lock()
	delete(w.subscribers, ch)
	w.subMu.Unlock()
}

// Push queues args for execution, applying the same guardrails as
// app.py's handle_message, and starts the drain loop if it isn't
// already running.
func (w *Worker) Push(args []string) {
	if len(args) == 0 {
		return
	}
	first := strings.ToLower(args[0])
	for _, bad := range forbiddenPrefixes {
		if strings.Contains(first, bad) {
			w.emit("error", "rejected command: "+strings.Join(args, " "))
			return
		}
	}

	w.mu.Lock()
	w.queue = append(w.queue, args)
	start := !w.running
	if start {
		w.running = true
	}
	w.mu.Unlock()

	if start {
		go w.drain()
	}
}

// Estop stops the drain loop and discards any queued commands,
// mirroring app.py's 'estop' socket event.
func (w *Worker) Estop() {
	w.mu.Lock()
	w.queue = nil
	w.running = false
	cancel := w.cancel
	w.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (w *Worker) drain() {
	for {
		w.mu.Lock()
		if len(w.queue) == 0 || !w.running {
			w.running = false
			w.mu.Unlock()
			return
		}
		args := w.queue[0]
		w.queue = w.queue[1:]
		w.mu.Unlock()

		w.runOne(args)
	}
}

func (w *Worker) runOne(args []string) {
	full := append([]string{w.configPath}, args...)
	w.emit("message", ">>> "+w.binary+" "+strings.Join(full, " "))

	cmd := exec.Command(w.binary, full...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		w.emit("error", err.Error())
		return
	}
	cmd.Stderr = cmd.Stdout

	w.mu.Lock()
	w.cancel = func() { _ = cmd.Process.Kill() }
	w.mu.Unlock()

	if err := cmd.Start(); err != nil {
		w.emit("error", err.Error())
		return
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		w.emit("message", scanner.Text())
	}
	if err := cmd.Wait(); err != nil {
		w.emit("error", err.Error())
	}
}

func (w *Worker) emit(typ, line string) {
	ev := Event{Type: typ, Line: line}
	w.subMu.Lock()
	defer w.subMu.Unlock()
	for ch := range w.subscribers {
		select {
		case ch <- ev:
		default:
			insteon.Log.Infof("webcli: subscriber channel full, dropping %q", line)
		}
	}
}

// Server listens for administrative connections, enforcing the
// allowlist app.py's before_request hook applied per-request
// (spec.md 9 Open Question: made configurable, default 172.30.32.2).
type Server struct {
	worker       *Worker
	allowedHosts map[string]bool
}

// NewServer builds a Server backed by worker, accepting connections
// only from allowedHosts.
func NewServer(worker *Worker, allowedHosts []string) *Server {
	allowed := make(map[string]bool, len(allowedHosts))
	for _, h := range allowedHosts {
		allowed[h] = true
	}
	return &Server{worker: worker, allowedHosts: allowed}
}

// Serve accepts connections on ln until it returns an error (e.g. the
// listener is closed).
func (s *Server) Serve(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go s.handle(conn)
	}
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()

	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err == nil && len(s.allowedHosts) > 0 && !s.allowedHosts[host] {
		insteon.Log.Infof("webcli: rejecting connection from %s", host)
		return
	}

	ch := s.worker.subscribe()
	defer s.worker.unsubscribe(ch)

	done := make(chan struct{})
	go s.writeEvents(conn, ch, done)
	defer close(done)

	dec := json.NewDecoder(conn)
	for {
		var req request
		if err := dec.Decode(&req); err != nil {
			return
		}
		switch req.Type {
		case "command":
			s.worker.Push(req.Args)
		case "estop":
			s.worker.Estop()
		}
	}
}

func (s *Server) writeEvents(conn net.Conn, ch <-chan Event, done <-chan struct{}) {
	enc := json.NewEncoder(conn)
	for {
		select {
		case ev := <-ch:
			if err := enc.Encode(ev); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
