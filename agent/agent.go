package agent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"gamefeed-service/logger"
	"gamefeed-service/models"
)

// State is the agent's connection lifecycle state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
)

const (
	// DefaultBackoffBase is the first reconnect delay.
	DefaultBackoffBase = 1 * time.Second

	// DefaultBackoffCeiling caps the reconnect delay.
	DefaultBackoffCeiling = 20 * time.Second
)

// Callbacks are the collaborator hooks. Nil callbacks are skipped.
// Handlers run one message at a time on the transport's read loop, so
// collaborators never see concurrent calls.
type Callbacks struct {
	OnWorkerUpsert func(Worker)
	OnWorkerRemove func(workerID string)
	OnEvent        func(models.Event)
	OnStats        func(Stats)
	OnStatus       func(line string)
	OnError        func(err error)
}

// Agent owns one logical connection to the stream server. It
// normalizes inbound messages and reconnects with exponential backoff
// so collaborators never see raw transport failures.
type Agent struct {
	factory    TransportFactory
	callbacks  Callbacks
	commandURL string
	httpClient *http.Client

	base    time.Duration
	ceiling time.Duration

	mu        sync.Mutex
	state     State
	running   bool
	retries   int
	transport Transport
	timer     *time.Timer
}

// New builds an agent around a transport factory. commandURL may be
// empty when the collaborator never sends commands.
func New(factory TransportFactory, commandURL string, callbacks Callbacks) *Agent {
	return &Agent{
		factory:    factory,
		callbacks:  callbacks,
		commandURL: commandURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		base:       DefaultBackoffBase,
		ceiling:    DefaultBackoffCeiling,
		state:      StateDisconnected,
	}
}

// SetBackoff overrides the reconnect delays. Call before Connect.
func (a *Agent) SetBackoff(base, ceiling time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.base = base
	a.ceiling = ceiling
}

// State returns the current lifecycle state.
func (a *Agent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Connect starts the agent. Idempotent: a no-op while already running.
func (a *Agent) Connect() {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return
	}
	a.running = true
	a.retries = 0
	a.state = StateConnecting
	a.mu.Unlock()

	a.status("connecting to stream...")
	go a.open()
}

// Disconnect stops the agent. Idempotent and safe from any state,
// including mid-backoff: any pending timer is cleared and any open
// transport closed, so nothing fires afterward.
func (a *Agent) Disconnect() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.running = false
	a.state = StateDisconnected
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	transport := a.transport
	a.transport = nil
	a.mu.Unlock()

	if transport != nil {
		transport.Close()
	}
	a.status("disconnected")
}

// open performs one connection attempt. Any previous transport is
// closed first so at most one is ever live.
func (a *Agent) open() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	if a.transport != nil {
		a.transport.Close()
		a.transport = nil
	}
	transport := a.factory()
	a.transport = transport
	a.mu.Unlock()

	err := transport.Open(a.handleMessage, a.handleClose)
	if err != nil {
		a.reportError(fmt.Errorf("connection failed: %w", err))
		a.scheduleReconnect()
		return
	}

	a.mu.Lock()
	if !a.running {
		// Disconnected while the dial was in flight.
		a.transport = nil
		a.mu.Unlock()
		transport.Close()
		return
	}
	a.state = StateConnected
	a.retries = 0
	a.mu.Unlock()

	a.status("connected to stream")
}

// handleClose fires when the transport dies. A nil error means a local
// close; anything else schedules a reconnect.
func (a *Agent) handleClose(err error) {
	a.mu.Lock()
	running := a.running
	a.mu.Unlock()

	if !running {
		return
	}
	if err != nil {
		a.status(fmt.Sprintf("stream lost: %v", err))
	} else {
		a.status("stream closed by server")
	}
	a.scheduleReconnect()
}

// scheduleReconnect arms the backoff timer. Any pending timer is
// cleared first so at most one is ever armed.
func (a *Agent) scheduleReconnect() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.state = StateReconnecting

	delay := backoffDelay(a.base, a.ceiling, a.retries)
	a.retries++

	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(delay, func() {
		a.mu.Lock()
		if !a.running {
			a.mu.Unlock()
			return
		}
		a.state = StateConnecting
		a.timer = nil
		a.mu.Unlock()
		a.open()
	})
	a.mu.Unlock()

	a.status(fmt.Sprintf("reconnecting in %v", delay))
}

// backoffDelay is min(ceiling, base * 2^retries).
func backoffDelay(base, ceiling time.Duration, retries int) time.Duration {
	delay := base
	for i := 0; i < retries; i++ {
		delay *= 2
		if delay >= ceiling {
			return ceiling
		}
	}
	if delay > ceiling {
		return ceiling
	}
	return delay
}

// inboundMessage is the envelope both transports deliver.
type inboundMessage struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// handleMessage parses and dispatches one inbound message. Malformed
// payloads are reported locally and otherwise ignored; the stream
// stays up.
func (a *Agent) handleMessage(raw []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		a.reportError(fmt.Errorf("malformed message: %w", err))
		return
	}

	switch msg.Kind {
	case "worker_upsert":
		worker, err := normalizeWorker(msg.Data)
		if err != nil {
			a.reportError(err)
			return
		}
		if a.callbacks.OnWorkerUpsert != nil {
			a.callbacks.OnWorkerUpsert(worker)
		}

	case "worker_remove":
		id, err := normalizeWorkerRemoval(msg.Data)
		if err != nil {
			a.reportError(err)
			return
		}
		if a.callbacks.OnWorkerRemove != nil {
			a.callbacks.OnWorkerRemove(id)
		}

	case "stats":
		if a.callbacks.OnStats != nil {
			a.callbacks.OnStats(normalizeStats(msg.Data))
		}

	case "status":
		a.status(normalizeStatusLine(msg.Data))

	case "event":
		a.dispatchEvent(msg.Data)

	default:
		// Server-push frames carry the event kind directly.
		if isEventKind(msg.Kind) {
			a.dispatchEvent(msg.Data)
			return
		}
		a.reportError(fmt.Errorf("unknown message kind %q", msg.Kind))
	}
}

func (a *Agent) dispatchEvent(data json.RawMessage) {
	event, err := normalizeEvent(data)
	if err != nil {
		a.reportError(err)
		return
	}
	if a.callbacks.OnEvent != nil {
		a.callbacks.OnEvent(event)
	}
}

// SendCommand issues the best-effort assignment request. Failures are
// reported as local errors; the command is never retried.
func (a *Agent) SendCommand(workerIDs []string, targetID string) {
	if a.commandURL == "" {
		a.reportError(fmt.Errorf("no command endpoint configured"))
		return
	}

	body, err := json.Marshal(map[string]interface{}{
		"action":    "assign",
		"workerIds": workerIDs,
		"targetId":  targetID,
	})
	if err != nil {
		a.reportError(fmt.Errorf("failed to encode command: %w", err))
		return
	}

	resp, err := a.httpClient.Post(a.commandURL, "application/json", bytes.NewReader(body))
	if err != nil {
		a.reportError(fmt.Errorf("command failed: %w", err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		a.reportError(fmt.Errorf("command rejected with status %d", resp.StatusCode))
	}
}

func (a *Agent) status(line string) {
	logger.Printf("[Agent] %s", line)
	if a.callbacks.OnStatus != nil {
		a.callbacks.OnStatus(line)
	}
}

func (a *Agent) reportError(err error) {
	logger.Errorf("[Agent] %v", err)
	if a.callbacks.OnError != nil {
		a.callbacks.OnError(err)
	}
}
