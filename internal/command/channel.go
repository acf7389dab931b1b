// Package command maintains the websocket channel used to run backend
// management commands and stream their output.
package command

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"go-access-console/internal/event"
	"go-access-console/internal/model"
)

// ReconnectDelay is the fixed pause before a reconnect attempt. There is no
// backoff and no attempt cap; a future bounded policy changes this constant
// and the scheduling below.
const ReconnectDelay = time.Second

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateOpen         State = "open"
)

const (
	actionStart  = "start_command"
	actionCancel = "cancel_command"

	messageStdout   = "stdout"
	messageFinished = "finished"
)

// Request is an outgoing channel frame.
type Request struct {
	Action  string `json:"action"`
	Command string `json:"command,omitempty"`
}

// Response is an incoming channel frame.
type Response struct {
	Type       string `json:"type"`
	Message    string `json:"message,omitempty"`
	ReturnCode int    `json:"return_code,omitempty"`
}

// Options tune the channel; zero values pick the defaults.
type Options struct {
	Bus            event.Bus
	Logger         *slog.Logger
	Dialer         *websocket.Dialer
	ReconnectDelay time.Duration
}

// Channel is the auto-reconnecting command websocket. All exported methods
// are safe for concurrent use.
type Channel struct {
	url    string
	dialer *websocket.Dialer
	bus    event.Bus
	logger *slog.Logger
	delay  time.Duration

	mu        sync.Mutex
	conn      *websocket.Conn
	state     State
	reconnect *time.Timer
	closed    bool
	output    strings.Builder
}

func New(url string, opts Options) *Channel {
	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	delay := opts.ReconnectDelay
	if delay <= 0 {
		delay = ReconnectDelay
	}

	return &Channel{
		url:    url,
		dialer: dialer,
		bus:    opts.Bus,
		logger: logger,
		delay:  delay,
		state:  StateDisconnected,
	}
}

// Connect starts the connection loop. Safe to call once; reconnects happen
// on their own afterwards.
func (c *Channel) Connect() {
	go c.dial()
}

func (c *Channel) dial() {
	c.mu.Lock()
	if c.closed || c.conn != nil {
		c.mu.Unlock()
		return
	}
	c.setStateLocked(StateConnecting)
	c.mu.Unlock()

	conn, resp, err := c.dialer.Dial(c.url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		c.logger.Debug("command channel dial failed", "error", err)
		c.dropAndSchedule()
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return
	}
	c.conn = conn
	c.setStateLocked(StateOpen)
	c.mu.Unlock()

	go c.readLoop(conn)
}

func (c *Channel) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.logger.Debug("command channel closed", "error", err)
			break
		}
		c.handle(data)
	}

	_ = conn.Close()
	c.dropAndSchedule()
}

// dropAndSchedule records the disconnect and arms the reconnect timer. Both
// the dial-failure path and the read-loop exit land here; the nil check on
// the timer keeps a burst of failures down to one pending attempt.
func (c *Channel) dropAndSchedule() {
	c.mu.Lock()
	c.conn = nil
	c.setStateLocked(StateDisconnected)

	if c.closed || c.reconnect != nil {
		c.mu.Unlock()
		return
	}

	c.reconnect = time.AfterFunc(c.delay, func() {
		c.mu.Lock()
		c.reconnect = nil
		closed := c.closed
		c.mu.Unlock()

		if !closed {
			c.dial()
		}
	})
	c.mu.Unlock()
}

func (c *Channel) handle(data []byte) {
	var msg Response
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.Warn("undecodable channel frame", "error", err)
		return
	}

	switch msg.Type {
	case messageStdout:
		c.append(msg.Message)
	case messageFinished:
		c.append(terminatorLine(msg.ReturnCode))
	default:
		c.logger.Warn("unknown channel frame", "type", msg.Type)
	}
}

func (c *Channel) append(chunk string) {
	c.mu.Lock()
	c.output.WriteString(chunk)
	c.mu.Unlock()

	if c.bus != nil {
		c.bus.Publish(event.Event{Type: event.TypeCommandOutput, Payload: chunk})
	}
}

// Start submits a command. A successful submission begins a fresh output
// buffer; while the channel is not open the request is rejected locally and
// nothing is sent.
func (c *Channel) Start(commandLine string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateOpen || c.conn == nil {
		return model.ErrNotConnected
	}

	if err := c.conn.WriteJSON(Request{Action: actionStart, Command: commandLine}); err != nil {
		return err
	}

	c.output.Reset()
	return nil
}

// Cancel asks the backend to stop the running command. Advisory only: the
// channel stays open and keeps accumulating whatever the backend still
// streams.
func (c *Channel) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateOpen || c.conn == nil {
		return model.ErrNotConnected
	}

	return c.conn.WriteJSON(Request{Action: actionCancel})
}

// Output returns the accumulated command output.
func (c *Channel) Output() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.output.String()
}

// ResetOutput clears the accumulated output without touching the connection.
func (c *Channel) ResetOutput() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.output.Reset()
}

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Close shuts the channel down for good; no further reconnects happen.
func (c *Channel) Close() {
	c.mu.Lock()
	c.closed = true
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
	conn := c.conn
	c.conn = nil
	c.setStateLocked(StateDisconnected)
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
}

func (c *Channel) setStateLocked(next State) {
	if c.state == next {
		return
	}

	c.state = next
	if c.bus != nil {
		// Publish outside the lock is not needed; the bus never blocks.
		c.bus.Publish(event.Event{Type: event.TypeChannelState, Payload: next})
	}
}

func terminatorLine(code int) string {
	return fmt.Sprintf("\n=== Process finished with code %d ===\n", code)
}
