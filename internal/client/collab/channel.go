package collab

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/lexmartem/uznai/internal/domain"
)

// ErrNotConnected is returned when a room operation is attempted before
// Connect succeeded (or after Disconnect). Callers treat this as the degraded,
// non-collaborative mode: local editing still works, nothing is broadcast.
var ErrNotConnected = errors.New("collaboration channel not connected")

// EventType distinguishes the two streams a room subscription carries.
type EventType string

const (
	// EventChange is a document change broadcast, delivered as received.
	EventChange EventType = "CHANGE"
	// EventUsersUpdate is a synthesized wholesale replacement of the room's
	// presence set.
	EventUsersUpdate EventType = "USERS_UPDATE"
)

// Event is delivered on a room subscription channel.
type Event struct {
	Type   EventType
	Change *domain.QuizChange
	Users  []string
}

// wsFrame mirrors the hub's wire format.
type wsFrame struct {
	Type   string             `json:"type"`
	QuizID string             `json:"quizId,omitempty"`
	Change *domain.QuizChange `json:"change,omitempty"`
	Users  []string           `json:"users,omitempty"`
	Error  string             `json:"error,omitempty"`
}

// Channel is one client's connection to the collaboration hub. A single
// connection multiplexes any number of quiz rooms. It is constructed
// explicitly and injected where needed; there is no package-level singleton.
type Channel struct {
	url    string
	dialer *websocket.Dialer

	mu         sync.Mutex
	conn       *websocket.Conn
	subs       map[string]map[chan Event]struct{}
	readerDone chan struct{}

	writeMu sync.Mutex
}

// NewChannel builds a channel that will dial url (for example
// "ws://host:8080/ws?username=alice") on Connect.
func NewChannel(url string) *Channel {
	return &Channel{
		url:    url,
		dialer: websocket.DefaultDialer,
		subs:   make(map[string]map[chan Event]struct{}),
	}
}

// Connect establishes the hub connection and starts delivering room events.
// Calling Connect on an already connected channel is a no-op.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return nil
	}
	conn, resp, err := c.dialer.DialContext(ctx, c.url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("connect collaboration hub: %w", err)
	}
	c.conn = conn
	c.readerDone = make(chan struct{})
	go c.readLoop(conn, c.readerDone)
	return nil
}

// Disconnect tears the connection down. Outstanding subscriptions become
// inert: their channels stop receiving and later sends fail with
// ErrNotConnected until Connect is called again.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	done := c.readerDone
	c.conn = nil
	c.mu.Unlock()
	if conn == nil {
		return
	}
	_ = conn.Close()
	<-done
}

// Connected reports whether the hub connection is up.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Subscribe joins the quiz room and returns a channel carrying its change and
// presence events, plus a cancel function that leaves the room. Subscribing
// twice to the same quiz creates two independent listeners; cancel is safe to
// call more than once.
func (c *Channel) Subscribe(quizID string) (<-chan Event, func(), error) {
	c.mu.Lock()
	if c.conn == nil {
		c.mu.Unlock()
		return nil, nil, ErrNotConnected
	}
	ch := make(chan Event, 8)
	set, ok := c.subs[quizID]
	if !ok {
		set = make(map[chan Event]struct{})
		c.subs[quizID] = set
	}
	set[ch] = struct{}{}
	c.mu.Unlock()

	if err := c.writeFrame(wsFrame{Type: "join", QuizID: quizID}); err != nil {
		c.removeSub(quizID, ch)
		return nil, nil, err
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.removeSub(quizID, ch)
			// Leave is best effort: after Disconnect there is nothing to tell.
			_ = c.writeFrame(wsFrame{Type: "leave", QuizID: quizID})
		})
	}
	return ch, cancel, nil
}

// SendChange publishes a change to the quiz room. Fire-and-forget: delivery,
// ordering, and conflict rejection are the hub's responsibility; a rejected
// change comes back to the room as an error event, never as a return value.
func (c *Channel) SendChange(quizID string, change domain.QuizChange) error {
	return c.writeFrame(wsFrame{Type: "change", QuizID: quizID, Change: &change})
}

func (c *Channel) writeFrame(frame wsFrame) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteJSON(frame); err != nil {
		return fmt.Errorf("publish to hub: %w", err)
	}
	return nil
}

func (c *Channel) removeSub(quizID string, ch chan Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	set, ok := c.subs[quizID]
	if !ok {
		return
	}
	if _, ok := set[ch]; !ok {
		return
	}
	delete(set, ch)
	close(ch)
	if len(set) == 0 {
		delete(c.subs, quizID)
	}
}

func (c *Channel) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		var frame wsFrame
		if err := conn.ReadJSON(&frame); err != nil {
			c.mu.Lock()
			if c.conn == conn {
				c.conn = nil
			}
			c.mu.Unlock()
			return
		}
		c.dispatch(frame)
	}
}

func (c *Channel) dispatch(frame wsFrame) {
	var event Event
	switch frame.Type {
	case "users":
		event = Event{Type: EventUsersUpdate, Users: frame.Users}
	case "change":
		if frame.Change == nil {
			return
		}
		event = Event{Type: EventChange, Change: frame.Change}
	default:
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for ch := range c.subs[frame.QuizID] {
		select {
		case ch <- event:
		default:
			// Drop the oldest pending event so a slow consumer cannot block
			// delivery to the rest of the room.
			select {
			case <-ch:
			default:
			}
			ch <- event
		}
	}
}
