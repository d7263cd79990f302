package http

import (
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/lexmartem/uznai/internal/app"
	"github.com/lexmartem/uznai/internal/domain"
)

// Frame types spoken on the collaboration socket. A single connection
// multiplexes any number of quiz rooms.
const (
	FrameJoin   = "join"
	FrameLeave  = "leave"
	FrameChange = "change"
	FrameUsers  = "users"
	FrameError  = "error"
)

// WSFrame is the wire format of the collaboration hub. Inbound frames carry
// join/leave/change; outbound frames carry change/users/error.
type WSFrame struct {
	Type   string             `json:"type"`
	QuizID string             `json:"quizId,omitempty"`
	Change *domain.QuizChange `json:"change,omitempty"`
	Users  []string           `json:"users,omitempty"`
	Error  string             `json:"error,omitempty"`
}

type WSHandler struct {
	collab   *app.CollabService
	upgrader websocket.Upgrader
}

func NewWSHandler(collab *app.CollabService) *WSHandler {
	return &WSHandler{
		collab: collab,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type roomSub struct {
	cancel func()
}

// ServeWS upgrades the request and wires the connection into quiz rooms. Each
// join frame adds an independent room subscription; the matching leave frame
// (or the connection closing) removes it and publishes the leave signal.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if username == "" {
		http.Error(w, "missing username", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	send := make(chan WSFrame, 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	var forwarders sync.WaitGroup

	go func() {
		defer close(writerDone)
		for frame := range send {
			if err := conn.WriteJSON(frame); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	trySend := func(frame WSFrame) {
		select {
		case send <- frame:
		case <-closeSignals:
		}
	}

	subs := make(map[string][]roomSub)

	joinRoom := func(quizID string) {
		users, err := h.collab.Join(ctx, quizID, username)
		if err != nil {
			trySend(WSFrame{Type: FrameError, QuizID: quizID, Error: err.Error()})
			return
		}
		events, cancel, err := h.collab.Subscribe(ctx, quizID)
		if err != nil {
			h.collab.Leave(ctx, quizID, username)
			trySend(WSFrame{Type: FrameError, QuizID: quizID, Error: err.Error()})
			return
		}
		subs[quizID] = append(subs[quizID], roomSub{cancel: cancel})

		forwarders.Add(1)
		go func() {
			defer forwarders.Done()
			for {
				select {
				case event, ok := <-events:
					if !ok {
						return
					}
					trySend(frameFor(quizID, event))
				case <-closeSignals:
					return
				}
			}
		}()

		// Presence snapshot for the joining client; the broadcast that Join
		// triggered went out before this subscription existed.
		trySend(WSFrame{Type: FrameUsers, QuizID: quizID, Users: users})
	}

	leaveRoom := func(quizID string) {
		list := subs[quizID]
		if len(list) == 0 {
			return
		}
		sub := list[len(list)-1]
		subs[quizID] = list[:len(list)-1]
		sub.cancel()
		h.collab.Leave(ctx, quizID, username)
	}

	for {
		var frame WSFrame
		if err := conn.ReadJSON(&frame); err != nil {
			break
		}
		switch frame.Type {
		case FrameJoin:
			joinRoom(frame.QuizID)
		case FrameLeave:
			leaveRoom(frame.QuizID)
		case FrameChange:
			if frame.Change == nil {
				trySend(WSFrame{Type: FrameError, QuizID: frame.QuizID, Error: "missing change payload"})
				continue
			}
			if _, err := h.collab.ProcessChange(ctx, frame.QuizID, username, *frame.Change); err != nil {
				// Version conflicts come back to the sender only; the room
				// never sees the rejected change.
				trySend(WSFrame{Type: FrameError, QuizID: frame.QuizID, Error: err.Error()})
			}
		default:
			trySend(WSFrame{Type: FrameError, Error: "unsupported frame type"})
		}
	}

	for quizID, list := range subs {
		for _, sub := range list {
			sub.cancel()
			h.collab.Leave(ctx, quizID, username)
		}
	}
	close(closeSignals)
	forwarders.Wait()
	close(send)
	<-writerDone
}

func frameFor(quizID string, event app.RoomEvent) WSFrame {
	switch event.Type {
	case app.RoomEventUsers:
		return WSFrame{Type: FrameUsers, QuizID: quizID, Users: event.Users}
	default:
		return WSFrame{Type: FrameChange, QuizID: quizID, Change: event.Change}
	}
}
