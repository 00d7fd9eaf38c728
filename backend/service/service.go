package service

import (
	"context"
	"errors"
	"sync"

	"github.com/adwski/watch-together/backend/model"
	"github.com/rs/zerolog"
)

var (
	ErrSessionExists   = errors.New("session already exists")
	ErrSessionNotFound = errors.New("session is not found")
)

type (
	// RoomStore is the membership table plus the playback state table.
	RoomStore interface {
		Join(roomID, connID, username string) []model.Member
		Leave(roomID, connID string) (remaining []model.Member, empty bool)
		Apply(roomID string, act model.Action) bool
		State(roomID string) (model.PlaybackState, bool)
		GetRoom(roomID string) (model.RoomInfo, error)
		Rooms() []model.RoomInfo
	}

	// Switch is the room-scoped wire fabric.
	Switch interface {
		Join(roomID, connID string, wire model.Wire)
		Leave(roomID, connID string)
		Broadcast(ctx context.Context, ev model.Event, roomID string)
		Unicast(ctx context.Context, ev model.Event, roomID, connID string)
	}

	// Observer gets notified about relay activity. Implemented by the
	// metrics package; a no-op is used when none is configured.
	Observer interface {
		ConnOpened()
		ConnClosed()
		EventRelayed(event string)
	}

	// session is one live connection as the relay sees it: its wire plus
	// the room and username recorded by the last join.
	session struct {
		wire     model.Wire
		room     string
		username string
	}

	// Service is the relay engine. It owns the connection registry and
	// coordinates the store and the switch: joins update membership and
	// trigger state replay, actions mutate playback state and fan out to
	// the rest of the room, disconnects clean up and GC empty rooms.
	Service struct {
		logger   zerolog.Logger
		store    RoomStore
		sw       Switch
		observer Observer

		// mx serializes the protocol handlers. Each join, action and
		// disconnect holds it for its whole state mutation plus fan-out,
		// so handlers stay atomic with respect to each other and
		// broadcasts leave in apply order.
		mx       *sync.Mutex
		sessions map[string]*session
	}

	Config struct {
		RoomStore RoomStore
		Switch    Switch
		Observer  Observer
		Logger    *zerolog.Logger
	}
)

type nopObserver struct{}

func (nopObserver) ConnOpened()         {}
func (nopObserver) ConnClosed()         {}
func (nopObserver) EventRelayed(string) {}

func NewService(cfg Config) *Service {
	obs := cfg.Observer
	if obs == nil {
		obs = nopObserver{}
	}
	return &Service{
		logger:   cfg.Logger.With().Str("component", "relay").Logger(),
		store:    cfg.RoomStore,
		sw:       cfg.Switch,
		observer: obs,
		mx:       &sync.Mutex{},
		sessions: make(map[string]*session),
	}
}

// CreateSession registers a fresh connection and starts consuming its
// inbound events. The connection belongs to no room until it joins one.
func (svc *Service) CreateSession(ctx context.Context, connID string, wire model.Wire) error {
	svc.mx.Lock()
	if _, ok := svc.sessions[connID]; ok {
		svc.mx.Unlock()
		return ErrSessionExists
	}
	svc.sessions[connID] = &session{wire: wire}
	svc.mx.Unlock()

	svc.observer.ConnOpened()
	svc.logger.Debug().Str("connID", connID).Msg("session created")

	go svc.dispatch(ctx, connID, wire.RX)
	return nil
}

// DeleteSession runs the disconnect protocol: the connection leaves its
// room (membership update broadcast, empty-room GC) and is forgotten.
// A connection that never joined a room is simply dropped.
func (svc *Service) DeleteSession(ctx context.Context, connID string) error {
	svc.mx.Lock()
	sess, ok := svc.sessions[connID]
	if !ok {
		svc.mx.Unlock()
		return ErrSessionNotFound
	}
	delete(svc.sessions, connID)
	if sess.room != "" {
		svc.leaveRoom(ctx, connID, sess.room, sess.username)
	}
	svc.mx.Unlock()

	svc.observer.ConnClosed()
	svc.logger.Debug().Str("connID", connID).Msg("session deleted")
	return nil
}

// ConnectionCount reports live sessions, joined to a room or not.
func (svc *Service) ConnectionCount() int {
	svc.mx.Lock()
	defer svc.mx.Unlock()
	return len(svc.sessions)
}

func (svc *Service) GetRoom(roomID string) (model.RoomInfo, error) {
	return svc.store.GetRoom(roomID)
}

func (svc *Service) Rooms() []model.RoomInfo {
	return svc.store.Rooms()
}

// dispatch consumes one connection's inbound events until its context ends.
// Handlers run to completion one at a time per connection.
func (svc *Service) dispatch(ctx context.Context, connID string, rx <-chan model.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-rx:
			switch ev.Event {
			case model.EventJoinRoom:
				svc.handleJoin(ctx, connID, ev)
			case model.EventAction:
				svc.handleAction(ctx, connID, ev)
			default:
				svc.logger.Warn().
					Str("connID", connID).
					Str("event", ev.Event).
					Msg("unknown event, dropped")
			}
		}
	}
}

// handleJoin implements the join protocol: record the room and username on
// the session, put the member into the room (replacing a stale entry with
// the same connection id), replay current playback state to the joiner only,
// then announce the updated member list to the whole room.
func (svc *Service) handleJoin(ctx context.Context, connID string, ev model.Event) {
	svc.mx.Lock()
	defer svc.mx.Unlock()

	// a disconnect that won the lock already cleaned up, nothing to join
	sess, ok := svc.sessions[connID]
	if !ok {
		return
	}
	prevRoom, prevUser := sess.room, sess.username
	sess.room, sess.username = ev.Room, ev.Username

	// joining another room moves the connection out of the old one first
	if prevRoom != "" && prevRoom != ev.Room {
		svc.leaveRoom(ctx, connID, prevRoom, prevUser)
	}

	users := svc.store.Join(ev.Room, connID, ev.Username)
	svc.sw.Join(ev.Room, connID, sess.wire)

	svc.logger.Debug().
		Str("username", ev.Username).
		Str("roomID", ev.Room).
		Msg("user joined room")

	if st, ok := svc.store.State(ev.Room); ok && st.URL != "" {
		for _, replayEv := range st.Replay() {
			svc.sw.Unicast(ctx, replayEv, ev.Room, connID)
		}
	}

	svc.observer.EventRelayed(model.EventUserJoined)
	svc.sw.Broadcast(ctx, model.Event{
		Event:    model.EventUserJoined,
		Username: ev.Username,
		Users:    users,
	}, ev.Room)
}

// handleAction implements the action protocol: apply the action to the
// room's playback state (created lazily) and relay it verbatim to everyone
// else in the room. Unknown or malformed actions change nothing and are
// not relayed.
func (svc *Service) handleAction(ctx context.Context, connID string, ev model.Event) {
	if ev.Room == "" || ev.Action == nil {
		svc.logger.Warn().
			Str("connID", connID).
			Msg("malformed action event, dropped")
		return
	}

	svc.mx.Lock()
	defer svc.mx.Unlock()

	if _, ok := svc.sessions[connID]; !ok {
		return
	}
	if !svc.store.Apply(ev.Room, *ev.Action) {
		svc.logger.Warn().
			Str("connID", connID).
			Str("type", ev.Action.Type).
			Msg("unknown action type, dropped")
		return
	}

	svc.logger.Debug().
		Str("username", ev.Username).
		Str("roomID", ev.Room).
		Str("type", ev.Action.Type).
		Msg("action applied")

	ev.SRC = connID
	svc.observer.EventRelayed(model.EventAction)
	svc.sw.Broadcast(ctx, ev, ev.Room)
}

// leaveRoom detaches the connection from a room, announces the departure to
// the remaining members and lets the store GC the room when it empties.
// Caller holds svc.mx.
func (svc *Service) leaveRoom(ctx context.Context, connID, roomID, username string) {
	svc.sw.Leave(roomID, connID)
	remaining, empty := svc.store.Leave(roomID, connID)

	svc.logger.Debug().
		Str("username", username).
		Str("roomID", roomID).
		Msg("user left room")

	if empty {
		svc.logger.Debug().Str("roomID", roomID).Msg("room is empty, state cleared")
		return
	}

	svc.observer.EventRelayed(model.EventUserLeft)
	svc.sw.Broadcast(ctx, model.Event{
		Event:    model.EventUserLeft,
		Username: username,
		Users:    remaining,
	}, roomID)
}
