package _switch

import (
	"context"
	"sync"
	"time"

	"github.com/adwski/watch-together/backend/model"
	"github.com/rs/zerolog"
)

const (
	defaultFwdTimout = time.Second
)

// Switch routes events to the wires of a room's connections.
// It knows nothing about playback semantics, only room -> connection -> wire.
type Switch struct {
	logger zerolog.Logger
	mx     *sync.RWMutex
	fwd    map[string]map[string]model.Wire
}

func NewSwitch(logger *zerolog.Logger) *Switch {
	return &Switch{
		logger: logger.With().Str("component", "switch").Logger(),
		mx:     &sync.RWMutex{},
		fwd:    make(map[string]map[string]model.Wire),
	}
}

func (sw *Switch) Join(roomID, connID string, wire model.Wire) {
	sw.mx.Lock()
	defer func() {
		sw.mx.Unlock()
		sw.logger.Debug().
			Str("roomID", roomID).
			Str("connID", connID).
			Msg("connection attached to room")
	}()

	room, ok := sw.fwd[roomID]
	if !ok {
		room = make(map[string]model.Wire)
	}
	room[connID] = wire
	sw.fwd[roomID] = room
}

func (sw *Switch) Leave(roomID, connID string) {
	sw.mx.Lock()
	defer func() {
		sw.mx.Unlock()
		sw.logger.Debug().
			Str("roomID", roomID).
			Str("connID", connID).
			Msg("connection detached from room")
	}()

	room, ok := sw.fwd[roomID]
	if ok {
		delete(room, connID)
		if len(room) == 0 {
			delete(sw.fwd, roomID)
		}
	}
}

// Broadcast forwards the event to every connection in the room except the
// one matching ev.SRC. With empty SRC the event reaches everyone.
// Fire-and-forget: dead receivers are skipped after the send timeout.
func (sw *Switch) Broadcast(ctx context.Context, ev model.Event, roomID string) {
	sw.mx.RLock()
	room := sw.fwd[roomID]
	wires := make(map[string]model.Wire, len(room))
	for connID, wire := range room {
		wires[connID] = wire
	}
	sw.mx.RUnlock()

	var sent bool
	for connID, wire := range wires {
		if connID == ev.SRC {
			continue
		}
		evSent, canceled := sw.send(ctx, ev, connID, wire.TX)
		if canceled {
			return
		}
		if evSent {
			sent = true
		}
	}
	if !sent {
		sw.logger.Debug().
			Str("roomID", roomID).
			Str("event", ev.Event).
			Str("src", ev.SRC).
			Msg("broadcast did not reach anyone")
	}
}

// Unicast forwards the event to exactly one connection in the room.
func (sw *Switch) Unicast(ctx context.Context, ev model.Event, roomID, connID string) {
	sw.mx.RLock()
	wire, ok := sw.fwd[roomID][connID]
	sw.mx.RUnlock()

	if !ok {
		sw.logger.Debug().
			Str("roomID", roomID).
			Str("connID", connID).
			Msg("cannot forward, dst not found")
		return
	}
	sw.send(ctx, ev, connID, wire.TX)
}

func (sw *Switch) send(ctx context.Context, ev model.Event, dst string, tx chan<- model.Event) (bool, bool) {
	var sent, canceled bool
	tCh := time.NewTimer(defaultFwdTimout)
	select {
	case <-ctx.Done():
		canceled = true
	case <-tCh.C:
		sw.logger.Error().Str("dst", dst).Msg("dead endpoint")
	case tx <- ev:
		sw.logger.Trace().Str("dst", dst).Str("event", ev.Event).Msg("event forwarded")
		sent = true
	}
	tCh.Stop()
	return sent, canceled
}
