package memory

import (
	"errors"
	"sync"

	"github.com/adwski/watch-together/backend/model"
)

var (
	ErrRoomNotFound = errors.New("room is not found")
)

// MemStore holds the membership table and the playback state table.
// The two entries of a room are always dropped together when its member
// list empties, so a reused room name starts from a clean slate.
type MemStore struct {
	mx      *sync.Mutex
	members map[string][]model.Member
	states  map[string]*model.PlaybackState
}

func NewMemStore() *MemStore {
	return &MemStore{
		mx:      &sync.Mutex{},
		members: make(map[string][]model.Member),
		states:  make(map[string]*model.PlaybackState),
	}
}

// Join puts (connID, username) into the room's member list, replacing any
// existing entry with the same connID, and returns a copy of the list.
func (ms *MemStore) Join(roomID, connID, username string) []model.Member {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	ms.members[roomID] = append(
		withoutMember(ms.members[roomID], connID),
		model.Member{ID: connID, Username: username},
	)
	return copyMembers(ms.members[roomID])
}

// Leave removes connID from the room's member list and returns a copy of the
// remaining list. When the list empties, both the list and the room's
// playback state are deleted and empty=true is reported.
func (ms *MemStore) Leave(roomID, connID string) (remaining []model.Member, empty bool) {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	left := withoutMember(ms.members[roomID], connID)
	if len(left) == 0 {
		delete(ms.members, roomID)
		delete(ms.states, roomID)
		return nil, true
	}
	ms.members[roomID] = left
	return copyMembers(left), false
}

// Apply ensures the room has playback state, creating the default one
// (nothing loaded, paused, zero position) if needed, and applies the action
// to it. Unknown action types leave the state untouched and return false.
func (ms *MemStore) Apply(roomID string, act model.Action) bool {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	st, ok := ms.states[roomID]
	if !ok {
		st = &model.PlaybackState{}
	}
	if !st.Apply(act) {
		// unknown action type, do not materialize state for it
		return false
	}
	if !ok {
		ms.states[roomID] = st
	}
	return true
}

// State returns a copy of the room's playback state, if any.
func (ms *MemStore) State(roomID string) (model.PlaybackState, bool) {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	st, ok := ms.states[roomID]
	if !ok {
		return model.PlaybackState{}, false
	}
	return *st, true
}

// GetRoom returns a snapshot of one room or ErrRoomNotFound if it has
// neither members nor state.
func (ms *MemStore) GetRoom(roomID string) (model.RoomInfo, error) {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	members, okM := ms.members[roomID]
	st, okS := ms.states[roomID]
	if !okM && !okS {
		return model.RoomInfo{}, ErrRoomNotFound
	}
	info := model.RoomInfo{ID: roomID, Members: copyMembers(members)}
	if okS {
		stc := *st
		info.State = &stc
	}
	return info, nil
}

// Rooms returns snapshots of every room that currently exists.
func (ms *MemStore) Rooms() []model.RoomInfo {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	seen := make(map[string]struct{}, len(ms.members))
	out := make([]model.RoomInfo, 0, len(ms.members))
	for roomID, members := range ms.members {
		info := model.RoomInfo{ID: roomID, Members: copyMembers(members)}
		if st, ok := ms.states[roomID]; ok {
			stc := *st
			info.State = &stc
		}
		out = append(out, info)
		seen[roomID] = struct{}{}
	}
	// rooms acted on before anyone joined
	for roomID, st := range ms.states {
		if _, ok := seen[roomID]; ok {
			continue
		}
		stc := *st
		out = append(out, model.RoomInfo{ID: roomID, State: &stc})
	}
	return out
}

// RoomCount reports how many rooms currently exist, counting a room once
// whether it has members, state or both.
func (ms *MemStore) RoomCount() int {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	n := len(ms.members)
	for roomID := range ms.states {
		if _, ok := ms.members[roomID]; !ok {
			n++
		}
	}
	return n
}

func withoutMember(members []model.Member, connID string) []model.Member {
	out := members[:0]
	for _, m := range members {
		if m.ID != connID {
			out = append(out, m)
		}
	}
	return out
}

func copyMembers(members []model.Member) []model.Member {
	out := make([]model.Member, len(members))
	copy(out, members)
	return out
}
