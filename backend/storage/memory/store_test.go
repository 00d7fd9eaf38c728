package memory

import (
	"testing"

	"github.com/adwski/watch-together/backend/model"
	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinReplacesExistingEntry(t *testing.T) {
	ms := NewMemStore()

	users := ms.Join("movie-night", "conn-a", "alice")
	require.Equal(t, []model.Member{{ID: "conn-a", Username: "alice"}}, users)

	ms.Join("movie-night", "conn-b", "bob")
	users = ms.Join("movie-night", "conn-a", "alice2")

	require.Len(t, users, 2, "member list: %s", spew.Sdump(users))
	assert.Equal(t, model.Member{ID: "conn-b", Username: "bob"}, users[0])
	assert.Equal(t, model.Member{ID: "conn-a", Username: "alice2"}, users[1])
}

func TestLeaveKeepsOrderOfRemaining(t *testing.T) {
	ms := NewMemStore()
	ms.Join("r", "c1", "u1")
	ms.Join("r", "c2", "u2")
	ms.Join("r", "c3", "u3")

	remaining, empty := ms.Leave("r", "c2")
	require.False(t, empty)
	assert.Equal(t, []model.Member{
		{ID: "c1", Username: "u1"},
		{ID: "c3", Username: "u3"},
	}, remaining)
}

func TestLifecycleCoupling(t *testing.T) {
	ms := NewMemStore()

	ms.Join("r", "c1", "u1")
	require.True(t, ms.Apply("r", model.Action{Type: model.ActionURLChange, URL: "http://x/video"}))

	_, ok := ms.State("r")
	require.True(t, ok)
	require.Equal(t, 1, ms.RoomCount())

	remaining, empty := ms.Leave("r", "c1")
	require.True(t, empty)
	require.Nil(t, remaining)

	// membership and playback state go away together
	_, ok = ms.State("r")
	assert.False(t, ok)
	_, err := ms.GetRoom("r")
	assert.ErrorIs(t, err, ErrRoomNotFound)
	assert.Equal(t, 0, ms.RoomCount())

	// reusing the name starts from a clean slate
	ms.Join("r", "c2", "u2")
	_, ok = ms.State("r")
	assert.False(t, ok)
}

func TestApplyCreatesStateLazily(t *testing.T) {
	ms := NewMemStore()

	// action for a room nobody joined is not an error
	require.True(t, ms.Apply("ghost", model.Action{Type: model.ActionPlay}))

	st, ok := ms.State("ghost")
	require.True(t, ok)
	assert.Equal(t, model.PlaybackState{Playing: true}, st)
}

func TestApplyUnknownActionChangesNothing(t *testing.T) {
	ms := NewMemStore()

	require.False(t, ms.Apply("r", model.Action{Type: "REWIND"}))
	_, ok := ms.State("r")
	assert.False(t, ok, "unknown action must not materialize state")
	assert.Equal(t, 0, ms.RoomCount())

	require.True(t, ms.Apply("r", model.Action{Type: model.ActionSeek, Time: 10}))
	require.False(t, ms.Apply("r", model.Action{Type: "REWIND"}))
	st, _ := ms.State("r")
	assert.Equal(t, model.PlaybackState{Time: 10}, st)
}

func TestLoadResetsState(t *testing.T) {
	ms := NewMemStore()

	ms.Apply("r", model.Action{Type: model.ActionURLChange, URL: "http://a"})
	ms.Apply("r", model.Action{Type: model.ActionPause})
	ms.Apply("r", model.Action{Type: model.ActionSeek, Time: 120.5})

	st, _ := ms.State("r")
	require.Equal(t, model.PlaybackState{URL: "http://a", Playing: false, Time: 120.5}, st)

	ms.Apply("r", model.Action{Type: model.ActionURLChange, URL: "http://b"})
	st, _ = ms.State("r")
	assert.Equal(t, model.PlaybackState{URL: "http://b", Playing: true, Time: 0}, st)
}

func TestRoomsSnapshot(t *testing.T) {
	ms := NewMemStore()
	ms.Join("with-members", "c1", "u1")
	ms.Apply("state-only", model.Action{Type: model.ActionPlay})

	rooms := ms.Rooms()
	require.Len(t, rooms, 2, "rooms: %s", spew.Sdump(rooms))
	assert.Equal(t, 2, ms.RoomCount())

	byID := make(map[string]model.RoomInfo, len(rooms))
	for _, r := range rooms {
		byID[r.ID] = r
	}
	require.Contains(t, byID, "with-members")
	require.Contains(t, byID, "state-only")
	assert.Len(t, byID["with-members"].Members, 1)
	assert.Nil(t, byID["with-members"].State)
	require.NotNil(t, byID["state-only"].State)
	assert.True(t, byID["state-only"].State.Playing)
}

func TestStateReturnsCopy(t *testing.T) {
	ms := NewMemStore()
	ms.Apply("r", model.Action{Type: model.ActionSeek, Time: 5})

	st, _ := ms.State("r")
	st.Time = 99

	again, _ := ms.State("r")
	assert.Equal(t, 5.0, again.Time)
}
