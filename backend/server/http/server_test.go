package http

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/adwski/watch-together/backend/model"
	"github.com/adwski/watch-together/backend/storage/memory"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testServer(t *testing.T) (*httptest.Server, *memory.MemStore) {
	t.Helper()
	logger := zerolog.New(os.Stdout).Level(zerolog.Disabled)
	ms := memory.NewMemStore()
	srv := NewServer(Config{
		Logger:     &logger,
		RoomViewer: ms,
		ListenAddr: ":0",
	})
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)
	return ts, ms
}

func getJSON(t *testing.T, url string) (int, GenericResponse) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var gr GenericResponse
	require.NoError(t, json.Unmarshal(b, &gr))
	return resp.StatusCode, gr
}

func TestGetRoom(t *testing.T) {
	ts, ms := testServer(t)
	ms.Join("movie-night", "conn-a", "alice")
	ms.Apply("movie-night", model.Action{Type: model.ActionURLChange, URL: "http://v"})

	code, gr := getJSON(t, ts.URL+"/api/room/movie-night")
	require.Equal(t, http.StatusOK, code)

	b, _ := json.Marshal(gr.Data)
	var info model.RoomInfo
	require.NoError(t, json.Unmarshal(b, &info))
	assert.Equal(t, "movie-night", info.ID)
	assert.Equal(t, []model.Member{{ID: "conn-a", Username: "alice"}}, info.Members)
	require.NotNil(t, info.State)
	assert.Equal(t, "http://v", info.State.URL)
}

func TestGetRoomNotFound(t *testing.T) {
	ts, _ := testServer(t)

	code, gr := getJSON(t, ts.URL+"/api/room/nope")
	assert.Equal(t, http.StatusNotFound, code)
	assert.NotEmpty(t, gr.Error)
}

func TestListRooms(t *testing.T) {
	ts, ms := testServer(t)
	ms.Join("r1", "c1", "u1")
	ms.Join("r2", "c2", "u2")

	code, gr := getJSON(t, ts.URL+"/api/rooms")
	require.Equal(t, http.StatusOK, code)

	b, _ := json.Marshal(gr.Data)
	var rooms []model.RoomInfo
	require.NoError(t, json.Unmarshal(b, &rooms))
	assert.Len(t, rooms, 2)
}

func TestHealthz(t *testing.T) {
	ts, _ := testServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCORSHeaders(t *testing.T) {
	ts, _ := testServer(t)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/rooms", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://example.com")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
