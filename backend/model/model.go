package model

// Event names used on the wire in both directions.
const (
	EventJoinRoom   = "join_room"
	EventAction     = "action"
	EventUserJoined = "user_joined"
	EventUserLeft   = "user_left"
)

// Action types. Anything else is dropped without a state change or broadcast.
const (
	ActionURLChange = "URL_CHANGE"
	ActionPlay      = "PLAY"
	ActionPause     = "PAUSE"
	ActionSeek      = "SEEK"
)

// Action is the tagged playback command shared by clients and server.
// URL is meaningful for URL_CHANGE, Time for SEEK.
type Action struct {
	Type string  `json:"type"`
	URL  string  `json:"url,omitempty"`
	Time float64 `json:"time,omitempty"`
}

// Event is the single envelope for every websocket frame.
// SRC carries the originating connection ID; the server assigns it on receive
// and it never crosses the wire.
type Event struct {
	Event    string   `json:"event"`
	Room     string   `json:"room,omitempty"`
	Username string   `json:"username,omitempty"`
	Action   *Action  `json:"action,omitempty"`
	Users    []Member `json:"users,omitempty"`

	SRC string `json:"-"`
}

// Member is one membership entry of a room.
type Member struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// RoomInfo is a read-only snapshot of one room, served by the API.
type RoomInfo struct {
	ID      string         `json:"room_id"`
	Members []Member       `json:"users"`
	State   *PlaybackState `json:"state,omitempty"`
}

// PlaybackState is a room's current playback snapshot. Empty URL means
// nothing was loaded yet and suppresses replay to joiners.
type PlaybackState struct {
	URL     string  `json:"url"`
	Playing bool    `json:"playing"`
	Time    float64 `json:"time"`
}

// Apply mutates the state according to the action and reports whether the
// action was recognized. Loading a URL always autoplays from zero.
func (ps *PlaybackState) Apply(act Action) bool {
	switch act.Type {
	case ActionURLChange:
		ps.URL = act.URL
		ps.Playing = true
		ps.Time = 0
	case ActionPlay:
		ps.Playing = true
	case ActionPause:
		ps.Playing = false
	case ActionSeek:
		ps.Time = act.Time
	default:
		return false
	}
	return true
}

// Replay builds the three-event sequence that brings a fresh client to this
// state: load, play-or-pause, seek. Order matters.
func (ps PlaybackState) Replay() []Event {
	playPause := ActionPause
	if ps.Playing {
		playPause = ActionPlay
	}
	return []Event{
		{Event: EventAction, Action: &Action{Type: ActionURLChange, URL: ps.URL}},
		{Event: EventAction, Action: &Action{Type: playPause}},
		{Event: EventAction, Action: &Action{Type: ActionSeek, Time: ps.Time}},
	}
}

type Wire struct {
	RX chan Event
	TX chan Event
}

func NewWire() Wire {
	return Wire{
		RX: make(chan Event),
		TX: make(chan Event),
	}
}
