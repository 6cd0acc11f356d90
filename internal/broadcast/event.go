package broadcast

import (
	"context"
	"encoding/json"
)

type Pool string

const (
	// PoolGlobal carries coarse change notices to operator dashboards.
	PoolGlobal Pool = "global"
	// PoolOverlay carries the prediction overlay shown on stream.
	PoolOverlay Pool = "overlay"
	// PoolConsole carries the operator's compact prediction console.
	PoolConsole Pool = "console"
)

// Pools lists every pool in a stable order.
var Pools = []Pool{PoolGlobal, PoolOverlay, PoolConsole}

const (
	EventPredictionChanged = "prediction-changed"
	EventTournamentChanged = "tournament-changed"

	EventPredictionInit    = "prediction-init"
	EventPredictionOpen    = "prediction-open"
	EventPredictionClose   = "prediction-close"
	EventPredictionClear   = "prediction-clear"
	EventPredictionGuess   = "prediction-guess"
	EventPredictionWinners = "prediction-winners"

	EventState = "state"
	EventGuess = "guess"
	EventClear = "clear"

	EventPing = "ping"
)

type Event struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data"`
}

func NewEvent(name string, payload interface{}) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Name: name, Data: data}, nil
}

// SnapshotFunc produces the event a new subscriber receives before any live event.
type SnapshotFunc func(ctx context.Context) (Event, error)

// ChangeNotice is the payload of the global pool's change events.
type ChangeNotice struct {
	Reason string      `json:"reason"`
	Entry  interface{} `json:"entry,omitempty"`
	Extra  interface{} `json:"extra,omitempty"`
}

func pingEvent() Event {
	return Event{Name: EventPing, Data: json.RawMessage(`{}`)}
}
