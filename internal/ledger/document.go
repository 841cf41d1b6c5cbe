package ledger

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// StorageKey is the key-value slot holding the document.
	StorageKey = "slot-tracker-data"
	// CurrentVersion is written into every saved document.
	CurrentVersion = 1
)

var (
	ErrInvalidDocument = errors.New("ledger: invalid document")
	ErrNoValidGames    = errors.New("ledger: no valid games found in import file")
)

// Document is the persisted form of the ledger.
type Document struct {
	Version     int       `json:"version"`
	LastUpdated time.Time `json:"lastUpdated"`
	Games       []Game    `json:"games"`
}

// LoadResult reports how many stored games were unreadable and dropped.
type LoadResult struct {
	Games   []Game
	Dropped int
	Legacy  bool
}

// Encode builds the versioned document.
func Encode(games []Game, now time.Time) ([]byte, error) {
	if games == nil {
		games = []Game{}
	}
	doc := Document{Version: CurrentVersion, LastUpdated: now.UTC(), Games: games}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("ledger: encode: %w", err)
	}
	return data, nil
}

// EncodeExport is Encode indented for a backup file.
func EncodeExport(games []Game, now time.Time) ([]byte, error) {
	data, err := Encode(games, now)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return nil, fmt.Errorf("ledger: indent export: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportFilename is the suggested name of a backup taken on day.
func ExportFilename(day time.Time) string {
	return "slot-tracker-backup-" + day.Format(dayLayout) + ".json"
}

// Decode reads a stored document. It also accepts the legacy format, a bare
// array of games. Games that fail validation are dropped and counted.
func Decode(data []byte) (LoadResult, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return LoadResult{Games: []Game{}}, nil
	}

	if trimmed[0] == '[' {
		var raw []json.RawMessage
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return LoadResult{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
		res := decodeGames(raw)
		res.Legacy = true
		return res, nil
	}

	raw, err := decodeEnvelope(trimmed)
	if err != nil {
		return LoadResult{}, err
	}
	return decodeGames(raw), nil
}

// DecodeImport reads an uploaded backup. Unlike Decode it requires the
// versioned envelope and at least one valid game.
func DecodeImport(data []byte) (LoadResult, error) {
	raw, err := decodeEnvelope(bytes.TrimSpace(data))
	if err != nil {
		return LoadResult{}, err
	}
	res := decodeGames(raw)
	if len(res.Games) == 0 {
		return LoadResult{}, ErrNoValidGames
	}
	return res, nil
}

func decodeEnvelope(data []byte) ([]json.RawMessage, error) {
	var env struct {
		Version int               `json:"version"`
		Games   []json.RawMessage `json:"games"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if env.Version == 0 || env.Games == nil {
		return nil, fmt.Errorf("%w: missing version or games", ErrInvalidDocument)
	}
	return env.Games, nil
}

func decodeGames(raw []json.RawMessage) LoadResult {
	res := LoadResult{Games: make([]Game, 0, len(raw))}
	for _, r := range raw {
		g, ok := decodeGame(r)
		if !ok {
			res.Dropped++
			continue
		}
		res.Games = append(res.Games, g)
	}
	return res
}

// decodeGame accepts a game only when every required field is present with
// the right JSON type: numbers for id and count, amounts for the totals,
// strings for name and provider, arrays for sessions and history.
func decodeGame(r json.RawMessage) (Game, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(r, &fields); err != nil || fields == nil {
		return Game{}, false
	}
	for _, k := range []string{"id", "count"} {
		if !isJSONNumber(fields[k]) {
			return Game{}, false
		}
	}
	for _, k := range []string{"profit", "wagered", "loss"} {
		if !isJSONAmount(fields[k]) {
			return Game{}, false
		}
	}
	for _, k := range []string{"name", "provider"} {
		if !isJSONKind(fields[k], '"') {
			return Game{}, false
		}
	}
	for _, k := range []string{"sessions", "history"} {
		if !isJSONKind(fields[k], '[') {
			return Game{}, false
		}
	}

	var g Game
	if err := json.Unmarshal(r, &g); err != nil {
		return Game{}, false
	}
	if g.History == nil {
		g.History = []HistoryPoint{}
	}
	if g.Sessions == nil {
		g.Sessions = []Session{}
	}
	return g, true
}

func isJSONKind(r json.RawMessage, first byte) bool {
	r = bytes.TrimSpace(r)
	return len(r) > 0 && r[0] == first
}

func isJSONNumber(r json.RawMessage) bool {
	r = bytes.TrimSpace(r)
	return len(r) > 0 && (r[0] == '-' || (r[0] >= '0' && r[0] <= '9'))
}

// isJSONAmount also takes the quoted decimals this package writes.
func isJSONAmount(r json.RawMessage) bool {
	if isJSONNumber(r) {
		return true
	}
	var s string
	if err := json.Unmarshal(r, &s); err != nil {
		return false
	}
	_, err := decimal.NewFromString(s)
	return err == nil
}
