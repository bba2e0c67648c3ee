package gamedata

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"sync"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// Difficulty tiers in descending order, hardest first. Map ids step by
// 100 between adjacent tiers of the same map.
var difficultyTiers = []string{
	"T8+", "T8_2", "T8_1", "T8_0",
	"T7_2", "T7_1", "T7_0",
	"T6", "T5", "T4", "T3", "T2", "T1", "DS",
}

// MapInfo describes one map level.
type MapInfo struct {
	MapID      int    `json:"-"`
	Name       string `json:"name"`
	Asset      string `json:"asset"`
	Area       string `json:"area"`
	Difficulty string `json:"difficulty"`
}

// MapDB resolves map ids to their metadata. Ids absent from the table
// get their difficulty inferred from a sibling tier entry.
type MapDB struct {
	log *slog.Logger

	mu   sync.Mutex
	maps map[int]MapInfo
}

// NewMapDB loads the map table at path. A missing file yields an empty
// database; lookups then rely entirely on inference and may miss.
func NewMapDB(path string, log *slog.Logger) (*MapDB, error) {
	if log == nil {
		log = discardLogger
	}
	db := &MapDB{log: log, maps: map[int]MapInfo{}}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn("map table not found", "path", path)
			return db, nil
		}
		return nil, fmt.Errorf("reading map table: %w", err)
	}
	var raw map[string]MapInfo
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing map table %s: %w", path, err)
	}
	for key, info := range raw {
		id, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		info.MapID = id
		if info.Difficulty == "" {
			info.Difficulty = difficultyTiers[0]
		}
		db.maps[id] = info
	}
	log.Info("map table loaded", "path", path, "maps", len(db.maps))
	return db, nil
}

// Get returns map metadata for an id. Ids missing from the table are
// resolved by probing upward in steps of 100: sibling tiers of one map
// share an id modulo 100, one tier apart per step. The inferred entry
// is cached so the probe runs once per unknown id. Returns false when
// no sibling exists within the tier range.
func (db *MapDB) Get(mapID int) (MapInfo, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if info, ok := db.maps[mapID]; ok {
		return info, true
	}

	for offset := 1; offset < len(difficultyTiers); offset++ {
		ref, ok := db.maps[mapID+offset*100]
		if !ok {
			continue
		}
		// Each step of +100 lands one tier harder, so the unknown id
		// sits offset tiers easier than the reference entry.
		idx := tierIndex(ref.Difficulty) + offset
		if idx >= len(difficultyTiers) {
			idx = len(difficultyTiers) - 1
		}
		inferred := MapInfo{
			MapID:      mapID,
			Name:       ref.Name,
			Asset:      ref.Asset,
			Area:       ref.Area,
			Difficulty: difficultyTiers[idx],
		}
		db.maps[mapID] = inferred
		db.log.Debug("inferred map difficulty",
			"map_id", mapID, "reference_id", ref.MapID, "difficulty", inferred.Difficulty)
		return inferred, true
	}

	return MapInfo{}, false
}

func tierIndex(tier string) int {
	for i, t := range difficultyTiers {
		if t == tier {
			return i
		}
	}
	return 0
}
