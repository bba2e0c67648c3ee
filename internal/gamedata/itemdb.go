// Package gamedata loads the static game tables the pipeline consults:
// item names, categories, and prices from a price table, and the map
// database with tier inference for map ids the table does not list.
package gamedata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"
)

// ItemInfo is one entry of the price table.
type ItemInfo struct {
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Price    float64 `json:"price"`
}

// ItemDB maps game item ids to their metadata and market price.
type ItemDB struct {
	path   string
	url    string
	client *http.Client
	log    *slog.Logger

	mu    sync.RWMutex
	items map[int]ItemInfo
}

// ItemDBOption configures an ItemDB.
type ItemDBOption func(*ItemDB)

// WithRemoteURL enables price refresh from url. The local file stays
// the fallback when the fetch fails.
func WithRemoteURL(url string) ItemDBOption {
	return func(db *ItemDB) { db.url = url }
}

// WithItemLogger sets the logger.
func WithItemLogger(log *slog.Logger) ItemDBOption {
	return func(db *ItemDB) {
		if log != nil {
			db.log = log
		}
	}
}

// WithHTTPClient overrides the client used for remote refresh.
func WithHTTPClient(c *http.Client) ItemDBOption {
	return func(db *ItemDB) {
		if c != nil {
			db.client = c
		}
	}
}

// NewItemDB loads the price table at path. A missing file is not an
// error; lookups simply miss until Refresh or Reload succeeds.
func NewItemDB(path string, opts ...ItemDBOption) (*ItemDB, error) {
	db := &ItemDB{
		path:   path,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    discardLogger,
		items:  map[int]ItemInfo{},
	}
	for _, opt := range opts {
		opt(db)
	}
	if err := db.Reload(); err != nil {
		return nil, err
	}
	return db, nil
}

// Reload re-reads the local price table.
func (db *ItemDB) Reload() error {
	data, err := os.ReadFile(db.path)
	if err != nil {
		if os.IsNotExist(err) {
			db.log.Warn("price table not found", "path", db.path)
			return nil
		}
		return fmt.Errorf("reading price table: %w", err)
	}
	items, err := parsePriceTable(data)
	if err != nil {
		return fmt.Errorf("parsing price table %s: %w", db.path, err)
	}
	db.mu.Lock()
	db.items = items
	db.mu.Unlock()
	db.log.Info("price table loaded", "path", db.path, "items", len(items))
	return nil
}

// Refresh fetches the price table from the configured remote URL and
// replaces the in-memory table on success. Without a URL, or on any
// fetch or parse failure, the current table is kept and the error
// returned for logging.
func (db *ItemDB) Refresh(ctx context.Context) error {
	if db.url == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, db.url, nil)
	if err != nil {
		return err
	}
	resp, err := db.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching price table: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetching price table: unexpected status %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return fmt.Errorf("reading price table response: %w", err)
	}
	items, err := parsePriceTable(data)
	if err != nil {
		return fmt.Errorf("parsing remote price table: %w", err)
	}
	db.mu.Lock()
	db.items = items
	db.mu.Unlock()
	db.log.Info("price table refreshed", "url", db.url, "items", len(items))
	return nil
}

// Lookup returns the display name and category for an item id. Unknown
// ids return empty strings.
func (db *ItemDB) Lookup(itemID int) (name, category string) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	info, ok := db.items[itemID]
	if !ok {
		return "", ""
	}
	return info.Name, info.Category
}

// Price returns the unit price for an item id, or 0 when unknown.
func (db *ItemDB) Price(itemID int) float64 {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.items[itemID].Price
}

// Len reports how many items are loaded.
func (db *ItemDB) Len() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.items)
}

// All returns a copy of the table, for price seeding into the store.
func (db *ItemDB) All() map[int]ItemInfo {
	db.mu.RLock()
	defer db.mu.RUnlock()
	out := make(map[int]ItemInfo, len(db.items))
	for id, info := range db.items {
		out[id] = info
	}
	return out
}

// parsePriceTable decodes the {"<id>": {name, category, price}} table.
// Entries with non-numeric keys are skipped rather than failing the
// whole load.
func parsePriceTable(data []byte) (map[int]ItemInfo, error) {
	var raw map[string]ItemInfo
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	items := make(map[int]ItemInfo, len(raw))
	for key, info := range raw {
		id, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		items[id] = info
	}
	return items, nil
}
