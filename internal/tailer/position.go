package tailer

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"time"

	"github.com/oraclelog/oracle-go/internal/safefile"
)

// Position records where tailing stopped so a restart can resume
// without re-emitting delivered lines. Size and ModTime identify the
// file generation; a shrunken or replaced file invalidates the offset.
type Position struct {
	Path    string    `json:"path"`
	Offset  int64     `json:"offset"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// LoadPosition reads a persisted position. A missing file yields a zero
// Position and no error; anything else is reported.
func LoadPosition(path string) (Position, error) {
	f, _, err := safefile.OpenRegular(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Position{}, nil
		}
		return Position{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return Position{}, err
	}
	var pos Position
	if err := json.Unmarshal(data, &pos); err != nil {
		// A corrupt position file is treated as absent; tailing starts
		// over rather than failing.
		return Position{}, nil
	}
	return pos, nil
}

// Save persists the position atomically.
func (p Position) Save(path string) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return safefile.WriteAtomic(path, data, 0o644)
}
