// Package logfinder locates the game's Unreal Engine log file when no
// explicit path is configured.
package logfinder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// logRelPath is the log location inside a Steam library.
const logRelPath = "steamapps/common/Torchlight Infinite/UE_game/TorchLight/Saved/Logs"

// logFileName is the active log file name; rotated copies get a
// -backup-<timestamp> suffix.
const logFileName = "UE_game.log"

// Sentinel errors.
var (
	ErrLogNotFound    = errors.New("game log file not found")
	ErrNoLogFiles     = errors.New("no log files found")
	ErrLogDirNotFound = errors.New("log directory not found")
)

// DefaultLogDirs returns candidate log directories in priority order:
// every Steam library that could hold the game, on fixed drive letters
// plus the default Linux/Proton locations.
func DefaultLogDirs() []string {
	var dirs []string

	if programFiles := os.Getenv("PROGRAMFILES(X86)"); programFiles != "" {
		dirs = append(dirs, filepath.Join(programFiles, "Steam", logRelPath))
	}
	// Secondary Steam libraries commonly sit at the drive root.
	for c := 'C'; c <= 'H'; c++ {
		dirs = append(dirs, filepath.Join(string(c)+`:\`, "SteamLibrary", logRelPath))
	}

	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs,
			filepath.Join(home, ".steam", "steam", logRelPath),
			filepath.Join(home, ".local", "share", "Steam", logRelPath),
		)
	}

	return dirs
}

// FindLogFile returns the path of the game log to follow.
//
// Priority:
//  1. explicit (if non-empty)
//  2. Auto-detect from DefaultLogDirs()
//
// Returns ErrLogNotFound if no readable log file is found. The
// returned path has symlinks resolved for consistency.
func FindLogFile(explicit string) (string, error) {
	if explicit != "" {
		if resolved := resolveLogFile(explicit); resolved != "" {
			return resolved, nil
		}
		return "", fmt.Errorf("%w: %s is not a readable log file", ErrLogNotFound, explicit)
	}

	for _, dir := range DefaultLogDirs() {
		candidate := filepath.Join(dir, logFileName)
		if resolved := resolveLogFile(candidate); resolved != "" {
			return resolved, nil
		}
	}

	return "", ErrLogNotFound
}

// logCandidate holds a log file path and its cached modification time
// so files deleted between stat and sort cannot skew the ordering.
type logCandidate struct {
	path    string
	modTime int64
}

// FindLatestLogFile returns the most recently modified log file in
// dir, considering the active log and rotated backups.
//
// Returns ErrNoLogFiles if the directory holds none.
func FindLatestLogFile(dir string) (string, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", ErrLogDirNotFound
	}

	matches, err := filepath.Glob(filepath.Join(dir, "UE_game*.log"))
	if err != nil {
		return "", fmt.Errorf("globbing log files: %w", err)
	}
	if len(matches) == 0 {
		return "", ErrNoLogFiles
	}

	candidates := make([]logCandidate, 0, len(matches))
	for _, m := range matches {
		info, err := os.Lstat(m)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		candidates = append(candidates, logCandidate{
			path:    m,
			modTime: info.ModTime().UnixNano(),
		})
	}
	if len(candidates) == 0 {
		return "", ErrNoLogFiles
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].modTime > candidates[j].modTime
	})
	return candidates[0].path, nil
}

// resolveLogFile resolves symlinks and checks the candidate is a
// regular file. Returns the resolved path, or empty when invalid.
func resolveLogFile(path string) string {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return ""
	}
	info, err := os.Stat(resolved)
	if err != nil || !info.Mode().IsRegular() {
		return ""
	}
	return resolved
}
