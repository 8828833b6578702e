package casesync

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// Selection is the remembered sync destination
type Selection struct {
	LastProjectID int            `json:"last_project_id,omitempty"`
	Folders       map[string]int `json:"folders"`
	UpdatedAt     string         `json:"updated_at,omitempty"`
}

// StateManager manages the selection state file
type StateManager struct {
	mu        sync.Mutex
	statePath string
	state     *Selection
}

// DefaultStatePath returns ~/.veloxcase/selection.json
func DefaultStatePath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".veloxcase", "selection.json"), nil
}

// NewStateManager loads the state file at statePath, or the default
// location when statePath is empty. A missing or unreadable file starts
// an empty selection.
func NewStateManager(statePath string) (*StateManager, error) {
	if statePath == "" {
		p, err := DefaultStatePath()
		if err != nil {
			return nil, err
		}
		statePath = p
	}

	sm := &StateManager{
		statePath: statePath,
		state:     &Selection{Folders: make(map[string]int)},
	}

	// Load existing state if available
	if data, err := os.ReadFile(statePath); err == nil {
		if err := json.Unmarshal(data, sm.state); err != nil {
			slog.Debug("ignoring unreadable selection file", "path", statePath, "error", err)
			sm.state = &Selection{}
		}
		if sm.state.Folders == nil {
			sm.state.Folders = make(map[string]int)
		}
	}

	return sm, nil
}

// Path returns the state file location
func (sm *StateManager) Path() string {
	return sm.statePath
}

// LastProject returns the last used project, or 0
func (sm *StateManager) LastProject() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.state.LastProjectID
}

// FolderFor returns the folder last used in projectID
func (sm *StateManager) FolderFor(projectID int) (int, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	id, ok := sm.state.Folders[strconv.Itoa(projectID)]
	return id, ok && id > 0
}

// Remember stores the project as last used and folderID as its folder. A
// zero folderID only updates the project.
func (sm *StateManager) Remember(projectID, folderID int) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if projectID <= 0 {
		return
	}
	sm.state.LastProjectID = projectID
	if folderID > 0 {
		sm.state.Folders[strconv.Itoa(projectID)] = folderID
	}
	sm.state.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
}

// Forget drops the remembered folder of a project
func (sm *StateManager) Forget(projectID int) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.state.Folders, strconv.Itoa(projectID))
}

// ClearState clears all remembered selections
func (sm *StateManager) ClearState() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.state = &Selection{Folders: make(map[string]int)}
}

// Save persists the state to disk atomically
func (sm *StateManager) Save() error {
	sm.mu.Lock()
	data, err := json.MarshalIndent(sm.state, "", "  ")
	sm.mu.Unlock()
	if err != nil {
		return err
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(sm.statePath), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmp := sm.statePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := os.Rename(tmp, sm.statePath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}
