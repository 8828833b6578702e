package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/veloxcase/cli/internal/casesync"
	"github.com/veloxcase/cli/internal/client"
	"github.com/veloxcase/cli/internal/schema"
	"github.com/veloxcase/cli/internal/store"
)

// TaskRequest names a task and optionally overrides the AI settings
type TaskRequest struct {
	Key                string               `json:"key"`
	AI                 *bool                `json:"ai,omitempty"`
	Features           *schema.FeatureFlags `json:"feature_flags,omitempty"`
	CustomInstructions *string              `json:"custom_instructions,omitempty"`
}

func (s *Server) settingsFor(ai *bool, features *schema.FeatureFlags, instructions *string) schema.AnalysisSettings {
	settings := s.settings()
	// A request can turn AI off but never on when it is not configured
	if ai != nil && !*ai {
		settings.Enabled = false
	}
	if features != nil {
		settings.Features = *features
	}
	if instructions != nil {
		settings.CustomInstructions = *instructions
	}
	return settings
}

// apiPreview returns the short view of a task
func (s *Server) apiPreview(w http.ResponseWriter, r *http.Request) {
	var req TaskRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, err)
		return
	}
	p, err := s.orch.Preview(r.Context(), req.Key)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.jsonResponse(w, p)
}

// apiAnalyze runs AI analysis for a task
func (s *Server) apiAnalyze(w http.ResponseWriter, r *http.Request) {
	var req TaskRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, err)
		return
	}
	result, err := s.orch.Analyze(r.Context(), req.Key, s.settingsFor(req.AI, req.Features, req.CustomInstructions))
	if err != nil {
		s.fail(w, err)
		return
	}
	s.jsonResponse(w, result)
}

// apiCandidates returns what a sync of the task would submit
func (s *Server) apiCandidates(w http.ResponseWriter, r *http.Request) {
	var req TaskRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, err)
		return
	}
	keys := schema.SplitTaskKeys(req.Key)
	cs, err := s.orch.CollectCandidates(r.Context(), keys, s.settingsFor(req.AI, req.Features, req.CustomInstructions), s.maxTasks)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.jsonResponse(w, cs)
}

// SyncRequest starts a sync. Candidates are submitted as given; without
// them they are built from Keys.
type SyncRequest struct {
	ProjectID  int                        `json:"project_id"`
	FolderID   int                        `json:"folder_id"`
	Keys       string                     `json:"keys,omitempty"`
	Candidates []schema.TestCaseCandidate `json:"candidates,omitempty"`
	AI         *bool                      `json:"ai,omitempty"`
	Features   *schema.FeatureFlags       `json:"feature_flags,omitempty"`
}

// apiStartSync runs a sync until it completes or waits on a duplicate
func (s *Server) apiStartSync(w http.ResponseWriter, r *http.Request) {
	var req SyncRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, err)
		return
	}

	// The operation outlives a dropped client
	ctx := context.WithoutCancel(r.Context())

	candidates := req.Candidates
	if len(candidates) == 0 {
		var err error
		candidates, err = s.orch.CollectCandidates(ctx, schema.SplitTaskKeys(req.Keys), s.settingsFor(req.AI, req.Features, nil), s.maxTasks)
		if err != nil {
			s.fail(w, err)
			return
		}
	}

	report, err := s.orch.Sync(ctx, schema.SyncTarget{ProjectID: req.ProjectID, FolderID: req.FolderID}, candidates)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.jsonResponse(w, report)
}

// apiGetSync returns the current operation report
func (s *Server) apiGetSync(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, s.orch.Report())
}

// apiResolve answers the pending duplicate and resumes the operation
func (s *Server) apiResolve(w http.ResponseWriter, r *http.Request) {
	var d casesync.Decision
	if err := decode(r, &d); err != nil {
		s.fail(w, err)
		return
	}
	report, err := s.orch.ResolveDuplicate(context.WithoutCancel(r.Context()), d)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.jsonResponse(w, report)
}

// apiGetFolders reloads and returns a project's folders
func (s *Server) apiGetFolders(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathInt(r, "projectID")
	if err != nil {
		s.fail(w, err)
		return
	}
	folders, err := s.folders.Refresh(r.Context(), projectID)
	if err != nil {
		s.fail(w, err)
		return
	}
	if folders == nil {
		folders = []schema.Folder{}
	}
	s.jsonResponse(w, folders)
}

// CreateFolderRequest is the body of a folder creation
type CreateFolderRequest struct {
	Name     string `json:"name"`
	ParentID *int   `json:"parent_id,omitempty"`
}

// apiCreateFolder creates a folder in a project
func (s *Server) apiCreateFolder(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathInt(r, "projectID")
	if err != nil {
		s.fail(w, err)
		return
	}
	var req CreateFolderRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, err)
		return
	}
	folder, err := s.folders.Create(r.Context(), projectID, req.Name, req.ParentID)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.jsonStatus(w, folder, http.StatusCreated)
}

// apiGetStats returns the history summary
func (s *Server) apiGetStats(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.jsonResponse(w, store.Stats{})
		return
	}
	stats, err := s.history.Stats(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	s.jsonResponse(w, stats)
}

// apiGetHistory returns the most recent syncs
func (s *Server) apiGetHistory(w http.ResponseWriter, r *http.Request) {
	limit := store.DefaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.fail(w, client.Validationf("limit must be a positive integer"))
			return
		}
		limit = n
	}
	entries := []store.HistoryEntry{}
	if s.history != nil {
		var err error
		entries, err = s.history.History(r.Context(), limit)
		if err != nil {
			s.fail(w, err)
			return
		}
		if entries == nil {
			entries = []store.HistoryEntry{}
		}
	}
	s.jsonResponse(w, entries)
}
