// Package casesync drives a sync operation: candidates are submitted one by
// one to the test-management system, duplicates pause the operation until a
// decision arrives, and every outcome is collected into a report.
package casesync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/veloxcase/cli/internal/client"
	"github.com/veloxcase/cli/internal/scenario"
	"github.com/veloxcase/cli/internal/schema"
)

// Tracker previews tasks
type Tracker interface {
	Preview(ctx context.Context, key string) (schema.TaskPreview, error)
}

// Analyzer produces AI test cases for a task
type Analyzer interface {
	Analyze(ctx context.Context, key string, flags schema.FeatureFlags, instruction string) (*schema.AnalysisResult, error)
}

// CaseWriter creates a test record, or replaces an existing one when
// overwrite is set. A WriteDuplicate status (or a client.ErrConflict error)
// means a record with the same name already exists.
type CaseWriter interface {
	CreateOrUpdate(ctx context.Context, target schema.SyncTarget, c schema.TestCaseCandidate, overwrite bool) (schema.WriteResult, error)
}

// Resetter is implemented by writers that cache remote data per task. Reset
// is called whenever a new operation starts.
type Resetter interface {
	Reset()
}

// FolderIndex answers whether a folder belongs to a project
type FolderIndex interface {
	Loaded(projectID int) bool
	Contains(projectID, folderID int) bool
}

// Recorder persists successful entries
type Recorder interface {
	RecordSync(ctx context.Context, target schema.SyncTarget, entry schema.SyncResultEntry) error
}

// Decision answers a pending duplicate conflict
type Decision struct {
	Overwrite bool `json:"overwrite"`
}

// DuplicateMessage is the message of an entry left as duplicate
const DuplicateMessage = "A case with the same name already exists"

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithFolders enables target folder validation against a folder index
func WithFolders(f FolderIndex) Option {
	return func(o *Orchestrator) { o.folders = f }
}

// WithRecorder records every successful entry
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithAnalyzer enables AI analysis
func WithAnalyzer(a Analyzer) Option {
	return func(o *Orchestrator) { o.analyzer = a }
}

type operation struct {
	id         string
	target     schema.SyncTarget
	candidates []schema.TestCaseCandidate
	next       int
	state      schema.State
	err        error
}

// Orchestrator runs at most one sync operation at a time
type Orchestrator struct {
	tracker  Tracker
	analyzer Analyzer
	writer   CaseWriter
	folders  FolderIndex
	recorder Recorder
	logger   *slog.Logger
	validate *validator.Validate

	viewMu         sync.Mutex
	previewSeq     uint64
	analyzeSeq     uint64
	latestPreview  *schema.TaskPreview
	latestAnalysis *schema.AnalysisResult

	mu        sync.Mutex
	op        *operation
	conflicts ConflictSlot
	results   Results
}

// New creates an orchestrator
func New(tracker Tracker, writer CaseWriter, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		tracker:  tracker,
		writer:   writer,
		logger:   slog.Default(),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Preview fetches the short view of a task. When a newer preview was
// requested while this one was in flight, ErrSuperseded is returned and the
// result is dropped.
func (o *Orchestrator) Preview(ctx context.Context, key string) (schema.TaskPreview, error) {
	key = schema.NormalizeTaskKey(key)
	if key == "" {
		return schema.TaskPreview{}, client.Validationf("task key is required")
	}

	o.viewMu.Lock()
	o.previewSeq++
	ticket := o.previewSeq
	o.viewMu.Unlock()

	preview, err := o.tracker.Preview(ctx, key)

	o.viewMu.Lock()
	defer o.viewMu.Unlock()
	if ticket != o.previewSeq {
		o.logger.Debug("dropping stale preview", "task", key)
		return schema.TaskPreview{}, ErrSuperseded
	}
	if err != nil {
		o.latestPreview = nil
		return schema.TaskPreview{}, err
	}
	o.latestPreview = &preview
	return preview, nil
}

// LatestPreview returns the result of the most recent preview, if it
// succeeded
func (o *Orchestrator) LatestPreview() (schema.TaskPreview, bool) {
	o.viewMu.Lock()
	defer o.viewMu.Unlock()
	if o.latestPreview == nil {
		return schema.TaskPreview{}, false
	}
	return *o.latestPreview, true
}

// Analyze runs AI analysis for a task. Test cases keep the order the AI
// returned them in. Stale responses are dropped like in Preview.
func (o *Orchestrator) Analyze(ctx context.Context, key string, settings schema.AnalysisSettings) (*schema.AnalysisResult, error) {
	key = schema.NormalizeTaskKey(key)
	if err := o.checkAnalysis(key, settings); err != nil {
		return nil, err
	}

	o.viewMu.Lock()
	o.analyzeSeq++
	ticket := o.analyzeSeq
	o.viewMu.Unlock()

	result, err := o.analyze(ctx, key, settings)

	o.viewMu.Lock()
	defer o.viewMu.Unlock()
	if ticket != o.analyzeSeq {
		o.logger.Debug("dropping stale analysis", "task", key)
		return nil, ErrSuperseded
	}
	if err != nil {
		o.latestAnalysis = nil
		return nil, err
	}
	o.latestAnalysis = result
	return result, nil
}

func (o *Orchestrator) checkAnalysis(key string, settings schema.AnalysisSettings) error {
	if !settings.Enabled || o.analyzer == nil {
		return ErrAIDisabled
	}
	if key == "" {
		return client.Validationf("task key is required")
	}
	return nil
}

func (o *Orchestrator) analyze(ctx context.Context, key string, settings schema.AnalysisSettings) (*schema.AnalysisResult, error) {
	result, err := o.analyzer.Analyze(ctx, key, settings.Features, settings.CustomInstructions)
	if err != nil {
		return nil, asUpstream(err)
	}
	return result, nil
}

// LatestAnalysis returns the result of the most recent analysis, if any
func (o *Orchestrator) LatestAnalysis() (*schema.AnalysisResult, bool) {
	o.viewMu.Lock()
	defer o.viewMu.Unlock()
	return o.latestAnalysis, o.latestAnalysis != nil
}

// Candidates returns what would be submitted for a task: the single
// implicit candidate when AI is off, the analysis test cases otherwise.
// Candidate lookups are independent of Preview and Analyze: they neither
// supersede those requests nor get superseded by them.
func (o *Orchestrator) Candidates(ctx context.Context, key string, settings schema.AnalysisSettings) ([]schema.TestCaseCandidate, error) {
	key = schema.NormalizeTaskKey(key)
	if !settings.Enabled {
		if key == "" {
			return nil, client.Validationf("task key is required")
		}
		preview, err := o.tracker.Preview(ctx, key)
		if err != nil {
			return nil, err
		}
		return []schema.TestCaseCandidate{schema.CandidateFromPreview(preview)}, nil
	}

	if err := o.checkAnalysis(key, settings); err != nil {
		return nil, err
	}
	result, err := o.analyze(ctx, key, settings)
	if err != nil {
		return nil, err
	}
	return result.TestCases, nil
}

// CollectCandidates gathers candidates for several tasks in key order. At
// most maxTasks keys are accepted when maxTasks is positive.
func (o *Orchestrator) CollectCandidates(ctx context.Context, keys []string, settings schema.AnalysisSettings, maxTasks int) ([]schema.TestCaseCandidate, error) {
	if len(keys) == 0 {
		return nil, client.Validationf("task key is required")
	}
	if maxTasks > 0 && len(keys) > maxTasks {
		return nil, client.Validationf("at most %d tasks can be synced at once, got %d", maxTasks, len(keys))
	}
	var all []schema.TestCaseCandidate
	for _, key := range keys {
		cs, err := o.Candidates(ctx, key, settings)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		all = append(all, cs...)
	}
	return all, nil
}

// Sync starts a new operation that submits candidates in order. It returns
// when every candidate has an entry, or earlier when a duplicate needs a
// decision (the report is then in the awaiting state; see ResolveDuplicate).
func (o *Orchestrator) Sync(ctx context.Context, target schema.SyncTarget, candidates []schema.TestCaseCandidate) (*schema.SyncReport, error) {
	o.mu.Lock()
	if o.busyLocked() {
		o.mu.Unlock()
		return nil, ErrAlreadyInProgress
	}
	if err := o.checkTarget(target, candidates); err != nil {
		o.mu.Unlock()
		return nil, err
	}

	op := &operation{
		id:         uuid.New().String(),
		target:     target,
		candidates: append([]schema.TestCaseCandidate(nil), candidates...),
		state:      schema.StateSubmitting,
	}
	o.op = op
	o.results.Reset()
	o.conflicts.Clear()
	o.mu.Unlock()

	if r, ok := o.writer.(Resetter); ok {
		r.Reset()
	}

	o.logger.Info("sync started",
		"operation", op.id,
		"project", target.ProjectID,
		"folder", target.FolderID,
		"candidates", len(op.candidates),
	)
	return o.run(ctx, op), nil
}

// ResolveDuplicate applies a decision to the pending conflict and resumes
// the operation. Without a pending conflict it fails with
// ErrNoActiveConflict and changes nothing.
func (o *Orchestrator) ResolveDuplicate(ctx context.Context, d Decision) (*schema.SyncReport, error) {
	o.mu.Lock()
	op := o.op
	if op == nil || op.state != schema.StateAwaitingConflictDecision {
		o.mu.Unlock()
		return nil, ErrNoActiveConflict
	}
	conflict, ok := o.conflicts.Take()
	if !ok {
		o.mu.Unlock()
		return nil, ErrNoActiveConflict
	}
	op.state = schema.StateSubmitting
	o.mu.Unlock()

	o.logger.Debug("duplicate decision", "operation", op.id, "case", conflict.ExistingCaseName, "overwrite", d.Overwrite)

	if !d.Overwrite {
		o.mu.Lock()
		o.results.Append(schema.SyncResultEntry{
			Task:     conflict.Candidate.TaskKey,
			Status:   schema.StatusDuplicate,
			CaseName: conflict.ExistingCaseName,
			Message:  DuplicateMessage,
		})
		o.mu.Unlock()
		return o.run(ctx, op), nil
	}

	res, err := o.writer.CreateOrUpdate(ctx, op.target, conflict.Candidate, true)
	if err == nil && res.Status == schema.WriteDuplicate {
		err = fmt.Errorf("%w: case %q still reported as duplicate after overwrite", client.ErrUpstream, conflict.ExistingCaseName)
	}
	if stop := o.apply(ctx, op, conflict.Candidate, res, err); stop {
		return o.Report(), nil
	}
	return o.run(ctx, op), nil
}

// Dismiss closes the conflict without overwriting
func (o *Orchestrator) Dismiss(ctx context.Context) (*schema.SyncReport, error) {
	return o.ResolveDuplicate(ctx, Decision{Overwrite: false})
}

// run submits candidates from op.next onwards
func (o *Orchestrator) run(ctx context.Context, op *operation) *schema.SyncReport {
	for {
		o.mu.Lock()
		if op.next >= len(op.candidates) {
			op.state = schema.StateCompleted
			report := o.reportLocked()
			o.mu.Unlock()
			o.logger.Info("sync complete",
				"operation", op.id,
				"success", report.Summary.Success,
				"duplicate", report.Summary.Duplicate,
				"error", report.Summary.Error,
			)
			return report
		}
		c := op.candidates[op.next]
		op.next++
		o.mu.Unlock()

		res, err := o.writer.CreateOrUpdate(ctx, op.target, c, false)

		if (err == nil && res.Status == schema.WriteDuplicate) || errors.Is(err, client.ErrConflict) {
			name := res.CaseName
			if name == "" {
				name = scenario.CaseName(c)
			}
			o.mu.Lock()
			// The slot was cleared before this candidate was submitted
			_ = o.conflicts.Raise(schema.DuplicateConflict{
				Candidate:        c,
				ExistingCaseName: name,
				ExistingCaseID:   res.CaseID,
			})
			op.state = schema.StateAwaitingConflictDecision
			report := o.reportLocked()
			o.mu.Unlock()
			o.logger.Info("duplicate found, waiting for decision", "operation", op.id, "case", name)
			return report
		}

		if stop := o.apply(ctx, op, c, res, err); stop {
			return o.Report()
		}
	}
}

// apply records the outcome of one write. It returns true when the error
// ended the operation.
func (o *Orchestrator) apply(ctx context.Context, op *operation, c schema.TestCaseCandidate, res schema.WriteResult, err error) bool {
	if err == nil {
		entry := schema.SyncResultEntry{
			Task:       c.TaskKey,
			Status:     schema.StatusSuccess,
			Action:     schema.ActionCreated,
			CaseName:   res.CaseName,
			ImageCount: res.ImageCount,
		}
		if res.Status == schema.WriteUpdated {
			entry.Action = schema.ActionUpdated
		}
		if entry.CaseName == "" {
			entry.CaseName = scenario.CaseName(c)
		}

		o.mu.Lock()
		o.results.Append(entry)
		o.mu.Unlock()

		o.record(ctx, op.target, entry)
		return false
	}

	entry := schema.SyncResultEntry{
		Task:     c.TaskKey,
		Status:   schema.StatusError,
		CaseName: scenario.CaseName(c),
		Message:  err.Error(),
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.results.Append(entry)

	if !isFatal(ctx, err) {
		o.logger.Warn("candidate failed", "operation", op.id, "task", c.TaskKey, "error", err)
		return false
	}

	o.logger.Error("sync aborted", "operation", op.id, "error", err)
	for _, rest := range op.candidates[op.next:] {
		o.results.Append(schema.SyncResultEntry{
			Task:     rest.TaskKey,
			Status:   schema.StatusError,
			CaseName: scenario.CaseName(rest),
			Message:  "not submitted: " + err.Error(),
		})
	}
	op.next = len(op.candidates)
	op.err = err
	op.state = schema.StateCompleted
	return true
}

func (o *Orchestrator) record(ctx context.Context, target schema.SyncTarget, entry schema.SyncResultEntry) {
	if o.recorder == nil {
		return
	}
	if err := o.recorder.RecordSync(ctx, target, entry); err != nil {
		o.logger.Warn("failed to record sync history", "task", entry.Task, "error", err)
	}
}

// checkTarget validates the destination before any remote call
func (o *Orchestrator) checkTarget(target schema.SyncTarget, candidates []schema.TestCaseCandidate) error {
	if err := o.validate.Struct(target); err != nil {
		return client.Validationf("invalid sync target: %s", describeValidation(err))
	}
	if o.folders != nil && o.folders.Loaded(target.ProjectID) && !o.folders.Contains(target.ProjectID, target.FolderID) {
		return client.Validationf("folder %d does not exist in project %d", target.FolderID, target.ProjectID)
	}
	if len(candidates) == 0 {
		return client.Validationf("nothing to sync")
	}
	return nil
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Field() {
		case "FolderID":
			msgs = append(msgs, "a target folder must be selected")
		case "ProjectID":
			msgs = append(msgs, "project id must be positive")
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}

func (o *Orchestrator) busyLocked() bool {
	return o.op != nil && (o.op.state == schema.StateSubmitting || o.op.state == schema.StateAwaitingConflictDecision)
}

// Report returns a snapshot of the current operation
func (o *Orchestrator) Report() *schema.SyncReport {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.reportLocked()
}

func (o *Orchestrator) reportLocked() *schema.SyncReport {
	report := &schema.SyncReport{State: schema.StateIdle, Entries: []schema.SyncResultEntry{}}
	if o.op == nil {
		return report
	}
	report.OperationID = o.op.id
	report.State = o.op.state
	report.Target = o.op.target
	report.Entries = o.results.Entries()
	report.Summary = o.results.Summary()
	report.Conflict = o.conflicts.Pending()
	if o.op.err != nil {
		report.Err = o.op.err
		report.Error = o.op.err.Error()
	}
	return report
}

// State returns the lifecycle position of the current operation
func (o *Orchestrator) State() schema.State {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.op == nil {
		return schema.StateIdle
	}
	return o.op.state
}

// PendingConflict returns the conflict awaiting a decision, or nil
func (o *Orchestrator) PendingConflict() *schema.DuplicateConflict {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.conflicts.Pending()
}
