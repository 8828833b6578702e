package schema

// ResultStatus is the outcome of one submitted candidate
type ResultStatus string

const (
	StatusSuccess   ResultStatus = "success"
	StatusDuplicate ResultStatus = "duplicate"
	StatusError     ResultStatus = "error"
)

// Action says what happened to the remote record on success
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
)

// WriteStatus is what the test-management boundary reports for one write
type WriteStatus string

const (
	WriteCreated   WriteStatus = "created"
	WriteUpdated   WriteStatus = "updated"
	WriteDuplicate WriteStatus = "duplicate"
)

// State is the lifecycle position of a sync operation
type State string

const (
	StateIdle                     State = "idle"
	StateSubmitting               State = "submitting"
	StateAwaitingConflictDecision State = "awaiting_conflict_decision"
	StateCompleted                State = "completed"
)

// DefaultCaseStatus is the run status given to freshly generated cases
const DefaultCaseStatus = "NO RUN"
