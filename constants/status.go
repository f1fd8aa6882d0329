package constants

// JobStatus is the canonical analysis status stored on a job document.
type JobStatus string

// Stable values (store these exact strings).
const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED" // terminal
)

// IsTerminal reports whether no further transitions are expected.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Error codes recorded on failed jobs.
const (
	ErrCodeParserFailed      = "PARSER_FAILED"
	ErrCodePipelineMisconfig = "PIPELINE_MISCONFIGURED"
	ErrCodeSchemaInvalid     = "SCHEMA_INVALID"
	ErrCodeAttemptsExhausted = "ATTEMPTS_EXHAUSTED"
	ErrDetailAnalysisFailed  = "Job analysis processing failed"
	MaxErrorMessageLength    = 500
)
