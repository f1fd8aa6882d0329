package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/jobcopilot/constants"
)

// Job is a submitted job description and the state of its analysis.
type Job struct {
	ID        uuid.UUID  `json:"id"`
	UserID    string     `json:"user_id"`
	ProfileID string     `json:"profile_id"`
	Display   *Display   `json:"display,omitempty"`
	Input     JobInput   `json:"input"`
	Analysis  Analysis   `json:"analysis"`
	Extracted *Extracted `json:"extracted,omitempty"`
	Timestamps
}

// Display carries the caller supplied labels for a job.
type Display struct {
	Name        string `json:"name,omitempty"`
	SourceLabel string `json:"source_label,omitempty"`
}

// JobInput holds what was submitted. RawText never changes after creation;
// NormalizedText is written only by a successful analysis.
type JobInput struct {
	InputType      constants.InputType `json:"input_type"`
	URL            *string             `json:"url,omitempty"`
	RawText        *string             `json:"raw_text,omitempty"`
	NormalizedText *string             `json:"normalized_text,omitempty"`
	Language       *string             `json:"language,omitempty"`
	SubmittedAt    time.Time           `json:"submitted_at"`
}

// Analysis is the lease and lifecycle state of a job.
type Analysis struct {
	Status      constants.JobStatus `json:"status"`
	Attempt     int                 `json:"attempt"`
	LockedBy    *string             `json:"locked_by,omitempty"`
	LockedAt    *time.Time          `json:"locked_at,omitempty"`
	StartedAt   *time.Time          `json:"started_at,omitempty"`
	CompletedAt *time.Time          `json:"completed_at,omitempty"`
	FailedAt    *time.Time          `json:"failed_at,omitempty"`
	Error       *JobError           `json:"error,omitempty"`
}

// JobError is recorded with a FAILED job.
type JobError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Detail    string `json:"detail,omitempty"`
	Retryable bool   `json:"retryable"`
}

// Extracted is the structured job description metadata.
type Extracted struct {
	Seniority        string   `json:"seniority" bson:"seniority"`
	Domain           string   `json:"domain" bson:"domain"`
	RequiredSkills   []string `json:"required_skills,omitempty" bson:"requiredSkills,omitempty"`
	PreferredSkills  []string `json:"preferred_skills,omitempty" bson:"preferredSkills,omitempty"`
	TechStack        []string `json:"tech_stack,omitempty" bson:"techStack,omitempty"`
	Responsibilities []string `json:"responsibilities,omitempty" bson:"responsibilities,omitempty"`
	Signals          *Signals `json:"signals,omitempty" bson:"signals,omitempty"`
	Raw              *Raw     `json:"raw,omitempty" bson:"raw,omitempty"`
}

// Signals explains how seniority and domain were chosen.
type Signals struct {
	SeniorityReason string `json:"seniority_reason,omitempty" bson:"seniorityReason,omitempty"`
	DomainReason    string `json:"domain_reason,omitempty" bson:"domainReason,omitempty"`
}

// Raw holds unaggregated extraction evidence.
type Raw struct {
	SkillMentions []SkillMention `json:"skill_mentions,omitempty" bson:"skillMentions,omitempty"`
}

// SkillMention counts how often a canonical skill was matched.
type SkillMention struct {
	Name  string `json:"name" bson:"name"`
	Count int    `json:"count" bson:"count"`
}

// Leased reports whether the job is currently held by worker.
func (j *Job) Leased(worker string) bool {
	return j.Analysis.Status == constants.JobStatusProcessing &&
		j.Analysis.LockedBy != nil && *j.Analysis.LockedBy == worker
}
