package entity

import (
	"time"

	"github.com/joseph-ayodele/jobcopilot/constants"
)

// ParsedResume is the structured result of parsing a résumé.
type ParsedResume struct {
	RawText           string             `json:"raw_text"`
	Source            ResumeSource       `json:"source"`
	Skills            []string           `json:"skills,omitempty"`
	YearsOfExperience *int               `json:"years_of_experience,omitempty"`
	Experiences       []ResumeExperience `json:"experiences,omitempty"`
	Educations        []ResumeEducation  `json:"educations,omitempty"`
}

// ResumeSource describes where the résumé text came from.
type ResumeSource struct {
	Type        constants.SourceType `json:"type"`
	FileName    string               `json:"file_name,omitempty"`
	ContentType string               `json:"content_type,omitempty"`
	UploadedAt  time.Time            `json:"uploaded_at"`
}

type ResumeExperience struct {
	Company   string   `json:"company,omitempty"`
	Role      string   `json:"role,omitempty"`
	StartYear *int     `json:"start_year,omitempty"`
	EndYear   *int     `json:"end_year,omitempty"`
	IsCurrent bool     `json:"is_current"`
	Details   []string `json:"details,omitempty"`
}

type ResumeEducation struct {
	Institution string `json:"institution,omitempty"`
	Degree      string `json:"degree,omitempty"`
	Field       string `json:"field,omitempty"`
	StartYear   *int   `json:"start_year,omitempty"`
	EndYear     *int   `json:"end_year,omitempty"`
}
