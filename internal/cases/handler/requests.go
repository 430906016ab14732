package handler

import "time"

// CreateCaseRequest is the citizen-facing report submission payload.
type CreateCaseRequest struct {
	Subject  SubjectPayload  `json:"subject"`
	Reporter ReporterPayload `json:"reporter"`
}

// SubjectPayload describes the missing person in a report.
type SubjectPayload struct {
	Name             string    `json:"name"`
	BirthYear        int       `json:"birth_year"`
	Gender           string    `json:"gender"`
	LastSeenLocation string    `json:"last_seen_location"`
	LastSeenAt       time.Time `json:"last_seen_at"`
}

// ReporterPayload carries the reporter's contact details.
type ReporterPayload struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// ReasonRequest carries the free-text reason for reject and close commands.
type ReasonRequest struct {
	Reason string `json:"reason"`
}
