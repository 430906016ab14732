package handler

import (
	"time"

	"casetrace/internal/domain"
)

// CaseResponse is the external representation of a case.
type CaseResponse struct {
	Number    string          `json:"case_number"`
	Status    string          `json:"status"`
	Subject   SubjectPayload  `json:"subject"`
	Reporter  ReporterPayload `json:"reporter"`
	CreatedAt time.Time       `json:"created_at"`
}

func toCaseResponse(c *domain.Case) CaseResponse {
	return CaseResponse{
		Number: c.Number.String(),
		Status: c.Status.String(),
		Subject: SubjectPayload{
			Name:             c.Subject.Name,
			BirthYear:        c.Subject.BirthYear,
			Gender:           c.Subject.Gender,
			LastSeenLocation: c.Subject.LastSeenLocation,
			LastSeenAt:       c.Subject.LastSeenAt,
		},
		Reporter: ReporterPayload{
			Name:  c.Reporter.Name,
			Phone: c.Reporter.Phone,
		},
		CreatedAt: c.CreatedAt,
	}
}

func toCaseResponses(cs []*domain.Case) []CaseResponse {
	out := make([]CaseResponse, 0, len(cs))
	for _, c := range cs {
		out = append(out, toCaseResponse(c))
	}
	return out
}

// AuditEntryResponse is one ledger line as shown to callers.
type AuditEntryResponse struct {
	Seq        int64     `json:"seq"`
	Timestamp  time.Time `json:"timestamp"`
	ActorID    string    `json:"actor_id"`
	Action     string    `json:"action"`
	FromStatus string    `json:"from_status,omitempty"`
	ToStatus   string    `json:"to_status,omitempty"`
	Note       string    `json:"note,omitempty"`
}

func toAuditResponses(entries []domain.AuditEntry) []AuditEntryResponse {
	out := make([]AuditEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, AuditEntryResponse{
			Seq:        e.Seq,
			Timestamp:  e.Timestamp,
			ActorID:    e.ActorID,
			Action:     string(e.Action),
			FromStatus: e.FromStatus.String(),
			ToStatus:   e.ToStatus.String(),
			Note:       e.Note,
		})
	}
	return out
}

// ConsistencyResponse reports the ledger replay self-check result.
type ConsistencyResponse struct {
	CaseNumber string `json:"case_number"`
	Stored     string `json:"stored_status"`
	Replayed   string `json:"replayed_status"`
	Consistent bool   `json:"consistent"`
}
