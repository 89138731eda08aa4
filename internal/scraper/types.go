// Package scraper defines core types shared across subsystems.
package scraper

// CasePayload is the structured record returned by the portal for one case id.
// The portal wraps it in an envelope whose Result field is zero on success.
type CasePayload struct {
	CaseNumber    string         `json:"caseNumber"`
	Type          string         `json:"type,omitempty"`
	Style         string         `json:"style,omitempty"`
	FileDate      string         `json:"fileDate,omitempty"`
	Status        string         `json:"status,omitempty"`
	CourtLocation string         `json:"courtLocation,omitempty"`
	Parties       []CaseParty    `json:"caseParties,omitempty"`
	Attorneys     []CaseAttorney `json:"caseAttornies,omitempty"`
	Events        []CaseEvent    `json:"caseEvents,omitempty"`
	Hearings      []CaseHearing  `json:"caseHearings,omitempty"`
}

// CaseParty is one named party on a case.
type CaseParty struct {
	Type         string `json:"type,omitempty"`
	FirstName    string `json:"firstName,omitempty"`
	MiddleName   string `json:"middleName,omitempty"`
	LastName     string `json:"lastName,omitempty"`
	NickName     string `json:"nickName,omitempty"`
	BusinessName string `json:"businessName,omitempty"`
	FullName     string `json:"fullName,omitempty"`
	IsDefendant  bool   `json:"isDefendant,omitempty"`
}

// CaseAttorney is one attorney of record.
type CaseAttorney struct {
	FirstName    string `json:"firstName,omitempty"`
	MiddleName   string `json:"middleName,omitempty"`
	LastName     string `json:"lastName,omitempty"`
	Representing string `json:"representing,omitempty"`
	BarNumber    string `json:"barNumber,omitempty"`
	IsLead       bool   `json:"isLead,omitempty"`
}

// CaseEvent is a docket entry, possibly carrying document references.
type CaseEvent struct {
	Date        string        `json:"date,omitempty"`
	Description string        `json:"description,omitempty"`
	Documents   []DocumentRef `json:"documents,omitempty"`
}

// CaseHearing is a scheduled or past hearing, possibly carrying document references.
type CaseHearing struct {
	HearingID     string        `json:"hearingId,omitempty"`
	Calendar      string        `json:"calendar,omitempty"`
	Type          string        `json:"type,omitempty"`
	Date          string        `json:"date,omitempty"`
	Time          string        `json:"time,omitempty"`
	HearingResult string        `json:"hearingResult,omitempty"`
	Documents     []DocumentRef `json:"documents,omitempty"`
}

// DocumentRef identifies one file attached to an event or hearing.
// ContentBase64 is empty until the document pipeline downloads it. The same
// document id may appear under both an event and a hearing; after a successful
// download every occurrence carries the same content.
type DocumentRef struct {
	DocumentID    string `json:"documentId"`
	DocumentName  string `json:"documentName,omitempty"`
	ContentBase64 string `json:"pdf_base64,omitempty"`
}

// DocumentStats summarizes one document-pipeline run for a single case.
type DocumentStats struct {
	Total      int
	Downloaded int
	Failed     int
}

// UploadStats reports per-document persistence outcomes returned by the case store.
type UploadStats struct {
	Uploaded int
	Failed   int
}

// CaseOutcome is the terminal state of one case worker.
type CaseOutcome string

// Terminal case states recorded in run statistics.
const (
	OutcomeSuccess CaseOutcome = "success"
	OutcomeSkipped CaseOutcome = "skipped"
	OutcomeFailed  CaseOutcome = "failed"
)

// FailureReason explains why a case ended in OutcomeFailed.
type FailureReason string

// Failure reasons surfaced in logs and metrics.
const (
	FailureNoToken           FailureReason = "no_token"
	FailureNotFound          FailureReason = "not_found"
	FailureFetchExhausted    FailureReason = "fetch_exhausted"
	FailureMissingCaseNumber FailureReason = "missing_case_number"
	FailureSaveExhausted     FailureReason = "save_exhausted"
	FailurePanic             FailureReason = "panic"
)
