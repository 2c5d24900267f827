package provision

import (
	"encoding/json"
)

// Status tags an Outcome.
type Status string

const (
	StatusCreated Status = "created"
	StatusUpdated Status = "updated"
	StatusFailed  Status = "failed"
)

// Outcome is the result of applying one RecordSpec.
type Outcome struct {
	// Index is the spec's position within the session.
	Index int

	Status Status

	// Kind and Label identify the spec ("Company",
	// `Company{company_name=Galaxy Bio}`).
	Kind  string
	Label string

	// RecordID and Seq are set for Created and Updated.
	RecordID int64
	Seq      int64

	// Changed reports whether an update moved any field value.
	// ChangedFields lists the fields that moved, sorted.
	Changed       bool
	ChangedFields []string

	// Err is set for Failed.
	Err *Error
}

// Failed reports whether the outcome is a failure.
func (o Outcome) Failed() bool {
	return o.Status == StatusFailed
}

// outcomeJSON is the wire form of Outcome.
type outcomeJSON struct {
	Index         int       `json:"index"`
	Status        Status    `json:"status"`
	Kind          string    `json:"kind"`
	Label         string    `json:"label"`
	RecordID      int64     `json:"record_id,omitempty"`
	Seq           int64     `json:"seq,omitempty"`
	Changed       bool      `json:"changed,omitempty"`
	ChangedFields []string  `json:"changed_fields,omitempty"`
	Error         *errorRef `json:"error,omitempty"`
}

type errorRef struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// MarshalJSON renders the outcome with its error flattened to
// {kind, message}.
func (o Outcome) MarshalJSON() ([]byte, error) {
	out := outcomeJSON{
		Index:         o.Index,
		Status:        o.Status,
		Kind:          o.Kind,
		Label:         o.Label,
		RecordID:      o.RecordID,
		Seq:           o.Seq,
		Changed:       o.Changed,
		ChangedFields: o.ChangedFields,
	}
	if o.Err != nil {
		out.Error = &errorRef{Kind: o.Err.Kind, Message: o.Err.Error()}
	}
	return json.Marshal(out)
}

// Summary is the result of a whole session.
type Summary struct {
	SessionID string    `json:"session_id"`
	Committed bool      `json:"committed"`
	Created   int       `json:"created"`
	Updated   int       `json:"updated"`
	Failed    int       `json:"failed"`
	Outcomes  []Outcome `json:"outcomes"`
}

func summarize(sessionID string, committed bool, outcomes []Outcome) Summary {
	s := Summary{
		SessionID: sessionID,
		Committed: committed,
		Outcomes:  append([]Outcome{}, outcomes...),
	}
	for _, o := range outcomes {
		switch o.Status {
		case StatusCreated:
			s.Created++
		case StatusUpdated:
			s.Updated++
		case StatusFailed:
			s.Failed++
		}
	}
	return s
}
