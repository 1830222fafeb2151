package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role selects the audience an answer is written for.
type Role string

const (
	RoleClinician       Role = "clinician"
	RolePatientOrFamily Role = "patient_or_family"
)

// Roles lists every valid role.
var Roles = []Role{RoleClinician, RolePatientOrFamily}

// ParseRole accepts the canonical names plus a few common aliases, case-insensitively.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "clinician", "professional", "health_professional", "doctor":
		return RoleClinician, nil
	case "patient_or_family", "patient", "family", "patient/family":
		return RolePatientOrFamily, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

func (r Role) Valid() bool {
	return r == RoleClinician || r == RolePatientOrFamily
}

// QueryRecord is one answered question. Records are append-only.
type QueryRecord struct {
	ID       uuid.UUID       `json:"id"`
	Question string          `json:"question"`
	Role     Role            `json:"role"`
	Segments []ScoredSegment `json:"segments"`
	Answer   string          `json:"answer"`
	AskedAt  time.Time       `json:"asked_at"`
	Duration time.Duration   `json:"duration"`
}

// Turn speakers.
const (
	SpeakerUser      = "user"
	SpeakerAssistant = "assistant"
)

// Turn is a single displayed conversation message.
type Turn struct {
	Speaker string `json:"role"`
	Content string `json:"content"`
}

// Turns expands the record into its question and answer turns.
func (q QueryRecord) Turns() []Turn {
	return []Turn{
		{Speaker: SpeakerUser, Content: q.Question},
		{Speaker: SpeakerAssistant, Content: q.Answer},
	}
}
