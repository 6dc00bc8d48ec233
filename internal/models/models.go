package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

type Role string

const (
	RoleUser       Role = "user"
	RoleSpecialist Role = "specialist"
	RoleAdmin      Role = "admin"
)

type Status int

const (
	StatusOpen       Status = 1
	StatusInProgress Status = 2
	StatusResolved   Status = 3
	StatusClosed     Status = 4
)

// Timestamp accepts both RFC 3339 and the zone-less ISO form the
// backend emits for naive datetimes.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unsupported timestamp %q", raw)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

type User struct {
	ID       int64  `json:"id"`
	Email    string `json:"email,omitempty"`
	FullName string `json:"full_name"`
	Role     Role   `json:"role"`
}

type Ticket struct {
	ID          int64     `json:"id"`
	Description string    `json:"description"`
	ContactInfo string    `json:"contact_info"`
	StatusID    Status    `json:"status_id"`
	CreatedAt   Timestamp `json:"created_at"`
}

type Recommendation struct {
	KBID       int64  `json:"kb_id"`
	Rank       int    `json:"rank"`
	Similarity int    `json:"similarity"`
	Problem    string `json:"problem"`
	Solution   string `json:"solution"`
}

type TicketDetails struct {
	TicketID        int64            `json:"ticket_id"`
	Description     string           `json:"description"`
	ContactInfo     string           `json:"contact_info"`
	StatusID        Status           `json:"status_id"`
	IsNovel         bool             `json:"is_novel"`
	MaxSimilarity   int              `json:"max_similarity"`
	Recommendations []Recommendation `json:"recommendations"`
}

type KnowledgeEntry struct {
	ID              int64     `json:"id"`
	Problem         string    `json:"problem"`
	Solution        string    `json:"solution"`
	Frequency       int       `json:"frequency"`
	IsAutoGenerated bool      `json:"is_auto_generated"`
	CreatedAt       Timestamp `json:"created_at"`
}

type Stats struct {
	TicketsTotal   int64 `json:"tickets_total"`
	TicketsOpen    int64 `json:"tickets_open"`
	KnowledgeTotal int64 `json:"knowledge_total"`
	KnowledgeUsage int64 `json:"knowledge_usage"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	UserID   int64  `json:"user_id"`
	FullName string `json:"full_name"`
	Role     Role   `json:"role"`
}

type CreateTicketRequest struct {
	Description string `json:"description" validate:"min=10,max=5000"`
	ContactInfo string `json:"contact_info" validate:"max=500"`
}

type ConfirmRequest struct {
	IsConfirmed bool `json:"is_confirmed"`
}

type ResolveRequest struct {
	AppliedSolution string `json:"applied_solution" validate:"max=5000"`
	UsedKB          bool   `json:"used_kb"`
	AcceptedKBID    *int64 `json:"accepted_kb_id"`
}

type ResolveResponse struct {
	Message   string `json:"message"`
	AddedToKB bool   `json:"added_to_kb"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
