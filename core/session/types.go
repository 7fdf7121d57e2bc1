package session

import "time"

// State identifies a step of the conversation flow.
type State string

// Field names stored in Session.Fields.
const (
	FieldName     = "name"
	FieldEmail    = "email"
	FieldPhone    = "phone"
	FieldCity     = "city"
	FieldStatus   = "status"
	FieldMode     = "mode"
	FieldReferral = "referral"
	FieldConcern  = "concern"
	FieldFeedback = "feedback"
)

// Session is the mutable record of one conversation.
type Session struct {
	ConversationID string
	State          State
	// Tag qualifies State when the flow is collecting free-form input.
	Tag    string
	Fields map[string]string
	// Line is the business phone-number id the user wrote to.
	Line      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Field returns a collected value; absent fields read as "".
func (s *Session) Field(name string) string {
	if s == nil || s.Fields == nil {
		return ""
	}
	return s.Fields[name]
}

// SetField stores a collected value.
func (s *Session) SetField(name, value string) {
	if s.Fields == nil {
		s.Fields = make(map[string]string)
	}
	s.Fields[name] = value
}

// Clone returns a deep copy so callers can mutate without racing the store.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Fields = make(map[string]string, len(s.Fields))
	for k, v := range s.Fields {
		cp.Fields[k] = v
	}
	return &cp
}

// Store governs creation, lookup, mutation and deletion of sessions.
type Store interface {
	GetOrCreate(id string) *Session
	Get(id string) (*Session, bool)
	Put(id string, s *Session)
	Delete(id string)
	Len() int
}
