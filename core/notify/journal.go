package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Journal appends leads to the leads table.
type Journal struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewJournal wraps an open pool.
func NewJournal(db *sqlx.DB) *Journal {
	return &Journal{db: db, now: time.Now}
}

type leadRow struct {
	ID             uuid.UUID `db:"id"`
	Kind           string    `db:"kind"`
	ConversationID string    `db:"conversation_id"`
	Line           string    `db:"line"`
	Name           string    `db:"name"`
	Phone          string    `db:"phone"`
	Email          string    `db:"email"`
	City           string    `db:"city"`
	Detail         string    `db:"detail"`
	CreatedAt      time.Time `db:"created_at"`
}

const insertLead = `INSERT INTO leads
	(id, kind, conversation_id, line, name, phone, email, city, detail, created_at)
	VALUES (:id, :kind, :conversation_id, :line, :name, :phone, :email, :city, :detail, :created_at)`

// Notify implements Notifier.
func (j *Journal) Notify(ctx context.Context, lead Lead) error {
	at := lead.At
	if at.IsZero() {
		at = j.now()
	}
	row := leadRow{
		ID:             uuid.New(),
		Kind:           lead.Kind,
		ConversationID: lead.ConversationID,
		Line:           lead.Line,
		Name:           lead.Name,
		Phone:          lead.Phone,
		Email:          lead.Email,
		City:           lead.City,
		Detail:         lead.Detail,
		CreatedAt:      at.UTC(),
	}
	if _, err := j.db.NamedExecContext(ctx, insertLead, row); err != nil {
		return fmt.Errorf("notify: journal insert: %w", err)
	}
	return nil
}

// Recent returns the newest leads of kind, or of every kind when kind is empty.
func (j *Journal) Recent(ctx context.Context, kind string, limit int) ([]Lead, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []leadRow
	q := `SELECT id, kind, conversation_id, line, name, phone, email, city, detail, created_at
		FROM leads WHERE ($1 = '' OR kind = $1) ORDER BY created_at DESC LIMIT $2`
	if err := j.db.SelectContext(ctx, &rows, q, kind, limit); err != nil {
		return nil, fmt.Errorf("notify: journal select: %w", err)
	}
	out := make([]Lead, 0, len(rows))
	for _, r := range rows {
		out = append(out, Lead{
			Kind: r.Kind, Name: r.Name, Phone: r.Phone, Email: r.Email, City: r.City,
			Detail: r.Detail, ConversationID: r.ConversationID, Line: r.Line, At: r.CreatedAt,
		})
	}
	return out, nil
}
