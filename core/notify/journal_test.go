package notify

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a migrated database named by STUDIOBOT_TEST_DSN.
func TestJournalRoundTrip(t *testing.T) {
	dsn := os.Getenv("STUDIOBOT_TEST_DSN")
	if dsn == "" {
		t.Skip("STUDIOBOT_TEST_DSN not set")
	}
	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	j := NewJournal(db)
	lead := sample
	lead.Kind = "journal_test"
	lead.At = time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	require.NoError(t, j.Notify(ctx, lead))
	t.Cleanup(func() { _, _ = db.Exec(`DELETE FROM leads WHERE kind = 'journal_test'`) })

	got, err := j.Recent(ctx, "journal_test", 5)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, lead.Detail, got[0].Detail)
	assert.True(t, lead.At.Equal(got[0].At))
}
