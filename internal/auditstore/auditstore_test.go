package auditstore_test

import (
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/technosupport/physical-mcp/internal/auditstore"
	"github.com/technosupport/physical-mcp/internal/replay"
)

func newEvent() replay.Event {
	return replay.Event{
		EventID:   "evt_1",
		EventType: "alert_fired",
		CameraID:  "cloud:a",
		Message:   "person detected at the door",
		Timestamp: time.Now(),
	}
}

func TestWriteEventSuccess(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := auditstore.New(db, nil)
	mock.ExpectExec("INSERT INTO audit_events").WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, s.WriteEvent(t.Context(), newEvent()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWriteEventFailsOverToSpool(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	tempDir := t.TempDir()
	require.NoError(t, auditstore.ConfigureSpool(tempDir, 10))

	s := auditstore.New(db, nil)
	mock.ExpectExec("INSERT INTO audit_events").WillReturnError(sql.ErrConnDone)

	require.NoError(t, s.WriteEvent(t.Context(), newEvent()))

	entries, err := os.ReadDir(tempDir)
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}

func TestReplaySpoolFlushesToDatabase(t *testing.T) {
	tempDir := t.TempDir()
	require.NoError(t, auditstore.ConfigureSpool(tempDir, 10))

	failDB, failMock, err := sqlmock.New()
	require.NoError(t, err)
	defer failDB.Close()
	failMock.ExpectExec("INSERT INTO audit_events").WillReturnError(sql.ErrConnDone)

	failingStore := auditstore.New(failDB, nil)
	require.NoError(t, failingStore.WriteEvent(t.Context(), newEvent()))

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectExec("INSERT INTO audit_events").WillReturnResult(sqlmock.NewResult(1, 1))

	s := auditstore.New(db, nil)
	succeeded, failed := s.ReplaySpool(t.Context())
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 0, failed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaySpoolNoopWhenEmpty(t *testing.T) {
	tempDir := t.TempDir()
	require.NoError(t, auditstore.ConfigureSpool(tempDir, 10))

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := auditstore.New(db, nil)
	succeeded, failed := s.ReplaySpool(t.Context())
	assert.Equal(t, 0, succeeded)
	assert.Equal(t, 0, failed)
}

func TestQueryReturnsEvents(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"event_id", "event_type", "camera_id", "camera_name", "rule_id", "rule_name", "message", "created_at"}).
		AddRow("evt_1", "alert_fired", "cloud:a", "Front door", "r_1", "Front door rule", "person detected", time.Now())
	mock.ExpectQuery("SELECT (.+) FROM audit_events").WillReturnRows(rows)

	s := auditstore.New(db, nil)
	events, err := s.Query(t.Context(), auditstore.Filter{EventType: "alert_fired"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "evt_1", events[0].EventID)
}
