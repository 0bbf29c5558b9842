package core

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Audit struct {
	CreatedAt time.Time `db:"created_at"`
	CreatedBy string    `db:"created_by"`
}

type account struct {
	Audit
	ID      int64          `db:"id"`
	Name    string         `db:"name"`
	Balance float64        `db:"balance"`
	Active  bool           `db:"active"`
	Nick    *string        `db:"nick"`
	Note    sql.NullString `db:"note"`
	Raw     []byte         `db:"raw"`
	Level   uint8
	secret  string //nolint:unused
	Skipped string `db:"-"`
}

func TestDecodeRow(t *testing.T) {
	row := Row{
		"id":         int64(9),
		"NAME":       "Mallory",
		"balance":    "12.75",
		"active":     int64(1),
		"nick":       "mal",
		"note":       nil,
		"raw":        "bytes",
		"level":      int64(3),
		"created_at": "2024-05-06 07:08:09",
		"created_by": "admin",
		"Skipped":    "no",
		"extra":      "ignored",
	}

	var a account
	require.NoError(t, decodeRow(row, &a))

	assert.Equal(t, int64(9), a.ID)
	assert.Equal(t, "Mallory", a.Name)
	assert.Equal(t, 12.75, a.Balance)
	assert.True(t, a.Active)
	require.NotNil(t, a.Nick)
	assert.Equal(t, "mal", *a.Nick)
	assert.False(t, a.Note.Valid)
	assert.Equal(t, []byte("bytes"), a.Raw)
	assert.Equal(t, uint8(3), a.Level)
	assert.Equal(t, time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC), a.CreatedAt)
	assert.Equal(t, "admin", a.CreatedBy)
	assert.Empty(t, a.Skipped)
}

func TestDecodeRow_Errors(t *testing.T) {
	var a account
	assert.Error(t, decodeRow(Row{}, a))
	assert.Error(t, decodeRow(Row{}, (*account)(nil)))
	assert.Error(t, decodeRow(Row{"id": "nine"}, &a))
	assert.Error(t, decodeRow(Row{"created_at": "yesterday"}, &a))
	assert.Error(t, decodeRow(Row{"active": "maybe"}, &a))
}

func TestDecodeRows(t *testing.T) {
	rows := []Row{{"id": int64(1)}, {"id": int64(2)}}

	var values []account
	require.NoError(t, decodeRows(rows, &values))
	require.Len(t, values, 2)
	assert.Equal(t, int64(2), values[1].ID)

	var ptrs []*account
	require.NoError(t, decodeRows(rows, &ptrs))
	require.Len(t, ptrs, 2)
	assert.Equal(t, int64(1), ptrs[0].ID)

	var ints []int
	assert.Error(t, decodeRows(rows, &ints))
	assert.Error(t, decodeRows(rows, values))
}

func TestParseTime(t *testing.T) {
	for _, s := range []string{
		"2024-05-06T07:08:09Z",
		"2024-05-06 07:08:09",
		"2024-05-06 07:08:09.5",
		"2024-05-06",
	} {
		_, err := parseTime(s)
		assert.NoError(t, err, s)
	}
	_, err := parseTime("06/05/2024")
	assert.Error(t, err)
}
