package pagination

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestCursorRoundTrip(t *testing.T) {
	in := Cursor{At: time.Date(2026, 3, 1, 10, 0, 0, 123, time.FixedZone("CET", 3600)), ID: uuid.New()}
	token := EncodeCursor(in)
	assert.NotContains(t, token, "=", "tokens are unpadded")

	out, err := ParseCursor(token)
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.True(t, in.At.Equal(out.At))
	assert.Equal(t, in.ID, out.ID)

	empty, err := ParseCursor("  ")
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	for _, token := range []string{"not-base64!", EncodeCursor(Cursor{}), "e30"} {
		_, err := ParseCursor(token)
		assert.True(t, errors.Is(err, ErrInvalidCursor), token)
	}
}

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, NormalizeLimit(0))
	assert.Equal(t, DefaultLimit, NormalizeLimit(-3))
	assert.Equal(t, MaxLimit, NormalizeLimit(1000))
	assert.Equal(t, 7, NormalizeLimit(7))
}

type listing struct {
	ID        uuid.UUID `gorm:"type:text;primaryKey"`
	CreatedAt time.Time
}

func TestNewestFirstWalksAllPagesWithoutGaps(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&listing{}))

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		// two rows share a timestamp so the id tiebreak matters
		at := base.Add(time.Duration(i/2) * time.Minute)
		require.NoError(t, conn.Create(&listing{ID: uuid.New(), CreatedAt: at}).Error)
	}

	seen := map[uuid.UUID]bool{}
	token := ""
	for pages := 0; pages < 10; pages++ {
		cursor, err := ParseCursor(token)
		require.NoError(t, err)
		var rows []listing
		require.NoError(t, NewestFirst("created_at").Apply(conn.Model(&listing{}), cursor, 2).Find(&rows).Error)
		page := Trim(rows, 2, func(l listing) Cursor { return Cursor{At: l.CreatedAt, ID: l.ID} })
		for _, item := range page.Items {
			assert.False(t, seen[item.ID], "row returned twice")
			seen[item.ID] = true
		}
		if page.NextCursor == "" {
			break
		}
		token = page.NextCursor
	}
	assert.Len(t, seen, 5)
}

func TestTrimSetsNextCursorOnlyWhenMoreRows(t *testing.T) {
	type row struct {
		id uuid.UUID
		at time.Time
	}
	now := time.Now().UTC()
	rows := []row{{uuid.New(), now}, {uuid.New(), now.Add(-time.Minute)}, {uuid.New(), now.Add(-2 * time.Minute)}}
	cursorOf := func(r row) Cursor { return Cursor{At: r.at, ID: r.id} }

	page := Trim(rows, 2, cursorOf)
	assert.Len(t, page.Items, 2)
	require.NotEmpty(t, page.NextCursor)
	c, err := ParseCursor(page.NextCursor)
	require.NoError(t, err)
	assert.Equal(t, rows[1].id, c.ID)

	last := Trim(rows[:2], 2, cursorOf)
	assert.Empty(t, last.NextCursor)

	none := Trim([]row(nil), 2, cursorOf)
	assert.NotNil(t, none.Items)
}
