package emulated

import (
	"testing"
	"time"

	"github.com/go-fprint/fphal/pkg/fptypes"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()

	s, err := openStore(dir)
	require.NoError(t, err)
	assert.Empty(t, s.ids())

	s.add(fptypes.TemplateRecord{
		RecordID:   uuid.New(),
		Finger:     1,
		Group:      7,
		Name:       "right index",
		EnrolledAt: time.Now().UTC().Truncate(time.Second),
	})
	s.add(fptypes.TemplateRecord{
		RecordID:   uuid.New(),
		Finger:     2,
		Group:      7,
		EnrolledAt: time.Now().UTC().Truncate(time.Second),
	})
	require.NoError(t, s.save())

	reopened, err := openStore(dir)
	require.NoError(t, err)
	require.Len(t, reopened.records, 2)
	assert.Equal(t, s.records[0].RecordID, reopened.records[0].RecordID)
	assert.Equal(t, "right index", reopened.records[0].Name)
	assert.True(t, s.records[0].EnrolledAt.Equal(reopened.records[0].EnrolledAt))
	assert.Equal(t, []fptypes.FingerID{1, 2}, reopened.ids())
	assert.EqualValues(t, 3, reopened.nextFinger())

	reopened.remove(1)
	assert.False(t, reopened.contains(1))
	assert.True(t, reopened.contains(2))
}

func TestStoreIsolatedPerPath(t *testing.T) {
	a, err := openStore(t.TempDir())
	require.NoError(t, err)
	b, err := openStore(t.TempDir())
	require.NoError(t, err)

	a.add(fptypes.TemplateRecord{RecordID: uuid.New(), Finger: 1, EnrolledAt: time.Now()})
	require.NoError(t, a.save())

	assert.Empty(t, b.ids())
}
