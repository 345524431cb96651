package sync

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/medication-adherence/internal/repository"
)

// fakeSyncer scripts each operation's outcome and records the order the
// reconciler called them in.
type fakeSyncer struct {
	createErr error
	updateErr error
	deleteErr error
	nextID    uint64
	calls     []string
}

func (f *fakeSyncer) Create(ctx context.Context, tx *sql.Tx, userID uint64, payload json.RawMessage) (uint64, error) {
	f.calls = append(f.calls, "create")
	if f.createErr != nil {
		return 0, f.createErr
	}
	f.nextID++
	return f.nextID, nil
}

func (f *fakeSyncer) Update(ctx context.Context, tx *sql.Tx, userID, id uint64, payload json.RawMessage) error {
	f.calls = append(f.calls, "update")
	return f.updateErr
}

func (f *fakeSyncer) Delete(ctx context.Context, tx *sql.Tx, userID, id uint64) error {
	f.calls = append(f.calls, "delete")
	return f.deleteErr
}

func TestParseBatch(t *testing.T) {
	items, err := ParseBatch([]byte(`[{"name":"Aspirin"},{"id":5,"dosage_amount":2},{"id":9,"is_deleted":true}]`))
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.Nil(t, items[0].ID)
	assert.False(t, items[0].IsDeleted)
	assert.JSONEq(t, `{"name":"Aspirin"}`, string(items[0].Payload))

	require.NotNil(t, items[1].ID)
	assert.Equal(t, uint64(5), *items[1].ID)

	assert.True(t, items[2].IsDeleted)
}

func TestParseBatchRejectsNonArray(t *testing.T) {
	_, err := ParseBatch([]byte(`{"name":"Aspirin"}`))
	assert.Error(t, err)

	_, err = ParseBatch([]byte(`["just a string"]`))
	assert.Error(t, err)
}

func TestRunCommitsCleanBatch(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectCommit()

	five := uint64(5)
	items := []Directive{
		{Payload: json.RawMessage(`{"name":"Aspirin"}`)},
		{ID: &five, Payload: json.RawMessage(`{"id":5,"name":"Renamed"}`)},
	}

	f := &fakeSyncer{}
	results, hasErrors, err := Run(context.Background(), db, 1, items, f)
	require.NoError(t, err)
	assert.False(t, hasErrors)
	require.Len(t, results, 2)

	assert.Equal(t, StatusCreated, results[0].Status)
	require.NotNil(t, results[0].ID)
	assert.Equal(t, uint64(1), *results[0].ID)
	assert.Equal(t, StatusUpdated, results[1].Status)

	assert.Equal(t, []string{"create", "update"}, f.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRollsBackWhenAnyItemFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	nine := uint64(9)
	items := []Directive{
		{Payload: json.RawMessage(`{"name":"Aspirin"}`)},
		{ID: &nine, Payload: json.RawMessage(`{"id":9}`)},
	}

	f := &fakeSyncer{updateErr: sql.ErrNoRows}
	results, hasErrors, err := Run(context.Background(), db, 1, items, f)
	require.NoError(t, err)
	assert.True(t, hasErrors)
	require.Len(t, results, 2)

	// The create was processed but rolled back with the batch; its result
	// still reports what it would have done.
	assert.Equal(t, StatusCreated, results[0].Status)
	assert.Equal(t, StatusError, results[1].Status)
	assert.Equal(t, "not found", results[1].Errors)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunDeleteWithoutID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	items := []Directive{{IsDeleted: true, Payload: json.RawMessage(`{"is_deleted":true}`)}}

	f := &fakeSyncer{}
	results, hasErrors, err := Run(context.Background(), db, 1, items, f)
	require.NoError(t, err)
	assert.True(t, hasErrors)
	assert.Equal(t, "cannot delete without an id", results[0].Errors)
	// The syncer is never consulted for an id-less delete.
	assert.Empty(t, f.calls)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunErrorShapes(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want interface{}
	}{
		{"validation", &repository.ValidationError{Fields: map[string]string{"name": "name is required"}}, map[string]string{"name": "name is required"}},
		{"forbidden", repository.ErrForbidden, "referenced resource does not belong to user"},
		{"conflict", repository.ErrConflict, "conflicts with an existing record"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			mock.ExpectBegin()
			mock.ExpectRollback()

			f := &fakeSyncer{createErr: c.err}
			results, hasErrors, err := Run(context.Background(), db, 1, []Directive{{Payload: json.RawMessage(`{}`)}}, f)
			require.NoError(t, err)
			assert.True(t, hasErrors)
			assert.Equal(t, c.want, results[0].Errors)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
