package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestDecodeList(t *testing.T) {
	list, err := decodeList([]byte(`["A", 3, "B", null]`))
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, list)

	list, err = decodeList([]byte(`{"not": "an array"}`))
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = decodeList([]byte(`[not json`))
	assert.Error(t, err)
}

func TestEmbeddedSource(t *testing.T) {
	fsys := fstest.MapFS{
		"static/data/districts.json": {Data: []byte(`["Austin ISD"]`)},
	}
	src := NewEmbeddedSource(fsys, "static/data")

	list, err := src.Fetch(context.Background(), ListDistricts)
	require.NoError(t, err)
	assert.Equal(t, []string{"Austin ISD"}, list)

	_, err = src.Fetch(context.Background(), ListSchools)
	assert.Error(t, err)
}

func TestHTTPSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/data/schools.json":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`["Lincoln High","Roosevelt Middle"]`))
		default:
			http.Error(w, "nope", http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL+"/data/", nil)

	list, err := src.Fetch(context.Background(), ListSchools)
	require.NoError(t, err)
	assert.Equal(t, []string{"Lincoln High", "Roosevelt Middle"}, list)

	_, err = src.Fetch(context.Background(), ListDistricts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 500")
}

// fakeRows is a minimal pgx.Rows over a slice of names.
type fakeRows struct {
	names []string
	pos   int
	err   error
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return []any{r.names[r.pos-1]}, nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.names) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	*(dest[0].(*string)) = r.names[r.pos-1]
	return nil
}

type mockRowQuerier struct {
	mock.Mock
}

func (m *mockRowQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	ret := m.Called(ctx, sql)
	rows, _ := ret.Get(0).(pgx.Rows)
	return rows, ret.Error(1)
}

func TestPostgresSource_Fetch(t *testing.T) {
	db := new(mockRowQuerier)
	db.On("Query", mock.Anything, `SELECT name FROM "district_names" ORDER BY name`).
		Return(&fakeRows{names: []string{"Austin ISD", "Dallas ISD"}}, nil).Once()

	src := NewPostgresSource(db, "district_names", "schools")
	list, err := src.Fetch(context.Background(), ListDistricts)
	require.NoError(t, err)
	assert.Equal(t, []string{"Austin ISD", "Dallas ISD"}, list)
	db.AssertExpectations(t)
}

func TestPostgresSource_QueryError(t *testing.T) {
	db := new(mockRowQuerier)
	db.On("Query", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))

	src := NewPostgresSource(db, "districts", "schools")
	_, err := src.Fetch(context.Background(), ListSchools)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestPostgresSource_SanitizesTableName(t *testing.T) {
	src := NewPostgresSource(nil, `evil"; DROP TABLE x; --`, "schools")
	sql, err := src.query(ListDistricts)
	require.NoError(t, err)
	assert.Equal(t, `SELECT name FROM "evil""; DROP TABLE x; --" ORDER BY name`, sql)

	_, err = src.query(ListID("counties"))
	assert.ErrorIs(t, err, ErrUnknownList)
}
