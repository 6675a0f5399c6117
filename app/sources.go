package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/jackc/pgx/v5"
)

const maxListBytes = 8 << 20

// decodeList parses a JSON document holding an array of names. Documents
// that are valid JSON but not an array decode to an empty list, and
// non-string elements are skipped.
func decodeList(data []byte) ([]string, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding reference list: %w", err)
	}
	items, ok := raw.([]any)
	if !ok {
		return []string{}, nil
	}
	list := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			list = append(list, s)
		}
	}
	return list, nil
}

// EmbeddedSource reads <dir>/districts.json and <dir>/schools.json from a
// file system, normally the static assets compiled into the binary.
type EmbeddedSource struct {
	fsys fs.FS
	dir  string
}

func NewEmbeddedSource(fsys fs.FS, dir string) *EmbeddedSource {
	return &EmbeddedSource{fsys: fsys, dir: dir}
}

func (s *EmbeddedSource) Fetch(ctx context.Context, id ListID) ([]string, error) {
	data, err := fs.ReadFile(s.fsys, path.Join(s.dir, id.File()))
	if err != nil {
		return nil, err
	}
	return decodeList(data)
}

// HTTPSource downloads the lists from another deployment of the site, or any
// server publishing the same JSON documents.
type HTTPSource struct {
	baseURL string
	client  *http.Client
}

func NewHTTPSource(baseURL string, client *http.Client) *HTTPSource {
	if client == nil {
		client = cleanhttp.DefaultPooledClient()
	}
	return &HTTPSource{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (s *HTTPSource) Fetch(ctx context.Context, id ListID) ([]string, error) {
	url := s.baseURL + "/" + id.File()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetching %s: unexpected status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxListBytes))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", url, err)
	}
	return decodeList(data)
}

// rowQuerier is the part of pgxpool.Pool used by PostgresSource.
type rowQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresSource reads the names column of one table per list.
type PostgresSource struct {
	db     rowQuerier
	tables map[ListID]string
}

func NewPostgresSource(db rowQuerier, districtsTable, schoolsTable string) *PostgresSource {
	return &PostgresSource{
		db: db,
		tables: map[ListID]string{
			ListDistricts: districtsTable,
			ListSchools:   schoolsTable,
		},
	}
}

func (s *PostgresSource) query(id ListID) (string, error) {
	table, ok := s.tables[id]
	if !ok || table == "" {
		return "", fmt.Errorf("%w: %q", ErrUnknownList, id)
	}
	return fmt.Sprintf("SELECT name FROM %s ORDER BY name", pgx.Identifier{table}.Sanitize()), nil
}

func (s *PostgresSource) Fetch(ctx context.Context, id ListID) ([]string, error) {
	sql, err := s.query(id)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("querying %s names: %w", id, err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("reading %s names: %w", id, err)
	}
	return names, nil
}
