package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// ListID names one of the reference lists backing the appointment form.
type ListID string

const (
	ListDistricts ListID = "district"
	ListSchools   ListID = "school"
)

var ErrUnknownList = errors.New("unknown reference list")

// ParseListID accepts the singular and plural spellings used in URLs.
func ParseListID(s string) (ListID, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "district", "districts":
		return ListDistricts, nil
	case "school", "schools":
		return ListSchools, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownList, s)
}

func (id ListID) Valid() bool {
	return id == ListDistricts || id == ListSchools
}

// File is the JSON document name the list is published under.
func (id ListID) File() string {
	return string(id) + "s.json"
}

// LoadState describes where a reference list is in its lazy load.
type LoadState int

const (
	Unloaded LoadState = iota
	Loading
	Loaded
)

func (s LoadState) String() string {
	switch s {
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	default:
		return "unloaded"
	}
}

// Fetcher retrieves a reference list from wherever it is stored.
type Fetcher interface {
	Fetch(ctx context.Context, id ListID) ([]string, error)
}

// RefData lazily loads the reference lists, at most one fetch per list in
// flight. Callers that arrive while a fetch is running share its result.
// A failed fetch leaves the list unloaded so the next Get tries again.
// Loaded lists are shared read-only; callers must not modify them.
type RefData struct {
	fetcher Fetcher
	metrics *Metrics
	lists   *Cache[ListID, []string]
	group   singleflight.Group

	mu      sync.Mutex
	waiting map[ListID]int // callers waiting on a fetch, including abandoned ones
}

func NewRefData(fetcher Fetcher, metrics *Metrics) *RefData {
	return &RefData{
		fetcher: fetcher,
		metrics: metrics,
		lists:   NewCache[ListID, []string](),
		waiting: make(map[ListID]int),
	}
}

// Get returns the list, fetching it if this is the first request. If ctx ends
// while waiting, Get returns ctx.Err() but the shared fetch keeps running for
// the other waiters.
func (r *RefData) Get(ctx context.Context, id ListID) ([]string, error) {
	if !id.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownList, id)
	}
	if list, ok := r.lists.Get(id); ok {
		return list, nil
	}

	fetchCtx := context.WithoutCancel(ctx)
	r.addWaiting(id, 1)
	ch := r.group.DoChan(string(id), func() (any, error) {
		// a fetch that finished between the lookup above and here
		if list, ok := r.lists.Get(id); ok {
			return list, nil
		}
		return r.load(fetchCtx, id)
	})

	select {
	case res := <-ch:
		r.addWaiting(id, -1)
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]string), nil
	case <-ctx.Done():
		// the fetch goes on; stay counted until it ends
		go func() {
			<-ch
			r.addWaiting(id, -1)
		}()
		return nil, ctx.Err()
	}
}

func (r *RefData) load(ctx context.Context, id ListID) ([]string, error) {
	log(ctx).Debug("Fetching reference list", "list", id)
	list, err := r.fetcher.Fetch(ctx, id)
	if err != nil {
		r.metrics.ObserveFetch(id, "error")
		log(ctx).Error("Failed to load reference list", "list", id, "error", err)
		return nil, fmt.Errorf("loading %s list: %w", id, err)
	}
	if list == nil {
		list = []string{}
	}
	r.lists.Set(id, list)
	r.metrics.ObserveFetch(id, "ok")
	log(ctx).Info("Loaded reference list", "list", id, slog.Int("count", len(list)))
	return list, nil
}

func (r *RefData) addWaiting(id ListID, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.waiting[id] += n
	if r.waiting[id] <= 0 {
		delete(r.waiting, id)
	}
}

func (r *RefData) State(id ListID) LoadState {
	if _, ok := r.lists.Get(id); ok {
		return Loaded
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.waiting[id] > 0 {
		return Loading
	}
	return Unloaded
}

// Warm starts loading the list in the background and discards the outcome.
func (r *RefData) Warm(id ListID) {
	go func() {
		_, _ = r.Get(context.Background(), id)
	}()
}

// WarmOnce returns a trigger that warms the list the first time it is called
// and does nothing afterwards. Hook it to focus or hover on the field that
// will search the list.
func (r *RefData) WarmOnce(id ListID) func() {
	var once sync.Once
	return func() {
		once.Do(func() { r.Warm(id) })
	}
}
