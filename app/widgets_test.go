package app

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sweater-ventures/psph/config"
)

func newWidgetTestApp(t *testing.T, metrics *Metrics) *Application {
	t.Helper()
	cfg := config.Defaults()
	cfg.Debounce = 5 * time.Millisecond
	fetcher := &countingFetcher{lists: map[ListID][]string{
		ListDistricts: {"Austin ISD", "Lincoln County"},
		ListSchools:   testSchools,
	}}
	site, err := NewAppWith(&cfg, fetcher, NewStubEmailSender(nil), metrics)
	require.NoError(t, err)
	t.Cleanup(site.Close)
	return site
}

func TestNewWidget_PublishesRenders(t *testing.T) {
	site := newWidgetTestApp(t, nil)
	msgs, unsubscribe := site.EventBus.Subscribe()
	defer unsubscribe()

	w, err := site.NewWidget(ListSchools, "")
	require.NoError(t, err)
	assert.Equal(t, "school", w.Controller.Snapshot().InputID)
	assert.Same(t, w, site.Widgets.Get(w.ID))

	w.Controller.Input("roose")
	w.Controller.debouncer.flush()

	select {
	case msg := <-msgs:
		assert.Equal(t, BusMessageRender, msg.Type)
		assert.Equal(t, w.ID, msg.WidgetID)
		require.NotNil(t, msg.Snapshot)
	case <-time.After(time.Second):
		t.Fatal("no render published")
	}
	assert.Equal(t, "Roosevelt High", w.Controller.Snapshot().Options[0].Text)
}

func TestNewWidget_CommitPublishesChange(t *testing.T) {
	site := newWidgetTestApp(t, nil)
	w, err := site.NewWidget(ListDistricts, "")
	require.NoError(t, err)
	assert.Equal(t, "school-district", w.Controller.Snapshot().InputID)

	w.Controller.Search(context.Background(), "austin")
	msgs, unsubscribe := site.EventBus.Subscribe()
	defer unsubscribe()

	w.Controller.KeyDown(KeyArrowDown)
	w.Controller.KeyDown(KeyEnter)

	var change *BusMessage
	deadline := time.After(time.Second)
	for change == nil {
		select {
		case msg := <-msgs:
			if msg.Type == BusMessageChange {
				change = &msg
			}
		case <-deadline:
			t.Fatal("no change published")
		}
	}
	assert.Equal(t, "Austin ISD", change.Value)
}

func TestNewWidget_UsesConfiguredMax(t *testing.T) {
	site := newWidgetTestApp(t, nil)
	site.Config.SchoolMax = 1
	w, err := site.NewWidget(ListSchools, "")
	require.NoError(t, err)

	w.Controller.Search(context.Background(), "lincoln")
	assert.Len(t, w.Controller.Snapshot().Options, 1)
}

func TestNewWidget_FocusWarmsList(t *testing.T) {
	site := newWidgetTestApp(t, nil)
	w, err := site.NewWidget(ListDistricts, "")
	require.NoError(t, err)

	assert.Equal(t, Unloaded, site.RefData.State(ListDistricts))
	w.Controller.Focus(TargetInput)
	assert.Eventually(t, func() bool {
		return site.RefData.State(ListDistricts) == Loaded
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, Unloaded, site.RefData.State(ListSchools))
}

func TestNewWidget_UnknownField(t *testing.T) {
	site := newWidgetTestApp(t, nil)
	_, err := site.NewWidget(ListID("counties"), "")
	assert.ErrorIs(t, err, ErrUnknownList)
}

func TestWidgetStore_ExpiresIdleWidgets(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	site := newWidgetTestApp(t, metrics)
	now := time.Now()
	site.Widgets.now = func() time.Time { return now }

	w, err := site.NewWidget(ListSchools, "")
	require.NoError(t, err)
	assert.Equal(t, 1, site.Widgets.Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.activeWidgets))

	now = now.Add(site.Config.WidgetTTL / 2)
	require.NotNil(t, site.Widgets.Get(w.ID), "lookup extends lifetime")
	now = now.Add(site.Config.WidgetTTL / 2)
	require.NotNil(t, site.Widgets.Get(w.ID))

	now = now.Add(site.Config.WidgetTTL + time.Second)
	assert.Nil(t, site.Widgets.Get(w.ID))
	assert.Equal(t, 0, site.Widgets.Len())
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.activeWidgets))

	// closed controllers ignore input
	w.Controller.Search(context.Background(), "lincoln")
	assert.Empty(t, w.Controller.Snapshot().Options)
}

func TestWidgetStore_Delete(t *testing.T) {
	site := newWidgetTestApp(t, nil)
	w, err := site.NewWidget(ListSchools, "")
	require.NoError(t, err)

	site.Widgets.Delete(w.ID)
	assert.Nil(t, site.Widgets.Get(w.ID))
	site.Widgets.Delete(w.ID)
}

func newStoreWidget(t *testing.T, id string) *Widget {
	t.Helper()
	c, err := NewController(ControllerOptions{InputID: "school", Provider: (&listSearch{list: testSchools}).provide})
	require.NoError(t, err)
	return &Widget{ID: id, Field: ListSchools, Controller: c}
}

func TestWidgetStore_SweepRemovesExpired(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	store := NewWidgetStore(time.Minute, metrics)
	now := time.Now()
	store.now = func() time.Time { return now }
	var closed []string
	store.OnClose(func(id string) { closed = append(closed, id) })

	store.Add(newStoreWidget(t, "old"))
	now = now.Add(45 * time.Second)
	store.Add(newStoreWidget(t, "fresh"))

	assert.Equal(t, 0, store.Sweep(), "nothing expired yet")

	now = now.Add(30 * time.Second)
	assert.Equal(t, 1, store.Sweep())
	assert.Equal(t, []string{"old"}, closed)
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.activeWidgets))

	now = now.Add(time.Hour)
	assert.Equal(t, 1, store.Sweep())
	assert.Equal(t, []string{"old", "fresh"}, closed)
	assert.Equal(t, 0, store.Len())
}

func TestWidgetStore_SweeperReclaimsAbandonedWidgets(t *testing.T) {
	store := NewWidgetStore(time.Millisecond, nil)
	for i := 0; i < 100; i++ {
		store.Add(newStoreWidget(t, fmt.Sprintf("w%d", i)))
	}

	stop := store.StartSweeper(5 * time.Millisecond)
	defer stop()
	assert.Eventually(t, func() bool { return store.Len() == 0 }, time.Second, 5*time.Millisecond)

	stop()
	stop()
}

func TestSweepInterval(t *testing.T) {
	assert.Equal(t, time.Second, sweepInterval(time.Millisecond))
	assert.Equal(t, 30*time.Second, sweepInterval(time.Minute))
	assert.Equal(t, time.Minute, sweepInterval(30*time.Minute))
}

func TestApplication_SweepPublishesClosed(t *testing.T) {
	site := newWidgetTestApp(t, nil)
	msgs, unsubscribe := site.EventBus.Subscribe()
	defer unsubscribe()

	w, err := site.NewWidget(ListSchools, "")
	require.NoError(t, err)
	now := time.Now().Add(site.Config.WidgetTTL + time.Second)
	site.Widgets.mu.Lock()
	site.Widgets.now = func() time.Time { return now }
	site.Widgets.mu.Unlock()

	assert.Equal(t, 1, site.Widgets.Sweep())
	for {
		select {
		case msg := <-msgs:
			if msg.Type == BusMessageClosed {
				assert.Equal(t, w.ID, msg.WidgetID)
				return
			}
		case <-time.After(time.Second):
			t.Fatal("no closed message")
		}
	}
}
