package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/sweater-ventures/psph/app"
	"github.com/sweater-ventures/psph/config"
)

var (
	Districts = []string{"Austin ISD", "Dallas ISD", "Lincoln County Schools", "São Paulo Unified"}
	Schools   = []string{"Lincoln Elementary", "Lincoln High", "Lincoln Middle", "Roosevelt High", "Washington Academy"}
)

// ConfigOpt is a functional option for adjusting the test configuration.
type ConfigOpt func(*config.AppConfig)

// NewTestConfig returns the default configuration with timers shortened so
// debounce and blur grace do not slow tests down.
func NewTestConfig(opts ...ConfigOpt) config.AppConfig {
	cfg := config.Defaults()
	cfg.Debounce = 5 * time.Millisecond
	cfg.BlurGrace = 10 * time.Millisecond
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// NewStaticFetcher returns a MockFetcher serving Districts and Schools.
func NewStaticFetcher() *MockFetcher {
	f := new(MockFetcher)
	f.OnFetch(app.ListDistricts).Return(Districts, nil).Maybe()
	f.OnFetch(app.ListSchools).Return(Schools, nil).Maybe()
	return f
}

// NewTestApp creates an *app.Application around the given fetcher and sender
// without metrics. A nil sender logs mail instead of sending it.
func NewTestApp(t *testing.T, fetcher app.Fetcher, sender app.EmailSender, opts ...ConfigOpt) *app.Application {
	t.Helper()
	cfg := NewTestConfig(opts...)
	if sender == nil {
		sender = app.NewStubEmailSender(nil)
	}
	site, err := app.NewAppWith(&cfg, fetcher, sender, nil)
	require.NoError(t, err)
	t.Cleanup(site.Close)
	return site
}
