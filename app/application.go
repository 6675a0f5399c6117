package app

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sweater-ventures/psph/config"
)

type Application struct {
	Config   config.AppConfig
	RefData  *RefData
	Mail     *MailRelay
	Widgets  *WidgetStore
	EventBus *EventBus
	Metrics  *Metrics
	dbconn   *pgxpool.Pool

	stopSweeper func()
}

// NewApp builds the application from configuration. static holds the
// compiled-in assets; the embedded reference lists live under static/data.
func NewApp(ctx context.Context, cfg *config.AppConfig, static fs.FS, metrics *Metrics) (*Application, error) {
	var (
		fetcher Fetcher
		pool    *pgxpool.Pool
	)
	switch strings.ToLower(cfg.DataSource) {
	case "", "embedded":
		fetcher = NewEmbeddedSource(static, "static/data")
	case "http":
		if cfg.DataURL == "" {
			return nil, fmt.Errorf("data source http requires a data URL")
		}
		fetcher = NewHTTPSource(cfg.DataURL, nil)
	case "postgres":
		conn, err := connectToDB(ctx, cfg)
		if err != nil {
			slog.Error("Failed to connect to database", "error", err)
			return nil, err
		}
		pool = conn
		fetcher = NewPostgresSource(conn, cfg.DistrictsTable, cfg.SchoolsTable)
	default:
		return nil, fmt.Errorf("unknown data source %q", cfg.DataSource)
	}

	sender, err := newSender(ctx, cfg)
	if err != nil {
		if pool != nil {
			pool.Close()
		}
		return nil, err
	}

	site, err := NewAppWith(cfg, fetcher, sender, metrics)
	if err != nil {
		if pool != nil {
			pool.Close()
		}
		return nil, err
	}
	site.dbconn = pool
	slog.Info("Application initialized",
		"data_source", cfg.DataSource,
		"mail_provider", cfg.MailProvider,
	)
	return site, nil
}

// NewAppWith builds the application around an explicit fetcher and sender.
func NewAppWith(cfg *config.AppConfig, fetcher Fetcher, sender EmailSender, metrics *Metrics) (*Application, error) {
	template, err := LoadConfirmationTemplate(cfg.TemplatePath)
	if err != nil {
		return nil, fmt.Errorf("loading confirmation template: %w", err)
	}
	site := &Application{
		Config:  *cfg,
		RefData: NewRefData(fetcher, metrics),
		Mail: NewMailRelay(sender, MailRelayConfig{
			AdminEmail: cfg.AdminEmail,
			AdminName:  cfg.FromName,
			Template:   template,
		}, metrics),
		Widgets:  NewWidgetStore(cfg.WidgetTTL, metrics),
		EventBus: NewEventBus(),
		Metrics:  metrics,
	}
	site.Widgets.OnClose(func(id string) {
		site.EventBus.Publish(BusMessage{Type: BusMessageClosed, WidgetID: id})
	})
	if cfg.WidgetTTL > 0 {
		site.stopSweeper = site.Widgets.StartSweeper(sweepInterval(cfg.WidgetTTL))
	}
	return site, nil
}

func newSender(ctx context.Context, cfg *config.AppConfig) (EmailSender, error) {
	from := SenderConfig{FromEmail: cfg.FromEmail, FromName: cfg.FromName}
	switch strings.ToLower(cfg.MailProvider) {
	case "", "stub":
		return NewStubEmailSender(slog.Default()), nil
	case "smtp":
		return NewSMTPSender(SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
		}, from), nil
	case "sendgrid":
		sender := NewSendGridSender(cfg.SendGridAPIKey, from)
		if sender == nil {
			return nil, fmt.Errorf("mail provider sendgrid requires an API key")
		}
		return sender, nil
	case "ses":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.SESRegion))
		if err != nil {
			return nil, fmt.Errorf("loading AWS config: %w", err)
		}
		return NewSESSender(sesv2.NewFromConfig(awsCfg), from), nil
	default:
		return nil, fmt.Errorf("unknown mail provider %q", cfg.MailProvider)
	}
}

// Close stops the widget sweep and releases widgets and the database pool.
func (site *Application) Close() {
	if site.stopSweeper != nil {
		site.stopSweeper()
	}
	site.Widgets.CloseAll()
	if site.dbconn != nil {
		site.dbconn.Close()
	}
}

// MaxFor is the number of suggestions shown for a list.
func (site *Application) MaxFor(id ListID) int {
	switch id {
	case ListDistricts:
		if site.Config.DistrictMax > 0 {
			return site.Config.DistrictMax
		}
	case ListSchools:
		if site.Config.SchoolMax > 0 {
			return site.Config.SchoolMax
		}
	}
	return DefaultMax
}

// Provider returns the match provider for a list, counting each lookup.
func (site *Application) Provider(id ListID) Provider {
	search := ListProvider(site.RefData, id, ProviderLimit)
	return func(ctx context.Context, query string) ([]string, error) {
		items, err := search(ctx, query)
		switch {
		case err != nil:
			site.Metrics.ObserveSuggest(id, "error")
		case len(items) == 0:
			site.Metrics.ObserveSuggest(id, "empty")
		default:
			site.Metrics.ObserveSuggest(id, "hit")
		}
		return items, err
	}
}
