package config

import (
	"log/slog"
	"strings"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/joho/godotenv"
)

var Version = "dev"

type AppConfig struct {
	DevMode  bool   `arg:"--dev,env:DEV_MODE" default:"false"`
	Port     int    `arg:"-p,--port,env:LISTEN_PORT" default:"8005"`
	LogLevel string `arg:"--log-level,env:LOG_LEVEL" default:"default" help:"Log level to use.  Valid values are: debug, info, and warn/warning.  If default the level will be info or debug in dev mode."`
	BaseURL  string `arg:"--base-url,env:BASE_URL" default:"http://localhost:8005" help:"Base URL for the site."`

	AllowedOrigin string `arg:"--allowed-origin,env:ALLOWED_ORIGIN" default:"" help:"Origin allowed to call /api/ from another site, or * for any. Empty disables CORS."`

	DataSource     string `arg:"--data-source,env:DATA_SOURCE" default:"embedded" help:"Where district and school names come from: embedded, http or postgres."`
	DataURL        string `arg:"--data-url,env:DATA_URL" default:"" help:"Base URL holding districts.json and schools.json when data source is http."`
	DistrictsTable string `arg:"--districts-table,env:DISTRICTS_TABLE" default:"districts"`
	SchoolsTable   string `arg:"--schools-table,env:SCHOOLS_TABLE" default:"schools"`
	DBHost         string `arg:"--db-host,env:DB_HOST" default:"localhost"`
	DBName         string `arg:"--db-name,env:DB_NAME" default:"psph"`
	DBPort         int    `arg:"--db-port,env:DB_PORT" default:"5432"`
	DBMaxConns     int    `arg:"--db-max-conns,env:DB_MAX_CONNS" default:"4"`
	DBSSLMode      string `arg:"--db-ssl-mode,env:DB_SSL_MODE" default:"disable"`
	DBUsername     string `arg:"--db-username,env:DB_USERNAME" default:"psph"`
	DBPassword     string `arg:"--db-password,env:DB_PASSWORD" default:"badpassword"`

	DistrictMax int           `arg:"--district-max,env:DISTRICT_MAX" default:"20" help:"Suggestions shown for the school district field."`
	SchoolMax   int           `arg:"--school-max,env:SCHOOL_MAX" default:"12" help:"Suggestions shown for the school field."`
	Debounce    time.Duration `arg:"--debounce,env:AUTOCOMPLETE_DEBOUNCE" default:"120ms"`
	BlurGrace   time.Duration `arg:"--blur-grace,env:AUTOCOMPLETE_BLUR_GRACE" default:"120ms"`
	WidgetTTL   time.Duration `arg:"--widget-ttl,env:WIDGET_TTL" default:"30m" help:"Idle time before a server-hosted widget is discarded."`

	MailProvider   string `arg:"--mail-provider,env:MAIL_PROVIDER" default:"stub" help:"stub, smtp, sendgrid or ses."`
	SMTPHost       string `arg:"--smtp-host,env:SMTP_HOST" default:"mail.spacemail.com"`
	SMTPPort       int    `arg:"--smtp-port,env:SMTP_PORT" default:"465"`
	SMTPUsername   string `arg:"--smtp-username,env:SMTP_USERNAME" default:""`
	SMTPPassword   string `arg:"--smtp-password,env:SMTP_PASSWORD" default:""`
	SendGridAPIKey string `arg:"--sendgrid-api-key,env:SENDGRID_API_KEY" default:""`
	SESRegion      string `arg:"--ses-region,env:SES_REGION" default:"us-east-1"`
	FromEmail      string `arg:"--from-email,env:FROM_EMAIL" default:"appointment@psph.org"`
	FromName       string `arg:"--from-name,env:FROM_NAME" default:"PSPH"`
	AdminEmail     string `arg:"--admin-email,env:ADMIN_EMAIL" default:"hello@psph.org" help:"Staff inbox that receives appointment notifications."`
	TemplatePath   string `arg:"--confirmation-template,env:CONFIRMATION_TEMPLATE" default:"" help:"HTML template for the confirmation email. Uses the built-in template when empty."`
}

func LoadConfig() (*AppConfig, error) {
	var appConfig AppConfig
	arg.MustParse(&appConfig)

	if appConfig.DevMode {
		err := godotenv.Load(".env")
		if err == nil {
			// re-parse to get env vars from .env
			slog.Info("Loaded .env")
			arg.MustParse(&appConfig)
		}
	}

	if appConfig.LogLevel == "default" {
		if appConfig.DevMode {
			logLevel.Set(slog.LevelDebug)
		} else {
			logLevel.Set(slog.LevelInfo)
		}
	} else {
		intendedLevel := strings.ToLower(appConfig.LogLevel)
		switch intendedLevel {
		case "debug":
			logLevel.Set(slog.LevelDebug)
		case "info":
			logLevel.Set(slog.LevelInfo)
		case "warn", "warning":
			logLevel.Set(slog.LevelWarn)
		default:
			slog.Error("Unable to configure log level", "level", appConfig.LogLevel)
		}
	}

	return &appConfig, nil
}

// Defaults returns the configuration LoadConfig would produce with no flags or
// environment set. Tests and tools that build an Application without parsing
// the command line start from here.
func Defaults() AppConfig {
	return AppConfig{
		Port:           8005,
		LogLevel:       "default",
		BaseURL:        "http://localhost:8005",
		DataSource:     "embedded",
		DistrictsTable: "districts",
		SchoolsTable:   "schools",
		DBHost:         "localhost",
		DBName:         "psph",
		DBPort:         5432,
		DBMaxConns:     4,
		DBSSLMode:      "disable",
		DistrictMax:    20,
		SchoolMax:      12,
		Debounce:       120 * time.Millisecond,
		BlurGrace:      120 * time.Millisecond,
		WidgetTTL:      30 * time.Minute,
		MailProvider:   "stub",
		SMTPHost:       "mail.spacemail.com",
		SMTPPort:       465,
		SESRegion:      "us-east-1",
		FromEmail:      "appointment@psph.org",
		FromName:       "PSPH",
		AdminEmail:     "hello@psph.org",
	}
}
