package main

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-persistence-bun"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/pazarly/accounts"
	"github.com/pazarly/accounts/mailer"
	"github.com/pazarly/accounts/provider/keycloak"
)

// Config is loaded from the environment
type Config struct {
	AppPort       int    `env:"APP_PORT" envDefault:"3000"`
	Debug         bool   `env:"APP_DEBUG"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:3000"`
	DatabaseDSN   string `env:"DATABASE_DSN" envDefault:"file:accounts.db?cache=shared"`

	KeycloakBase         string `env:"KEYCLOAK_BASE,required"`
	KeycloakRealm        string `env:"KEYCLOAK_REALM,required"`
	KeycloakClientID     string `env:"KEYCLOAK_CLIENT_ID,required"`
	KeycloakClientSecret string `env:"KEYCLOAK_CLIENT_SECRET,required"`

	SMTPHost     string `env:"SMTP_MAIL_HOST"`
	SMTPPort     int    `env:"SMTP_MAIL_PORT" envDefault:"587"`
	SMTPUsername string `env:"SMTP_MAIL_USERNAME"`
	SMTPPassword string `env:"SMTP_MAIL_PASSWORD"`
	SMTPFrom     string `env:"SMTP_MAIL_FROM"`
}

type App struct {
	config Config
	logger *glog.BaseLogger
	bunDB  *bun.DB
	repo   accounts.RepositoryManager
	srv    router.Server[*fiber.App]
}

func (a *App) GetLogger(name string) glog.Logger {
	return a.logger.GetLogger(name)
}

// persistenceConfig adapts the env config to what the persistence client expects
type persistenceConfig struct{}

func (persistenceConfig) GetDebug() bool                { return false }
func (persistenceConfig) GetPingTimeout() time.Duration { return time.Second * 5 }
func (persistenceConfig) GetDriver() string             { return "" }
func (persistenceConfig) GetServer() string             { return "" }
func (persistenceConfig) GetOtelIdentifier() string     { return "" }

func main() {
	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(glog.Info),
		glog.WithName("accounts"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)

	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		panic(err)
	}

	if cfg.Debug {
		fmt.Println("============")
		fmt.Println(print.MaybeHighlightJSON(cfg))
		fmt.Println("============")
	}

	app := &App{
		config: cfg,
		logger: lgr,
	}

	ctx := context.Background()

	if err := WithPersistence(ctx, app); err != nil {
		panic(err)
	}

	if err := WithHTTPServer(ctx, app); err != nil {
		panic(err)
	}

	app.srv.Serve(fmt.Sprintf(":%d", cfg.AppPort))

	WaitExitSignal()
}

func WithPersistence(ctx context.Context, app *App) error {
	db, err := sql.Open(sqliteshim.ShimName, app.config.DatabaseDSN)
	if err != nil {
		return err
	}

	persistence.RegisterModel((*accounts.User)(nil))

	client, err := persistence.New(persistenceConfig{}, db, sqlitedialect.New())
	if err != nil {
		return err
	}

	client.SetLogger(app.GetLogger("persistence"))

	migrationsFS, err := fs.Sub(accounts.GetMigrationsFS(), "data/sql/migrations")
	if err != nil {
		return err
	}

	client.RegisterDialectMigrations(
		migrationsFS,
		persistence.WithDialectSourceLabel("data/sql/migrations"),
		persistence.WithValidationTargets("postgres", "sqlite"),
	)

	if err := client.ValidateDialects(ctx); err != nil {
		return err
	}

	if err := client.Migrate(ctx); err != nil {
		return err
	}

	app.bunDB = client.DB()
	app.repo = accounts.NewRepositoryManager(client.DB())

	return nil
}

func WithHTTPServer(ctx context.Context, app *App) error {
	kcfg := keycloak.Config{
		BaseURL:      app.config.KeycloakBase,
		Realm:        app.config.KeycloakRealm,
		ClientID:     app.config.KeycloakClientID,
		ClientSecret: app.config.KeycloakClientSecret,
	}

	provider, err := keycloak.New(kcfg)
	if err != nil {
		return err
	}
	provider.WithLogger(app.GetLogger("keycloak"))

	verifier, err := keycloak.NewVerifier(kcfg)
	if err != nil {
		return err
	}
	verifier.WithLogger(app.GetLogger("keycloak"))

	notifier, err := buildNotifier(app)
	if err != nil {
		return err
	}

	service := accounts.NewProvisioner(app.repo, provider).
		WithLogger(app.GetLogger("auth:provision")).
		WithNotifier(notifier).
		WithPublicBaseURL(app.config.PublicBaseURL)

	guard := accounts.NewRouteGuard(verifier).
		WithLogger(app.GetLogger("auth:http"))

	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:  true,
			StrictRouting: false,
		}))
	})

	srv.Router().WithLogger(app.GetLogger("router"))

	accounts.RegisterAuthRoutes(srv.Router(),
		accounts.WithAuthControllerService(service),
		accounts.WithAuthControllerGuard(guard),
		accounts.WithAuthControllerLogger(app.GetLogger("auth:http")),
		accounts.WithAuthControllerDebug(app.config.Debug),
	)

	app.srv = srv

	return nil
}

func buildNotifier(app *App) (accounts.Notifier, error) {
	if app.config.SMTPHost == "" {
		app.GetLogger("mailer").Warn("SMTP not configured, activation mail goes to stdout")
		return mailer.LogNotifier{}, nil
	}

	smtp, err := mailer.NewSMTP(mailer.Config{
		Host:     app.config.SMTPHost,
		Port:     app.config.SMTPPort,
		Username: app.config.SMTPUsername,
		Password: app.config.SMTPPassword,
		From:     app.config.SMTPFrom,
	})
	if err != nil {
		return nil, err
	}

	return smtp.WithLogger(app.GetLogger("mailer")), nil
}

func WaitExitSignal() os.Signal {
	quit := make(chan os.Signal, 2)
	signal.Notify(quit,
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	return <-quit
}
