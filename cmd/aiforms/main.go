// Запуск сервиса форм: чтение конфигурации, подключение к БД, миграция моделей, создание администратора по умолчанию и запуск HTTP сервера.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aisa-it/aiforms/aiforms.go/internal/aiforms"
	"github.com/aisa-it/aiforms/aiforms.go/internal/aiforms/config"
	"github.com/aisa-it/aiforms/aiforms.go/internal/aiforms/dao"
	"github.com/aisa-it/aiforms/aiforms.go/internal/aiforms/gormlogger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var version string = "DEV"

const slowQueryThreshold = 4 * time.Second

type options struct {
	translateErrors bool
	paramQueries    bool
	migrate         bool
}

// Пример запуска: go run main.go --noMigration --trace
func main() {
	noTranslate := flag.Bool("noTranslate", false, "Turn off DB errors translate")
	paramQueries := flag.Bool("paramQueries", true, "Mask queries params in log")
	noMigration := flag.Bool("noMigration", false, "Turn off DB migration")
	trace := flag.Bool("trace", false, "Verbose logs and sql trace")
	flag.Parse()

	PrintBanner()
	setupLogger(*trace)

	opts := options{
		translateErrors: !*noTranslate,
		paramQueries:    *paramQueries,
		migrate:         !*noMigration,
	}
	if err := run(opts); err != nil {
		slog.Error("AIForms start failed", "err", err)
		os.Exit(1)
	}
}

func setupLogger(trace bool) {
	level := slog.LevelInfo
	if trace {
		level = slog.LevelDebug
	}
	if version == "DEV" {
		slog.SetLogLoggerLevel(level)
		return
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}

func run(opts options) error {
	cfg := config.ReadConfig()
	dao.Config = cfg

	slog.Info("AIForms start", "version", version)

	db, err := openDB(cfg.DatabaseDSN, opts)
	if err != nil {
		return err
	}

	if opts.migrate {
		slog.Info("Migrate models")
		if err := dao.Migrate(db); err != nil {
			return fmt.Errorf("migrate models: %w", err)
		}
	}

	if err := createDefaultAdmin(db, cfg); err != nil {
		return fmt.Errorf("create default admin: %w", err)
	}

	aiforms.Server(db, cfg, version)
	return nil
}

// openDB подключение к Postgres с настройками пула соединений
func openDB(dsn string, opts options) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{DSN: dsn}), &gorm.Config{
		TranslateError: opts.translateErrors,
		Logger:         gormlogger.NewGormLogger(slog.Default(), slowQueryThreshold, opts.paramQueries),
	})
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("db pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetMaxIdleConns(25)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)
	return db, nil
}

// createDefaultAdmin создает суперпользователя DEFAULT_ADMIN_EMAIL, если его еще нет
func createDefaultAdmin(db *gorm.DB, cfg *config.Config) error {
	if cfg.DefaultUserEmail == "" {
		return nil
	}

	var count int64
	if err := db.Model(&dao.User{}).Where("email = ?", cfg.DefaultUserEmail).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if cfg.DefaultUserPassword == "" {
		return errors.New("DEFAULT_ADMIN_PASSWORD is required to create default admin")
	}

	user, err := dao.CreateUser(db, cfg.DefaultUserEmail, cfg.DefaultUserPassword, "Admin", "")
	if err != nil {
		return err
	}
	if err := db.Model(user).UpdateColumn("is_superuser", true).Error; err != nil {
		return err
	}
	slog.Info("Default admin created", "email", user.Email)
	return nil
}

// PrintBanner выводит заголовок приложения с версией
func PrintBanner() {
	const (
		colorReset  = "\033[0m"
		colorYellow = "\033[33m"
		colorBlue   = "\033[34m"
	)
	banner := `
    _    ___ _____
   / \  |_ _|  ___|__  _ __ _ __ ___  ___
  / _ \  | || |_ / _ \| '__| '_ ' _ \/ __|
 / ___ \ | ||  _| (_) | |  | | | | | \__ \
/_/   \_\___|_|  \___/|_|  |_| |_| |_|___/ %s
Encrypted forms with online payments
%s
----------------------------------------------------
`
	v := version
	if v == "DEV" {
		v = colorYellow + v + colorReset
	}
	fmt.Printf(banner, v, colorBlue+"https://aisa.ru"+colorReset)
}
