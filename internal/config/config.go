// Package config содержит логику чтения конфигурации сервиса.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"reflect"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/mmeshcher/engagemart/internal/model"
)

// S3Config содержит параметры объектного хранилища цифровых товаров.
type S3Config struct {
	Endpoint        string `env:"S3_ENDPOINT"`
	Bucket          string `env:"S3_BUCKET"`
	Region          string `env:"S3_REGION"`
	AccessKeyID     string `env:"S3_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"S3_SECRET_ACCESS_KEY"`
}

// Config содержит параметры конфигурации сервиса.
type Config struct {
	RunAddress        string        `env:"RUN_ADDRESS"`
	DatabaseURI       string        `env:"DATABASE_URI"`
	AIServiceAddress  string        `env:"AI_SERVICE_ADDRESS"`
	AuthSecret        string        `env:"AUTH_SECRET"`
	SessionSecret     string        `env:"SESSION_SECRET"`
	VerificationFee   model.Money   `env:"VERIFICATION_FEE"`
	CreditSellers     bool          `env:"CREDIT_SELLERS"`
	AdminLogin        string        `env:"ADMIN_LOGIN"`
	AdminPassword     string        `env:"ADMIN_PASSWORD"`
	ReconcileInterval time.Duration `env:"RECONCILE_INTERVAL"`
	SnapshotPath      string        `env:"SNAPSHOT_PATH"`
	S3                S3Config
}

const defaultVerificationFee model.Money = 500

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Заданная переменная окружения имеет приоритет над флагом.
func Parse() (*Config, error) {
	cfg := &Config{VerificationFee: defaultVerificationFee}

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI, in-memory store when empty")
	flag.StringVar(&cfg.AIServiceAddress, "i", "", "AI service address")
	flag.StringVar(&cfg.AuthSecret, "k", "", "auth cookie signing key")
	flag.StringVar(&cfg.SessionSecret, "j", "", "auth provider token secret")
	flag.Func("f", "verification fee (default 5.00)", func(v string) error {
		fee, err := model.ParseMoney(v)
		if err != nil {
			return err
		}
		cfg.VerificationFee = fee
		return nil
	})
	flag.BoolVar(&cfg.CreditSellers, "c", false, "credit sellers on marketplace sales")
	flag.StringVar(&cfg.AdminLogin, "admin-login", "", "bootstrap admin login")
	flag.StringVar(&cfg.AdminPassword, "admin-password", "", "bootstrap admin password")
	flag.DurationVar(&cfg.ReconcileInterval, "reconcile", time.Minute, "reconciliation interval")
	flag.StringVar(&cfg.SnapshotPath, "snapshot", "", "in-memory store snapshot file")
	flag.StringVar(&cfg.S3.Endpoint, "s3-endpoint", "", "S3-compatible storage endpoint")
	flag.StringVar(&cfg.S3.Bucket, "s3-bucket", "", "digital products bucket")

	if err := flag.CommandLine.Parse(os.Args[1:]); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	err := env.ParseWithOptions(cfg, env.Options{
		FuncMap: map[reflect.Type]env.ParserFunc{
			reflect.TypeOf(model.Money(0)): func(v string) (any, error) {
				return model.ParseMoney(v)
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.VerificationFee <= 0 {
		return nil, errors.New("verification fee must be positive")
	}
	if cfg.ReconcileInterval <= 0 {
		return nil, errors.New("reconcile interval must be positive")
	}

	return cfg, nil
}
