// Package storage выдаёт временные ссылки на файлы цифровых товаров
// в S3-совместимом объектном хранилище.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// DefaultLinkTTL: время жизни ссылки на скачивание.
const DefaultLinkTTL = 15 * time.Minute

// Config содержит параметры подключения к хранилищу.
type Config struct {
	Endpoint        string
	Bucket          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	LinkTTL         time.Duration
}

// Enabled сообщает, заданы ли обязательные параметры.
func (c Config) Enabled() bool {
	return c.Endpoint != "" && c.Bucket != ""
}

// Files подписывает ссылки на объекты одного бакета.
type Files struct {
	presign *s3.PresignClient
	bucket  string
	ttl     time.Duration
}

// New создаёт клиент хранилища. Подписание выполняется локально, без обращения к хранилищу.
func New(ctx context.Context, cfg Config) (*Files, error) {
	if !cfg.Enabled() {
		return nil, errors.New("storage endpoint and bucket are required")
	}
	if cfg.Region == "" {
		cfg.Region = "auto"
	}
	if cfg.LinkTTL <= 0 {
		cfg.LinkTTL = DefaultLinkTTL
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("load storage config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = true
	})

	return &Files{
		presign: s3.NewPresignClient(client),
		bucket:  cfg.Bucket,
		ttl:     cfg.LinkTTL,
	}, nil
}

// PresignDownload возвращает подписанную ссылку на объект key.
func (f *Files) PresignDownload(ctx context.Context, key string) (string, error) {
	req, err := f.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(f.ttl))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return req.URL, nil
}
