package quarantine

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config - куда загружать выгрузки карантина. Пустой Bucket - загрузка выключена.
type S3Config struct {
	Bucket    string `yaml:"bucket" json:"bucket"`
	Region    string `yaml:"region" json:"region"`
	Prefix    string `yaml:"prefix" json:"prefix"`
	AccessKey string `yaml:"access_key" json:"accessKey"`
	SecretKey string `yaml:"secret_key" json:"-"`

	// Endpoint - S3-совместимое хранилище (MinIO, LocalStack)
	Endpoint       string `yaml:"endpoint" json:"endpoint"`
	ForcePathStyle bool   `yaml:"force_path_style" json:"forcePathStyle"`
}

// Enabled сообщает, настроена ли загрузка
func (c S3Config) Enabled() bool { return strings.TrimSpace(c.Bucket) != "" }

// S3Uploader загружает выгрузки через multipart uploader SDK
type S3Uploader struct {
	bucket   string
	prefix   string
	uploader *manager.Uploader
}

// NewS3Uploader загружает AWS-конфигурацию (env, профиль или статические ключи)
func NewS3Uploader(ctx context.Context, cfg S3Config) (*S3Uploader, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("s3: bucket is required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3: load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})
	return &S3Uploader{
		bucket:   cfg.Bucket,
		prefix:   strings.Trim(cfg.Prefix, "/"),
		uploader: manager.NewUploader(client),
	}, nil
}

// Key - ключ объекта для имени файла с учетом префикса
func (u *S3Uploader) Key(name string) string {
	if u.prefix == "" {
		return name
	}
	return path.Join(u.prefix, name)
}

// Upload загружает body и возвращает s3://bucket/key
func (u *S3Uploader) Upload(ctx context.Context, name, contentType string, body io.Reader) (string, error) {
	key := u.Key(name)
	_, err := u.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("s3 upload %s: %w", key, err)
	}
	return "s3://" + u.bucket + "/" + key, nil
}
