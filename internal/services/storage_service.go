// internal/services/storage_service.go
package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/apporbit/apporbit-backend/internal/config"
)

const maxProductImageSize = 5 * 1024 * 1024

var productImageTypes = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}

type StorageService struct {
	s3Client *s3.S3
	cfg      config.AWSConfig
	localDir string
	baseURL  string
}

type UploadResult struct {
	URL      string `json:"url"`
	Key      string `json:"key"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
}

// NewStorageService uploads to S3 when credentials are configured and
// otherwise writes under localDir, served at /uploads.
func NewStorageService(cfg config.AWSConfig, localDir, publicBaseURL string) (*StorageService, error) {
	s := &StorageService{cfg: cfg, baseURL: strings.TrimRight(publicBaseURL, "/")}
	if cfg.AccessKeyID == "" {
		s.localDir = localDir
		return s, nil
	}

	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(cfg.Region),
		Credentials: credentials.NewStaticCredentials(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	s.s3Client = s3.New(sess)
	return s, nil
}

// UploadProductImage validates and stores one listing image for owner.
func (s *StorageService) UploadProductImage(ctx context.Context, ownerEmail string, file multipart.File, header *multipart.FileHeader) (*UploadResult, error) {
	if header.Size > maxProductImageSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, header.Size, maxProductImageSize)
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedExt(ext) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFileType, ext)
	}

	data, err := io.ReadAll(io.LimitReader(file, maxProductImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if len(data) > maxProductImageSize {
		return nil, fmt.Errorf("%w: exceeds %d bytes", ErrFileTooLarge, maxProductImageSize)
	}

	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("%w: content is %s", ErrUnsupportedFileType, contentType)
	}

	key := s.generateKey("products", ext)
	if s.s3Client == nil {
		return s.saveLocal(key, ownerEmail, data, contentType)
	}

	_, err = s.s3Client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.S3Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
		ACL:           aws.String("public-read"),
		Metadata:      map[string]*string{"owner": aws.String(ownerEmail)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload to S3: %w", err)
	}

	return &UploadResult{
		URL:      s.publicURL(key),
		Key:      key,
		Size:     int64(len(data)),
		MimeType: contentType,
	}, nil
}

// LocalDir is the directory served at /uploads, or empty when uploads go
// to S3 or storage is disabled.
func (s *StorageService) LocalDir() string {
	if s.s3Client != nil {
		return ""
	}
	return s.localDir
}

func (s *StorageService) saveLocal(key, ownerEmail string, data []byte, contentType string) (*UploadResult, error) {
	if s.localDir == "" {
		return nil, ErrStorageUnavailable
	}

	path := filepath.Join(s.localDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write upload: %w", err)
	}

	logrus.WithFields(logrus.Fields{"key": key, "owner": ownerEmail}).Debug("Stored upload locally")
	return &UploadResult{
		URL:      fmt.Sprintf("%s/uploads/%s", s.baseURL, key),
		Key:      key,
		Size:     int64(len(data)),
		MimeType: contentType,
	}, nil
}

func allowedExt(ext string) bool {
	for _, allowed := range productImageTypes {
		if ext == allowed {
			return true
		}
	}
	return false
}

func (s *StorageService) generateKey(folder, ext string) string {
	timestamp := time.Now().Format("20060102")
	return fmt.Sprintf("%s/%s_%s%s", folder, timestamp, uuid.New().String()[:8], ext)
}

func (s *StorageService) publicURL(key string) string {
	if s.cfg.CloudFrontURL != "" {
		return fmt.Sprintf("%s/%s", strings.TrimRight(s.cfg.CloudFrontURL, "/"), key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.S3Bucket, s.cfg.Region, key)
}
