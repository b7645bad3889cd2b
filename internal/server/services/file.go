package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sc "github.com/webstack/webstack/internal/server/config"
	"github.com/webstack/webstack/internal/server/models"
	"github.com/webstack/webstack/internal/server/repositories/repomanager"
	"github.com/google/uuid"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/webstack/webstack/internal/common"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

const presignValidity = 15 * time.Minute

// FileService manages file upload metadata and presigned object-storage
// URLs. Content never passes through the server: clients PUT and GET
// directly against object storage using short-lived presigned URLs.
type FileService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	config      *sc.Config
}

// NewFileService constructs a FileService.
func NewFileService(db *sql.DB, repomanager repomanager.RepositoryManager, config *sc.Config) *FileService {
	return &FileService{
		db:          db,
		repomanager: repomanager,
		config:      config,
	}
}

// GetRandomStorageKey returns a collision-free object key partitioned by
// upload date.
func GetRandomStorageKey() string {
	d := time.Now()
	return fmt.Sprintf("uploads/%d/%d/%d/%v", d.Year(), d.Month(), d.Day(), uuid.New())
}

func (s *FileService) getPresignClient() (*s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(context.Background(),
		config.WithRegion(s.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3AccessKeyID,
			s.config.S3SecretAccessKey,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
	})

	return newS3PresignClient(client), nil
}

func (s *FileService) presignPut(ctx context.Context, key string) (string, error) {
	presignClient, err := s.getPresignClient()
	if err != nil {
		return "", err
	}

	bucket := s.config.S3Bucket

	req, err := presignPutObject(presignClient, ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(presignValidity))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}

func (s *FileService) presignGet(ctx context.Context, key string) (string, error) {
	presignClient, err := s.getPresignClient()
	if err != nil {
		return "", err
	}

	bucket := s.config.S3Bucket

	req, err := presignGetObject(presignClient, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(presignValidity))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}

// RequestUpload registers a pending file record for userID and returns it
// together with a presigned PUT URL the client uploads the content to. The
// record stays pending until CompleteUpload confirms the transfer.
func (s *FileService) RequestUpload(ctx context.Context, userID int64, fileName, contentType string, size int64) (*models.File, string, error) {
	if fileName == "" {
		return nil, "", fmt.Errorf("file name is required: %w", common.ErrValidation)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := GetRandomStorageKey()

	url, err := s.presignPut(ctx, key)
	if err != nil {
		return nil, "", fmt.Errorf("error presigning upload: %v", err)
	}

	file := &models.File{
		UserID:       userID,
		StorageKey:   key,
		FileName:     fileName,
		ContentType:  contentType,
		Size:         size,
		UploadStatus: models.UploadStatusPending,
	}

	created, err := s.repomanager.Files(s.db).Create(ctx, file)
	if err != nil {
		return nil, "", fmt.Errorf("error creating file record: %v", err)
	}
	return created, url, nil
}

// CompleteUpload marks the file as uploaded. The file must belong to userID.
func (s *FileService) CompleteUpload(ctx context.Context, userID, fileID int64) error {
	repo := s.repomanager.Files(s.db)

	f, err := repo.GetByID(ctx, fileID)
	if err != nil {
		return err
	}
	if f.UserID != userID {
		return common.ErrorNotFound
	}

	if err := repo.MarkUploaded(ctx, fileID); err != nil {
		return fmt.Errorf("error updating file: %v", err)
	}
	return nil
}

// GetDownloadURL returns a presigned GET URL for a completed upload owned
// by userID.
func (s *FileService) GetDownloadURL(ctx context.Context, userID, fileID int64) (string, error) {
	f, err := s.repomanager.Files(s.db).GetByID(ctx, fileID)
	if err != nil {
		return "", err
	}
	if f.UserID != userID {
		return "", common.ErrorNotFound
	}
	if f.UploadStatus != models.UploadStatusCompleted {
		return "", fmt.Errorf("upload is not complete: %w", common.ErrValidation)
	}

	url, err := s.presignGet(ctx, f.StorageKey)
	if err != nil {
		return "", fmt.Errorf("error presigning download: %v", err)
	}
	return url, nil
}

// List returns all file records owned by userID, newest first.
func (s *FileService) List(ctx context.Context, userID int64) ([]*models.File, error) {
	return s.repomanager.Files(s.db).ListByUser(ctx, userID)
}

// Delete removes the file record if it belongs to userID. The stored object
// is left for lifecycle rules to reap.
func (s *FileService) Delete(ctx context.Context, userID, fileID int64) error {
	repo := s.repomanager.Files(s.db)

	f, err := repo.GetByID(ctx, fileID)
	if err != nil {
		return err
	}
	if f.UserID != userID {
		return common.ErrorNotFound
	}
	return repo.Delete(ctx, fileID)
}
