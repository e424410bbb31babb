package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"teranga-build/portal/portal-backend/internal/portal"
)

// Uploader is the part of manager.Uploader the archiver needs.
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// Archiver copies every project's expense ledger to an S3 bucket as XLSX,
// one object per project per day: <prefix>/<yyyy-mm-dd>/<project id>.xlsx.
type Archiver struct {
	service  *portal.Service
	uploader Uploader
	bucket   string
	prefix   string
	now      func() time.Time
	logger   *zap.Logger
}

// NewS3Archiver builds an archiver on a multipart uploader for cfg.
func NewS3Archiver(cfg aws.Config, service *portal.Service, bucket string, logger *zap.Logger) *Archiver {
	return NewArchiver(manager.NewUploader(s3.NewFromConfig(cfg)), service, bucket, logger)
}

// NewArchiver builds an archiver on any uploader.
func NewArchiver(uploader Uploader, service *portal.Service, bucket string, logger *zap.Logger) *Archiver {
	return &Archiver{
		service:  service,
		uploader: uploader,
		bucket:   bucket,
		prefix:   "ledgers",
		now:      time.Now,
		logger:   logger,
	}
}

// ArchiveLedgers uploads the ledger of every project that has expenses. A
// failed project does not stop the run; the failures are joined.
func (a *Archiver) ArchiveLedgers(ctx context.Context) (int, error) {
	now := a.now()
	day := now.UTC().Format("2006-01-02")

	archived := 0
	var errs []error
	for _, project := range a.service.AllProjects(ctx) {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		expenses := a.service.GetProjectExpenses(ctx, project.ID)
		if len(expenses) == 0 {
			continue
		}

		var buf bytes.Buffer
		ledger := NewLedger(project, expenses, now)
		if err := WriteLedgerExcel(&buf, ledger); err != nil {
			errs = append(errs, fmt.Errorf("project %s: %w", project.ID, err))
			continue
		}

		key := path.Join(a.prefix, day, project.ID+".xlsx")
		_, err := a.uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(a.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(buf.Bytes()),
			ContentType: aws.String(FormatXLSX.ContentType()),
			Metadata: map[string]string{
				"project-id": project.ID,
				"expenses":   fmt.Sprint(len(expenses)),
			},
		})
		if err != nil {
			a.logger.Error("Failed to upload ledger",
				zap.String("project_id", project.ID),
				zap.String("key", key),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("failed to upload %s: %w", key, err))
			continue
		}
		archived++
		a.logger.Debug("Ledger archived", zap.String("project_id", project.ID), zap.String("key", key))
	}
	return archived, errors.Join(errs...)
}
