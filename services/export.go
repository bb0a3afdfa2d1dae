package services

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"regintel/config"
	"regintel/storage"
	"regintel/store"
)

// ExportService schreibt Snapshots der wichtigsten Updates als JSON nach S3,
// damit nachgelagerte Systeme nicht an der Datenbank hängen müssen.
type ExportService struct {
	Config   *config.Config
	Store    *store.Store
	S3Client *s3.Client
	Logger   *zap.Logger
}

// NewExportService erstellt einen ExportService. S3Client darf nil sein,
// dann ist der Export deaktiviert.
func NewExportService(cfg *config.Config, st *store.Store, s3Client *s3.Client, logger *zap.Logger) *ExportService {
	return &ExportService{Config: cfg, Store: st, S3Client: s3Client, Logger: logger}
}

// ExportHighPriority lädt alle Updates ab Priorität minPriority als
// gzip-komprimiertes JSON nach S3 und gibt den Link zurück.
func (e *ExportService) ExportHighPriority(ctx context.Context, minPriority int) (string, error) {
	if e.S3Client == nil {
		return "", fmt.Errorf("s3 export not configured")
	}

	updates, err := e.Store.LatestByPriority(ctx, minPriority, 500)
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(map[string]any{
		"exported_at":  time.Now().UTC(),
		"min_priority": minPriority,
		"count":        len(updates),
		"updates":      updates,
	})
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(payload); err != nil {
		return "", err
	}
	if err := gz.Close(); err != nil {
		return "", err
	}

	key := fmt.Sprintf("exports/high-priority-%s.json.gz", time.Now().UTC().Format("2006-01-02T15-04-05Z"))
	link, err := storage.UploadFile(e.S3Client, e.Config.BackupS3Bucket, key, buf.Bytes(), e.Config)
	if err != nil {
		return "", err
	}

	e.Logger.Info("Export nach S3 abgeschlossen",
		zap.String("key", key),
		zap.Int("updates", len(updates)))
	return link, nil
}
