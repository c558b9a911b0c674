// Package objectstore writes finalized traces as JSON objects to MinIO or any
// S3-compatible bucket.
package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"

	"github.com/minio/minio-go/v7"

	"github.com/campaignforge/telemetry/internal/persistence"
)

// objectPutter is the subset of the MinIO client used by the store
type objectPutter interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// TraceEventObjects writes one object per row under
// <prefix>/<yyyy>/<mm>/<dd>/<trace_id>-<event_id>.json
type TraceEventObjects struct {
	client objectPutter
	bucket string
	prefix string
}

// NewTraceEventObjects creates an object store
func NewTraceEventObjects(client objectPutter, bucket, prefix string) *TraceEventObjects {
	if prefix == "" {
		prefix = "trace-events"
	}
	return &TraceEventObjects{client: client, bucket: bucket, prefix: prefix}
}

// Insert implements persistence.Store
func (s *TraceEventObjects) Insert(ctx context.Context, row *persistence.Row) error {
	doc, err := row.Document()
	if err != nil {
		return err
	}

	key := s.Key(row)
	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(doc), int64(len(doc)), minio.PutObjectOptions{
		ContentType: "application/json",
		UserMetadata: map[string]string{
			"trace-id":   row.TraceID,
			"event-name": row.EventName,
			"status":     row.Status,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to put %s/%s: %w", s.bucket, key, err)
	}
	return nil
}

// Key returns the object key for a row
func (s *TraceEventObjects) Key(row *persistence.Row) string {
	ts := row.Timestamp.UTC()
	return path.Join(s.prefix, ts.Format("2006/01/02"), row.TraceID+"-"+row.EventID+".json")
}
