// Package rawstore archives raw model output to Google Cloud Storage so
// degraded parses can be inspected after the fact. Uploads are advisory:
// the caller logs failures and moves on.
package rawstore

import (
	"context"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
)

// uploadTimeout bounds one archive write so a slow bucket never holds a
// request goroutine.
const uploadTimeout = 30 * time.Second

// Archiver writes raw model responses into one GCS bucket, keyed by run
// ID and date. It assumes Application Default Credentials are configured.
type Archiver struct {
	client *storage.Client
	bucket string
}

// NewArchiver creates an archiver over the given bucket.
func NewArchiver(ctx context.Context, bucket string) (*Archiver, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewArchiver: create storage client: %w", err)
	}
	return &Archiver{client: client, bucket: bucket}, nil
}

// Close releases the underlying client.
func (a *Archiver) Close() error {
	if a.client != nil {
		return a.client.Close()
	}
	return nil
}

// Archive stores one raw model response under
// raw-output/<yyyy-mm-dd>/<runID>.txt.
func (a *Archiver) Archive(ctx context.Context, runID string, raw []byte) error {
	objectName := fmt.Sprintf("raw-output/%s/%s.txt", time.Now().UTC().Format("2006-01-02"), runID)

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := a.client.Bucket(a.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = "text/plain; charset=utf-8"

	if _, err := w.Write(raw); err != nil {
		_ = w.Close()
		return fmt.Errorf("Archive: writing object %s: %w", objectName, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("Archive: finalize upload %s: %w", objectName, err)
	}
	return nil
}

// Fetch downloads one archived response by run ID and date, for offline
// inspection tooling.
func (a *Archiver) Fetch(ctx context.Context, date, runID string) ([]byte, error) {
	objectName := fmt.Sprintf("raw-output/%s/%s.txt", date, runID)

	rc, err := a.client.Bucket(a.bucket).Object(objectName).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading object %s: %w", objectName, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading bytes: %w", err)
	}
	return data, nil
}
