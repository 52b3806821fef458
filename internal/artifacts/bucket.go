package artifacts

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/google/uuid"
	storage "github.com/supabase-community/storage-go"
)

// BucketMirror copies exported model files into a Supabase storage bucket so
// clients can download them over HTTP. Mirroring is best-effort; the disk
// store remains the path authority.
type BucketMirror struct {
	client  *storage.Client
	bucket  string
	baseURL string
}

func NewBucketMirror(supabaseURL, serviceKey, bucket string) (*BucketMirror, error) {
	baseURL := strings.TrimRight(supabaseURL, "/")
	client := storage.NewClient(baseURL+"/storage/v1", serviceKey, nil)
	return &BucketMirror{
		client:  client,
		bucket:  bucket,
		baseURL: baseURL,
	}, nil
}

// Upload stores one file under users/{user_id}/projects/{project_id}/ and
// returns its public URL.
func (b *BucketMirror) Upload(userID uuid.UUID, projectID int64, filename string, data []byte) (string, error) {
	storagePath := fmt.Sprintf("users/%s/projects/%d/%s", userID.String(), projectID, filename)

	contentType := "application/octet-stream"
	upsert := true
	_, err := b.client.UploadFile(b.bucket, storagePath, bytes.NewReader(data), storage.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload artifact: %w", err)
	}

	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", b.baseURL, b.bucket, storagePath), nil
}
