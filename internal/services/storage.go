package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// ImageUpload is an image received from a client, not yet validated.
type ImageUpload struct {
	Filename string
	Data     []byte
}

var allowedImageTypes = []string{"image/jpeg", "image/png"}

// ValidateImage enforces the size limit and sniffs the content for JPEG or
// PNG, returning the detected MIME type.
func ValidateImage(img *ImageUpload, maxBytes int64) (string, error) {
	if img == nil || len(img.Data) == 0 {
		return "", Validationf("image is empty")
	}
	if int64(len(img.Data)) > maxBytes {
		return "", Validationf("Image size must be <= %dMB", maxBytes/(1024*1024))
	}
	mtype := mimetype.Detect(img.Data)
	for _, allowed := range allowedImageTypes {
		if mtype.Is(allowed) {
			return allowed, nil
		}
	}
	return "", Validationf("Only JPG and PNG images are allowed")
}

// objectName builds "<prefix>/<id>_<base filename>".
func objectName(prefix string, id uint, filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "image"
	}
	base = strings.ReplaceAll(base, " ", "_")
	return fmt.Sprintf("%s/%d_%s", prefix, id, base)
}

// ObjectStorage stores uploaded files and returns their public URL.
type ObjectStorage interface {
	Upload(ctx context.Context, bucket, name, contentType string, data []byte) (string, error)
}

// SupabaseStorage 通过 Supabase Storage REST API 上传文件
type SupabaseStorage struct {
	baseURL string
	key     string
	client  *http.Client
}

func NewSupabaseStorage(baseURL, key string) *SupabaseStorage {
	return &SupabaseStorage{
		baseURL: strings.TrimRight(baseURL, "/"),
		key:     key,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *SupabaseStorage) objectURL(public bool, bucket, name string) string {
	segment := "object"
	if public {
		segment = "object/public"
	}
	return fmt.Sprintf("%s/storage/v1/%s/%s/%s", s.baseURL, segment, url.PathEscape(bucket), escapePath(name))
}

func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

// Upload writes the object with upsert semantics.
func (s *SupabaseStorage) Upload(ctx context.Context, bucket, name, contentType string, data []byte) (string, error) {
	if s.baseURL == "" {
		return "", Upstream("storage upload", fmt.Errorf("SUPABASE_URL 未配置"))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.objectURL(false, bucket, name), bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.key)
	req.Header.Set("apikey", s.key)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "true")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", Upstream("storage upload", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", Upstream("storage upload", fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	return s.objectURL(true, bucket, name), nil
}
