package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"
)

type SupabaseStorage struct {
	baseURL    string
	serviceKey string
	bucket     string
	httpClient *http.Client
	available  atomic.Bool
}

func NewSupabaseStorage(supabaseURL, serviceKey, bucket string) *SupabaseStorage {
	return &SupabaseStorage{
		baseURL:    supabaseURL + "/storage/v1",
		serviceKey: serviceKey,
		bucket:     bucket,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

// EnsureBucket checks that the bucket exists, creating it when missing, and
// records the outcome for Available.
func (s *SupabaseStorage) EnsureBucket(ctx context.Context) {
	if err := s.ensureBucket(ctx); err != nil {
		slog.Warn("supabase storage unavailable", "bucket", s.bucket, "error", err)
		s.available.Store(false)
		return
	}
	s.available.Store(true)
}

func (s *SupabaseStorage) ensureBucket(ctx context.Context) error {
	resp, err := s.do(ctx, http.MethodGet, fmt.Sprintf("%s/bucket/%s", s.baseURL, s.bucket), nil, "")
	if err != nil {
		return fmt.Errorf("get bucket: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode < 400 {
		return nil
	}

	body, err := json.Marshal(map[string]any{"id": s.bucket, "name": s.bucket, "public": false})
	if err != nil {
		return fmt.Errorf("marshal bucket request: %w", err)
	}
	resp, err = s.do(ctx, http.MethodPost, s.baseURL+"/bucket", bytes.NewReader(body), "application/json")
	if err != nil {
		return fmt.Errorf("create bucket: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("create bucket failed (%d): %s", resp.StatusCode, string(msg))
	}
	return nil
}

func (s *SupabaseStorage) Available() bool {
	return s.available.Load()
}

func (s *SupabaseStorage) Upload(ctx context.Context, key string, data io.Reader, contentType string) error {
	buf := &bytes.Buffer{}
	if _, err := io.Copy(buf, data); err != nil {
		return fmt.Errorf("read upload data: %w", err)
	}

	resp, err := s.do(ctx, http.MethodPost, s.objectURL(key), buf, contentType)
	if err != nil {
		return fmt.Errorf("upload file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("upload failed (%d): %s", resp.StatusCode, string(body))
	}

	return nil
}

func (s *SupabaseStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	resp, err := s.do(ctx, http.MethodGet, s.objectURL(key), nil, "")
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}

	if resp.StatusCode >= 400 {
		resp.Body.Close()
		return nil, fmt.Errorf("download failed (%d)", resp.StatusCode)
	}

	return resp.Body, nil
}

func (s *SupabaseStorage) Delete(ctx context.Context, key string) error {
	resp, err := s.do(ctx, http.MethodDelete, s.objectURL(key), nil, "")
	if err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("delete failed (%d)", resp.StatusCode)
	}

	return nil
}

func (s *SupabaseStorage) objectURL(key string) string {
	return fmt.Sprintf("%s/object/%s/%s", s.baseURL, s.bucket, key)
}

func (s *SupabaseStorage) do(ctx context.Context, method, url string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return s.httpClient.Do(req)
}
