package services

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateImage(t *testing.T) {
	tests := []struct {
		name    string
		img     *ImageUpload
		want    string
		wantErr bool
	}{
		{"png", &ImageUpload{Filename: "a.png", Data: pngBytes}, "image/png", false},
		{"jpeg", &ImageUpload{Filename: "a.jpg", Data: jpegBytes}, "image/jpeg", false},
		{"gif", &ImageUpload{Filename: "a.gif", Data: gifBytes}, "", true},
		{"png named jpg", &ImageUpload{Filename: "a.jpg", Data: pngBytes}, "image/png", false},
		{"too large", &ImageUpload{Filename: "a.png", Data: append(pngBytes, make([]byte, 100)...)}, "", true},
		{"empty", &ImageUpload{Filename: "a.png"}, "", true},
		{"nil", nil, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateImage(tt.img, 64)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestObjectName(t *testing.T) {
	assert.Equal(t, "posts/7_cat.png", objectName("posts", 7, "cat.png"))
	assert.Equal(t, "avatars/3_my_face.jpg", objectName("avatars", 3, `C:\tmp\my face.jpg`))
	assert.Equal(t, "posts/1_passwd", objectName("posts", 1, "../../etc/passwd"))
	assert.Equal(t, "posts/1_image", objectName("posts", 1, ""))
}

func TestSupabaseStorageUpload(t *testing.T) {
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/storage/v1/object/posts/posts/7_cat.png", r.URL.Path)
		assert.Equal(t, "true", r.Header.Get("x-upsert"))
		assert.Equal(t, "image/png", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer service-key", r.Header.Get("Authorization"))
		gotBody, _ = io.ReadAll(r.Body)
		w.Write([]byte(`{"Key":"posts/posts/7_cat.png"}`))
	}))
	defer server.Close()

	store := NewSupabaseStorage(server.URL+"/", "service-key")
	url, err := store.Upload(context.Background(), "posts", "posts/7_cat.png", "image/png", pngBytes)
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/storage/v1/object/public/posts/posts/7_cat.png", url)
	assert.True(t, bytes.Equal(pngBytes, gotBody))
}

func TestSupabaseStorageUploadFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":"Unauthorized"}`))
	}))
	defer server.Close()

	_, err := NewSupabaseStorage(server.URL, "k").Upload(context.Background(), "posts", "x.png", "image/png", pngBytes)
	assert.ErrorIs(t, err, ErrUpstream)
}
