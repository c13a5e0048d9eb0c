package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/smallbiznis/covera/internal/config"
	"github.com/smallbiznis/covera/internal/document/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordedPut struct {
	path        string
	contentType string
	body        string
}

func fakeS3(t *testing.T, status int) (*httptest.Server, *[]recordedPut) {
	t.Helper()
	var (
		mu   sync.Mutex
		puts []recordedPut
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusOK)
			return
		}
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		puts = append(puts, recordedPut{path: r.URL.Path, contentType: r.Header.Get("Content-Type"), body: string(body)})
		mu.Unlock()
		if status != http.StatusOK {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(status)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>AccessDenied</Code><Message>Access Denied.</Message></Error>`)
			return
		}
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, &puts
}

func newStorage(t *testing.T, srv *httptest.Server, publicURL string) domain.Storage {
	t.Helper()
	cfg := config.Config{Storage: config.StorageConfig{
		Endpoint:  strings.TrimPrefix(srv.URL, "http://"),
		Region:    "us-east-1",
		AccessKey: "access",
		SecretKey: "secret",
		Bucket:    "receipts",
		PublicURL: publicURL,
	}}
	s, err := NewMinio(nil, cfg, zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestUploadReturnsPublicURL(t *testing.T) {
	srv, puts := fakeS3(t, http.StatusOK)
	s := newStorage(t, srv, "https://cdn.example.com")

	url, err := s.Upload(context.Background(), "proposals/abc.pdf", "application/pdf", []byte("%PDF-1.3"))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/receipts/proposals/abc.pdf", url)

	require.Len(t, *puts, 1)
	assert.Equal(t, "/receipts/proposals/abc.pdf", (*puts)[0].path)
	assert.Equal(t, "application/pdf", (*puts)[0].contentType)
	assert.Equal(t, "%PDF-1.3", (*puts)[0].body)
}

func TestUploadDefaultsToEndpointURL(t *testing.T) {
	srv, _ := fakeS3(t, http.StatusOK)
	s := newStorage(t, srv, "")

	url, err := s.Upload(context.Background(), "/receipts/x.txt", "text/plain", []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/receipts/receipts/x.txt", url)
}

func TestUploadFailure(t *testing.T) {
	srv, _ := fakeS3(t, http.StatusForbidden)
	s := newStorage(t, srv, "")

	_, err := s.Upload(context.Background(), "proposals/abc.pdf", "application/pdf", []byte("x"))
	assert.ErrorIs(t, err, domain.ErrUploadFailed)

	_, err = s.Upload(context.Background(), "  ", "application/pdf", []byte("x"))
	assert.ErrorIs(t, err, domain.ErrUploadFailed)
}
