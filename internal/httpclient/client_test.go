package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bioarchive/studysearch/internal/common"
)

func TestNewOutboundClientWithoutProxy(t *testing.T) {
	client, err := NewOutboundClient(common.DefaultConfig(), 5*time.Second)
	require.NoError(t, err)
	assert.Nil(t, client.Transport)
	assert.Equal(t, 5*time.Second, client.Timeout)
}

func TestNewOutboundClientWithProxy(t *testing.T) {
	cfg := common.DefaultConfig()
	cfg.Proxy.Host = "proxy.internal"
	cfg.Proxy.Port = 3128

	client, err := NewOutboundClient(cfg, 5*time.Second)
	require.NoError(t, err)
	require.NotNil(t, client.Transport)
}

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ontology payload"))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "nested", "efo.owl")
	d := NewDownloader(NewDefaultHTTPClient(5*time.Second), nil)

	require.NoError(t, d.Download(context.Background(), srv.URL, dest))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "ontology payload", string(data))
}

func TestDownloadNon200Fails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "efo.owl")
	d := NewDownloader(NewDefaultHTTPClient(5*time.Second), nil)

	require.Error(t, d.Download(context.Background(), srv.URL, dest))
	_, err := os.Stat(dest)
	assert.True(t, os.IsNotExist(err))
}
