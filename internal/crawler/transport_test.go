package crawler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/gazette/internal/common"
	"github.com/ternarybob/gazette/internal/interfaces"
)

func TestStandardTransportGet(t *testing.T) {
	var gotUA, gotAccept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept-Language")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("<html>ok</html>"))
	}))
	defer server.Close()

	tr := NewStandardTransport(5*time.Second, false, common.GetLogger())
	defer tr.Close()

	resp, err := tr.Get(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "<html>ok</html>", resp.Body)
	assert.Equal(t, server.URL, resp.FinalURL)
	assert.Equal(t, userAgents[0], gotUA, "rotation disabled pins the first agent")
	assert.Contains(t, gotAccept, "zh-CN")
	assert.Equal(t, interfaces.SessionStandard, tr.Type())
}

func TestStandardTransportRotatesUserAgent(t *testing.T) {
	seen := make(map[string]bool)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen[r.Header.Get("User-Agent")] = true
	}))
	defer server.Close()

	tr := NewStandardTransport(5*time.Second, true, common.GetLogger())
	defer tr.Close()

	for i := 0; i < 50; i++ {
		_, err := tr.Get(context.Background(), server.URL)
		require.NoError(t, err)
	}

	for ua := range seen {
		assert.Contains(t, userAgents, ua)
	}
	assert.Greater(t, len(seen), 1, "50 requests should sample more than one agent")
}

func TestStandardTransportFollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("moved"))
	})

	tr := NewStandardTransport(5*time.Second, false, common.GetLogger())
	defer tr.Close()

	resp, err := tr.Get(context.Background(), server.URL+"/old")
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "moved", resp.Body)
	assert.True(t, strings.HasSuffix(resp.FinalURL, "/new"))
}

func TestStandardTransportPassesStatusThrough(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	tr := NewStandardTransport(5*time.Second, false, common.GetLogger())
	defer tr.Close()

	resp, err := tr.Get(context.Background(), server.URL)
	require.NoError(t, err, "non-2xx is an outcome, not a transport error")
	assert.Equal(t, 429, resp.StatusCode)
}

func TestStandardTransportContextCancel(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	tr := NewStandardTransport(time.Minute, false, common.GetLogger())
	defer tr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := tr.Get(ctx, server.URL)
	assert.Error(t, err)
}
