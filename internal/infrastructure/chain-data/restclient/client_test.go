package restclient_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vulpemventures/dinghy/internal/infrastructure/chain-data/restclient"
)

func TestGetRetriesOnServerErrors(t *testing.T) {
	t.Parallel()

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"height": 42}`)
	}))
	defer server.Close()

	client := restclient.New(server.URL, time.Second, 2)
	var resp struct {
		Height int `json:"height"`
	}
	require.NoError(t, client.Get(context.Background(), "/tip", &resp))
	require.Equal(t, 42, resp.Height)
	require.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestGetDoesNotRetryClientErrors(t *testing.T) {
	t.Parallel()

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "Invalid Bitcoin address", http.StatusBadRequest)
	}))
	defer server.Close()

	client := restclient.New(server.URL+"/", time.Second, 3)
	err := client.Get(context.Background(), "/address/foo", nil)
	require.Error(t, err)
	require.True(t, restclient.IsClientError(err))
	require.Contains(t, err.Error(), "Invalid Bitcoin address")
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGetGivesUpAfterMaxRetries(t *testing.T) {
	t.Parallel()

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := restclient.New(server.URL, time.Second, 1)
	err := client.Get(context.Background(), "/", nil)
	require.Error(t, err)
	require.False(t, restclient.IsClientError(err))
	require.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestPostIsNeverRetried(t *testing.T) {
	t.Parallel()

	var calls int32
	chRequests := make(chan [2]string, 10)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		buf, _ := io.ReadAll(r.Body)
		chRequests <- [2]string{string(buf), r.Header.Get("Content-Type")}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := restclient.New(server.URL, time.Second, 5)
	_, err := client.Post(
		context.Background(), "/tx", "text/plain", strings.NewReader("0200"),
	)
	require.Error(t, err)
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
	req := <-chRequests
	require.Equal(t, "0200", req[0])
	require.Equal(t, "text/plain", req[1])
}

func TestGetHonoursCancelledContext(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := restclient.New(server.URL, time.Second, 3)
	err := client.Get(ctx, "/", nil)
	require.ErrorIs(t, err, context.Canceled)
}
