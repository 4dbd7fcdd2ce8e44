package hec

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// newClientFor — клиент, направленный на тестовый сервер.
func newClientFor(t *testing.T, srv *httptest.Server, timeout time.Duration) *Client {
	t.Helper()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	return NewClient(Config{
		Host:       u.Hostname(),
		Port:       port,
		Scheme:     "http",
		Channel:    "11111111-2222-3333-4444-555555555555",
		Token:      "test-token",
		SourceType: "kafka",
		Source:     "kafka2hec",
		Timeout:    timeout,
	})
}

// 200 → Accepted; заголовки и конверты на месте.
func TestSend_Accepted(t *testing.T) {
	t.Parallel()

	type got struct {
		auth, channel string
		events        []event
	}
	var seen got

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.auth = r.Header.Get("Authorization")
		seen.channel = r.Header.Get("X-Splunk-Request-Channel")

		dec := json.NewDecoder(r.Body)
		for {
			var ev event
			if err := dec.Decode(&ev); err == io.EOF {
				break
			} else if err != nil {
				t.Errorf("decode envelope: %v", err)
				break
			}
			seen.events = append(seen.events, ev)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newClientFor(t, srv, time.Second)
	res := c.Send(context.Background(), [][]byte{[]byte("rec-a"), []byte("rec-b")})

	require.True(t, res.Accepted)
	require.Equal(t, http.StatusOK, res.Status)
	require.Equal(t, "Splunk test-token", seen.auth)
	require.Equal(t, "11111111-2222-3333-4444-555555555555", seen.channel)
	require.Equal(t, []event{
		{Event: "rec-a", SourceType: "kafka", Source: "kafka2hec"},
		{Event: "rec-b", SourceType: "kafka", Source: "kafka2hec"},
	}, seen.events)
}

// Любой не-200 статус → Rejected с номером статуса и фрагментом тела.
func TestSend_NonOKRejected(t *testing.T) {
	t.Parallel()

	for _, status := range []int{201, 400, 403, 500, 503} {
		status := status
		t.Run(strconv.Itoa(status), func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(status)
				_, _ = w.Write([]byte("collector says no"))
			}))
			defer srv.Close()

			c := newClientFor(t, srv, time.Second)
			res := c.Send(context.Background(), [][]byte{[]byte("x")})

			require.False(t, res.Accepted)
			require.Equal(t, status, res.Status)
			require.Contains(t, res.Reason, "collector says no")
		})
	}
}

// Транспортная ошибка (сервер лёг) → Rejected со статусом 0.
func TestSend_TransportErrorRejected(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	c := newClientFor(t, srv, time.Second)
	srv.Close()

	res := c.Send(context.Background(), [][]byte{[]byte("x")})
	require.False(t, res.Accepted)
	require.Equal(t, 0, res.Status)
	require.NotEmpty(t, res.Reason)
}

// Таймаут клиента ограничивает зависший endpoint → Rejected, не вечная блокировка.
func TestSend_TimeoutRejected(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-block
	}))
	defer func() {
		close(block)
		srv.Close()
	}()

	c := newClientFor(t, srv, 50*time.Millisecond)

	start := time.Now()
	res := c.Send(context.Background(), [][]byte{[]byte("x")})

	require.False(t, res.Accepted)
	require.Less(t, time.Since(start), 2*time.Second)
}

// Payload уходит непрозрачной строкой, даже если внутри JSON.
func TestSend_PayloadOpaque(t *testing.T) {
	t.Parallel()

	var raw string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		raw = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newClientFor(t, srv, time.Second)
	payload := `{"user":"a","amount":42}`
	res := c.Send(context.Background(), [][]byte{[]byte(payload)})

	require.True(t, res.Accepted)
	var ev event
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(raw)), &ev))
	require.Equal(t, payload, ev.Event)
}
