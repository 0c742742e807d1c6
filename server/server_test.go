package server_test

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/gorilla/websocket"

	"github.com/romshark/todonotify/domain"
	"github.com/romshark/todonotify/server"

	"github.com/stretchr/testify/require"
)

type TestTodo struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
}

type TestEvent struct {
	Type string   `json:"type"`
	Todo TestTodo `json:"todo"`
}

func newTestServer(t *testing.T, opts ...domain.Option) (*server.Server, *httptest.Server) {
	t.Helper()
	srv := server.New(domain.New(opts...), server.Config{})
	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		srv.Close()
		ts.Close()
	})
	return srv, ts
}

func do(
	t *testing.T, ts *httptest.Server, method, path, body string,
) (status int, respBody []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(
		t.Context(), method, ts.URL+path, strings.NewReader(body),
	)
	require.NoError(t, err)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, b
}

func doJSON[T any](t *testing.T, ts *httptest.Server, method, path, body string) T {
	t.Helper()
	status, b := do(t, ts, method, path, body)
	require.Equal(t, http.StatusOK, status, string(b))
	var v T
	require.NoError(t, json.Unmarshal(b, &v))
	return v
}

func post(t *testing.T, ts *httptest.Server, name string) TestTodo {
	t.Helper()
	body, err := json.Marshal(TestTodo{Name: name})
	require.NoError(t, err)
	return doJSON[TestTodo](t, ts, http.MethodPost, "/todo", string(body))
}

func TestScenario(t *testing.T) {
	_, ts := newTestServer(t)

	require.Equal(t, []TestTodo{}, doJSON[[]TestTodo](t, ts, http.MethodGet, "/todo", ""))

	a := doJSON[TestTodo](t, ts, http.MethodPost, "/todo",
		`{"name":"a","description":"","completed":false}`)
	require.Equal(t, TestTodo{ID: 0, Name: "a"}, a)

	b := doJSON[TestTodo](t, ts, http.MethodPost, "/todo",
		`{"name":"b","description":"","completed":false}`)
	require.Equal(t, TestTodo{ID: 1, Name: "b"}, b)

	removed := doJSON[TestTodo](t, ts, http.MethodDelete, "/todo/0", "")
	require.Equal(t, a, removed)

	l := doJSON[[]TestTodo](t, ts, http.MethodGet, "/todo", "")
	require.Equal(t, []TestTodo{{ID: 0, Name: "b"}}, l, "b shifted to position 0")

	got := doJSON[TestTodo](t, ts, http.MethodGet, "/todo/0", "")
	require.Equal(t, TestTodo{ID: 0, Name: "b"}, got)
}

func TestPostIDAddressesTodoAfterDelete(t *testing.T) {
	_, ts := newTestServer(t)

	post(t, ts, "a")
	post(t, ts, "b")
	doJSON[TestTodo](t, ts, http.MethodDelete, "/todo/0", "")

	c := post(t, ts, "c")
	require.Equal(t, int64(1), c.ID)

	l := doJSON[[]TestTodo](t, ts, http.MethodGet, "/todo", "")
	require.Equal(t, []TestTodo{{ID: 0, Name: "b"}, {ID: 1, Name: "c"}}, l)
	require.Equal(t, c, l[c.ID], "ID equals position in listing")

	got := doJSON[TestTodo](t, ts, http.MethodGet, "/todo/1", "")
	require.Equal(t, c, got, "posted ID addresses the todo")
}

func TestScenarioStableIDs(t *testing.T) {
	_, ts := newTestServer(t, domain.WithStableIDs())

	a := post(t, ts, "a")
	require.Equal(t, int64(0), a.ID)
	b := post(t, ts, "b")
	require.Equal(t, int64(1), b.ID)

	removed := doJSON[TestTodo](t, ts, http.MethodDelete, "/todo/0", "")
	require.Equal(t, a, removed)

	l := doJSON[[]TestTodo](t, ts, http.MethodGet, "/todo", "")
	require.Equal(t, []TestTodo{b}, l, "stable IDs keep b's ID")

	got := doJSON[TestTodo](t, ts, http.MethodGet, "/todo/0", "")
	require.Equal(t, b, got, "addressed by position")

	c := post(t, ts, "c")
	require.Equal(t, int64(2), c.ID, "IDs aren't reused")
}

func TestCreationOrder(t *testing.T) {
	_, ts := newTestServer(t)

	var expect []TestTodo
	for _, name := range []string{"one", "two", "three", "four"} {
		td := post(t, ts, name)
		expect = append(expect, td)

		l := doJSON[[]TestTodo](t, ts, http.MethodGet, "/todo", "")
		require.Equal(t, td, l[td.ID], "ID equals position in listing")
	}
	require.Equal(t, expect, doJSON[[]TestTodo](t, ts, http.MethodGet, "/todo", ""))

	doJSON[TestTodo](t, ts, http.MethodDelete, "/todo/1", "")
	require.Equal(t,
		[]TestTodo{
			{ID: 0, Name: "one"},
			{ID: 1, Name: "three"},
			{ID: 2, Name: "four"},
		},
		doJSON[[]TestTodo](t, ts, http.MethodGet, "/todo", ""),
		"relative order preserved",
	)
}

func TestErrors(t *testing.T) {
	_, ts := newTestServer(t)
	post(t, ts, "a")

	for _, tt := range []struct {
		name, method, path, body string
		expect                   int
	}{
		{"get at len", http.MethodGet, "/todo/1", "", http.StatusNotFound},
		{"get negative", http.MethodGet, "/todo/-1", "", http.StatusNotFound},
		{"get not int", http.MethodGet, "/todo/abc", "", http.StatusBadRequest},
		{"delete at len", http.MethodDelete, "/todo/1", "", http.StatusNotFound},
		{"delete not int", http.MethodDelete, "/todo/x", "", http.StatusBadRequest},
		{"post malformed", http.MethodPost, "/todo", `{"name":`, http.StatusBadRequest},
		{"post trailing data", http.MethodPost, "/todo", `{"name":"a"} xyz`, http.StatusBadRequest},
		{"post null", http.MethodPost, "/todo", `null`, http.StatusBadRequest},
		{
			"post name too long", http.MethodPost, "/todo",
			`{"name":"` + strings.Repeat("x", domain.NameMaxLength+1) + `"}`,
			http.StatusBadRequest,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := do(t, ts, tt.method, tt.path, tt.body)
			require.Equal(t, tt.expect, status)
		})
	}

	require.Len(t, doJSON[[]TestTodo](t, ts, http.MethodGet, "/todo", ""), 1)
}

func TestSearch(t *testing.T) {
	_, ts := newTestServer(t)
	post(t, ts, "Buy milk")
	post(t, ts, "Walk the dog")

	l := doJSON[[]TestTodo](t, ts, http.MethodGet, "/todo?q=milk", "")
	require.Equal(t, []TestTodo{{ID: 0, Name: "Buy milk"}}, l)

	l = doJSON[[]TestTodo](t, ts, http.MethodGet, "/todo?q=zebra", "")
	require.Equal(t, []TestTodo{}, l)
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t)

	status, b := do(t, ts, http.MethodGet, "/livez", "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "ok", string(b))

	status, b = do(t, ts, http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "ready", string(b))
}

func TestIndex(t *testing.T) {
	_, ts := newTestServer(t)
	post(t, ts, "<script>")

	status, b := do(t, ts, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, string(b), `<ul id="todos" data-count="1">`)
	require.Contains(t, string(b), "&lt;script&gt;")
	require.NotContains(t, string(b), "<strong><script>")
}

func TestBrotli(t *testing.T) {
	srv := server.New(domain.New(), server.Config{Brotli: true, BrotliLevel: 5})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, ts.URL+"/todo", nil)
	require.NoError(t, err)
	req.Header.Set("Accept-Encoding", "br")
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, "br", resp.Header.Get("Content-Encoding"))
	b, err := io.ReadAll(brotli.NewReader(resp.Body))
	require.NoError(t, err)
	require.JSONEq(t, `[]`, string(b))
}

func dialNotifications(t *testing.T, srv *server.Server, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	before := srv.SubscriberCount()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/notifications"
	conn, resp, err := websocket.DefaultDialer.DialContext(t.Context(), url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	require.Eventually(t, func() bool {
		return srv.SubscriberCount() == before+1
	}, time.Second, time.Millisecond, "subscriber registered")
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) TestEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	typ, b, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.TextMessage, typ)
	var e TestEvent
	require.NoError(t, json.Unmarshal(b, &e))
	return e
}

func TestNotifications(t *testing.T) {
	srv, ts := newTestServer(t)
	conn1 := dialNotifications(t, srv, ts)
	conn2 := dialNotifications(t, srv, ts)

	// Client messages are ignored.
	require.NoError(t, conn1.WriteMessage(websocket.TextMessage, []byte("hello")))

	a := post(t, ts, "a")
	b := post(t, ts, "b")
	removed := doJSON[TestTodo](t, ts, http.MethodDelete, "/todo/0", "")

	for _, conn := range []*websocket.Conn{conn1, conn2} {
		require.Equal(t, TestEvent{Type: "added", Todo: a}, readEvent(t, conn))
		require.Equal(t, TestEvent{Type: "added", Todo: b}, readEvent(t, conn))
		require.Equal(t, TestEvent{Type: "removed", Todo: removed}, readEvent(t, conn))
	}

	// Exactly one event per mutation.
	require.NoError(t, conn1.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := conn1.ReadMessage()
	require.Error(t, err)
}

func TestNotificationsIgnoreLargeClientFrames(t *testing.T) {
	srv, ts := newTestServer(t)
	conn := dialNotifications(t, srv, ts)

	large := bytes.Repeat([]byte("x"), 1024)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, large))
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, bytes.Repeat(large, 64)))

	a := post(t, ts, "a")
	require.Equal(t, TestEvent{Type: "added", Todo: a}, readEvent(t, conn))
	require.Equal(t, 1, srv.SubscriberCount())
}

func TestNotificationsDisconnect(t *testing.T) {
	srv, ts := newTestServer(t)
	conn := dialNotifications(t, srv, ts)
	require.Equal(t, 1, srv.SubscriberCount())

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		return srv.SubscriberCount() == 0
	}, 2*time.Second, time.Millisecond, "subscriber unregistered")

	// Must neither fail nor hang.
	td := post(t, ts, "after disconnect")
	require.Equal(t, "after disconnect", td.Name)
	require.Zero(t, srv.SubscriberCount())
}

func TestNotificationsServerClose(t *testing.T) {
	srv, ts := newTestServer(t)
	conn := dialNotifications(t, srv, ts)

	srv.Close()
	require.Zero(t, srv.SubscriberCount())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), err)
}

func TestStream(t *testing.T) {
	srv, ts := newTestServer(t)
	post(t, ts, "a")

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, ts.URL+"/stream", nil)
	require.NoError(t, err)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	lines := make(chan string, 64)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()
	waitFor := func(substr string) {
		t.Helper()
		timeout := time.After(2 * time.Second)
		for {
			select {
			case l, ok := <-lines:
				require.True(t, ok, "stream ended")
				if strings.Contains(l, substr) {
					return
				}
			case <-timeout:
				t.Fatalf("timed out waiting for %q", substr)
			}
		}
	}

	waitFor(`data-count="1"`)
	require.Eventually(t, func() bool {
		return srv.SubscriberCount() == 1
	}, time.Second, time.Millisecond)

	post(t, ts, "b")
	waitFor(`data-count="2"`)
}

func TestPostIgnoresClientID(t *testing.T) {
	_, ts := newTestServer(t)
	post(t, ts, "a")
	td := doJSON[TestTodo](t, ts, http.MethodPost, "/todo",
		`{"id":42,"name":"b","description":"x","completed":true}`)
	require.Equal(t, TestTodo{ID: 1, Name: "b", Description: "x", Completed: true}, td)

	var buf bytes.Buffer
	_, b := do(t, ts, http.MethodGet, "/todo/1", "")
	require.NoError(t, json.Indent(&buf, b, "", "  "))
	require.Equal(t, buf.String(), string(b), "responses are indented")
}
