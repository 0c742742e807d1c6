package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/romshark/todonotify/domain"
	"github.com/romshark/todonotify/events"
	"github.com/romshark/todonotify/server/middleware"
)

const (
	DefaultQueueSize = 64

	wsWriteTimeout = 10 * time.Second
	wsPongWait     = 60 * time.Second
	wsPingInterval = 30 * time.Second
)

type Config struct {
	// AccessLog enables access logs.
	AccessLog bool

	// Brotli enables brotli compression of REST responses.
	Brotli      bool
	BrotliLevel int

	// QueueSize is the per-subscriber event buffer capacity.
	// DefaultQueueSize is used if zero.
	QueueSize int
}

// Server is the application context holding the todo store and
// the change notification broadcaster.
type Server struct {
	mux         *http.ServeMux
	store       *domain.Store
	broadcaster *events.Broadcaster
	upgrader    websocket.Upgrader
	queueSize   int
}

func New(store *domain.Store, conf Config) *Server {
	s := &Server{
		store:       store,
		broadcaster: events.NewBroadcaster(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		queueSize: conf.QueueSize,
	}
	if s.queueSize < 1 {
		s.queueSize = DefaultQueueSize
	}
	m := http.NewServeMux()

	newHandler := func(pattern string, h http.Handler) {
		if conf.AccessLog {
			h = middleware.AccessLog(h)
		}
		m.Handle(pattern, h)
	}
	newREST := func(pattern string, h http.HandlerFunc) {
		if conf.Brotli {
			newHandler(pattern, middleware.Brotli(h, conf.BrotliLevel))
			return
		}
		newHandler(pattern, h)
	}

	// Healthcheck
	m.HandleFunc("GET /livez", s.getLivez)
	m.HandleFunc("GET /readyz", s.getReadyz)

	// Pages
	newHandler("GET /{$}", middleware.NoCache(http.HandlerFunc(s.getIndex)))

	// Streams
	newHandler("GET /stream", middleware.NoCache(http.HandlerFunc(s.getStream)))
	newHandler("GET /notifications", http.HandlerFunc(s.getNotifications))

	// REST
	newREST("GET /todo", s.getTodos)
	newREST("GET /todo/{id}", s.getTodo)
	newREST("POST /todo", s.postTodo)
	newREST("DELETE /todo/{id}", s.deleteTodo)

	s.mux = m
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// SubscriberCount returns the number of currently connected subscribers.
func (s *Server) SubscriberCount() int {
	return s.broadcaster.Registry().Len()
}

// Close disconnects all subscribers.
func (s *Server) Close() {
	n := s.broadcaster.Registry().Len()
	s.broadcaster.Registry().CloseAll()
	slog.Debug("closed subscribers", slog.Int("subscribers", n))
}

func (s *Server) notify(e events.Event) {
	n := s.broadcaster.Broadcast(e)
	slog.Debug("notified subscribers",
		slog.String("event", string(e.Kind())),
		slog.Int64("todo", e.Subject().ID),
		slog.Int("subscribers", n))
}

func (s *Server) getReadyz(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) getLivez(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte("ok"))
}
