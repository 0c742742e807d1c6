package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/starfederation/datastar-go/datastar"

	"github.com/romshark/todonotify/events"
	"github.com/romshark/todonotify/pkg/broadcast"
	"github.com/romshark/todonotify/server/template"
)

type SignalsIndex struct {
	Search struct {
		Term string `json:"term"`
	} `json:"search"`
}

func (s *Server) getIndex(w http.ResponseWriter, r *http.Request) {
	todos := s.store.List(r.Context())
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := template.PageIndex(todos, time.Now()).Render(r.Context(), w); err != nil {
		slog.Error("rendering page index", slog.Any("err", err))
	}
}

// getStream keeps the todo list of the index page up to date
// by patching it on every change until the connection is closed.
func (s *Server) getStream(w http.ResponseWriter, r *http.Request) {
	var signals SignalsIndex
	if err := datastar.ReadSignals(r, &signals); err != nil {
		slog.Debug("reading signals", slog.Any("err", err))
	}

	sse := datastar.NewSSE(w, r)

	patch := func() error {
		todos, err := s.store.Search(sse.Context(), signals.Search.Term)
		if err != nil {
			return err
		}
		return sse.PatchElementTempl(
			template.PartTodos(todos, time.Now()),
			datastar.WithSelectorID("todos"),
		)
	}

	if err := patch(); err != nil {
		slog.Error("patching todos", slog.Any("err", err))
		return
	}

	sub := broadcast.NewQueue(s.queueSize, func(events.Event) error {
		return patch()
	})
	s.broadcaster.Registry().Register(sub)
	defer func() {
		s.broadcaster.Registry().Unregister(sub)
		sub.Close()
	}()

	select {
	case <-sse.Context().Done(): // Wait until connection is closed.
	case <-sub.Done():
		if err := sub.Err(); err != nil {
			slog.Debug("patching todos", slog.Any("err", err))
		}
	}
}
