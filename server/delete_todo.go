package server

import (
	"errors"
	"net/http"

	"github.com/romshark/todonotify/domain"
	"github.com/romshark/todonotify/events"
	"github.com/romshark/todonotify/server/request"
)

func (s *Server) deleteTodo(w http.ResponseWriter, r *http.Request) {
	i, ok := request.PathValue[int](w, r, "id")
	if !ok {
		return
	}

	todo, err := s.store.RemoveAt(r.Context(), i)
	if errors.Is(err, domain.ErrInvalidIndex) {
		if request.IfErrNotFound(w, err, "") {
			return
		}
	}
	if request.IfErrInternal(w, err, "") {
		return
	}

	s.notify(events.Removed{Todo: todo})
	request.WriteJSON(w, todo)
}
