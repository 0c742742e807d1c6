package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/romshark/todonotify/domain"
	"github.com/romshark/todonotify/events"
	"github.com/romshark/todonotify/server/request"
)

func (s *Server) postTodo(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Completed   bool   `json:"completed"`
	}
	if !request.ReadJSON(w, r, &body) {
		return
	}

	todo, err := s.store.Add(
		r.Context(), body.Name, body.Description, body.Completed, time.Now(),
	)
	var errValid domain.ErrorValidation
	if errors.As(err, &errValid) {
		if request.IfErrBadRequest(w, err, errValid.Error()) {
			return
		}
	}
	if request.IfErrInternal(w, err, "") {
		return
	}

	s.notify(events.Added{Todo: todo})
	request.WriteJSON(w, todo)
}
