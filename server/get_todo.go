package server

import (
	"net/http"

	"github.com/romshark/todonotify/server/request"
)

func (s *Server) getTodos(w http.ResponseWriter, r *http.Request) {
	todos, err := s.store.Search(r.Context(), r.URL.Query().Get("q"))
	if request.IfErrInternal(w, err, "") {
		return
	}
	request.WriteJSON(w, todos)
}

func (s *Server) getTodo(w http.ResponseWriter, r *http.Request) {
	i, ok := request.PathValue[int](w, r, "id")
	if !ok {
		return
	}

	todo, err := s.store.Get(r.Context(), i)
	if request.IfErrNotFound(w, err, "") {
		return
	}
	request.WriteJSON(w, todo)
}
