package server

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/romshark/todonotify/events"
	"github.com/romshark/todonotify/pkg/broadcast"
)

// getNotifications upgrades to a WebSocket connection and pushes one text
// frame per todo event until either side closes the connection.
// Messages sent by the client are discarded.
func (s *Server) getNotifications(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already responded with an error.
		slog.Debug("upgrading websocket", slog.Any("err", err))
		return
	}
	log := slog.With(slog.String("subscriber", uuid.NewString()))

	sub := broadcast.NewQueue(s.queueSize, func(e events.Event) error {
		msg, err := events.Encode(e)
		if err != nil {
			return err
		}
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		return conn.WriteMessage(websocket.TextMessage, msg)
	})
	s.broadcaster.Registry().Register(sub)
	log.Debug("websocket subscriber connected",
		slog.Int("subscribers", s.SubscriberCount()))

	defer func() {
		s.broadcaster.Registry().Unregister(sub)
		sub.Close()
		_ = conn.Close()
		log.Debug("websocket subscriber disconnected",
			slog.Int("subscribers", s.SubscriberCount()))
	}()

	readErr := make(chan error, 1)
	go func() {
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			_, rd, err := conn.NextReader()
			if err == nil {
				// Drain frames of any size without buffering them.
				_, err = io.Copy(io.Discard, rd)
			}
			if err != nil {
				readErr <- err
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		}
	}()

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case err := <-readErr:
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseNormalClosure,
			) {
				log.Debug("reading websocket", slog.Any("err", err))
			}
			return
		case <-sub.Done():
			if err := sub.Err(); err != nil {
				log.Debug("writing websocket", slog.Any("err", err))
				return
			}
			// Closed by the server.
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(wsWriteTimeout))
			return
		case <-r.Context().Done():
			return
		case <-ping.C:
			if err := conn.WriteControl(
				websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout),
			); err != nil {
				log.Debug("pinging websocket", slog.Any("err", err))
				return
			}
		}
	}
}
