/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	ws "nhooyr.io/websocket"

	"github.com/friendsincode/muninn_nowplaying/internal/events"
)

// handleNowPlayingWS pushes now-playing changes to a connected client.
// The current track is sent immediately on connect, then every change
// as it is arbitrated.
func (s *Server) handleNowPlayingWS(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.Accept(w, r, &ws.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("websocket accept failed")
		return
	}
	defer conn.Close(ws.StatusInternalError, "server error")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub := s.bus.Subscribe(events.EventNowPlaying)
	defer s.bus.Unsubscribe(events.EventNowPlaying, sub)

	if err := writeWSJSON(ctx, conn, map[string]any{
		"type":        "now_playing",
		"now_playing": s.arb.Current(),
	}); err != nil {
		return
	}

	// Drain client frames so close frames are processed; payloads ignored.
	go func() {
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				cancel()
				return
			}
		}
	}()

	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close(ws.StatusNormalClosure, "client disconnected")
			return

		case <-ping.C:
			if err := conn.Ping(ctx); err != nil {
				s.logger.Debug().Err(err).Msg("websocket ping failed, client disconnected")
				return
			}

		case _, ok := <-sub:
			if !ok {
				conn.Close(ws.StatusGoingAway, "server shutting down")
				return
			}
			// The bus event is only the wake-up; the arbitrator is the
			// source of truth, so frames always carry the same shape as
			// the one sent on connect.
			if err := writeWSJSON(ctx, conn, map[string]any{
				"type":        "now_playing",
				"now_playing": s.arb.Current(),
			}); err != nil {
				s.logger.Debug().Err(err).Msg("websocket write failed, client disconnected")
				return
			}
		}
	}
}

func writeWSJSON(ctx context.Context, conn *ws.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.Write(ctx, ws.MessageText, data)
}
