// Copyright (C) 2025 Josh Simonot
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package liveserv streams per-step simulation state to connected
// websocket clients during `run -live`. It subscribes to an
// eventbus.Bus topic and forwards each published frame verbatim; it never
// reads from the simulator directly, so it cannot influence step order.
package liveserv

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"

	"hpwhsim/pkg/eventbus"
	"hpwhsim/pkg/logger"
)

// Frame is one minute's worth of state pushed to subscribers.
type Frame struct {
	Minute       int       `json:"minute"`
	NodeTempsC   []float64 `json:"node_temps_c"`
	AmbientC     float64   `json:"ambient_c"`
	OutletC      float64   `json:"outlet_c"`
	ActiveSources []string `json:"active_sources"`
}

// TopicStep is the eventbus topic the CLI driver publishes one Frame to
// per simulated minute.
const TopicStep eventbus.Topic = "sim.step"

// Server is a service.Runnable that serves a websocket endpoint
// broadcasting Frames published on TopicStep.
type Server struct {
	addr string
	bus  *eventbus.Bus
	log  *logger.Logger

	upgrader websocket.Upgrader
}

// New builds a Server listening on addr, relaying frames from bus.
func New(addr string, bus *eventbus.Bus) *Server {
	return &Server{
		addr: addr,
		bus:  bus,
		log:  logger.New("LiveServ"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Run implements service.Runnable: it serves HTTP until ctx is canceled.
func (s *Server) Run(ctx context.Context) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)

	srv := &http.Server{Addr: s.addr, Handler: mux}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	s.log.Info("listening on %s", s.addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.log.Error("listen: %v", err)
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("upgrade: %v", err)
		return
	}
	defer conn.Close()

	sub, unsubscribe := s.bus.Subscribe(r.Context(), TopicStep, false)
	defer unsubscribe()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			frame, ok := ev.(Frame)
			if !ok {
				continue
			}
			payload, err := json.Marshal(frame)
			if err != nil {
				s.log.Error("marshal frame: %v", err)
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}
}
