/*
Copyright (C) 2026  Carl-Philip Hänsch

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// Package monitor exposes a live event tail for a dict.Dict over a
// websocket, in the same spirit as storage/dashboard.go's HTTP status
// pages: a small read-only window into something normally invisible from
// outside the process.
package monitor

import (
	"encoding/json"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	units "github.com/docker/go-units"
	"github.com/google/btree"
	"github.com/gorilla/websocket"

	"github.com/launix-de/shmdict/dict"
)

// Event is one line of the tail, sent to every connected websocket client
// as JSON.
type Event struct {
	Seq       uint64    `json:"seq"`
	Op        string    `json:"op"`
	Key       string    `json:"key"`
	Timestamp time.Time `json:"timestamp"`
}

// bySeq orders Events in the btree.BTree backlog by sequence number,
// mirroring storage/index.go's use of google/btree for ordered in-memory
// indexes.
type bySeq Event

func (a bySeq) Less(than btree.Item) bool { return a.Seq < than.(bySeq).Seq }

// Server tails one Dict's observer stream, keeps a bounded backlog in a
// btree.BTree ordered by sequence number, and fans every new event out to
// connected websocket clients.
type Server struct {
	d       *dict.Dict
	backlog int

	mu        sync.Mutex
	events    *btree.BTree
	count     uint64
	clients   map[*websocket.Conn]struct{}
	unsub     func()
	segWatch  *dict.SegmentWatcher
	upgrader  websocket.Upgrader

	httpServer *http.Server
	addr       string
	logger     *log.Logger
}

// Addr returns the address Serve bound to, or "" if this Server was built
// with New and never given a listener.
func (s *Server) Addr() string { return s.addr }

// New wraps d with a monitor server. backlog bounds how many recent
// events are replayed to a freshly connected client; it defaults to
// dict.Settings.MonitorBacklog when zero.
func New(d *dict.Dict, backlog int) *Server {
	if backlog <= 0 {
		backlog = dict.Settings.MonitorBacklog
	}
	s := &Server{
		d:       d,
		backlog: backlog,
		events:  btree.New(32),
		clients: make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: log.Default(),
	}
	s.unsub = d.Subscribe(s.onEvent)

	if sw, err := dict.WatchSegments(d.Name(), s.onSegmentEvent); err == nil {
		s.segWatch = sw
	} else {
		s.logger.Printf("shmdict/monitor: segment watch disabled: %v", err)
	}
	return s
}

// Serve wraps d with a monitor server and starts serving it on addr,
// mounting /events (websocket tail) and /stats (plain JSON) — the surface
// SPEC_FULL.md §4.J/§6 describes. It never blocks; call Close to shut the
// listener down.
func Serve(d *dict.Dict, addr string) (*Server, error) {
	s := New(d, 0)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.Close()
		return nil, err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/events", s.ServeTail)
	mux.HandleFunc("/stats", s.ServeStats)
	s.httpServer = &http.Server{Handler: mux}
	s.addr = ln.Addr().String()

	if stats, err := d.Stats(); err == nil {
		s.logger.Printf("shmdict/monitor: serving %s on %s (buffer %s)",
			d.Name(), ln.Addr(), units.BytesSize(float64(stats.BufferSize)))
	}

	go s.httpServer.Serve(ln)
	return s, nil
}

// onSegmentEvent logs dump rotation and peer teardown observed directly on
// the filesystem, independent of whether this process is the one doing the
// writing.
func (s *Server) onSegmentEvent(ev dict.SegmentEvent) {
	verb := "appeared"
	if ev.Removed {
		verb = "removed"
	}
	s.logger.Printf("shmdict/monitor: segment %s %s", ev.Name, verb)
}

func opName(op byte) string {
	if op == 1 {
		return "set"
	}
	return "delete"
}

func (s *Server) onEvent(op byte, key []byte, seq uint64) {
	ev := Event{Seq: seq, Op: opName(op), Key: string(key), Timestamp: time.Now()}
	s.mu.Lock()
	s.events.ReplaceOrInsert(bySeq(ev))
	s.count++
	for s.events.Len() > s.backlog {
		min := s.events.Min()
		if min == nil {
			break
		}
		s.events.Delete(min)
	}
	clients := make([]*websocket.Conn, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	for _, c := range clients {
		if err := c.WriteMessage(websocket.TextMessage, payload); err != nil {
			s.removeClient(c)
		}
	}
}

func (s *Server) removeClient(c *websocket.Conn) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
	c.Close()
}

// ServeTail upgrades the request to a websocket and streams the backlog
// followed by live events until the client disconnects.
func (s *Server) ServeTail(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("shmdict/monitor: upgrade failed: %v", err)
		return
	}

	s.mu.Lock()
	s.clients[conn] = struct{}{}
	var backlog []Event
	s.events.Ascend(func(item btree.Item) bool {
		backlog = append(backlog, Event(item.(bySeq)))
		return true
	})
	s.mu.Unlock()

	for _, ev := range backlog {
		payload, _ := json.Marshal(ev)
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			s.removeClient(conn)
			return
		}
	}

	go func() {
		defer s.removeClient(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// ServeStats writes dict.Stats as plain JSON (stream_end, buffer_size,
// dump_counter, entries), per SPEC_FULL.md §4.J.
func (s *Server) ServeStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.d.Stats()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

// Close unsubscribes from the Dict, stops the HTTP listener if Serve
// started one, and drops every connected client.
func (s *Server) Close() {
	if s.unsub != nil {
		s.unsub()
	}
	if s.segWatch != nil {
		s.segWatch.Close()
	}
	if s.httpServer != nil {
		s.httpServer.Close()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		c.Close()
	}
	s.clients = nil
}
