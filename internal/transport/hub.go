package transport

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/simscript/simscript/internal/bridge"
	"github.com/simscript/simscript/internal/core/observability/log"
)

// Client is a connected viewer.
type Client interface {
	ID() string
	// Send queues an encoded frame without blocking.
	Send(data []byte) error
	Close() error
}

// Metrics counts hub traffic.
type Metrics struct {
	Clients   int
	Broadcast uint64
	Dropped   uint64
	Commands  uint64
	Rejected  uint64
}

// Hub fans snapshots out to clients and routes their frames to a Commander.
type Hub struct {
	run       string
	commander Commander
	log       log.Log

	mu      sync.RWMutex
	clients map[string]Client

	broadcast atomic.Uint64
	dropped   atomic.Uint64
	commands  atomic.Uint64
	rejected  atomic.Uint64
}

func NewHub(commander Commander, logger log.Log) *Hub {
	run := uuid.New().String()
	return &Hub{
		run:       run,
		commander: commander,
		log:       logger.With(log.String("run", run)),
		clients:   make(map[string]Client),
	}
}

// Run is the identifier stamped on every outbound frame.
func (h *Hub) Run() string { return h.run }

// Add registers c and greets it.
func (h *Hub) Add(c Client) error {
	hello, err := Encode(Frame{Type: FrameHello, Run: h.run})
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.clients[c.ID()] = c
	n := len(h.clients)
	h.mu.Unlock()

	h.log.Info("client connected", log.String("client", c.ID()), log.Int("clients", n))
	return c.Send(hello)
}

func (h *Hub) Remove(id string) {
	h.mu.Lock()
	_, ok := h.clients[id]
	delete(h.clients, id)
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		h.log.Info("client disconnected", log.String("client", id), log.Int("clients", n))
	}
}

// Clients lists client ids in sorted order.
func (h *Hub) Clients() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Broadcast encodes snap once and queues it on every client. Clients whose queue is
// full miss the frame.
func (h *Hub) Broadcast(_ context.Context, snap bridge.Snapshot) error {
	data, err := Encode(SnapshotFrame(h.run, &snap))
	if err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, c := range h.clients {
		if err := c.Send(data); err != nil {
			h.dropped.Add(1)
			h.log.Debug("snapshot dropped", log.String("client", id), log.Error(err))
		}
	}
	h.broadcast.Add(1)
	return nil
}

// Receive handles one inbound message from client id. Bad frames and rejected commands
// are answered with an error frame; they do not close the client.
func (h *Hub) Receive(c Client, data []byte) {
	f, err := Decode(data)
	if err == nil {
		err = Dispatch(h.commander, f)
	}
	if err == nil {
		h.commands.Add(1)
		return
	}
	h.rejected.Add(1)
	h.log.Debug("client frame rejected", log.String("client", c.ID()), log.Error(err))
	reply, encErr := Encode(ErrorFrame(h.run, err))
	if encErr != nil {
		return
	}
	if err = c.Send(reply); err != nil {
		h.log.Debug("error reply dropped", log.String("client", c.ID()), log.Error(err))
	}
}

// Close disconnects every client.
func (h *Hub) Close() error {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]Client)
	h.mu.Unlock()

	var first error
	for _, c := range clients {
		if err := c.Close(); err != nil && first == nil {
			first = errors.Wrapf(err, "close client %s", c.ID())
		}
	}
	return first
}

func (h *Hub) Metrics() Metrics {
	h.mu.RLock()
	n := len(h.clients)
	h.mu.RUnlock()
	return Metrics{
		Clients:   n,
		Broadcast: h.broadcast.Load(),
		Dropped:   h.dropped.Load(),
		Commands:  h.commands.Load(),
		Rejected:  h.rejected.Load(),
	}
}
