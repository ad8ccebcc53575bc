package server

import (
	"context"
	"log"
	"sync"

	"github.com/teris-io/shortid"

	"github.com/aspirewithalina/chatserver/internal/stats"
	"github.com/aspirewithalina/chatserver/internal/store"
)

const (
	statActiveConnections  = "ActiveConnections"
	statMessagesSent       = "MessagesSent"
	statReadReceiptBatches = "ReadReceiptBatches"
	statCallEventsRelayed  = "CallEventsRelayed"
)

// ChatServer coordinates all connected clients: registration and presence,
// room resolution, message persistence, fan-out and call signaling. Each
// client dispatches its events sequentially from its read pump; all shared
// state is mutated through atomic store operations, so handlers hold no
// locks across store or network calls.
type ChatServer struct {
	log            *log.Logger
	db             store.Repository
	presence       *PresenceRegistry
	stats          stats.StatsProvider
	clients        map[*Client]struct{}
	clientsLock    sync.Mutex
	RegisterChan   chan *Client
	deRegisterChan chan *Client
	stop           chan struct{}
	done           chan struct{}
	// generateRoomId is swappable in tests
	generateRoomId func() (string, error)
}

func NewChatServer(logger *log.Logger, db store.Repository, presence *PresenceRegistry, su stats.StatsProvider) (*ChatServer, error) {
	cs := &ChatServer{
		log:            logger,
		db:             db,
		presence:       presence,
		stats:          su,
		clients:        make(map[*Client]struct{}),
		RegisterChan:   make(chan *Client),
		deRegisterChan: make(chan *Client),
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
		generateRoomId: shortid.Generate,
	}

	su.RegisterMetric(statActiveConnections)
	su.RegisterMetric(statMessagesSent)
	su.RegisterMetric(statReadReceiptBatches)
	su.RegisterMetric(statCallEventsRelayed)

	return cs, nil
}

func (cs *ChatServer) Run() {
	for {
		select {
		case client := <-cs.RegisterChan:
			cs.log.Println("adding client connection")
			cs.addClient(client)
			cs.stats.Incr(statActiveConnections)
		case client := <-cs.deRegisterChan:
			cs.log.Printf("removing connection for %q", client.identity)
			cs.removeClient(client)
			cs.stats.Decr(statActiveConnections)
		case <-cs.stop:
			close(cs.done)
			return
		}
	}
}

func (cs *ChatServer) addClient(c *Client) {
	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()
	cs.clients[c] = struct{}{}
}

func (cs *ChatServer) removeClient(c *Client) {
	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()
	delete(cs.clients, c)
}

func (cs *ChatServer) Shutdown(ctx context.Context) error {
	cs.log.Println("received shutdown signal")

	cs.clientsLock.Lock()
	for c := range cs.clients {
		c.stopClient()
	}
	cs.clientsLock.Unlock()

	close(cs.stop)

	select {
	case <-cs.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
