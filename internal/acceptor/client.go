package acceptor

import (
	"context"
	"net"

	"github.com/benjazzy/turtle-wrangler/internal/clientsession"
	"github.com/benjazzy/turtle-wrangler/internal/db"
	"github.com/benjazzy/turtle-wrangler/internal/manager"
)

// ClientConnector wraps each accepted TCP connection in a ClientSession
// (spec.md §4.7's "ClientConnector" handler).
type ClientConnector struct {
	mgr *manager.Manager
	db  *db.DB
}

// NewClientConnector builds a ClientConnector bound to mgr and database.
func NewClientConnector(mgr *manager.Manager, database *db.DB) *ClientConnector {
	return &ClientConnector{mgr: mgr, db: database}
}

// Handle implements Handler.
func (c *ClientConnector) Handle(ctx context.Context, conn net.Conn) {
	clientsession.Run(ctx, conn, c.mgr, c.db)
}
