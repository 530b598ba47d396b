package natsobs

import (
	"context"
	"errors"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"goa.design/clue/log"
)

// StartEmbedded starts an in-process NATS server that accepts no network
// connections. A non-empty storeDir enables JetStream with file storage there.
func StartEmbedded(ctx context.Context, storeDir string) (*server.Server, error) {
	opts := &server.Options{DontListen: true}
	if storeDir != "" {
		opts.JetStream = true
		opts.StoreDir = storeDir
	}
	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, err
	}
	go ns.Start()
	if !ns.ReadyForConnections(4 * time.Second) {
		ns.Shutdown()
		return nil, errors.New("natsobs: embedded server not ready within 4s")
	}
	log.Debug(ctx, log.KV{K: "msg", V: "embedded nats ready"}, log.KV{K: "jetstream", V: opts.JetStream})
	return ns, nil
}

// ConnectInProcess connects to an embedded server without a network socket.
func ConnectInProcess(ns *server.Server) (*nats.Conn, error) {
	return nats.Connect("", nats.InProcessServer(ns))
}

// Shutdown drains nc, then stops ns. Either may be nil.
func Shutdown(ctx context.Context, nc *nats.Conn, ns *server.Server) error {
	if nc != nil {
		drained := make(chan error, 1)
		go func() { drained <- nc.Drain() }()
		select {
		case err := <-drained:
			if err != nil {
				log.Warn(ctx, log.KV{K: "msg", V: "nats drain failed, closing"}, log.KV{K: "err", V: err.Error()})
				nc.Close()
			}
		case <-time.After(2 * time.Second):
			log.Warn(ctx, log.KV{K: "msg", V: "nats drain timed out, closing"})
			nc.Close()
		}
	}
	if ns == nil {
		return nil
	}
	ns.Shutdown()
	done := make(chan struct{})
	go func() {
		ns.WaitForShutdown()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(5 * time.Second):
		return errors.New("natsobs: server shutdown timed out")
	}
}
