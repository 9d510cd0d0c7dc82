package feed

import (
	"fmt"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
)

// EmbeddedOptions configures an in-process broker.
type EmbeddedOptions struct {
	Host string
	// Port -1 picks a random free port.
	Port         int
	ReadyTimeout time.Duration
}

// StartEmbedded starts an in-process NATS server and waits until it accepts
// connections. Callers own Shutdown.
func StartEmbedded(opts EmbeddedOptions) (*natsserver.Server, error) {
	if opts.Host == "" {
		opts.Host = "127.0.0.1"
	}
	if opts.ReadyTimeout == 0 {
		opts.ReadyTimeout = 5 * time.Second
	}

	srv, err := natsserver.NewServer(&natsserver.Options{
		Host:           opts.Host,
		Port:           opts.Port,
		NoLog:          true,
		NoSigs:         true,
		MaxControlLine: 2048,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedded nats server: %w", err)
	}

	go srv.Start()

	if !srv.ReadyForConnections(opts.ReadyTimeout) {
		srv.Shutdown()
		return nil, fmt.Errorf("embedded nats server not ready after %s", opts.ReadyTimeout)
	}
	return srv, nil
}
