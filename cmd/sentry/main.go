package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/BlackAtlas-Tech/griddown-sentry/internal/config"
	"github.com/BlackAtlas-Tech/griddown-sentry/internal/correlate"
	"github.com/BlackAtlas-Tech/griddown-sentry/internal/dedup"
	"github.com/BlackAtlas-Tech/griddown-sentry/internal/engine"
	"github.com/BlackAtlas-Tech/griddown-sentry/internal/history"
	"github.com/BlackAtlas-Tech/griddown-sentry/internal/ingest"
	"github.com/BlackAtlas-Tech/griddown-sentry/internal/link"
	"github.com/BlackAtlas-Tech/griddown-sentry/internal/livestate"
	"github.com/BlackAtlas-Tech/griddown-sentry/internal/nats"
	"github.com/BlackAtlas-Tech/griddown-sentry/internal/tracker"
	"github.com/BlackAtlas-Tech/griddown-sentry/internal/types"
)

// clients bundles the external collaborators. history is nil when no
// database is configured.
type clients struct {
	nats      *nats.Client
	livestate *livestate.Client
	history   *history.Client
}

// createClients creates all the required clients for the daemon.
func createClients(cfg *config.Config) (*clients, error) {
	natsClient, err := nats.New(cfg.NATSURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create NATS client: %w", err)
	}

	stateClient, err := livestate.New(cfg.RedisAddr)
	if err != nil {
		natsClient.Close()
		return nil, fmt.Errorf("failed to create live-state client: %w", err)
	}

	c := &clients{nats: natsClient, livestate: stateClient}
	if cfg.DBConnStr != "" {
		historyClient, err := history.New(cfg.DBConnStr)
		if err != nil {
			c.close()
			return nil, fmt.Errorf("failed to create history client: %w", err)
		}
		c.history = historyClient
	}
	return c, nil
}

func (c *clients) close() {
	c.nats.Close()
	if err := c.livestate.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "error closing live-state client: %v\n", err)
	}
	if c.history != nil {
		if err := c.history.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "error closing history client: %v\n", err)
		}
	}
}

// setupSupervisor registers every configured Tier 1 unit.
func setupSupervisor(cfg *config.Config) *link.Supervisor {
	supervisor := link.New(cfg.AutoReconnect)
	for i, port := range cfg.SerialPorts {
		supervisor.AddUnit(link.UnitConfig{
			Name:        fmt.Sprintf("serial-%d", i),
			Tier:        types.TierStream,
			Port:        port,
			Dial:        link.SerialDialer(port, cfg.BaudRate),
			Remediation: link.SerialRemediation(port),
		})
	}
	for i, addr := range cfg.BridgeAddrs {
		supervisor.AddUnit(link.UnitConfig{
			Name:        fmt.Sprintf("bridge-%d", i),
			Tier:        types.TierStream,
			Port:        addr,
			Dial:        link.TCPDialer(addr),
			Remediation: link.SocketRemediation(addr),
		})
	}
	return supervisor
}

// setupEngine wires the engine with its optional collaborators and the RF
// feed fed from the message bus.
func setupEngine(cfg *config.Config, c *clients) (*engine.Engine, error) {
	feed := correlate.NewSnapshotFeed()
	if err := c.nats.SubscribeRFTracks(feed.Update); err != nil {
		return nil, fmt.Errorf("failed to subscribe to RF feed: %w", err)
	}

	opts := engine.Options{
		AlertNewTracks: cfg.AlertNewTracks,
		Mirror:         c.livestate,
		RFFeed:         feed,
	}
	if c.history != nil {
		opts.History = c.history
	}
	return engine.New(tracker.New(dedup.New(dedup.Window)), opts), nil
}

// publishEvents forwards engine events to the bus until the channel closes
// or the context ends.
func publishEvents(ctx context.Context, eng *engine.Engine, natsClient *nats.Client) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-eng.Events():
			if !ok {
				return
			}
			if err := natsClient.PublishEvent(ev); err != nil {
				log.Printf("Warning: failed to publish %s event: %v", ev.Kind, err)
			}
		}
	}
}

// forwardRecords merges the supervisor's stream into the engine's input.
func forwardRecords(ctx context.Context, in <-chan *types.DetectionRecord, out chan<- *types.DetectionRecord) {
	for {
		select {
		case <-ctx.Done():
			return
		case rec, ok := <-in:
			if !ok {
				return
			}
			select {
			case out <- rec:
			case <-ctx.Done():
				return
			}
		}
	}
}

// waitForShutdown waits for shutdown signals and handles cleanup.
func waitForShutdown(cancel context.CancelFunc, supervisor *link.Supervisor, c *clients) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down...")
	cancel()
	supervisor.Close()
	c.close()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Printf("Failed to load configuration: %v", err)
		os.Exit(1)
	}

	c, err := createClients(cfg)
	if err != nil {
		log.Printf("Failed to create clients: %v", err)
		os.Exit(1)
	}

	eng, err := setupEngine(cfg, c)
	if err != nil {
		log.Printf("Failed to setup engine: %v", err)
		c.close()
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Single merged record stream: Tier 1 units and the Tier 0 poller both
	// feed it, the engine alone consumes it.
	records := make(chan *types.DetectionRecord, 1000)

	supervisor := setupSupervisor(cfg)
	supervisor.ConnectAll(ctx)
	go forwardRecords(ctx, supervisor.Records(), records)

	if cfg.ScanIface != "" {
		poller := ingest.NewPoller(&ingest.IWScanner{Iface: cfg.ScanIface}, cfg.ScanInterval, records)
		go poller.Run(ctx)
		log.Printf("Tier 0 scan poller started on %s (every %s)", cfg.ScanIface, cfg.ScanInterval)
	}

	go publishEvents(ctx, eng, c.nats)
	go eng.Run(ctx, records, supervisor.Errors())

	log.Printf("GridDown sentry started: %d serial unit(s), %d bridge(s)", len(cfg.SerialPorts), len(cfg.BridgeAddrs))
	waitForShutdown(cancel, supervisor, c)
}
