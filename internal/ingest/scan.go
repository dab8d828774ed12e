package ingest

import (
	"context"
	"log"
	"time"

	"github.com/BlackAtlas-Tech/griddown-sentry/internal/types"
)

// DefaultPollInterval matches the external scanning source's own throttle.
const DefaultPollInterval = 30 * time.Second

// Scanner is the platform WiFi scan source for Tier 0.
type Scanner interface {
	// Scan requests one snapshot of visible access points.
	Scan(ctx context.Context) ([]ScanResult, error)
}

// Poller drives the Tier 0 pipeline: it polls the scanner on a fixed
// interval and forwards normalized beacon-equivalent records to out.
type Poller struct {
	scanner  Scanner
	interval time.Duration
	out      chan<- *types.DetectionRecord
}

// NewPoller creates a Tier 0 poller. An interval of zero uses the default.
func NewPoller(scanner Scanner, interval time.Duration, out chan<- *types.DetectionRecord) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{scanner: scanner, interval: interval, out: out}
}

// Run polls until the context is canceled. An immediate first poll runs
// before the ticker settles into the interval. Scan failures are logged and
// the poller keeps going; a missed snapshot is not an error worth stopping
// ingestion over.
func (p *Poller) Run(ctx context.Context) {
	p.poll(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	results, err := p.scanner.Scan(ctx)
	if err != nil {
		log.Printf("Warning: scan poll failed: %v", err)
		return
	}
	for _, rec := range NormalizeScan(results, time.Now()) {
		select {
		case p.out <- rec:
		case <-ctx.Done():
			return
		}
	}
}
