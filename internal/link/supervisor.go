// Package link manages the detection-source connections: serial-attached
// sniffer units (Tier 1), the bridged network socket (Tier 1), and their
// reconnect-with-backoff lifecycle. Parsed records are fanned into a single
// channel consumed by the engine, preserving per-unit receipt order.
package link

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/BlackAtlas-Tech/griddown-sentry/internal/ingest"
	"github.com/BlackAtlas-Tech/griddown-sentry/internal/types"
)

const (
	// BackoffBase and BackoffCap bound the reconnect delay:
	// min(base * 2^(attempt-1), cap).
	BackoffBase = 1 * time.Second
	BackoffCap  = 30 * time.Second
	// MaxAttempts bounds consecutive failed connects before retries stop
	// until a manual Reset.
	MaxAttempts = 8
	// ErrorThrottle limits surfaced guidance events to one per unit per
	// interval. Every failure is still logged.
	ErrorThrottle = 30 * time.Second
	// reconnectSuppress blocks auto-reconnect briefly after a
	// user-initiated disconnect-all, so a straggling read-loop exit does
	// not race the user's intent.
	reconnectSuppress = 1 * time.Second

	dialTimeout = 10 * time.Second
)

// Dialer opens the byte stream for one unit.
type Dialer func(ctx context.Context) (io.ReadCloser, error)

// UnitConfig describes one supervised detection source.
type UnitConfig struct {
	Name string
	Tier types.Tier
	Port string
	Dial Dialer
	// Remediation is included in surfaced guidance when connects fail.
	Remediation []string
}

type unit struct {
	cfg           UnitConfig
	status        types.LinkStatus
	attempts      int
	lastError     *types.LinkError
	lastSurfaced  time.Time
	lastHeartbeat time.Time
	cancel        context.CancelFunc
}

// Supervisor owns all unit connections. State reads take the mutex because
// unit goroutines update status concurrently; record processing itself
// stays single-owner downstream.
type Supervisor struct {
	mu            sync.Mutex
	units         map[string]*unit
	records       chan *types.DetectionRecord
	errors        chan *types.LinkError
	suppressUntil time.Time
	autoReconnect bool
	wg            sync.WaitGroup
	now           func() time.Time
}

// New creates a Supervisor. autoReconnect enables backoff retries after
// unexpected disconnects.
func New(autoReconnect bool) *Supervisor {
	return &Supervisor{
		units:         make(map[string]*unit),
		records:       make(chan *types.DetectionRecord, 1000),
		errors:        make(chan *types.LinkError, 16),
		autoReconnect: autoReconnect,
		now:           time.Now,
	}
}

// AddUnit registers a detection source. Call before Connect.
func (s *Supervisor) AddUnit(cfg UnitConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.units[cfg.Name] = &unit{cfg: cfg}
}

// Records returns the channel of parsed detection records from all units.
func (s *Supervisor) Records() <-chan *types.DetectionRecord {
	return s.records
}

// Errors returns the throttled guidance channel.
func (s *Supervisor) Errors() <-chan *types.LinkError {
	return s.errors
}

// Connect starts the connection loop for one unit.
func (s *Supervisor) Connect(ctx context.Context, name string) error {
	s.mu.Lock()
	u, ok := s.units[name]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("unknown unit %q", name)
	}
	if u.cancel != nil {
		s.mu.Unlock()
		return nil // already running
	}
	unitCtx, cancel := context.WithCancel(ctx)
	u.cancel = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go s.connectLoop(unitCtx, u)
	return nil
}

// ConnectAll starts every registered unit.
func (s *Supervisor) ConnectAll(ctx context.Context) {
	s.mu.Lock()
	names := make([]string, 0, len(s.units))
	for name := range s.units {
		names = append(names, name)
	}
	s.mu.Unlock()
	for _, name := range names {
		if err := s.Connect(ctx, name); err != nil {
			log.Printf("Warning: failed to start unit %s: %v", name, err)
		}
	}
}

// Disconnect cancels one unit's pending reads and stops its loop. Other
// units and the maintenance timer are unaffected.
func (s *Supervisor) Disconnect(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.units[name]; ok && u.cancel != nil {
		u.cancel()
		u.cancel = nil
	}
}

// DisconnectAll stops every unit and suppresses auto-reconnect for a short
// window so user intent wins over the retry loop.
func (s *Supervisor) DisconnectAll() {
	s.mu.Lock()
	s.suppressUntil = s.now().Add(reconnectSuppress)
	for _, u := range s.units {
		if u.cancel != nil {
			u.cancel()
			u.cancel = nil
		}
	}
	s.mu.Unlock()
}

// Reset zeroes a unit's attempt counter, re-arming retries after the bound
// was exhausted. The caller still needs to Connect again.
func (s *Supervisor) Reset(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.units[name]; ok {
		u.attempts = 0
		u.lastError = nil
	}
}

// Active reports whether any unit is currently connected: the logical OR
// across both tiers.
func (s *Supervisor) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.units {
		if u.status == types.LinkConnected {
			return true
		}
	}
	return false
}

// States returns a snapshot of every unit's connection state.
func (s *Supervisor) States() []types.ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.ConnectionState, 0, len(s.units))
	for _, u := range s.units {
		out = append(out, types.ConnectionState{
			Unit:          u.cfg.Name,
			Tier:          u.cfg.Tier,
			Status:        u.status,
			Attempts:      u.attempts,
			LastError:     u.lastError,
			LastHeartbeat: u.lastHeartbeat,
		})
	}
	return out
}

// Close stops all units and waits for their loops to exit.
func (s *Supervisor) Close() {
	s.DisconnectAll()
	s.wg.Wait()
}

func (s *Supervisor) connectLoop(ctx context.Context, u *unit) {
	defer s.wg.Done()
	defer s.setStatus(u, types.LinkDisconnected)
	// Clear the running marker so a later Connect can start a fresh loop,
	// whether we exit via cancellation, retry exhaustion, or stream end.
	defer func() {
		s.mu.Lock()
		if u.cancel != nil {
			u.cancel()
			u.cancel = nil
		}
		s.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		s.mu.Lock()
		if u.attempts >= MaxAttempts {
			u.status = types.LinkDisconnected
			s.mu.Unlock()
			log.Printf("Unit %s: retry budget exhausted after %d attempts; manual reset required", u.cfg.Name, MaxAttempts)
			return
		}
		u.status = types.LinkConnecting
		s.mu.Unlock()

		dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
		conn, err := u.cfg.Dial(dialCtx)
		cancel()
		if err != nil {
			s.recordFailure(u, err)
			if !s.sleepBackoff(ctx, u) {
				return
			}
			continue
		}

		s.mu.Lock()
		u.attempts = 0
		u.lastError = nil
		u.status = types.LinkConnected
		s.mu.Unlock()
		log.Printf("Unit %s: connected (%s)", u.cfg.Name, u.cfg.Port)

		s.readLines(ctx, u, conn)
		conn.Close()
		s.setStatus(u, types.LinkDisconnected)

		select {
		case <-ctx.Done():
			return
		default:
		}

		s.mu.Lock()
		suppressed := s.now().Before(s.suppressUntil)
		s.mu.Unlock()
		if !s.autoReconnect || suppressed {
			return
		}
		log.Printf("Unit %s: connection lost, reconnecting", u.cfg.Name)
	}
}

// readLines scans the stream until error or cancellation. Heartbeat and
// status records update unit health instead of becoming detections;
// everything else is forwarded. Malformed lines are dropped silently.
func (s *Supervisor) readLines(ctx context.Context, u *unit, conn io.ReadCloser) {
	scan := bufio.NewScanner(conn)
	lineChan := make(chan string)

	go func() {
		defer close(lineChan)
		for scan.Scan() {
			select {
			case lineChan <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lineChan:
			if !ok {
				return
			}
			rec, err := ingest.ParseLine(line, u.cfg.Name, s.now())
			if err != nil {
				continue
			}
			switch rec.Type {
			case types.EventHeartbeat:
				s.mu.Lock()
				u.lastHeartbeat = rec.Timestamp
				s.mu.Unlock()
			case types.EventStatus:
				log.Printf("Unit %s: status %s", u.cfg.Name, rec.SSID)
			default:
				select {
				case s.records <- rec:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

func (s *Supervisor) setStatus(u *unit, status types.LinkStatus) {
	s.mu.Lock()
	u.status = status
	s.mu.Unlock()
}

// recordFailure logs every failure and surfaces at most one guidance event
// per unit per throttle interval.
func (s *Supervisor) recordFailure(u *unit, err error) {
	now := s.now()
	linkErr := &types.LinkError{
		Kind:        fmt.Sprintf("%s_connect_failed", u.cfg.Tier),
		Message:     fmt.Sprintf("unit %s: %v", u.cfg.Name, err),
		Remediation: u.cfg.Remediation,
		Port:        u.cfg.Port,
		Timestamp:   now,
	}

	s.mu.Lock()
	u.attempts++
	u.status = types.LinkDisconnected
	u.lastError = linkErr
	attempts := u.attempts
	surface := now.Sub(u.lastSurfaced) >= ErrorThrottle
	if surface {
		u.lastSurfaced = now
	}
	s.mu.Unlock()

	log.Printf("Unit %s: connect attempt %d failed: %v", u.cfg.Name, attempts, err)
	if surface {
		select {
		case s.errors <- linkErr:
		default:
		}
	}
}

// sleepBackoff waits min(base * 2^(attempt-1), cap). Returns false when the
// context was canceled during the wait.
func (s *Supervisor) sleepBackoff(ctx context.Context, u *unit) bool {
	s.mu.Lock()
	attempts := u.attempts
	s.mu.Unlock()

	delay := BackoffDelay(attempts)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// BackoffDelay returns the reconnect delay for the given attempt count.
func BackoffDelay(attempt int) time.Duration {
	if attempt < 1 {
		return BackoffBase
	}
	delay := BackoffBase << (attempt - 1)
	if delay > BackoffCap || delay <= 0 {
		return BackoffCap
	}
	return delay
}
