// Package status polls the backend processing-status endpoint while a turn
// is waiting on inference.
package status

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jgarciav/vocalis/internal/observability"
	"github.com/jgarciav/vocalis/internal/reliability"
)

// State of the poller as a whole.
type State string

const (
	StateIdle      State = "idle"
	StateScheduled State = "scheduled"
	StatePolling   State = "polling"
)

const backoffCap = 10 * time.Second

// Result is one status line tagged with the session token it was requested
// under. Consumers drop results whose token is no longer current.
type Result struct {
	Token  int64
	Status string
}

type Config struct {
	URL            string
	UserID         string
	RoleID         string
	StartDelay     time.Duration
	Interval       time.Duration
	Cooldown       time.Duration
	RequestTimeout time.Duration
}

// Poller runs at most one polling loop. Enable schedules a loop after a
// start delay; Disable tears it down immediately. A generation counter makes
// a loop from a previous Enable inert the moment a newer Enable or a Disable
// happens, and results landing within the cooldown window after a disable are
// dropped even if the loop was already re-enabled.
type Poller struct {
	cfg     Config
	client  *http.Client
	onEvent func(Result)
	metrics *observability.Metrics
	log     zerolog.Logger

	mu         sync.Mutex
	state      State
	gen        uint64
	cancel     context.CancelFunc
	disabledAt time.Time
}

func NewPoller(cfg Config, onEvent func(Result), metrics *observability.Metrics, log zerolog.Logger) *Poller {
	return &Poller{
		cfg:     cfg,
		client:  &http.Client{},
		onEvent: onEvent,
		metrics: metrics,
		log:     log,
		state:   StateIdle,
	}
}

// Enable schedules polling for the given session token. A previous loop, if
// any, is cancelled first.
func (p *Poller) Enable(token int64) {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.gen++
	gen := p.gen
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.state = StateScheduled
	p.mu.Unlock()

	go p.loop(ctx, gen, token)
}

// Disable stops polling immediately and starts the cooldown window.
func (p *Poller) Disable() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.gen++
	p.state = StateIdle
	p.disabledAt = time.Now()
}

// State reports the poller's current lifecycle state.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Poller) loop(ctx context.Context, gen uint64, token int64) {
	select {
	case <-time.After(p.cfg.StartDelay):
	case <-ctx.Done():
		return
	}
	if !p.enterPolling(gen) {
		return
	}

	failures := 0
	for {
		status, err := p.fetch(ctx)
		switch {
		case ctx.Err() != nil:
			return
		case err != nil:
			failures++
			p.metrics.BackendErrors.WithLabelValues("status", "poll_failed").Inc()
			p.log.Debug().Err(err).Int("failures", failures).Msg("status poll failed")
		default:
			failures = 0
			if status != "" {
				p.deliver(gen, Result{Token: token, Status: status})
			}
		}

		wait := p.cfg.Interval
		if failures > 0 {
			wait = reliability.ExponentialBackoff(failures, p.cfg.Interval, backoffCap)
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return
		}
	}
}

func (p *Poller) enterPolling(gen uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gen != gen {
		return false
	}
	p.state = StatePolling
	return true
}

func (p *Poller) deliver(gen uint64, res Result) {
	p.mu.Lock()
	stale := p.gen != gen
	inCooldown := !p.disabledAt.IsZero() && time.Since(p.disabledAt) < p.cfg.Cooldown
	p.mu.Unlock()

	if stale || inCooldown {
		p.metrics.TurnEvents.WithLabelValues("status_result_dropped").Inc()
		return
	}
	p.onEvent(res)
}

// fetch performs one GET with cache-busting query parameters so intermediate
// proxies can never serve a stale status line.
func (p *Poller) fetch(ctx context.Context) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, p.cfg.RequestTimeout)
	defer cancel()

	u, err := url.Parse(p.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("status url: %w", err)
	}
	q := u.Query()
	q.Set("user_id", p.cfg.UserID)
	q.Set("role_id", p.cfg.RoleID)
	q.Set("_t", strconv.FormatInt(time.Now().UnixMilli(), 10))
	q.Set("_r", uuid.NewString())
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("build status request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("status request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return "", fmt.Errorf("read status body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status endpoint returned %d", resp.StatusCode)
	}

	var payload struct {
		Status string `json:"status"`
	}
	if err := sonic.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("decode status body: %w", err)
	}
	return payload.Status, nil
}
