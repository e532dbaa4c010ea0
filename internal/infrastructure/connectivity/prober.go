package connectivity

import (
	"context"
	"net/http"
	"time"

	"github.com/fieldsales/vendorsync/internal/infrastructure/config"
	"go.uber.org/zap"
)

// ProberConfig holds the probe settings
type ProberConfig struct {
	URL      string
	Interval time.Duration
	Timeout  time.Duration
}

// ProberConfigFrom builds a ProberConfig from the application config
func ProberConfigFrom(cc config.ConnectivityConfig) ProberConfig {
	return ProberConfig{
		URL:      cc.ProbeURL,
		Interval: cc.Interval,
		Timeout:  cc.Timeout,
	}
}

// Prober decides reachability with an HTTP HEAD request. Any response
// below 500 counts as connected; transport errors and 5xx count as offline.
type Prober struct {
	*broadcaster

	cfg        ProberConfig
	httpClient *http.Client
	logger     *zap.Logger
}

var (
	_ Checker = (*Prober)(nil)
	_ Watcher = (*Prober)(nil)
)

// NewProber creates a new Prober
func NewProber(cfg ProberConfig, logger *zap.Logger) *Prober {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Prober{
		broadcaster: newBroadcaster(),
		cfg:         cfg,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		logger:      logger.Named("connectivity"),
	}
}

// IsConnected probes once and records the result
func (p *Prober) IsConnected(ctx context.Context) bool {
	s := p.probe(ctx)
	if p.set(s) {
		p.logger.Info("Connectivity changed", zap.Stringer("state", s))
	}
	return s == StateConnected
}

// State returns the last probed state
func (p *Prober) State() State {
	return p.state()
}

// Run probes immediately and then every Interval until ctx is done,
// publishing transitions to subscribers.
func (p *Prober) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.IsConnected(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.IsConnected(ctx)
		}
	}
}

func (p *Prober) probe(ctx context.Context) State {
	if p.cfg.URL == "" {
		return StateConnected
	}
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.cfg.URL, nil)
	if err != nil {
		p.logger.Warn("Invalid probe URL", zap.String("url", p.cfg.URL), zap.Error(err))
		return StateOffline
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.logger.Debug("Probe failed", zap.Error(err))
		return StateOffline
	}
	resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return StateOffline
	}
	return StateConnected
}
