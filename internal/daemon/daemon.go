package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"scribe/internal/broker"
	"scribe/internal/config"
	"scribe/internal/logging"
)

// shutdownGrace bounds how long the API server may take to drain.
const shutdownGrace = 10 * time.Second

// Broker is the consuming side of the message broker.
type Broker interface {
	Run(ctx context.Context, handler broker.Handler) error
	Close() error
	Connected() bool
}

// APIServer is the HTTP surface lifecycle.
type APIServer interface {
	Start() error
	Shutdown(ctx context.Context) error
}

// Daemon ties the broker consumer and the API server into one lifecycle and
// enforces single-instance execution with a file lock.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	lockPath string
	lock     *flock.Flock

	brk     Broker
	handler broker.Handler
	api     APIServer

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New constructs a daemon. The handler is invoked for every broker delivery.
func New(cfg *config.Config, brk Broker, handler broker.Handler, api APIServer, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || brk == nil || handler == nil {
		return nil, errors.New("daemon requires config, broker, and handler")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := filepath.Join(cfg.Paths.LogDir, "scribed.lock")
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
		brk:      brk,
		handler:  handler,
		api:      api,
	}, nil
}

// Start acquires the instance lock and launches the consumer and API server.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another scribe daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		if err := d.brk.Run(runCtx, d.handler); err != nil {
			d.logger.Error("consumer stopped", logging.Error(err))
		}
	}(d.done)

	if d.api != nil {
		go func() {
			if err := d.api.Start(); err != nil {
				d.logger.Error("api server stopped", logging.Error(err))
			}
		}()
	}

	d.running = true
	d.logger.Info("daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop shuts the daemon down in order: stop taking deliveries, let the
// in-flight task drain, close the broker, then stop the API server.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	<-d.done

	if err := d.brk.Close(); err != nil {
		d.logger.Warn("broker close failed", logging.Error(err))
	}

	if d.api != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := d.api.Shutdown(ctx); err != nil {
			d.logger.Warn("api shutdown failed", logging.Error(err))
		}
	}

	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running = false
	d.logger.Info("daemon stopped")
}

// Running reports whether the daemon holds the lifecycle.
func (d *Daemon) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// LockPath returns the instance lock location.
func (d *Daemon) LockPath() string {
	return d.lockPath
}

// BrokerConnected reports broker liveness for health aggregation.
func (d *Daemon) BrokerConnected() bool {
	return d.brk.Connected()
}
