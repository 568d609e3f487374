package filelock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ayambilseva/varshitap-booking/internal/metrics"
)

// ErrLockTimeout is returned when the lock stayed busy through every
// retry. Callers should surface it as "try again shortly".
var ErrLockTimeout = errors.New("store is locked by another writer")

const (
	defaultMaxAttempts    = 15
	defaultInitialBackoff = 100 * time.Millisecond
	defaultMaxBackoff     = 2 * time.Second
	defaultStaleAfter     = 10 * time.Second
)

// Manager guards the workbook with a sidecar lock file. Creating the
// file with O_EXCL is the atomic acquire; while held, the file's mtime
// is refreshed so waiting processes can tell a live writer from the
// leftovers of a crashed one and break the lock after staleAfter.
type Manager struct {
	lockPath string
	logger   *zap.Logger

	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	staleAfter     time.Duration

	timeNow func() time.Time
}

type lockOwner struct {
	PID        int       `json:"pid"`
	Host       string    `json:"host"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// New returns a manager locking storePath. The lock file lives next to
// the store as <storePath>.lock.
func New(storePath string, logger *zap.Logger) *Manager {
	return &Manager{
		lockPath:       storePath + ".lock",
		logger:         logger,
		maxAttempts:    defaultMaxAttempts,
		initialBackoff: defaultInitialBackoff,
		maxBackoff:     defaultMaxBackoff,
		staleAfter:     defaultStaleAfter,
		timeNow:        time.Now,
	}
}

// WithLock runs fn while holding the lock. The lock is released on the
// way out whatever fn returns; release failures are logged, not
// returned, since fn's work already happened.
func (m *Manager) WithLock(ctx context.Context, fn func() error) error {
	if err := m.acquire(ctx); err != nil {
		return err
	}
	stopRefresh := m.startRefresh()
	defer func() {
		stopRefresh()
		m.release()
	}()
	return fn()
}

func (m *Manager) acquire(ctx context.Context) error {
	backoff := m.initialBackoff
	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		acquired, err := m.tryAcquire()
		if err != nil {
			return err
		}
		if acquired {
			if attempt > 1 {
				m.logger.Debug("lock acquired after contention",
					zap.Int("attempt", attempt))
			}
			return nil
		}

		if m.breakIfStale() {
			continue // retry immediately, the holder is gone
		}
		if attempt == m.maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > m.maxBackoff {
			backoff = m.maxBackoff
		}
	}

	metrics.LockTimeoutsTotal.Inc()
	return fmt.Errorf("%w: gave up on %s after %d attempts",
		ErrLockTimeout, m.lockPath, m.maxAttempts)
}

// tryAcquire attempts the O_EXCL create. A false return with nil error
// means someone else holds the lock.
func (m *Manager) tryAcquire() (bool, error) {
	f, err := os.OpenFile(m.lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if os.IsExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("create lock file %s: %w", m.lockPath, err)
	}

	host, _ := os.Hostname()
	owner := lockOwner{PID: os.Getpid(), Host: host, AcquiredAt: m.timeNow()}
	if err := json.NewEncoder(f).Encode(owner); err != nil {
		m.logger.Warn("could not record lock owner", zap.Error(err))
	}
	if err := f.Close(); err != nil {
		m.logger.Warn("closing lock file failed", zap.Error(err))
	}
	return true, nil
}

// breakIfStale removes the lock file when its mtime is older than
// staleAfter, which means the holder stopped refreshing it.
func (m *Manager) breakIfStale() bool {
	info, err := os.Stat(m.lockPath)
	if err != nil {
		// Already gone, the next tryAcquire will race for it.
		return os.IsNotExist(err)
	}

	age := m.timeNow().Sub(info.ModTime())
	if age <= m.staleAfter {
		return false
	}

	m.logger.Warn("breaking stale lock",
		zap.String("path", m.lockPath),
		zap.Duration("age", age),
	)
	if err := os.Remove(m.lockPath); err != nil && !os.IsNotExist(err) {
		m.logger.Error("could not remove stale lock", zap.Error(err))
		return false
	}
	return true
}

// startRefresh keeps the lock file's mtime fresh while held. The
// returned func stops the refresher and waits for it to exit.
func (m *Manager) startRefresh() func() {
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()
		ticker := time.NewTicker(m.staleAfter / 2)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				now := m.timeNow()
				if err := os.Chtimes(m.lockPath, now, now); err != nil {
					m.logger.Warn("could not refresh lock mtime", zap.Error(err))
				}
			}
		}
	}()

	return func() {
		close(stop)
		wg.Wait()
	}
}

func (m *Manager) release() {
	if err := os.Remove(m.lockPath); err != nil && !os.IsNotExist(err) {
		m.logger.Error("releasing lock failed",
			zap.String("path", m.lockPath),
			zap.Error(err),
		)
	}
}
