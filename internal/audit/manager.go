package audit

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Manager batches audit entries and appends them to the trail file from
// a small worker pool, so record operations never wait on audit IO.
type Manager struct {
	workerCount int
	batchSize   int
	timeout     time.Duration

	sink   *fileSink
	logger *zap.Logger

	inputChan  chan Entry
	batchChan  chan []Entry
	shutdownCh chan struct{}
	once       sync.Once

	wg           sync.WaitGroup
	pendingMu    sync.Mutex
	pendingCount int
}

func NewManager(path string, workerCount, batchSize int, timeout time.Duration, logger *zap.Logger) *Manager {
	return &Manager{
		workerCount: workerCount,
		batchSize:   batchSize,
		timeout:     timeout,
		sink:        &fileSink{path: path},
		logger:      logger,
		inputChan:   make(chan Entry, workerCount*batchSize*2),
		batchChan:   make(chan []Entry, workerCount*2),
		shutdownCh:  make(chan struct{}),
	}
}

func (m *Manager) Start(ctx context.Context) {
	m.logger.Info("audit manager started",
		zap.Int("workers", m.workerCount),
		zap.Int("batch_size", m.batchSize),
	)

	m.wg.Add(1)
	go m.runAggregator(ctx)

	for i := 0; i < m.workerCount; i++ {
		m.wg.Add(1)
		go m.runWorker(ctx, i)
	}

	go m.monitorShutdown(ctx)
}

// Record queues an entry for the trail. When the queue cannot take it
// before ctx ends, the entry is written synchronously instead; the
// trail must not silently drop operations.
func (m *Manager) Record(ctx context.Context, entry Entry) {
	m.pendingMu.Lock()
	m.pendingCount++
	m.pendingMu.Unlock()

	select {
	case m.inputChan <- entry:
	case <-ctx.Done():
		m.emergencyWrite(entry)
	}
}

// Shutdown drains queued entries. It returns when everything pending is
// flushed or ctx expires, whichever comes first.
func (m *Manager) Shutdown(ctx context.Context) {
	m.once.Do(func() {
		m.logger.Info("audit manager shutting down")
		close(m.shutdownCh)

		done := make(chan struct{})
		go func() {
			m.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			m.logger.Info("audit manager drained")
		case <-ctx.Done():
			m.logger.Warn("audit manager shutdown interrupted",
				zap.Int("pending", m.Pending()))
		}
	})
}

// Pending reports how many recorded entries have not reached the trail
// file yet.
func (m *Manager) Pending() int {
	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()
	return m.pendingCount
}

func (m *Manager) monitorShutdown(ctx context.Context) {
	<-ctx.Done()
	m.Shutdown(context.Background())
}

func (m *Manager) runAggregator(ctx context.Context) {
	defer m.wg.Done()

	var (
		batch    []Entry
		timer    *time.Timer
		timeoutC <-chan time.Time
	)

	defer func() {
		if timer != nil {
			timer.Stop()
		}
		if len(batch) > 0 {
			m.dispatchBatch(batch)
		}
		close(m.batchChan)
	}()

	for {
		select {
		case entry, ok := <-m.inputChan:
			if !ok {
				return
			}

			batch = append(batch, entry)
			if len(batch) >= m.batchSize {
				m.dispatchBatch(batch)
				batch = nil
				timeoutC = nil
			} else if len(batch) == 1 {
				timer = time.NewTimer(m.timeout)
				timeoutC = timer.C
			}

		case <-timeoutC:
			m.dispatchBatch(batch)
			batch = nil
			timeoutC = nil

		case <-ctx.Done():
			batch = m.drainInput(batch)
			return

		case <-m.shutdownCh:
			batch = m.drainInput(batch)
			return
		}
	}
}

// drainInput empties whatever Record already queued so a shutdown never
// loses accepted entries. The caller's deferred flush writes the
// remainder.
func (m *Manager) drainInput(batch []Entry) []Entry {
	for {
		select {
		case entry, ok := <-m.inputChan:
			if !ok {
				return batch
			}
			batch = append(batch, entry)
			if len(batch) >= m.batchSize {
				m.dispatchBatch(batch)
				batch = nil
			}
		default:
			return batch
		}
	}
}

func (m *Manager) dispatchBatch(batch []Entry) {
	batchCopy := make([]Entry, len(batch))
	copy(batchCopy, batch)

	select {
	case m.batchChan <- batchCopy:
	default:
		// Workers are behind; write from here rather than block the
		// aggregator.
		m.writeBatch(batchCopy)
	}
}

func (m *Manager) runWorker(ctx context.Context, id int) {
	defer m.wg.Done()
	m.logger.Debug("audit worker started", zap.Int("worker", id))

	for {
		select {
		case batch, ok := <-m.batchChan:
			if !ok {
				return
			}
			m.writeBatch(batch)
		case <-ctx.Done():
			// Drain whatever is already batched before exiting.
			for {
				select {
				case batch, ok := <-m.batchChan:
					if !ok {
						return
					}
					m.writeBatch(batch)
				default:
					return
				}
			}
		}
	}
}

func (m *Manager) writeBatch(batch []Entry) {
	if err := m.sink.append(batch); err != nil {
		m.logger.Error("audit batch lost to sink failure",
			zap.Int("entries", len(batch)),
			zap.Error(err),
		)
		return
	}
	m.updatePendingCount(-len(batch))
}

func (m *Manager) emergencyWrite(entry Entry) {
	if err := m.sink.append([]Entry{entry}); err != nil {
		m.logger.Error("emergency audit write failed",
			zap.String("entry_id", entry.ID),
			zap.Error(err),
		)
		return
	}
	m.updatePendingCount(-1)
}

func (m *Manager) updatePendingCount(delta int) {
	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()
	m.pendingCount += delta
}

// fileSink appends JSON lines to the trail file. Workers share one
// sink, so appends are serialized here.
type fileSink struct {
	path string
	mu   sync.Mutex
}

func (s *fileSink) append(batch []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, entry := range batch {
		if err := enc.Encode(entry); err != nil {
			return err
		}
	}
	return nil
}
