package server

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/metrics"
	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/storage"
)

const publishTimeout = 5 * time.Second

// AuditManager groups audit entries into batches and publishes them to the
// audit topic from a pool of workers.
type AuditManager struct {
	sink        storage.EventSink
	topic       string
	workerCount int
	batchSize   int
	timeout     time.Duration
	logger      *zap.Logger

	inputChan  chan AuditLogEntry
	batchChan  chan []AuditLogEntry
	shutdownCh chan struct{}
	once       sync.Once
	startOnce  sync.Once

	wg           sync.WaitGroup
	pendingMu    sync.Mutex
	pendingCount int
}

func NewAuditManager(sink storage.EventSink, topic string, workerCount, batchSize int, timeout time.Duration, logger *zap.Logger) *AuditManager {
	return &AuditManager{
		sink:        sink,
		topic:       topic,
		workerCount: workerCount,
		batchSize:   batchSize,
		timeout:     timeout,
		logger:      logger.With(zap.String("component", "audit")),
		inputChan:   make(chan AuditLogEntry, workerCount*batchSize*2),
		batchChan:   make(chan []AuditLogEntry, workerCount*2),
		shutdownCh:  make(chan struct{}),
	}
}

func (m *AuditManager) Start(ctx context.Context) {
	m.startOnce.Do(func() {
		m.logger.Info("starting audit manager", zap.Int("workers", m.workerCount))
		m.wg.Add(1)
		go m.runAggregator(ctx)

		for i := 0; i < m.workerCount; i++ {
			m.wg.Add(1)
			go m.runWorker(i)
		}

		go m.monitorShutdown(ctx)
	})
}

func (m *AuditManager) Shutdown(ctx context.Context) {
	m.once.Do(func() {
		m.logger.Info("initiating audit manager shutdown")
		close(m.shutdownCh)

		done := make(chan struct{})
		go func() {
			m.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			m.logger.Info("audit manager shutdown completed", zap.Int("pending", m.Pending()))
		case <-ctx.Done():
			m.logger.Warn("audit manager shutdown interrupted", zap.Int("pending", m.Pending()))
		}
	})
}

func (m *AuditManager) monitorShutdown(ctx context.Context) {
	select {
	case <-ctx.Done():
		m.Shutdown(context.Background())
	case <-m.shutdownCh:
	}
}

func (m *AuditManager) LogEntry(ctx context.Context, entry AuditLogEntry) {
	m.updatePendingCount(1)

	select {
	case <-m.shutdownCh:
		m.emergencyLog(entry)
		return
	default:
	}

	select {
	case m.inputChan <- entry:
	case <-ctx.Done():
		m.emergencyLog(entry)
	case <-m.shutdownCh:
		m.emergencyLog(entry)
	}
}

// Pending reports entries accepted but not yet handed to a worker.
func (m *AuditManager) Pending() int {
	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()
	return m.pendingCount
}

func (m *AuditManager) runAggregator(ctx context.Context) {
	defer m.wg.Done()

	var (
		batch    []AuditLogEntry
		timer    *time.Timer
		timeoutC <-chan time.Time
	)

	defer func() {
		if timer != nil {
			timer.Stop()
		}
	drain:
		for {
			select {
			case entry := <-m.inputChan:
				batch = append(batch, entry)
			default:
				break drain
			}
		}
		if len(batch) > 0 {
			m.dispatchBatch(batch)
		}
		close(m.batchChan)
	}()

	for {
		select {
		case entry := <-m.inputChan:
			batch = append(batch, entry)
			if len(batch) >= m.batchSize {
				m.dispatchBatch(batch)
				batch = nil
				timeoutC = nil
			} else if len(batch) == 1 {
				if timer != nil {
					timer.Stop()
				}
				timer = time.NewTimer(m.timeout)
				timeoutC = timer.C
			}

		case <-timeoutC:
			m.dispatchBatch(batch)
			batch = nil
			timeoutC = nil

		case <-ctx.Done():
			return

		case <-m.shutdownCh:
			return
		}
	}
}

func (m *AuditManager) dispatchBatch(batch []AuditLogEntry) {
	batchCopy := make([]AuditLogEntry, len(batch))
	copy(batchCopy, batch)

	m.updatePendingCount(-len(batch))
	select {
	case m.batchChan <- batchCopy:
	default:
		m.publishBatch(-1, batchCopy)
	}
}

func (m *AuditManager) runWorker(id int) {
	defer m.wg.Done()
	m.logger.Debug("audit worker started", zap.Int("worker", id))

	for batch := range m.batchChan {
		m.publishBatch(id, batch)
	}
	m.logger.Debug("audit worker exiting", zap.Int("worker", id))
}

// emergencyLog writes an entry that could not be queued straight to the log.
func (m *AuditManager) emergencyLog(entry AuditLogEntry) {
	m.logger.Warn("audit entry not queued",
		zap.String("handler", entry.Handler),
		zap.String("path", entry.Path),
		zap.Int("status", entry.StatusCode),
		zap.String("session", entry.SessionID))
	m.updatePendingCount(-1)
}

func (m *AuditManager) publishBatch(workerID int, batch []AuditLogEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	err := m.sink.Enqueue(ctx, m.topic, AuditBatch{Worker: workerID, Entries: batch})
	if err != nil {
		metrics.OperationErrorsTotal.WithLabelValues("audit_publish").Inc()
		m.logger.Error("failed to publish audit batch",
			zap.Int("worker", workerID),
			zap.Int("entries", len(batch)),
			zap.Error(err))
		for _, entry := range batch {
			m.logger.Info("audit entry",
				zap.String("handler", entry.Handler),
				zap.String("path", entry.Path),
				zap.Int("status", entry.StatusCode))
		}
		return
	}
	m.logger.Debug("audit batch published", zap.Int("worker", workerID), zap.Int("entries", len(batch)))
}

func (m *AuditManager) updatePendingCount(delta int) {
	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()
	m.pendingCount += delta
}
