package lifecycle

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// healthProbeQuery is the trivial statement used to assert the handle is
// still responsive.
const healthProbeQuery = "SELECT 1"

// startHealthLoop launches the background probe goroutine. Calling it while a
// loop is already running is a no-op.
func (m *Manager) startHealthLoop() {
	m.loopMu.Lock()
	defer m.loopMu.Unlock()

	if m.loopStop != nil {
		return
	}

	stop := make(chan struct{})
	m.loopStop = stop

	go m.healthLoop(stop)
}

// stopHealthLoop cancels the pending tick. Safe to call with no loop running.
func (m *Manager) stopHealthLoop() {
	m.loopMu.Lock()
	defer m.loopMu.Unlock()

	if m.loopStop == nil {
		return
	}

	close(m.loopStop)
	m.loopStop = nil
}

// healthLoop runs one probe per interval. The timer is reset only after a
// tick completes, so at most one tick is ever in flight.
func (m *Manager) healthLoop(stop <-chan struct{}) {
	timer := time.NewTimer(m.cfg.HealthCheckInterval)
	defer timer.Stop()

	for {
		select {
		case <-stop:
			return
		case <-timer.C:
			m.checkOnce()
			timer.Reset(m.cfg.HealthCheckInterval)
		}
	}
}

// checkOnce probes the handle and updates the liveness flag. Failures are
// reported to the sink and never escape the loop. The probe carries no
// deadline of its own; a slow query simply delays the next tick, since the
// timer is only reset after the probe completes.
func (m *Manager) checkOnce() {
	handle := m.getHandle()
	if handle == nil {
		return
	}

	if err := handle.RawQuery(context.Background(), healthProbeQuery); err != nil {
		m.connected.Store(false)
		m.logger.Warn("database health check failed", zap.Error(err))
		m.report(err)

		return
	}

	m.connected.Store(true)
}

// report delivers the failure to the sink without letting a panicking
// reporter kill the loop.
func (m *Manager) report(err error) {
	if m.cfg.Reporter == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("error reporter panicked", zap.Any("panic", r))
		}
	}()

	m.cfg.Reporter.Report(err)
}
