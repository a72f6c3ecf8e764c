// SPDX-License-Identifier: MIT
package telemetry

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"trackprobe/internal/log"
	"trackprobe/internal/wire"
)

// DefaultRate is the telemetry publish rate in updates per second.
const DefaultRate = 24

// Reporter periodically pulls a Sample from its Source and sends it to
// the control application as a telemetry message plus the legacy RMS
// message older controller builds still parse. It runs in a separate
// goroutine managed by Start and Stop.
type Reporter struct {
	source   Source
	sender   wire.MessageSender
	interval time.Duration

	ticker   *time.Ticker   // Ticker that triggers telemetry sends.
	doneChan chan struct{}  // Channel used to signal the reporter goroutine to stop.
	stopOnce sync.Once      // Ensures the stop logic runs only once per Start/Stop cycle.
	wg       sync.WaitGroup // Waits for the reporter goroutine to finish during Stop.
	mu       sync.Mutex     // Protects access to ticker and doneChan during Start/Stop.

	updates atomic.Uint64 // Samples sent since construction.
	drops   atomic.Uint64 // Samples lost to send failures.
}

// NewReporter creates a reporter publishing rateHz samples per second.
// A non-positive rate falls back to DefaultRate.
func NewReporter(source Source, sender wire.MessageSender, rateHz int) (*Reporter, error) {
	if source == nil {
		return nil, fmt.Errorf("telemetry: sample source cannot be nil")
	}
	if sender == nil {
		return nil, fmt.Errorf("telemetry: sender cannot be nil")
	}
	if rateHz <= 0 {
		log.Warnf("Telemetry: invalid rate %d Hz, defaulting to %d", rateHz, DefaultRate)
		rateHz = DefaultRate
	}

	log.Infof("Telemetry: initializing reporter (%d updates/s)", rateHz)
	return &Reporter{
		source:   source,
		sender:   sender,
		interval: time.Second / time.Duration(rateHz),
	}, nil
}

// Start begins periodic publishing. It is safe to call Start multiple
// times; subsequent calls are no-ops while running.
func (r *Reporter) Start() {
	r.mu.Lock()
	if r.ticker != nil {
		r.mu.Unlock()
		log.Warnf("Telemetry: Start called but already running.")
		return
	}

	r.ticker = time.NewTicker(r.interval)
	r.doneChan = make(chan struct{})
	r.stopOnce = sync.Once{}

	// Capture for the goroutine to avoid racing Stop on the fields.
	ticker := r.ticker
	doneChan := r.doneChan

	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		log.Infof("Telemetry: reporter goroutine started (interval %s)", r.interval)
		for {
			select {
			case <-ticker.C:
				r.publish()
			case <-doneChan:
				log.Debugf("Telemetry: reporter goroutine received stop signal.")
				return
			}
		}
	}()
}

// publish sends one telemetry update. Incomplete samples and spells
// without a control connection are skipped quietly; send failures are
// counted and the loop keeps running.
func (r *Reporter) publish() {
	sample := r.source.TelemetrySample()
	if !sample.Valid() {
		return
	}
	if !r.sender.Connected() {
		return
	}

	if err := r.sender.Send(wire.TelemetryMessage(sample.TrackID, sample.RMS, sample.Bands)); err != nil {
		r.drops.Add(1)
		log.Debugf("Telemetry: dropped update for %s: %v", sample.TrackID, err)
		return
	}
	if err := r.sender.Send(wire.RMSMessage(sample.TrackID, sample.RMS)); err != nil {
		r.drops.Add(1)
		log.Debugf("Telemetry: dropped legacy RMS for %s: %v", sample.TrackID, err)
		return
	}

	n := r.updates.Add(1)
	if n%DefaultRate == 0 {
		log.Debugf("Telemetry: %d updates sent (track %s, rms %.4f)", n, sample.TrackID, sample.RMS)
	}
}

// Stop gracefully signals the reporter goroutine to terminate and
// waits for it to exit. Safe to call more than once.
func (r *Reporter) Stop() error {
	r.mu.Lock()
	if r.ticker == nil {
		r.mu.Unlock()
		log.Debugf("Telemetry: Stop called but not running.")
		return nil
	}

	r.stopOnce.Do(func() {
		close(r.doneChan)
		r.ticker.Stop()
		r.ticker = nil
	})
	r.mu.Unlock()

	r.wg.Wait()
	return nil
}

// Updates returns the number of samples published so far.
func (r *Reporter) Updates() uint64 { return r.updates.Load() }

// Drops returns the number of samples lost to send failures.
func (r *Reporter) Drops() uint64 { return r.drops.Load() }

// Close implements the io.Closer interface by stopping the reporter.
func (r *Reporter) Close() error {
	return r.Stop()
}

// Ensure Reporter satisfies the io.Closer interface at compile time.
var _ interface{ Close() error } = (*Reporter)(nil)
