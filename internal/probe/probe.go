// SPDX-License-Identifier: MIT

// Package probe assembles the capture, analysis, negotiation and
// telemetry components into one running plugin instance and routes
// inbound control messages to them.
package probe

import (
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"trackprobe/internal/analysis"
	"trackprobe/internal/audio"
	"trackprobe/internal/config"
	"trackprobe/internal/log"
	"trackprobe/internal/negotiate"
	"trackprobe/internal/params"
	"trackprobe/internal/telemetry"
	"trackprobe/internal/transport"
	"trackprobe/internal/wire"
)

// controlSender is the outbound half of the control channel.
// *wire.Sender implements it.
type controlSender interface {
	Send(wire.Message) error
	Connected() bool
	Reconnect() error
	Close() error
}

// instanceSeq numbers probe instances within this process. Chat
// messages identify the instance by this small integer rather than
// the UUID.
var instanceSeq atomic.Int32

// Frame is the meter snapshot pushed to browser clients.
type Frame struct {
	TrackID string                     `json:"track_id"`
	RMS     float32                    `json:"rms"`
	Peak    float32                    `json:"peak"`
	Bands   [analysis.NumBands]float32 `json:"bands"`
}

// Probe owns one instance's full processing chain. It implements
// wire.Listener for inbound control messages and telemetry.Source for
// the reporter.
type Probe struct {
	cfg *config.Config

	instanceID  string
	instanceNum int32

	mu      sync.RWMutex
	trackID string

	registry *params.Registry
	gain     *params.Parameter

	engine   *audio.Engine // nil when running without capture hardware
	metrics  *audio.Metrics
	tone     *audio.ToneGenerator
	analyzer *analysis.Analyzer

	sender     controlSender
	receiver   *wire.Receiver
	negotiator *negotiate.Negotiator
	reporter   *telemetry.Reporter
	fanout     transport.Transport

	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

var (
	_ wire.Listener    = (*Probe)(nil)
	_ telemetry.Source = (*Probe)(nil)
)

// New wires a probe from the configuration. PortAudio must be
// initialized before calling; nothing starts until Start.
func New(cfg *config.Config) (*Probe, error) {
	p := &Probe{
		cfg:         cfg,
		instanceID:  uuid.NewString(),
		instanceNum: instanceSeq.Add(1),
		doneChan:    make(chan struct{}),
	}

	p.registry = params.NewRegistry()
	p.gain = params.NewGain()
	p.registry.Add(p.gain)

	window, err := analysis.ParseWindowFunc(cfg.Analysis.Window)
	if err != nil {
		return nil, err
	}
	analyzer, err := analysis.NewAnalyzer(analysis.Config{
		FFTOrder:   cfg.Analysis.FFTOrder,
		SampleRate: cfg.Audio.SampleRate,
		UpdateRate: cfg.Analysis.UpdateRate,
		Window:     window,
		AWeighting: cfg.Analysis.AWeighting,
	})
	if err != nil {
		return nil, err
	}
	p.analyzer = analyzer

	addr := net.JoinHostPort(cfg.Control.Host, strconv.Itoa(cfg.Control.Port))
	sender, err := wire.NewSender(addr, config.ReconnectMaxAttempts, config.ReconnectDelay)
	if err != nil {
		return nil, fmt.Errorf("control channel: %w", err)
	}
	p.sender = sender

	p.receiver = wire.NewReceiver(p)
	p.negotiator = negotiate.NewNegotiator(p.instanceID, sender, p.receiver)

	reporter, err := telemetry.NewReporter(p, sender, cfg.Telemetry.RateHz)
	if err != nil {
		sender.Close()
		return nil, err
	}
	p.reporter = reporter

	if cfg.WebSocket.Enabled {
		p.fanout = transport.NewWebSocketTransport(cfg.WebSocket.Addr, 0)
	} else {
		p.fanout = transport.NewLoggingTransport()
	}

	engine, err := audio.NewEngine(cfg, p.gain, analyzer)
	if err != nil {
		sender.Close()
		return nil, err
	}
	p.engine = engine
	p.metrics = engine.Metrics()
	p.tone = engine.Tone()

	log.Infof("Probe: instance %s (#%d) wired", p.instanceID, p.instanceNum)
	return p, nil
}

// Start brings the chain up: reply channel first so the negotiator
// has a port to advertise, then capture, analysis and telemetry, and
// finally the port request itself.
func (p *Probe) Start() error {
	if err := p.receiver.Start(0); err != nil {
		return fmt.Errorf("reply channel: %w", err)
	}

	if ws, ok := p.fanout.(*transport.WebSocketTransport); ok {
		if err := ws.Start(); err != nil {
			return fmt.Errorf("meter fan-out: %w", err)
		}
		log.Infof("Probe: meter clients on ws://%s/ws", ws.Addr())
	}

	if p.engine != nil {
		if err := p.engine.StartInputStream(); err != nil {
			return fmt.Errorf("input stream: %w", err)
		}
	}

	if p.cfg.Analysis.AutoStart {
		p.analyzer.Start()
	}
	p.reporter.Start()

	p.negotiator.RequestPort()

	p.wg.Add(1)
	go p.run()

	log.Info("Probe: running")
	return nil
}

// run owns the slow-path timers. One goroutine serializes retry
// bookkeeping and meter publishing so none of the components need
// extra locking on its account.
func (p *Probe) run() {
	defer p.wg.Done()

	housekeeping := time.NewTicker(time.Second)
	defer housekeeping.Stop()

	frames := time.NewTicker(time.Second / time.Duration(p.analyzer.Rate()))
	defer frames.Stop()

	for {
		select {
		case <-p.doneChan:
			return
		case <-housekeeping.C:
			p.housekeep()
		case <-frames.C:
			p.publishFrame()
		}
	}
}

func (p *Probe) housekeep() {
	p.negotiator.CheckAndRetry()
	if !p.sender.Connected() {
		if err := p.sender.Reconnect(); err != nil {
			log.Warnf("Probe: control reconnect failed: %v", err)
		}
	}
}

func (p *Probe) publishFrame() {
	if p.fanout == nil {
		return
	}
	s := p.TelemetrySample()
	frame := Frame{TrackID: s.TrackID, RMS: s.RMS, Peak: s.Peak, Bands: s.Bands}
	if err := p.fanout.Send(frame); err != nil && err != transport.ErrClosed {
		log.Debugf("Probe: meter frame dropped: %v", err)
	}
}

// InstanceID returns the UUID minted for this instance.
func (p *Probe) InstanceID() string { return p.instanceID }

// TrackID returns the assigned track id, or "" before adoption.
func (p *Probe) TrackID() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.trackID
}

// Engine exposes the capture engine for the CLI and TUI layers.
func (p *Probe) Engine() *audio.Engine { return p.engine }

// Analyzer exposes the spectrum analyzer for the TUI layer.
func (p *Probe) Analyzer() *analysis.Analyzer { return p.analyzer }

// Metrics exposes the level metrics for the TUI layer.
func (p *Probe) Metrics() *audio.Metrics { return p.metrics }

// SendChat relays a prompt to the control application.
func (p *Probe) SendChat(text string) error {
	return p.sender.Send(wire.ChatRequestMessage(p.instanceNum, text))
}

// Status is a monitor snapshot of the instance: identity, control
// link state and the current levels.
type Status struct {
	InstanceID string
	TrackID    string
	Link       string
	Port       int
	Connected  bool
	RMS        float32
	Peak       float32
	Bands      [analysis.NumBands]float32
}

// Status assembles the current monitor snapshot.
func (p *Probe) Status() Status {
	s := p.TelemetrySample()
	return Status{
		InstanceID: p.instanceID,
		TrackID:    s.TrackID,
		Link:       p.negotiator.State().String(),
		Port:       p.negotiator.Port(),
		Connected:  p.sender.Connected(),
		RMS:        s.RMS,
		Peak:       s.Peak,
		Bands:      s.Bands,
	}
}

// TelemetrySample assembles the current snapshot for the reporter.
// Band energies stay at the silence floor until the analyzer has a
// full window.
func (p *Probe) TelemetrySample() telemetry.Sample {
	s := telemetry.NewSample()
	s.TrackID = p.TrackID()
	s.InstanceID = p.instanceID
	s.Timestamp = time.Now()
	if p.metrics != nil {
		s.RMS = p.metrics.RMS()
		s.Peak = p.metrics.Peak()
	}
	if p.analyzer != nil && p.analyzer.Ready() {
		for i, db := range p.analyzer.BandEnergiesDB() {
			s.Bands[i] = float32(db)
		}
	}
	return s
}

// HandleTrackAssignment stores the adopted track id and confirms it
// back so the control application can mark this instance live.
func (p *Probe) HandleTrackAssignment(trackID string) {
	p.mu.Lock()
	p.trackID = trackID
	p.mu.Unlock()

	log.Infof("Probe: adopted track %s", trackID)
	p.ack(wire.UUIDConfirmedMessage(p.instanceID, trackID))
}

// HandlePortAssignment forwards a port grant to the negotiator.
func (p *Probe) HandlePortAssignment(instanceID string, port int32, status string) {
	p.negotiator.HandleAssignment(instanceID, int(port), status)
}

// HandleParameterChange applies a plain-unit update to the named
// parameter. Unknown names are logged and dropped.
func (p *Probe) HandleParameterChange(name string, value float32) {
	param, ok := p.registry.Get(name)
	if !ok {
		log.Warnf("Probe: unknown parameter %q", name)
		return
	}
	param.SetPlain(float64(value))
	log.Debugf("Probe: %s set to %.2f %s", name, param.Plain(), param.Unit)
}

// HandleRMSQuery answers with the current RMS, echoing the query id.
func (p *Probe) HandleRMSQuery(queryID string) {
	var rms float32
	if p.metrics != nil {
		rms = p.metrics.RMS()
	}
	p.ack(wire.RMSResponseMessage(queryID, p.instanceID, rms))
}

// HandleToneControl starts or stops the calibration tone and
// acknowledges the transition.
func (p *Probe) HandleToneControl(start bool, freq, ampDB float32) {
	if p.tone == nil {
		return
	}
	if !start {
		p.tone.Stop()
		log.Info("Probe: calibration tone off")
		p.ack(wire.ToneStoppedMessage(p.instanceID))
		return
	}
	p.tone.SetFrequency(float64(freq))
	p.tone.SetAmplitudeDB(float64(ampDB))
	p.tone.Start()
	log.Infof("Probe: calibration tone on (%.1f Hz, %.1f dB)", p.tone.Frequency(), p.tone.AmplitudeDB())
	p.ack(wire.ToneStartedMessage(p.instanceID, float32(p.tone.Frequency())))
}

// HandleChatResponse surfaces relayed chat text in the log.
func (p *Probe) HandleChatResponse(text string) {
	log.Infof("Probe: chat: %s", text)
}

func (p *Probe) ack(msg wire.Message) {
	if err := p.sender.Send(msg); err != nil {
		log.Warnf("Probe: %s send failed: %v", msg.Addr, err)
	}
}

// Stop halts the timers and the processing chain. Safe to call more
// than once.
func (p *Probe) Stop() {
	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.wg.Wait()

		if p.reporter != nil {
			p.reporter.Stop()
		}
		if p.analyzer != nil {
			if err := p.analyzer.Stop(); err != nil {
				log.Warnf("Probe: analyzer stop: %v", err)
			}
		}
		if p.engine != nil {
			if err := p.engine.StopInputStream(); err != nil {
				log.Warnf("Probe: input stream stop: %v", err)
			}
		}
		log.Info("Probe: stopped")
	})
}

// Close stops the probe and releases every owned resource. The first
// error wins; later ones are logged by the components themselves.
func (p *Probe) Close() error {
	p.Stop()

	var firstErr error
	collect := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if p.receiver != nil {
		collect(p.receiver.Close())
	}
	if p.engine != nil {
		collect(p.engine.Close())
	}
	if p.analyzer != nil {
		collect(p.analyzer.Close())
	}
	if p.fanout != nil {
		collect(p.fanout.Close())
	}
	if p.sender != nil {
		collect(p.sender.Close())
	}
	return firstErr
}
