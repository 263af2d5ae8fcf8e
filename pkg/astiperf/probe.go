package astiperf

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/asticode/go-astikit"
)

// reportPeriod is the amount of stream time that must elapse between two
// reports of the same probe.
const reportPeriod = time.Second

// Unit is one discrete piece of data flowing through the pipeline. At is its
// position on the stream timeline, Size its byte size. A zero At falls back to
// the current time.
type Unit struct {
	At   time.Time
	Size uint64
}

// Probe monitors one stream of units. Units are observed with HandleUnit and
// pass through unmodified; once per second of stream time the probe logs and
// emits a Report.
type Probe struct {
	baseline time.Time // Stream time the current cycle started at
	bytes    *counter
	ce       *cpuEstimator
	cs       *probeCumulativeStats
	ctx      context.Context
	e        *astikit.EventManager
	fpsCount uint64
	id       uint64
	m        *Monitor
	md       sync.Mutex // Locks ce and keeps reports in order
	meanFPS  float64
	mr       sync.Mutex // Locks baseline, fpsCount and meanFPS
	o        ProbeOptions
	s        *bitrateSampler
	t        *task
	units    *counter
}

type probeCumulativeStats struct {
	incomingBytes uint64
	incomingUnits uint64
}

type ProbeOptions struct {
	Bitrate  ProbeBitrateOptions
	CPU      ProbeCPUOptions
	GPU      ProbeGPUOptions
	Metadata Metadata
}

type ProbeBitrateOptions struct {
	Interval   time.Duration // Default is DefaultBitrateInterval
	WindowSize uint          // 0 keeps a cumulative average, above 0 a moving average over that many samples
}

type ProbeCPUOptions struct {
	// TimesFunc enables cpu load in reports when provided
	TimesFunc CPUTimesFunc
}

type ProbeGPUOptions struct {
	// StatsFunc enables gpu stats in reports when provided
	StatsFunc GPUStatsFunc
}

func (m *Monitor) NewProbe(o ProbeOptions) (p *Probe, err error) {
	// Invalid monitor status
	if m.Status() > StatusRunning {
		err = fmt.Errorf("astiperf: invalid monitor status %s", m.Status())
		return
	}

	// Invalid bitrate interval
	if o.Bitrate.Interval < 0 {
		err = fmt.Errorf("astiperf: invalid bitrate interval %s", o.Bitrate.Interval)
		return
	}

	// Default bitrate interval
	interval := o.Bitrate.Interval
	if interval == 0 {
		interval = DefaultBitrateInterval
	}

	// Create probe
	p = &Probe{
		bytes: &counter{},
		ce:    &cpuEstimator{},
		cs:    &probeCumulativeStats{},
		ctx:   context.Background(),
		e:     astikit.NewEventManager(),
		id:    atomic.AddUint64(&m.probeCount, 1),
		m:     m,
		o:     o,
		units: &counter{},
	}

	// Create sampler
	p.s = newBitrateSampler(p.bytes, interval, o.Bitrate.WindowSize)

	// Adapt context
	if m.o.ContextAdapters.Probe != nil {
		p.ctx = m.o.ContextAdapters.Probe(p.ctx, m, p)
	}

	// Create task
	p.t = newTask(m.t.c.NewChild(), p.onTaskStart, nil)

	// Listen to task events
	p.t.e.On(eventNameTaskClosed, func(payload interface{}) (delete bool) {
		// Log
		p.m.l.InfoC(p.ctx, "astiperf: probe is closed")

		// Emit
		p.Emit(EventNameProbeClosed, nil)
		return true
	})
	p.t.e.On(eventNameTaskDone, func(payload interface{}) (delete bool) {
		// Log
		p.m.l.InfoC(p.ctx, "astiperf: probe is done")

		// Emit
		p.Emit(EventNameProbeDone, nil)
		return
	})
	p.t.e.On(eventNameTaskRunning, func(payload interface{}) (delete bool) {
		// Log
		p.m.l.InfoC(p.ctx, "astiperf: probe is running")

		// Emit
		p.Emit(EventNameProbeRunning, nil)
		return
	})
	p.t.e.On(eventNameTaskStarting, func(payload interface{}) (delete bool) {
		// Log
		p.m.l.InfoC(p.ctx, "astiperf: probe is starting")

		// Emit
		p.Emit(EventNameProbeStarting, nil)
		return
	})
	p.t.e.On(eventNameTaskStopping, func(payload interface{}) (delete bool) {
		// Log
		p.m.l.InfoC(p.ctx, "astiperf: probe is stopping")

		// Emit
		p.Emit(EventNameProbeStopping, nil)
		return
	})

	// Emit created probe
	m.Emit(EventNameProbeCreated, p)
	return
}

func (p *Probe) ID() uint64 {
	return p.id
}

func (p *Probe) String() string {
	if p.Metadata().Name != "" {
		return fmt.Sprintf("%s (probe_%d)", p.Metadata().Name, p.id)
	}
	return fmt.Sprintf("probe_%d", p.id)
}

func (p *Probe) Metadata() Metadata {
	return p.o.Metadata
}

func (p *Probe) Logger() astikit.CompleteLogger {
	return p.m.l
}

func (p *Probe) Context() context.Context {
	return p.ctx
}

func (p *Probe) Status() Status {
	return p.t.status()
}

func (p *Probe) Emit(nm astikit.EventName, payload interface{}) {
	p.e.Emit(nm, payload)
}

func (p *Probe) On(nm astikit.EventName, h astikit.EventHandler) astikit.EventRemover {
	return p.e.On(nm, h)
}

func (p *Probe) DeltaStats() []astikit.DeltaStat {
	return []astikit.DeltaStat{
		{
			Metadata: astikit.DeltaStatMetadata{
				Description: "Number of units coming in per second",
				Label:       "Incoming rate",
				Name:        DeltaStatNameIncomingRate,
				Unit:        "ups",
			},
			Valuer: astikit.NewAtomicUint64RateDeltaStat(&p.cs.incomingUnits),
		},
		{
			Metadata: astikit.DeltaStatMetadata{
				Description: "Number of bytes coming in per second",
				Label:       "Incoming byte rate",
				Name:        DeltaStatNameIncomingByteRate,
				Unit:        "Bps",
			},
			Valuer: astikit.NewAtomicUint64RateDeltaStat(&p.cs.incomingBytes),
		},
	}
}

func (p *Probe) Closer() *astikit.ProtectedCloser {
	return astikit.NewProtectedCloser(p.t.c)
}

func (p *Probe) Close() error {
	return p.t.c.Close()
}

func (p *Probe) Start() error {
	// Probes can only be started if monitor is either starting or running
	if s := p.m.Status(); s != StatusStarting && s != StatusRunning {
		return fmt.Errorf("astiperf: invalid monitor status %s", s)
	}

	// Start task
	// We don't use monitor context here since we want to stop probes using their .Stop() method
	if err := p.t.start(context.Background(), p.m.t.t.NewSubTask); err != nil {
		return fmt.Errorf("astiperf: starting task failed: %w", err)
	}
	return nil
}

func (p *Probe) onTaskStart(ctx context.Context, cancel context.CancelFunc, tc astikit.TaskCreator) {
	// Start sampler
	tc().Do(func() { astikit.Tick(ctx, p.s.interval, p.s.tick) })
}

func (p *Probe) Stop() error {
	// Stop task
	if err := p.t.stop(); err != nil {
		return fmt.Errorf("astiperf: stopping task failed: %w", err)
	}
	return nil
}

// HandleUnit observes one unit passing through the stream. It never blocks the
// caller beyond short lock acquisitions unless it is the one call of the cycle
// that delivers a report. Units are dropped while the probe is not running.
func (p *Probe) HandleUnit(u Unit) {
	// Probe is not running
	if p.Status() != StatusRunning {
		return
	}

	// Get stream time
	now := u.At
	if now.IsZero() {
		now = astikit.Now()
	}

	// Deliver report before counting so that the triggering unit counts toward
	// the next cycle
	if r, ok := p.prepareReport(now); ok {
		p.deliverReport(r)
	}

	// Increment counters
	p.units.add(1)
	p.bytes.add(u.Size)

	// Increment stats
	atomic.AddUint64(&p.cs.incomingUnits, 1)
	atomic.AddUint64(&p.cs.incomingBytes, u.Size)
}

func (p *Probe) prepareReport(now time.Time) (r Report, ok bool) {
	// Lock
	p.mr.Lock()
	defer p.mr.Unlock()

	// The first unit establishes the baseline and doesn't trigger a report
	if p.baseline.IsZero() {
		p.baseline = now
		return
	}

	// Not enough stream time has elapsed
	elapsed := now.Sub(p.baseline)
	if elapsed < reportPeriod {
		return
	}

	// Compute frame rate using the actual elapsed time
	fps := float64(p.units.drain()) / elapsed.Seconds()

	// Update mean frame rate
	p.fpsCount++
	p.meanFPS = updateRunningAverage(p.fpsCount, fps, p.meanFPS)

	// Read bitrates
	bps, meanBPS := p.s.snapshot()

	// Create report
	r = Report{
		At:      *astikit.NewTimestamp(now),
		BPS:     bps,
		FPS:     fps,
		MeanBPS: meanBPS,
		MeanFPS: p.meanFPS,
	}

	// Reset baseline
	p.baseline = now
	ok = true
	return
}

func (p *Probe) deliverReport(r Report) {
	// Lock
	//!\\ Counter locks must not be held at this point since collaborators may block
	p.md.Lock()
	defer p.md.Unlock()

	// Get cpu load
	if p.o.CPU.TimesFunc != nil {
		l := CPULoadUnknown
		if t, err := p.o.CPU.TimesFunc(); err != nil {
			p.m.l.WarnC(p.ctx, fmt.Errorf("astiperf: getting cpu times failed: %w", err))
		} else {
			l = p.ce.update(t)
		}
		r.CPULoad = &l
	}

	// Get gpu stats
	if p.o.GPU.StatsFunc != nil {
		var g GPUStats
		if v, err := p.o.GPU.StatsFunc(p.t.ctx); err != nil {
			p.m.l.WarnC(p.ctx, fmt.Errorf("astiperf: getting gpu stats failed: %w", err))
		} else {
			g = v
		}
		r.GPU = &g
	}

	// Log
	p.m.l.InfoCf(p.ctx, "astiperf: %s", r)

	// Emit
	p.Emit(EventNameProbeReport, r)
}
