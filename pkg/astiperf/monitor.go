package astiperf

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/asticode/go-astikit"
)

var monitorCount uint64

type Monitor struct {
	ctx        context.Context
	dss        []astikit.DeltaStat
	e          *astikit.EventManager
	id         uint64
	l          astikit.CompleteLogger
	mp         sync.Mutex // Locks ps
	o          MonitorOptions
	pls        []Plugin
	probeCount uint64
	ps         []*Probe
	t          *task
}

type MonitorOptions struct {
	ContextAdapters MonitorContextAdaptersOptions
	DeltaStats      []astikit.DeltaStat
	Logger          astikit.StdLogger
	Metadata        Metadata
	Plugins         []Plugin
	Stop            *MonitorStopOptions
	Worker          *astikit.Worker
}

type MonitorContextAdaptersOptions struct {
	Monitor func(context.Context, *Monitor) context.Context
	Plugin  func(context.Context, *Monitor, Plugin) context.Context
	Probe   func(context.Context, *Monitor, *Probe) context.Context
}

type MonitorStopOptions struct {
	WhenAllProbesAreDone bool // Default is false
}

func NewMonitor(o MonitorOptions) (m *Monitor, err error) {
	// Create monitor
	m = &Monitor{
		ctx: context.Background(),
		dss: make([]astikit.DeltaStat, len(o.DeltaStats)),
		e:   astikit.NewEventManager(),
		id:  atomic.AddUint64(&monitorCount, 1),
		l:   astikit.AdaptStdLogger(o.Logger),
		o:   o,
		pls: make([]Plugin, len(o.Plugins)),
	}

	// Adapt context
	if m.o.ContextAdapters.Monitor != nil {
		m.ctx = m.o.ContextAdapters.Monitor(m.ctx, m)
	}

	// Copy stats
	copy(m.dss, o.DeltaStats)

	// Copy plugins
	copy(m.pls, o.Plugins)

	// Create task
	m.t = newTask(astikit.NewCloser(), m.onTaskStart, m.onTaskStop)

	// Listen to probe events
	m.On(EventNameProbeCreated, func(payload interface{}) bool {
		// Assert payload
		p, ok := payload.(*Probe)
		if !ok {
			return false
		}

		// Store probe
		m.mp.Lock()
		m.ps = append(m.ps, p)
		m.mp.Unlock()

		// Listen to probe events
		p.On(EventNameProbeDone, func(payload interface{}) bool {
			// Remove probe
			m.mp.Lock()
			for idx := 0; idx < len(m.ps); idx++ {
				if p.id == m.ps[idx].id {
					m.ps = append(m.ps[:idx], m.ps[idx+1:]...)
					idx--
				}
			}
			allProbesAreDone := len(m.ps) == 0
			m.mp.Unlock()

			// All probes are done
			if allProbesAreDone && m.o.Stop != nil && m.o.Stop.WhenAllProbesAreDone {
				// Stop monitor
				m.Stop() //nolint: errcheck
			}
			return false
		})
		return false
	})

	// Listen to task events
	m.t.e.On(eventNameTaskClosed, func(payload interface{}) (delete bool) {
		// Log
		m.l.InfoC(m.ctx, "astiperf: monitor is closed")

		// Emit
		m.Emit(EventNameMonitorClosed, nil)
		return true
	})
	m.t.e.On(eventNameTaskDone, func(payload interface{}) (delete bool) {
		// Log
		m.l.InfoC(m.ctx, "astiperf: monitor is done")

		// Emit
		m.Emit(EventNameMonitorDone, nil)
		return
	})
	m.t.e.On(eventNameTaskRunning, func(payload interface{}) (delete bool) {
		// Log
		m.l.InfoC(m.ctx, "astiperf: monitor is running")

		// Emit
		m.Emit(EventNameMonitorRunning, nil)
		return
	})
	m.t.e.On(eventNameTaskStarting, func(payload interface{}) (delete bool) {
		// Log
		m.l.InfoC(m.ctx, "astiperf: monitor is starting")

		// Emit
		m.Emit(EventNameMonitorStarting, nil)
		return
	})
	m.t.e.On(eventNameTaskStopping, func(payload interface{}) (delete bool) {
		// Log
		m.l.InfoC(m.ctx, "astiperf: monitor is stopping")

		// Emit
		m.Emit(EventNameMonitorStopping, nil)
		return
	})

	// Loop through plugins
	for idx, p := range m.pls {
		// Create context
		ctx := context.Background()
		if m.o.ContextAdapters.Plugin != nil {
			ctx = m.o.ContextAdapters.Plugin(ctx, m, p)
		}

		// Initialize plugin
		if err = p.Init(ctx, m.t.c.NewChild(), m); err != nil {
			err = fmt.Errorf("astiperf: initializing plugin #%d failed: %w", idx, err)
			return
		}
	}
	return
}

func (m *Monitor) ID() uint64 {
	return m.id
}

func (m *Monitor) String() string {
	if m.Metadata().Name != "" {
		return fmt.Sprintf("%s (monitor_%d)", m.Metadata().Name, m.id)
	}
	return fmt.Sprintf("monitor_%d", m.id)
}

func (m *Monitor) DeltaStats() []astikit.DeltaStat {
	dst := make([]astikit.DeltaStat, len(m.dss))
	copy(dst, m.dss)
	return dst
}

func (m *Monitor) Metadata() Metadata {
	return m.o.Metadata
}

func (m *Monitor) Logger() astikit.CompleteLogger {
	return m.l
}

func (m *Monitor) Context() context.Context {
	return m.ctx
}

func (m *Monitor) Close() error {
	return m.t.c.Close()
}

func (m *Monitor) Status() Status {
	return m.t.status()
}

func (m *Monitor) Emit(n astikit.EventName, payload interface{}) {
	m.e.Emit(n, payload)
}

func (m *Monitor) On(n astikit.EventName, h astikit.EventHandler) astikit.EventRemover {
	return m.e.On(n, h)
}

func (m *Monitor) Probes() (probes []*Probe) {
	m.mp.Lock()
	defer m.mp.Unlock()
	probes = make([]*Probe, len(m.ps))
	copy(probes, m.ps)
	return
}

func (m *Monitor) Start(ctx context.Context) error {
	// Start task
	if err := m.t.start(ctx, m.o.Worker.NewTask); err != nil {
		return fmt.Errorf("astiperf: starting task failed: %w", err)
	}
	return nil
}

func (m *Monitor) onTaskStart(ctx context.Context, cancel context.CancelFunc, tc astikit.TaskCreator) {
	// Loop through plugins
	for _, p := range m.pls {
		// Start plugin
		p.Start(ctx, tc)
	}

	// Loop through probes
	for _, p := range m.Probes() {
		// Start probe
		if err := p.Start(); err != nil {
			m.l.WarnC(p.ctx, fmt.Errorf("astiperf: starting probe failed: %w", err))
		}
	}
}

func (m *Monitor) onTaskStop() {
	// Loop through probes
	for _, p := range m.Probes() {
		// Stop probe
		if err := p.Stop(); err != nil {
			m.l.WarnC(p.ctx, fmt.Errorf("astiperf: stopping probe failed: %w", err))
		}
	}
}

func (m *Monitor) Stop() error {
	// Stop task
	if err := m.t.stop(); err != nil {
		return fmt.Errorf("astiperf: stopping task failed: %w", err)
	}
	return nil
}
