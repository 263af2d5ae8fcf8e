package monitorer

import (
	"context"
	"sync"
	"time"

	"github.com/asticode/go-astikit"
	"github.com/asticode/go-astiperf/pkg/astiperf"
)

type Delta struct {
	At            astikit.Timestamp      `json:"at"`
	DoneProbes    []uint64               `json:"done_probes,omitempty"`
	NewStats      []DeltaStat            `json:"new_stats,omitempty"`
	Reports       []DeltaReport          `json:"reports,omitempty"`
	StartedProbes []DeltaProbe           `json:"started_probes,omitempty"`
	StatValues    map[uint64]interface{} `json:"stat_values,omitempty"`
}

func newDelta() *Delta {
	return &Delta{StatValues: make(map[uint64]interface{})}
}

func (d Delta) empty() bool {
	return len(d.DoneProbes) == 0 && len(d.NewStats) == 0 &&
		len(d.Reports) == 0 && len(d.StartedProbes) == 0 &&
		len(d.StatValues) == 0
}

func (d Delta) copy() *Delta {
	dst := newDelta()
	dst.At = d.At
	if len(d.DoneProbes) > 0 {
		dst.DoneProbes = make([]uint64, len(d.DoneProbes))
		copy(dst.DoneProbes, d.DoneProbes)
	}
	if len(d.NewStats) > 0 {
		dst.NewStats = make([]DeltaStat, len(d.NewStats))
		copy(dst.NewStats, d.NewStats)
	}
	if len(d.Reports) > 0 {
		dst.Reports = make([]DeltaReport, len(d.Reports))
		copy(dst.Reports, d.Reports)
	}
	if len(d.StartedProbes) > 0 {
		dst.StartedProbes = make([]DeltaProbe, len(d.StartedProbes))
		copy(dst.StartedProbes, d.StartedProbes)
	}
	if len(d.StatValues) > 0 {
		dst.StatValues = make(map[uint64]interface{}, len(d.StatValues))
		for k, v := range d.StatValues {
			dst.StatValues[k] = v
		}
	}
	return dst
}

type DeltaProbe struct {
	ID       uint64            `json:"id"`
	Metadata astiperf.Metadata `json:"metadata"`
}

type DeltaReport struct {
	ProbeID uint64          `json:"probe_id"`
	Report  astiperf.Report `json:"report"`
}

type DeltaStat struct {
	ID       uint64            `json:"id"`
	Metadata DeltaStatMetadata `json:"metadata"`
	ProbeID  *uint64           `json:"probe_id,omitempty"`
}

type DeltaStatMetadata struct {
	Description string `json:"description,omitempty"`
	Label       string `json:"label,omitempty"`
	Name        string `json:"name,omitempty"`
	Unit        string `json:"unit,omitempty"`
}

func newDeltaStatMetadata(i astikit.DeltaStatMetadata) DeltaStatMetadata {
	return DeltaStatMetadata{
		Description: i.Description,
		Label:       i.Label,
		Name:        i.Name,
		Unit:        i.Unit,
	}
}

type DeltaStatValue struct {
	StatID uint64      `json:"stat_id"`
	Value  interface{} `json:"value"`
}

type Monitorer struct {
	cd *Delta // Catchup Delta
	d  *Delta
	ds *astikit.DeltaStater
	mc *sync.Mutex // Locks cd
	md *sync.Mutex // Locks d
	o  MonitorerOptions
}

type OnDelta func(d Delta)

type MonitorerOptions struct {
	Monitor *astiperf.Monitor
	OnDelta OnDelta
	Period  time.Duration
}

func New(o MonitorerOptions) *Monitorer {
	// Create monitorer
	m := &Monitorer{
		cd: newDelta(),
		d:  newDelta(),
		mc: &sync.Mutex{},
		md: &sync.Mutex{},
		o:  o,
	}

	// Create Delta stater
	m.ds = astikit.NewDeltaStater(astikit.DeltaStaterOptions{
		OnStats: m.onStats,
		Period:  o.Period,
	})

	// Monitor monitor
	m.monitorMonitor()
	return m
}

func (m *Monitorer) monitorMonitor() {
	// Loop through monitor delta stats
	for _, ds := range m.o.Monitor.DeltaStats() {
		// Add to stater
		id := m.ds.Add(ds.Valuer)

		// Create Delta stat
		s := DeltaStat{
			ID:       id,
			Metadata: newDeltaStatMetadata(ds.Metadata),
		}

		// Store stat
		m.mc.Lock()
		m.cd.NewStats = append(m.cd.NewStats, s)
		m.mc.Unlock()
		m.md.Lock()
		m.d.NewStats = append(m.d.NewStats, s)
		m.md.Unlock()
	}

	// Listen to monitor
	m.o.Monitor.On(astiperf.EventNameProbeCreated, func(payload interface{}) (delete bool) {
		// Assert payload
		p, ok := payload.(*astiperf.Probe)
		if !ok {
			return
		}

		// Monitor probe
		m.monitorProbe(p)
		return
	})
}

func (m *Monitorer) monitorProbe(p *astiperf.Probe) {
	// Loop through delta stats
	var statIDs []uint64
	for _, ds := range p.DeltaStats() {
		// Add to stater
		statID := m.ds.Add(ds.Valuer)

		// Store stat id
		statIDs = append(statIDs, statID)

		// Create Delta stat
		s := DeltaStat{
			ID:       statID,
			Metadata: newDeltaStatMetadata(ds.Metadata),
			ProbeID:  astikit.UInt64Ptr(p.ID()),
		}

		// Store stat
		m.mc.Lock()
		m.cd.NewStats = append(m.cd.NewStats, s)
		m.mc.Unlock()
		m.md.Lock()
		m.d.NewStats = append(m.d.NewStats, s)
		m.md.Unlock()
	}

	// Listen to probe
	p.On(astiperf.EventNameProbeRunning, func(payload interface{}) (delete bool) {
		// Create Delta probe
		dp := DeltaProbe{
			ID:       p.ID(),
			Metadata: p.Metadata(),
		}

		// Store probe
		m.mc.Lock()
		m.cd.StartedProbes = append(m.cd.StartedProbes, dp)
		m.mc.Unlock()
		m.md.Lock()
		m.d.StartedProbes = append(m.d.StartedProbes, dp)
		m.md.Unlock()
		return
	})
	p.On(astiperf.EventNameProbeReport, func(payload interface{}) (delete bool) {
		// Assert payload
		r, ok := payload.(astiperf.Report)
		if !ok {
			return
		}

		// Create Delta report
		dr := DeltaReport{
			ProbeID: p.ID(),
			Report:  r,
		}

		// Store report
		// Catchup only keeps the latest report of each probe
		m.mc.Lock()
		replaced := false
		for idx := 0; idx < len(m.cd.Reports); idx++ {
			if m.cd.Reports[idx].ProbeID == p.ID() {
				m.cd.Reports[idx] = dr
				replaced = true
				break
			}
		}
		if !replaced {
			m.cd.Reports = append(m.cd.Reports, dr)
		}
		m.mc.Unlock()
		m.md.Lock()
		m.d.Reports = append(m.d.Reports, dr)
		m.md.Unlock()
		return
	})
	p.On(astiperf.EventNameProbeDone, func(payload interface{}) (delete bool) {
		// Remove stats
		m.mc.Lock()
		for _, statID := range statIDs {
			for idx := 0; idx < len(m.cd.NewStats); idx++ {
				if m.cd.NewStats[idx].ID == statID {
					m.cd.NewStats = append(m.cd.NewStats[:idx], m.cd.NewStats[idx+1:]...)
					idx--
				}
			}
		}
		m.mc.Unlock()
		m.ds.Remove(statIDs...)

		// Remove reports
		m.mc.Lock()
		for idx := 0; idx < len(m.cd.Reports); idx++ {
			if m.cd.Reports[idx].ProbeID == p.ID() {
				m.cd.Reports = append(m.cd.Reports[:idx], m.cd.Reports[idx+1:]...)
				idx--
			}
		}
		m.mc.Unlock()

		// Store probe
		m.mc.Lock()
		for idx := 0; idx < len(m.cd.StartedProbes); idx++ {
			if m.cd.StartedProbes[idx].ID == p.ID() {
				m.cd.StartedProbes = append(m.cd.StartedProbes[:idx], m.cd.StartedProbes[idx+1:]...)
				idx--
			}
		}
		m.mc.Unlock()
		m.md.Lock()
		m.d.DoneProbes = append(m.d.DoneProbes, p.ID())
		m.md.Unlock()
		return
	})
}

func (m *Monitorer) Start(ctx context.Context) {
	// Start stater
	m.ds.Start(ctx)
}

func (m *Monitorer) Close() {
	// Stop stater
	m.ds.Stop()
}

func (m *Monitorer) onStats(stats []astikit.DeltaStatValue) {
	// Swap Delta
	m.md.Lock()
	d := *m.d
	m.d = newDelta()
	m.md.Unlock()

	// Update at
	d.At = *astikit.NewTimestamp(astikit.Now())

	// Loop through stats
	m.mc.Lock()
	m.cd.StatValues = map[uint64]interface{}{}
	for _, s := range stats {
		// Add
		d.StatValues[s.ID] = s.Value
		m.cd.StatValues[s.ID] = s.Value
	}
	m.mc.Unlock()

	// Callback
	if !d.empty() {
		m.o.OnDelta(d)
	}
}

func (m *Monitorer) CatchUp() Delta {
	// Lock
	m.mc.Lock()
	defer m.mc.Unlock()

	// Copy Delta
	d := m.cd.copy()

	// Update at
	d.At = *astikit.NewTimestamp(astikit.Now())
	return *d
}
