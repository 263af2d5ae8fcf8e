package astiperf_test

import (
	"context"
	"testing"
	"time"

	"github.com/asticode/go-astikit"
	"github.com/asticode/go-astiperf/pkg/astiperf"
	"github.com/asticode/go-astiperf/pkg/astiperf/mocks"
	"github.com/stretchr/testify/require"
)

func TestMonitorShouldRunProperly(t *testing.T) {
	w := astikit.NewWorker(astikit.WorkerOptions{})
	events := astikit.NewEventInterceptor()
	l := astikit.NewMockedLogger()

	m, err := astiperf.NewMonitor(astiperf.MonitorOptions{
		Logger:   l,
		Metadata: astiperf.Metadata{Name: "mn"},
		Worker:   w,
	})
	require.NoError(t, err)
	defer m.Close()
	events.Intercept(
		m,
		astiperf.EventNameProbeCreated,
		astiperf.EventNameMonitorClosed,
		astiperf.EventNameMonitorDone,
		astiperf.EventNameMonitorRunning,
		astiperf.EventNameMonitorStarting,
		astiperf.EventNameMonitorStopping,
	)

	require.Equal(t, uint64(1), m.ID())
	require.Equal(t, "mn (monitor_1)", m.String())

	p, err := m.NewProbe(astiperf.ProbeOptions{Metadata: astiperf.Metadata{Name: "pn"}})
	require.NoError(t, err)
	require.Equal(t, map[astikit.EventProcesser][]astikit.Event{m: {{
		EventName: astiperf.EventNameProbeCreated,
		Payload:   p,
	}}}, events.Pool())
	events.Reset()

	require.Equal(t, uint64(1), p.ID())
	require.Equal(t, "pn (probe_1)", p.String())

	require.NoError(t, m.Start(w.Context()))
	require.Equal(t, astiperf.StatusRunning, m.Status())
	require.Equal(t, astiperf.StatusRunning, p.Status())
	require.Equal(t, map[astikit.EventProcesser][]astikit.Event{m: {
		{EventName: astiperf.EventNameMonitorStarting},
		{EventName: astiperf.EventNameMonitorRunning},
	}}, events.Pool())
	events.Reset()
	require.Error(t, m.Start(context.Background()))

	require.NoError(t, m.Stop())
	require.True(t, m.Status() >= astiperf.StatusStopping)
	require.NoError(t, m.Stop())

	w.Stop()

	require.Eventually(t, func() bool { return m.Status() == astiperf.StatusDone }, time.Second, 10*time.Millisecond)
	require.Equal(t, astiperf.StatusDone, p.Status())
	require.Equal(t, map[astikit.EventProcesser][]astikit.Event{m: {
		{EventName: astiperf.EventNameMonitorStopping},
		{EventName: astiperf.EventNameMonitorClosed},
		{EventName: astiperf.EventNameMonitorDone},
	}}, events.Pool())
	require.Equal(t, []astikit.MockedLoggerItem{
		{Context: m.Context(), LoggerLevel: astikit.LoggerLevelInfo, Message: "astiperf: monitor is starting"},
		{Context: p.Context(), LoggerLevel: astikit.LoggerLevelInfo, Message: "astiperf: probe is starting"},
		{Context: p.Context(), LoggerLevel: astikit.LoggerLevelInfo, Message: "astiperf: probe is running"},
		{Context: m.Context(), LoggerLevel: astikit.LoggerLevelInfo, Message: "astiperf: monitor is running"},
		{Context: m.Context(), LoggerLevel: astikit.LoggerLevelInfo, Message: "astiperf: monitor is stopping"},
		{Context: p.Context(), LoggerLevel: astikit.LoggerLevelInfo, Message: "astiperf: probe is stopping"},
		{Context: p.Context(), LoggerLevel: astikit.LoggerLevelInfo, Message: "astiperf: probe is closed"},
		{Context: p.Context(), LoggerLevel: astikit.LoggerLevelInfo, Message: "astiperf: probe is done"},
		{Context: m.Context(), LoggerLevel: astikit.LoggerLevelInfo, Message: "astiperf: monitor is closed"},
		{Context: m.Context(), LoggerLevel: astikit.LoggerLevelInfo, Message: "astiperf: monitor is done"},
	}, l.Items)
}

func TestMonitorShouldStopWhenContextIsCanceled(t *testing.T) {
	w := astikit.NewWorker(astikit.WorkerOptions{})
	m, err := astiperf.NewMonitor(astiperf.MonitorOptions{Worker: w})
	require.NoError(t, err)
	defer m.Close()

	_, err = m.NewProbe(astiperf.ProbeOptions{})
	require.NoError(t, err)

	require.NoError(t, m.Start(w.Context()))
	w.Stop()

	require.Eventually(t, func() bool { return m.Status() == astiperf.StatusDone }, time.Second, 10*time.Millisecond)
}

func TestMonitorShouldHandleProbesProperly(t *testing.T) {
	w := astikit.NewWorker(astikit.WorkerOptions{})
	defer w.Stop()
	m, err := astiperf.NewMonitor(astiperf.MonitorOptions{Worker: w})
	require.NoError(t, err)
	defer m.Close()

	p1, err := m.NewProbe(astiperf.ProbeOptions{})
	require.NoError(t, err)
	p2, err := m.NewProbe(astiperf.ProbeOptions{})
	require.NoError(t, err)

	ps := map[*astiperf.Probe]bool{}
	for _, p := range m.Probes() {
		ps[p] = true
	}

	require.Equal(t, map[*astiperf.Probe]bool{
		p1: true,
		p2: true,
	}, ps)
}

func TestMonitorShouldHandleDeltaStatsProperly(t *testing.T) {
	w := astikit.NewWorker(astikit.WorkerOptions{})
	defer w.Stop()
	ds := astikit.DeltaStat{}
	m, err := astiperf.NewMonitor(astiperf.MonitorOptions{
		DeltaStats: []astikit.DeltaStat{ds},
		Worker:     w,
	})
	require.NoError(t, err)
	defer m.Close()

	require.Equal(t, []astikit.DeltaStat{ds}, m.DeltaStats())
}

func TestMonitorShouldHandleContextAdaptersProperly(t *testing.T) {
	w := astikit.NewWorker(astikit.WorkerOptions{})
	defer w.Stop()

	type contextKey string
	k := contextKey("v")
	ctxm := context.WithValue(context.Background(), k, "m")
	ctxpl := context.WithValue(context.Background(), k, "pl")
	ctxpr := context.WithValue(context.Background(), k, "pr")

	pl := mocks.NewMockedPlugin()

	m, err := astiperf.NewMonitor(astiperf.MonitorOptions{
		ContextAdapters: astiperf.MonitorContextAdaptersOptions{
			Monitor: func(ctx context.Context, m *astiperf.Monitor) context.Context { return ctxm },
			Plugin:  func(ctx context.Context, m *astiperf.Monitor, p astiperf.Plugin) context.Context { return ctxpl },
			Probe: func(ctx context.Context, m *astiperf.Monitor, p *astiperf.Probe) context.Context {
				return ctxpr
			},
		},
		Plugins: []astiperf.Plugin{pl},
		Worker:  w,
	})
	require.NoError(t, err)
	defer m.Close()
	require.Equal(t, "m", m.Context().Value(k))
	require.Equal(t, "pl", pl.Context.Value(k))

	p, err := m.NewProbe(astiperf.ProbeOptions{})
	require.NoError(t, err)
	require.Equal(t, "pr", p.Context().Value(k))
}

func TestMonitorShouldHandleStopOptionsProperly(t *testing.T) {
	w := astikit.NewWorker(astikit.WorkerOptions{})
	defer w.Stop()

	m1, err := astiperf.NewMonitor(astiperf.MonitorOptions{Worker: w})
	require.NoError(t, err)
	defer m1.Close()
	m2, err := astiperf.NewMonitor(astiperf.MonitorOptions{
		Stop:   &astiperf.MonitorStopOptions{WhenAllProbesAreDone: true},
		Worker: w,
	})
	require.NoError(t, err)
	defer m2.Close()

	var s1, s2 astiperf.Status
	p1, err := m1.NewProbe(astiperf.ProbeOptions{})
	require.NoError(t, err)
	p1.On(astiperf.EventNameProbeDone, func(payload interface{}) (delete bool) {
		s1 = m1.Status()
		return
	})
	p2, err := m2.NewProbe(astiperf.ProbeOptions{})
	require.NoError(t, err)
	p2.On(astiperf.EventNameProbeDone, func(payload interface{}) (delete bool) {
		s2 = m2.Status()
		return
	})

	require.NoError(t, m1.Start(w.Context()))
	require.NoError(t, m2.Start(w.Context()))
	require.NoError(t, p1.Stop())
	require.NoError(t, p2.Stop())

	require.Eventually(t, func() bool { return s1 == astiperf.StatusRunning }, time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return s2 > astiperf.StatusRunning }, time.Second, 10*time.Millisecond)

	require.NoError(t, m1.Stop())
	require.NoError(t, m2.Stop())
}
