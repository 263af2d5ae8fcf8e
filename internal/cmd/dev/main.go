package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/asticode/go-astikit"
	"github.com/asticode/go-astilog"
	"github.com/asticode/go-astiperf/pkg/astiperf"
	"github.com/asticode/go-astiperf/pkg/plugins/monitor/server"
	"github.com/asticode/go-astiperf/pkg/stats/nvidia"
	"github.com/asticode/go-astiperf/pkg/stats/psutil"
)

var l = astilog.New(astilog.Configuration{})

func main() {
	ds, err := psutil.New()
	if err != nil {
		l.Fatal(err)
	}

	w := astikit.NewWorker(astikit.WorkerOptions{Logger: l})
	w.HandleSignals(astikit.TermSignalHandler(w.Stop))

	mn, err := astiperf.NewMonitor(astiperf.MonitorOptions{
		ContextAdapters: astiperf.MonitorContextAdaptersOptions{
			Monitor: func(ctx context.Context, m *astiperf.Monitor) context.Context {
				return astilog.ContextWithFields(ctx, map[string]interface{}{
					"monitor": m.String(),
				})
			},
			Plugin: func(ctx context.Context, m *astiperf.Monitor, p astiperf.Plugin) context.Context {
				return astilog.ContextWithFields(ctx, map[string]interface{}{
					"monitor": m.String(),
					"plugin":  p.Metadata().Name,
				})
			},
			Probe: func(ctx context.Context, m *astiperf.Monitor, p *astiperf.Probe) context.Context {
				return astilog.ContextWithFields(ctx, map[string]interface{}{
					"monitor": m.String(),
					"probe":   p.String(),
				})
			},
		},
		DeltaStats: []astikit.DeltaStat{ds},
		Logger:     l,
		Metadata: astiperf.Metadata{
			Description: "Monitor description",
			Name:        "Monitor",
		},
		Plugins: []astiperf.Plugin{
			server.New(server.PluginOptions{
				Addr:        "127.0.0.1:4000",
				API:         server.PluginAPIOptions{URL: "/api"},
				DeltaPeriod: 2 * time.Second,
				Push:        server.PluginPushOptions{URL: "/push"},
			}),
		},
		Worker: w,
	})
	if err != nil {
		l.Fatal(err)
	}
	defer mn.Close()

	for i := 1; i <= 5; i++ {
		if _, err := addProbe(mn, w); err != nil {
			l.Fatal(err)
		}
	}

	if err := mn.Start(w.Context()); err != nil {
		l.Fatal(err)
	}

	go func() {
		time.Sleep(5 * time.Second)
		p, err := addProbe(mn, w)
		if err != nil {
			l.Fatal(err)
		}
		time.Sleep(5 * time.Second)
		if err = p.Start(); err != nil {
			l.Fatal(err)
		}
		time.Sleep(5 * time.Second)
		if err = p.Stop(); err != nil {
			l.Fatal(err)
		}
	}()

	w.Wait()
}

var probesCount int

func addProbe(mn *astiperf.Monitor, w *astikit.Worker) (*astiperf.Probe, error) {
	probesCount++

	o := astiperf.ProbeOptions{
		CPU: astiperf.ProbeCPUOptions{TimesFunc: psutil.CPUTimes},
		Metadata: astiperf.Metadata{
			Description: fmt.Sprintf("Probe %d description", probesCount),
			Name:        fmt.Sprintf("Probe %d", probesCount),
		},
	}

	// Odd probes average their bitrate over a moving window
	if probesCount%2 == 1 {
		o.Bitrate.WindowSize = 10
		o.Metadata.Merge(astiperf.Metadata{Tags: []string{"window"}})
	}

	// First probe also queries the gpu
	if probesCount == 1 {
		o.GPU.StatsFunc = nvidia.NewQuerier(nvidia.QuerierOptions{}).Stats
		o.Metadata.Merge(astiperf.Metadata{Tags: []string{"gpu"}})
	}

	p, err := mn.NewProbe(o)
	if err != nil {
		return nil, fmt.Errorf("main: creating probe failed: %w", err)
	}

	feedProbe(w, p, 5+5*probesCount, int64(1000*probesCount))
	return p, nil
}

func feedProbe(w *astikit.Worker, p *astiperf.Probe, unitsPerSecond int, maxUnitSize int64) {
	go func() {
		t := time.NewTicker(time.Second / time.Duration(unitsPerSecond))
		defer t.Stop()
		for {
			select {
			case <-w.Context().Done():
				return
			case <-t.C:
				p.HandleUnit(astiperf.Unit{Size: randUint64(maxUnitSize)})
			}
		}
	}()
}

func randUint64(max int64) uint64 {
	i, err := rand.Int(rand.Reader, big.NewInt(max))
	if err != nil {
		return uint64(max)
	}
	return uint64(i.Int64())
}
