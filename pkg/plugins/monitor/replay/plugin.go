package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/asticode/go-astikit"
	"github.com/asticode/go-astiperf/pkg/astiperf"
	"github.com/asticode/go-astiperf/pkg/plugins/monitor/monitorer"
)

var _ astiperf.Plugin = (*Plugin)(nil)

type Plugin struct {
	ctx context.Context
	m   *astiperf.Monitor
	mr  *monitorer.Monitorer
	o   PluginOptions
	w   io.Writer
}

type PluginOptions struct {
	DeltaPeriod time.Duration
	Path        string
}

func New(o PluginOptions) *Plugin {
	return &Plugin{o: o}
}

type initPayload struct {
	Monitor initPayloadMonitor `json:"monitor"`
}

type initPayloadMonitor struct {
	Description string `json:"description,omitempty"`
	ID          uint64 `json:"id"`
	Name        string `json:"name,omitempty"`
}

func (p *Plugin) Metadata() astiperf.Metadata {
	return astiperf.Metadata{Name: "monitor.replay"}
}

func (p *Plugin) Init(ctx context.Context, c *astikit.Closer, m *astiperf.Monitor) error {
	// Create file
	file, err := os.Create(p.o.Path)
	if err != nil {
		return fmt.Errorf("replay: creating %s failed: %w", p.o.Path, err)
	}

	// Make sure to close file
	c.AddWithError(file.Close)

	// Create monitorer
	p.mr = monitorer.New(monitorer.MonitorerOptions{
		Monitor: m,
		OnDelta: p.onDelta,
		Period:  p.o.DeltaPeriod,
	})

	// Make sure to close monitorer
	c.Add(p.mr.Close)

	// Update plugin
	p.ctx = ctx
	p.m = m
	p.w = file

	// Write init
	p.write(initPayload{Monitor: initPayloadMonitor{
		Description: p.m.Metadata().Description,
		ID:          p.m.ID(),
		Name:        p.m.Metadata().Name,
	}})
	return nil
}

func (p *Plugin) Start(ctx context.Context, tc astikit.TaskCreator) {
	// Start monitorer
	tc().Do(func() { p.mr.Start(ctx) })
}

func (p *Plugin) onDelta(d monitorer.Delta) {
	p.write(d)
}

func (p *Plugin) write(i interface{}) {
	// Marshal
	b, err := json.Marshal(i)
	if err != nil {
		p.m.Logger().WarnC(p.ctx, fmt.Errorf("replay: marshaling failed: %w", err))
		return
	}

	// Append new line
	b = append(b, []byte("\n")...)

	// Write
	if _, err = p.w.Write(b); err != nil {
		p.m.Logger().WarnC(p.ctx, fmt.Errorf("replay: writing in file failed: %w", err))
		return
	}
}
