package mocks

import (
	"context"
	"errors"

	"github.com/asticode/go-astikit"
	"github.com/asticode/go-astiperf/pkg/astiperf"
)

type MockedPlugin struct {
	Context     context.Context
	Initialized bool
	Started     bool
}

var _ astiperf.Plugin = (*MockedPlugin)(nil)

func NewMockedPlugin() *MockedPlugin {
	return &MockedPlugin{}
}

func (p *MockedPlugin) Init(ctx context.Context, c *astikit.Closer, m *astiperf.Monitor) error {
	p.Context = ctx
	if p.Initialized {
		return errors.New("already initialized")
	}
	p.Initialized = true
	return nil
}

func (p *MockedPlugin) Metadata() astiperf.Metadata {
	return astiperf.Metadata{}
}

func (p *MockedPlugin) Start(ctx context.Context, tc astikit.TaskCreator) {
	p.Started = true
}
