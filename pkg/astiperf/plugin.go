package astiperf

import (
	"context"

	"github.com/asticode/go-astikit"
)

type Plugin interface {
	Init(ctx context.Context, c *astikit.Closer, m *Monitor) error
	Metadata() Metadata
	Start(ctx context.Context, tc astikit.TaskCreator)
}
