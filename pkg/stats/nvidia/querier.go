package nvidia

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/asticode/go-astiperf/pkg/astiperf"
)

const (
	defaultCommand = "nvidia-smi"
	queryArg       = "--query-gpu=utilization.encoder,encoder.stats.sessionCount,encoder.stats.averageFps,encoder.stats.averageLatency,utilization.gpu,memory.used,memory.free"
	formatArg      = "--format=csv,noheader"
)

var commandOutput = func(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Querier queries gpu encoder stats through nvidia-smi.
type Querier struct {
	args []string
	cmd  string
}

type QuerierOptions struct {
	// Command overrides the nvidia-smi binary path
	Command string
}

func NewQuerier(o QuerierOptions) *Querier {
	// Create querier
	q := &Querier{
		args: []string{formatArg, queryArg},
		cmd:  defaultCommand,
	}

	// Update command
	if o.Command != "" {
		q.cmd = o.Command
	}
	return q
}

// Stats queries the gpu, suitable as a probe's gpu stats source.
func (q *Querier) Stats(ctx context.Context) (s astiperf.GPUStats, err error) {
	// Run command
	b, err := commandOutput(ctx, q.cmd, q.args...)
	if err != nil {
		err = fmt.Errorf("nvidia: running %s failed: %w", q.cmd, err)
		return
	}

	// Split fields
	fs := strings.Split(strings.TrimSpace(string(b)), ",")
	if len(fs) != 7 {
		err = fmt.Errorf("nvidia: invalid output %q", b)
		return
	}

	// Parse fields
	// Values come with units such as "3 %" or "600 MiB", only the leading
	// integer matters
	s = astiperf.GPUStats{
		EncoderUtilization: uint32(leadingUint(fs[0])),
		SessionCount:       uint32(leadingUint(fs[1])),
		AverageFPS:         uint32(leadingUint(fs[2])),
		AverageLatency:     leadingUint(fs[3]),
		GPUUtilization:     uint32(leadingUint(fs[4])),
		MemoryUsed:         uint32(leadingUint(fs[5])),
		MemoryFree:         uint32(leadingUint(fs[6])),
	}
	return
}

func leadingUint(s string) uint64 {
	s = strings.TrimSpace(s)
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0
	}
	n, _ := strconv.ParseUint(s[:i], 10, 64)
	return n
}
