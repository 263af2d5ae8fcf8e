package astiperf

import (
	"fmt"

	"github.com/asticode/go-astikit"
)

// Report is the set of figures a probe delivers to listeners once per second
// of stream time.
type Report struct {
	At      astikit.Timestamp `json:"at"`
	BPS     float64           `json:"bps"`
	CPULoad *uint32           `json:"cpu_load,omitempty"`
	FPS     float64           `json:"fps"`
	GPU     *GPUStats         `json:"gpu,omitempty"`
	MeanBPS float64           `json:"mean_bps"`
	MeanFPS float64           `json:"mean_fps"`
}

func (r Report) String() string {
	s := fmt.Sprintf("bps: %.3f; mean_bps: %.3f; fps: %.3f; mean_fps: %.3f", r.BPS, r.MeanBPS, r.FPS, r.MeanFPS)
	if r.CPULoad != nil {
		s += fmt.Sprintf("; cpu: %d", *r.CPULoad)
	}
	return s
}
