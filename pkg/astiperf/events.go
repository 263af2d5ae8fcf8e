package astiperf

import "github.com/asticode/go-astikit"

const (
	// Emitted on the monitor with no payload
	EventNameMonitorClosed   astikit.EventName = "astiperf.monitor.closed"
	EventNameMonitorDone     astikit.EventName = "astiperf.monitor.done"
	EventNameMonitorRunning  astikit.EventName = "astiperf.monitor.running"
	EventNameMonitorStarting astikit.EventName = "astiperf.monitor.starting"
	EventNameMonitorStopping astikit.EventName = "astiperf.monitor.stopping"
	// Emitted on the monitor with a *Probe payload
	EventNameProbeCreated astikit.EventName = "astiperf.probe.created"
	// Emitted on the probe with no payload
	EventNameProbeClosed   astikit.EventName = "astiperf.probe.closed"
	EventNameProbeDone     astikit.EventName = "astiperf.probe.done"
	EventNameProbeRunning  astikit.EventName = "astiperf.probe.running"
	EventNameProbeStarting astikit.EventName = "astiperf.probe.starting"
	EventNameProbeStopping astikit.EventName = "astiperf.probe.stopping"
	// Emitted on the probe with a Report payload
	EventNameProbeReport astikit.EventName = "astiperf.probe.report"
)

const (
	eventNameTaskClosed   astikit.EventName = "astiperf.task.closed"
	eventNameTaskDone     astikit.EventName = "astiperf.task.done"
	eventNameTaskRunning  astikit.EventName = "astiperf.task.running"
	eventNameTaskStarting astikit.EventName = "astiperf.task.starting"
	eventNameTaskStopping astikit.EventName = "astiperf.task.stopping"
)
