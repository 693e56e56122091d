package scanning

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/anstrom/portscope/internal/errors"
	"github.com/anstrom/portscope/internal/logging"
	"github.com/anstrom/portscope/internal/metrics"
	"github.com/anstrom/portscope/internal/ports"
	"github.com/anstrom/portscope/internal/probe"
	"github.com/anstrom/portscope/internal/resolver"
	"github.com/anstrom/portscope/internal/services"
	"github.com/anstrom/portscope/internal/workers"
)

// Request defaults.
const (
	DefaultTimeout      = time.Second
	DefaultThreads      = 50
	DefaultVerboseLevel = "Normal"
	DefaultPollInterval = 100 * time.Millisecond
)

const (
	cleanupTimeout = 5 * time.Second
	// shutdownGrace is added to the probe timeout when waiting for
	// in-flight probes, to cover the banner read on open ports.
	shutdownGrace = services.DefaultBannerTimeout + 5*time.Second
)

// Request describes a scan as submitted by a client.
type Request struct {
	ScanID         string
	Target         string
	PortRange      string
	Protocol       string
	Timeout        time.Duration
	Threads        int
	ScanType       ports.ScanType
	AggressiveMode bool
	VerboseLevel   string
}

// withDefaults fills in zero-valued fields.
func (r Request) withDefaults() Request {
	if r.ScanID == "" {
		r.ScanID = uuid.NewString()
	}
	if r.Protocol == "" {
		r.Protocol = probe.ProtocolTCP
	}
	r.Protocol = probe.Normalize(r.Protocol)
	if r.Timeout <= 0 {
		r.Timeout = DefaultTimeout
	}
	if r.Threads <= 0 {
		r.Threads = DefaultThreads
	}
	if r.ScanType == "" {
		r.ScanType = ports.ScanQuick
	}
	if r.VerboseLevel == "" {
		r.VerboseLevel = DefaultVerboseLevel
	}
	return r
}

// Plan is an expanded scan ready for dispatch.
type Plan struct {
	ScanID      string
	Target      string
	Ports       []int
	Protocol    string
	Timeout     time.Duration
	Concurrency int
	// ScanType labels metrics only.
	ScanType string
	// Logs seeds the scan log, typically with scan-level entries.
	Logs []probe.LogEntry
}

// Run is the unsorted product of a dispatched scan.
type Run struct {
	ScanID     string
	Address    string
	Outcomes   []probe.Outcome
	Logs       []probe.LogEntry
	Dispatched int
	Cancelled  bool
	Duration   time.Duration
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithResolver sets the target resolver.
func WithResolver(r resolver.Resolver) Option {
	return func(o *Orchestrator) { o.resolver = r }
}

// WithDetector sets the service detector used for open TCP ports.
func WithDetector(d probe.ServiceDetector) Option {
	return func(o *Orchestrator) { o.detector = d }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithProberFactory overrides how a prober is chosen for a protocol.
func WithProberFactory(f func(protocol string) probe.Prober) Option {
	return func(o *Orchestrator) { o.probers = f }
}

// WithPollInterval sets how often the watch loop checks the registry while
// no probe completes.
func WithPollInterval(d time.Duration) Option {
	return func(o *Orchestrator) { o.pollInterval = d }
}

// WithUDPWait caps the reply wait of UDP probes.
func WithUDPWait(d time.Duration) Option {
	return func(o *Orchestrator) { o.udpWait = d }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// Orchestrator runs scans: it resolves the target, fans probes out over a
// worker pool and watches the registry for cancellation.
type Orchestrator struct {
	registry     Registry
	resolver     resolver.Resolver
	detector     probe.ServiceDetector
	recorder     metrics.Recorder
	probers      func(protocol string) probe.Prober
	pollInterval time.Duration
	udpWait      time.Duration
	logger       *logging.Logger
}

// NewOrchestrator creates an orchestrator that tracks scans in registry.
func NewOrchestrator(registry Registry, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry:     registry,
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.registry == nil {
		o.registry = NewMemoryRegistry()
	}
	if o.resolver == nil {
		o.resolver = &resolver.SystemResolver{}
	}
	if o.detector == nil {
		o.detector = services.NewDetector(nil, nil)
	}
	if o.recorder == nil {
		o.recorder = metrics.Nop{}
	}
	if o.pollInterval <= 0 {
		o.pollInterval = DefaultPollInterval
	}
	if o.logger == nil {
		o.logger = logging.Default().WithComponent("scanning")
	}
	return o
}

// Registry returns the registry scans are tracked in.
func (o *Orchestrator) Registry() Registry {
	return o.registry
}

// Cancel requests cancellation of scanID. Unknown ids are ignored.
func (o *Orchestrator) Cancel(ctx context.Context, scanID string) error {
	return o.registry.Cancel(ctx, scanID)
}

// Active lists the ids of scans currently running.
func (o *Orchestrator) Active(ctx context.Context) ([]string, error) {
	return o.registry.Active(ctx)
}

// Scan applies the scan-type preset, expands the port range and runs the
// scan. It fails before dispatch on an invalid port range, an unresolvable
// target or a scan id that is already running.
func (o *Orchestrator) Scan(ctx context.Context, req Request) (*Report, error) {
	req = req.withDefaults()

	logs := []probe.LogEntry{
		probe.NewLog(probe.LevelInfo, probe.ScanLevelPort, fmt.Sprintf("Scan type: %s", req.ScanType)),
		probe.NewLog(probe.LevelInfo, probe.ScanLevelPort, fmt.Sprintf("Aggressive mode: %s", onOff(req.AggressiveMode))),
		probe.NewLog(probe.LevelInfo, probe.ScanLevelPort, fmt.Sprintf("Verbose level: %s", req.VerboseLevel)),
	}
	if req.ScanType == ports.ScanStealth {
		logs = append(logs, probe.NewLog(probe.LevelWarn, probe.ScanLevelPort,
			"Stealth scan requested, but only TCP connect scan is supported in this backend."))
	}

	expansion, err := ports.Expand(req.ScanType.Apply(req.PortRange))
	if err != nil {
		return nil, err
	}
	for _, token := range expansion.Skipped {
		logs = append(logs, probe.NewLog(probe.LevelWarn, probe.ScanLevelPort,
			fmt.Sprintf("Ignoring invalid port token %q.", token)))
	}

	run, err := o.Orchestrate(ctx, Plan{
		ScanID:      req.ScanID,
		Target:      req.Target,
		Ports:       expansion.Ports,
		Protocol:    req.Protocol,
		Timeout:     req.Timeout,
		Concurrency: req.Threads,
		ScanType:    req.ScanType.String(),
		Logs:        logs,
	})
	if err != nil {
		return nil, err
	}
	return Aggregate(req, run), nil
}

// Orchestrate dispatches one probe per port in plan and waits until every
// probe has finished or the scan is cancelled. Cancellation comes from the
// registry or from ctx being done. Probes already running are allowed to
// finish and their outcomes are kept; probes not yet started are skipped and
// produce nothing.
func (o *Orchestrator) Orchestrate(ctx context.Context, plan Plan) (*Run, error) {
	if plan.ScanID == "" {
		plan.ScanID = uuid.NewString()
	}
	if plan.Timeout <= 0 {
		plan.Timeout = DefaultTimeout
	}
	if plan.Concurrency <= 0 {
		plan.Concurrency = DefaultThreads
	}
	logger := o.logger.WithScanID(plan.ScanID)

	address, err := o.resolver.Resolve(ctx, plan.Target)
	if err != nil {
		logger.Warn("Target resolution failed", "target", plan.Target, "error", err)
		return nil, errors.ErrHostUnresolved(plan.Target, err)
	}

	if err := o.registry.Register(ctx, plan.ScanID); err != nil {
		return nil, err
	}
	defer o.cleanup(ctx, plan.ScanID, logger)

	logger.InfoScan("Scan started", plan.Target,
		"address", address,
		"ports", len(plan.Ports),
		"protocol", plan.Protocol,
		"threads", plan.Concurrency)

	o.recorder.ScanStarted(plan.ScanType)
	timer := metrics.NewTimer()

	c := newCollector(plan.Logs)
	cancelled, dispatched := o.dispatch(ctx, plan, address, c, logger)

	status := metrics.StatusCompleted
	if cancelled {
		status = metrics.StatusCancelled
	}
	elapsed := timer.ObserveScan(o.recorder, plan.ScanType, status)

	outcomes, logs := c.snapshot()
	logger.InfoScan("Scan finished", plan.Target,
		"status", status,
		"outcomes", len(outcomes),
		"dispatched", dispatched,
		"duration", elapsed)

	return &Run{
		ScanID:     plan.ScanID,
		Address:    address,
		Outcomes:   outcomes,
		Logs:       logs,
		Dispatched: dispatched,
		Cancelled:  cancelled,
		Duration:   elapsed,
	}, nil
}

func (o *Orchestrator) dispatch(ctx context.Context, plan Plan, address string, c *collector,
	logger *logging.Logger) (cancelled bool, dispatched int) {
	total := len(plan.Ports)
	if total == 0 {
		return false, 0
	}

	pool := workers.New(workers.Config{
		Size:            min(plan.Concurrency, total),
		QueueSize:       total,
		ShutdownTimeout: plan.Timeout + shutdownGrace,
	})
	pool.Start()

	prober := o.proberFor(plan.Protocol)
	var stopped atomic.Bool

	for _, port := range plan.Ports {
		job := workers.NewFuncJob(strconv.Itoa(port), "probe", func(jobCtx context.Context) error {
			if stopped.Load() || o.registry.Cancelled(jobCtx, plan.ScanID) {
				return nil
			}
			res := prober.Probe(jobCtx, address, port, plan.Timeout)
			c.add(res)
			o.recorder.PortProbed(res.Outcome.Protocol, string(res.Outcome.Status), latencyOf(res.Outcome))
			return nil
		})
		if err := pool.Submit(job); err != nil {
			logger.Error("Failed to dispatch probe", "port", port, "error", err)
			break
		}
		dispatched++
	}

	results := pool.Results()
	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	for remaining := dispatched; remaining > 0; {
		select {
		case <-results:
			remaining--
		case <-ticker.C:
		case <-ctx.Done():
		}
		if o.cancelRequested(ctx, plan.ScanID) {
			cancelled = true
			break
		}
	}

	if cancelled {
		stopped.Store(true)
		c.log(probe.NewLog(probe.LevelWarn, probe.ScanLevelPort, "Scan cancelled by user."))
		logger.Info("Scan cancelled, waiting for in-flight probes")
	}

	go func() {
		for range results {
		}
	}()
	if err := pool.Shutdown(); err != nil {
		logger.Warn("In-flight probes did not finish in time", "error", err)
	}
	return cancelled, dispatched
}

func (o *Orchestrator) cancelRequested(ctx context.Context, scanID string) bool {
	if ctx.Err() != nil {
		return true
	}
	return o.registry.Cancelled(ctx, scanID)
}

// cleanup removes the registry entry even when ctx is already done.
func (o *Orchestrator) cleanup(ctx context.Context, scanID string, logger *logging.Logger) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	if err := o.registry.Remove(cleanupCtx, scanID); err != nil {
		logger.Warn("Failed to remove scan from registry", "error", err)
	}
}

func (o *Orchestrator) proberFor(protocol string) probe.Prober {
	if o.probers != nil {
		return o.probers(protocol)
	}
	p := probe.ForProtocol(protocol, o.detector)
	if udp, ok := p.(*probe.UDPProber); ok && o.udpWait > 0 {
		udp.MaxWait = o.udpWait
	}
	return p
}

// collector accumulates probe results from concurrent workers. An outcome
// and its log entry are always appended under the same lock.
type collector struct {
	mu       sync.Mutex
	outcomes []probe.Outcome
	logs     []probe.LogEntry
}

func newCollector(seed []probe.LogEntry) *collector {
	return &collector{logs: append([]probe.LogEntry(nil), seed...)}
}

func (c *collector) add(res probe.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.outcomes = append(c.outcomes, res.Outcome)
	c.logs = append(c.logs, res.Log)
}

func (c *collector) log(entry probe.LogEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.logs = append(c.logs, entry)
}

func (c *collector) snapshot() ([]probe.Outcome, []probe.LogEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	outcomes := make([]probe.Outcome, len(c.outcomes))
	copy(outcomes, c.outcomes)
	logs := make([]probe.LogEntry, len(c.logs))
	copy(logs, c.logs)
	return outcomes, logs
}

func latencyOf(o probe.Outcome) time.Duration {
	if o.Latency == nil {
		return 0
	}
	return time.Duration(*o.Latency * float64(time.Millisecond))
}

func onOff(b bool) string {
	if b {
		return "ON"
	}
	return "OFF"
}
