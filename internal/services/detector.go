package services

import (
	"context"
	"time"

	"github.com/anstrom/portscope/internal/logging"
)

// Detector combines the service table and the banner grabber. It satisfies
// probe.ServiceDetector.
type Detector struct {
	Table   *Table
	Banners *BannerGrabber
	logger  *logging.Logger
}

// NewDetector creates a detector. A nil table selects DefaultTable and a nil
// grabber uses default timeouts.
func NewDetector(table *Table, banners *BannerGrabber) *Detector {
	if table == nil {
		table = DefaultTable()
	}
	if banners == nil {
		banners = &BannerGrabber{}
	}
	return &Detector{
		Table:   table,
		Banners: banners,
		logger:  logging.Default().WithComponent("services"),
	}
}

// Detect returns the TCP service name and banner for an open port. Each
// lookup runs inside its own recover so one failing does not lose the other.
func (d *Detector) Detect(ctx context.Context, target string, port int, timeout time.Duration) (service, banner string) {
	service = d.guard("service lookup", port, func() string {
		return d.Table.Lookup(port, "tcp")
	})
	banner = d.guard("banner grab", port, func() string {
		return d.Banners.Grab(ctx, target, port, timeout)
	})
	return service, banner
}

func (d *Detector) guard(op string, port int, fn func() string) (out string) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Warn("Service detection step panicked",
				"operation", op,
				"port", port,
				"panic", r)
			out = ""
		}
	}()
	return fn()
}
