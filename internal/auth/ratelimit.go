package auth

import (
	"sync"

	"golang.org/x/time/rate"

	"github.com/dosecore/backend/internal/errs"
)

// DeviceLimiter hands out an independent token-bucket limiter per device
// id, the same rate.NewLimiter construction the teacher's batch package
// uses for its RPM limiter, scoped per device instead of per process so
// one noisy device cannot starve another's event throughput.
type DeviceLimiter struct {
	rpm   int
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewDeviceLimiter constructs a limiter keyed by device id, allowing rpm
// requests per minute per device with the given burst size.
func NewDeviceLimiter(rpm, burst int) *DeviceLimiter {
	return &DeviceLimiter{rpm: rpm, burst: burst, limiters: make(map[string]*rate.Limiter)}
}

func (d *DeviceLimiter) limiterFor(deviceID string) *rate.Limiter {
	d.mu.Lock()
	defer d.mu.Unlock()

	l, ok := d.limiters[deviceID]
	if !ok {
		rps := float64(d.rpm) / 60.0
		l = rate.NewLimiter(rate.Limit(rps), d.burst)
		d.limiters[deviceID] = l
	}
	return l
}

// Allow reports whether deviceID may proceed. A throttled device gets
// errs.InvalidInput, since the spec defines no dedicated rate-limit error
// kind.
func (d *DeviceLimiter) Allow(deviceID string) error {
	if !d.limiterFor(deviceID).Allow() {
		return errs.New(errs.InvalidInput, "device event rate limit exceeded")
	}
	return nil
}
