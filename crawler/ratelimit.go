package crawler

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/lukemcguire/pageprobe/logging"
)

const (
	// defaultCourtesyDelay is the pause after every non-429 response.
	defaultCourtesyDelay = time.Second

	// defaultRetryAfter applies to a 429 without a usable Retry-After.
	defaultRetryAfter = 10 * time.Second

	// maxCrawlDelay caps how far a robots.txt Crawl-delay stretches the
	// courtesy pause.
	maxCrawlDelay = 10 * time.Second
)

// SleepFunc suspends for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Pacer applies the advisory delay after each page fetch. It blocks the
// caller; there is one fetch in flight at a time.
type Pacer struct {
	courtesy time.Duration
	sleep    SleepFunc
	logger   *logrus.Logger
}

// NewPacer returns a Pacer with the given courtesy delay (1s when zero).
func NewPacer(courtesy time.Duration, logger *logrus.Logger) *Pacer {
	if courtesy <= 0 {
		courtesy = defaultCourtesyDelay
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Pacer{courtesy: courtesy, sleep: sleepContext, logger: logger}
}

// WithSleep replaces the sleep implementation, for tests.
func (p *Pacer) WithSleep(sleep SleepFunc) *Pacer {
	p.sleep = sleep
	return p
}

// Delay computes the pause for a response. A 429 honours an integer
// Retry-After (seconds) and falls back to 10s; anything else gets the
// courtesy delay, stretched to the robots.txt Crawl-delay up to 10s.
func (p *Pacer) Delay(statusCode int, header http.Header, crawlDelay time.Duration) time.Duration {
	if statusCode == http.StatusTooManyRequests {
		return retryAfter(header)
	}
	d := p.courtesy
	if crawlDelay > d {
		d = min(crawlDelay, maxCrawlDelay)
	}
	return d
}

// Pause sleeps for Delay. It returns ctx's error if interrupted.
func (p *Pacer) Pause(ctx context.Context, statusCode int, header http.Header, crawlDelay time.Duration) error {
	d := p.Delay(statusCode, header, crawlDelay)
	fields := logrus.Fields{"status": statusCode, "delay": d}
	if statusCode == http.StatusTooManyRequests {
		p.logger.WithFields(fields).Warn("server is rate limiting, waiting before continuing")
	} else {
		p.logger.WithFields(fields).Debug("courtesy delay")
	}
	return p.sleep(ctx, d)
}

func retryAfter(header http.Header) time.Duration {
	value := strings.TrimSpace(header.Get("Retry-After"))
	secs, err := strconv.Atoi(value)
	if err != nil || secs < 0 {
		return defaultRetryAfter
	}
	return time.Duration(secs) * time.Second
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

const (
	// minRateFloor is the minimum rate in requests per second.
	minRateFloor = 1.0

	// maxRateCeiling is the maximum rate in requests per second.
	// Link verification targets a single site, so this stays low.
	maxRateCeiling = 20.0

	// emaAlpha is the smoothing factor for Exponential Moving Average.
	// 0.2 means ~20% weight to new observation, ~80% to historical average.
	emaAlpha = 0.2

	// recoveryFactor is the multiplier for rate increase during recovery.
	recoveryFactor = 1.1

	// backoffFactor limits how much the rate can drop in a single step.
	backoffFactor = 0.5

	defaultTargetRTT = 500 * time.Millisecond
)

// AdaptiveLimiter paces the broken-link checks of an SEO audit, slowing
// down when the site answers slowly and recovering when it speeds up.
// RTT is tracked as an exponential moving average.
type AdaptiveLimiter struct {
	limiter   *rate.Limiter
	targetRTT time.Duration
	mu        sync.Mutex

	emaRTT      time.Duration
	currentRate float64
}

// NewAdaptiveLimiter creates an adaptive rate limiter with the given initial rate
// and target RTT.
func NewAdaptiveLimiter(initialRPS int, targetRTT time.Duration) *AdaptiveLimiter {
	clampedRPS := clampRateFloat(float64(initialRPS))
	if targetRTT <= 0 {
		targetRTT = defaultTargetRTT
	}

	return &AdaptiveLimiter{
		limiter:     rate.NewLimiter(rate.Limit(clampedRPS), 1),
		targetRTT:   targetRTT,
		currentRate: clampedRPS,
		emaRTT:      targetRTT,
	}
}

// Wait blocks until the next check may start or the context is cancelled.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// ObserveRTT records a response time and adjusts the rate.
func (a *AdaptiveLimiter) ObserveRTT(rtt time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.emaRTT = time.Duration(emaAlpha*float64(rtt) + (1-emaAlpha)*float64(a.emaRTT))

	// ratio < 1 means the server is slower than target.
	ratio := float64(a.targetRTT) / float64(a.emaRTT)

	var newRate float64
	if ratio < 1 {
		newRate = max(a.currentRate*ratio, a.currentRate*backoffFactor)
	} else {
		newRate = a.currentRate * recoveryFactor
	}
	newRate = clampRateFloat(newRate)

	if math.Abs(newRate-a.currentRate) > 0.1 {
		a.currentRate = newRate
		a.limiter.SetLimit(rate.Limit(newRate))
	}
}

// CurrentRate returns the current rate limit in requests per second.
func (a *AdaptiveLimiter) CurrentRate() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentRate
}

// clampRateFloat keeps the rate within [minRateFloor, maxRateCeiling].
func clampRateFloat(rps float64) float64 {
	if rps < minRateFloor {
		return minRateFloor
	}
	if rps > maxRateCeiling {
		return maxRateCeiling
	}
	return rps
}
