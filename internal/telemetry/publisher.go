package telemetry

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/mcalderan/irrinode/internal/model"
	"github.com/mcalderan/irrinode/pkg/dedup"
)

// successMarker is the literal the logging backend prepends to the body of an
// accepted report. Anything else is a failure even on HTTP 200.
const successMarker = "Success"

const timestampLayout = "2006-01-02 15:04:05"

type Status string

const (
	StatusDelivered Status = "delivered"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

const (
	ReasonNoLink    = "no_link"
	ReasonNoTime    = "time_unsynced"
	ReasonDuplicate = "duplicate"
)

// DeliveryResult classifies one publish. Failed events are dropped, never
// retried; Skipped events never reached the transport at all.
type DeliveryResult struct {
	Status Status
	Reason string
}

func delivered() DeliveryResult { return DeliveryResult{Status: StatusDelivered} }

func skipped(reason string) DeliveryResult {
	return DeliveryResult{Status: StatusSkipped, Reason: reason}
}

func failed(format string, a ...any) DeliveryResult {
	return DeliveryResult{Status: StatusFailed, Reason: fmt.Sprintf(format, a...)}
}

// LinkProber reports whether the uplink is currently usable.
type LinkProber interface {
	Connected() bool
}

// Clock converts a local event timestamp to synced wall-clock time, or
// reports that no synced time is available.
type Clock interface {
	At(local time.Time) (time.Time, bool)
}

type Config struct {
	BaseURL string
	Timeout time.Duration // one HTTP round trip

	BreakerFailures int
	BreakerOpenFor  time.Duration

	DedupTTL time.Duration
}

// Publisher serializes telemetry events into HTTP GET requests against the
// logging endpoint, following at most one redirect. Fire and forget: the
// caller gets a classification, never a retry.
type Publisher struct {
	cfg     Config
	link    LinkProber
	clock   Clock
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	guard   *dedup.Guard
}

func NewPublisher(cfg Config, link LinkProber, clock Clock) *Publisher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.BreakerFailures < 1 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerOpenFor <= 0 {
		cfg.BreakerOpenFor = time.Minute
	}
	if cfg.DedupTTL <= 0 {
		cfg.DedupTTL = time.Minute
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "telemetry",
		Timeout: cfg.BreakerOpenFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= uint32(cfg.BreakerFailures)
		},
	})
	return &Publisher{
		cfg:   cfg,
		link:  link,
		clock: clock,
		client: &http.Client{
			Timeout: cfg.Timeout,
			// redirects are followed manually, exactly once
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		breaker: cb,
		guard:   dedup.New(cfg.DedupTTL, 512),
	}
}

// Publish delivers one event. Preconditions (link up, synced time) are
// checked before any transport call; a precondition miss is Skipped, not
// Failed.
func (p *Publisher) Publish(ctx context.Context, ev model.TelemetryEvent) DeliveryResult {
	if !p.link.Connected() {
		return skipped(ReasonNoLink)
	}
	at, ok := p.clock.At(ev.At)
	if !ok {
		return skipped(ReasonNoTime)
	}

	reqURL, err := p.buildURL(ev, at)
	if err != nil {
		return failed("build request: %v", err)
	}
	if !p.guard.FirstSeen(reqURL) {
		return skipped(ReasonDuplicate)
	}

	res, err := p.breaker.Execute(func() (any, error) {
		r := p.send(ctx, reqURL)
		if r.Status != StatusDelivered {
			return r, fmt.Errorf("%s", r.Reason)
		}
		return r, nil
	})
	if err != nil {
		if r, ok := res.(DeliveryResult); ok {
			log.Printf("telemetry: %s dropped: %s", ev.Type, r.Reason)
			return r
		}
		// breaker rejected the call before it ran
		log.Printf("telemetry: %s dropped: %v", ev.Type, err)
		return failed("%v", err)
	}
	return res.(DeliveryResult)
}

func (p *Publisher) buildURL(ev model.TelemetryEvent, at time.Time) (string, error) {
	u, err := url.Parse(p.cfg.BaseURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("eventType", string(ev.Type))
	q.Set("timestamp", at.UTC().Format(timestampLayout))
	switch ev.Type {
	case model.EventMoisture:
		q.Set("moisture", strconv.Itoa(ev.Percent))
	case model.EventPumpOff:
		q.Set("duration", fmt.Sprintf("%.1f", ev.Duration.Seconds()))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// send performs the round trip plus at most one redirect hop and classifies
// the final response.
func (p *Publisher) send(ctx context.Context, reqURL string) DeliveryResult {
	resp, err := p.get(ctx, reqURL)
	if err != nil {
		return failed("request: %v", err)
	}

	if isRedirect(resp.StatusCode) {
		loc, err := resp.Location()
		drain(resp)
		if err != nil {
			return failed("redirect without location")
		}
		resp, err = p.get(ctx, loc.String())
		if err != nil {
			return failed("redirected request: %v", err)
		}
		if isRedirect(resp.StatusCode) {
			drain(resp)
			return failed("second redirect to %s refused", resp.Header.Get("Location"))
		}
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK {
		return failed("status %d", resp.StatusCode)
	}
	head := make([]byte, len(successMarker))
	n, _ := io.ReadFull(resp.Body, head)
	if !strings.HasPrefix(string(head[:n]), successMarker) {
		return failed("unexpected body %q", string(head[:n]))
	}
	return delivered()
}

func (p *Publisher) get(ctx context.Context, reqURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	return p.client.Do(req)
}

func isRedirect(code int) bool { return code >= 300 && code < 400 }

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
}
