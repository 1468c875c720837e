package profile

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultFastThreshold is the throughput, in bytes per second, at or above
// which a connection counts as fast.
const DefaultFastThreshold = 64 * 1024

// SpeedResult is the outcome of a download probe.
type SpeedResult struct {
	Bytes    int64
	Elapsed  time.Duration
	Speed    string
	Status   int
	Complete bool
}

// BytesPerSecond returns the observed throughput.
func (r SpeedResult) BytesPerSecond() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Bytes) / r.Elapsed.Seconds()
}

// MeasureSpeed downloads target and classifies the connection as "fast" or
// "slow". Any failure, including ctx expiring mid-download, classifies as
// slow; the error is still returned so callers can log it.
func MeasureSpeed(ctx context.Context, client *http.Client, target string, threshold float64) (SpeedResult, error) {
	res := SpeedResult{Speed: "slow"}
	if threshold <= 0 {
		threshold = DefaultFastThreshold
	}
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return res, fmt.Errorf("profile: speed request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return res, fmt.Errorf("profile: speed fetch: %w", err)
	}
	defer resp.Body.Close()
	res.Status = resp.StatusCode
	n, err := io.Copy(io.Discard, resp.Body)
	res.Bytes = n
	res.Elapsed = time.Since(start)
	if err != nil {
		return res, fmt.Errorf("profile: speed read: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return res, fmt.Errorf("profile: speed status %d", resp.StatusCode)
	}
	res.Complete = true
	if res.BytesPerSecond() >= threshold {
		res.Speed = "fast"
	}
	return res, nil
}
