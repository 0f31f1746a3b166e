package client

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/and161185/gnss-relay/internal/metrics"
	"github.com/and161185/gnss-relay/internal/utils"
)

const (
	contentTypeJSON = "application/json; charset=utf-8"
	HeaderBatchID   = "X-Batch-ID"
)

// SendResult is the outcome of one upload.
type SendResult struct {
	BatchID    string
	Path       string
	Records    int
	StatusCode int // last HTTP status, 0 when no response was received
	Attempts   int
	Duration   time.Duration
	Err        error
}

func (r SendResult) OK() bool { return r.Err == nil }

// delays returns the pause schedule for config.Retries extra attempts.
// A schedule shorter than Retries repeats its last delay.
func (c *Client) delays() []time.Duration {
	n := c.config.Retries
	if n <= 0 {
		return nil
	}
	base := c.RetryDelays
	if len(base) == 0 {
		base = utils.DefaultDelays
	}
	out := make([]time.Duration, n)
	for i := range out {
		out[i] = base[min(i, len(base)-1)]
	}
	return out
}

func (c *Client) jobTimeout() time.Duration {
	per := time.Duration(c.config.ClientTimeout) * time.Second
	if per <= 0 {
		per = 10 * time.Second
	}
	total := per
	for _, d := range c.delays() {
		total += d + per
	}
	return total
}

// send uploads one job with retries. Uploads outlive the Run context so that
// queued batches still go out during shutdown; jobTimeout bounds them.
func (c *Client) send(j job) SendResult {
	ctx, cancel := context.WithTimeout(context.Background(), c.jobTimeout())
	defer cancel()

	start := time.Now()
	res := SendResult{BatchID: j.batchID, Path: j.path, Records: j.records}

	body, err := c.encode(j.payload)
	if err != nil {
		res.Err = err
		return res
	}

	res.Attempts, res.Err = utils.WithRetry(ctx, c.delays(), func() error {
		code, err := c.post(ctx, j, body)
		res.StatusCode = code
		return err
	})
	res.Duration = time.Since(start)
	return res
}

func (c *Client) encode(payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	if !c.config.Gzip {
		return raw, nil
	}

	var body bytes.Buffer
	zw := gzip.NewWriter(&body)
	if _, err = zw.Write(raw); err != nil {
		return nil, fmt.Errorf("gzip write: %w", err)
	}
	if err = zw.Close(); err != nil {
		return nil, fmt.Errorf("gzip close: %w", err)
	}
	return body.Bytes(), nil
}

func (c *Client) post(ctx context.Context, j job, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.ServerAddr+j.path, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", contentTypeJSON)
	req.Header.Set(HeaderBatchID, j.batchID)
	if c.config.Gzip {
		req.Header.Set("Content-Encoding", "gzip")
	}
	if c.realIP != "" {
		req.Header.Set("X-Real-IP", c.realIP)
	}
	if c.config.Key != "" {
		req.Header.Set("HashSHA256", utils.CalculateHash(body, c.config.Key))
	}
	if c.tokens != nil {
		token, err := c.tokens.Token()
		if err != nil {
			return 0, fmt.Errorf("token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, &utils.StatusError{Code: resp.StatusCode}
	}
	return resp.StatusCode, nil
}

// report logs and counts a finished upload. A failed batch is gone for good.
func (c *Client) report(res SendResult) {
	result := metrics.ResultSuccess
	if res.OK() {
		c.logger.Infow("upload done",
			"batchId", res.BatchID, "path", res.Path, "records", res.Records,
			"status", res.StatusCode, "attempts", res.Attempts, "duration", res.Duration)
	} else {
		result = metrics.ResultDropped
		c.logger.Errorw("upload failed, batch dropped",
			"batchId", res.BatchID, "path", res.Path, "records", res.Records,
			"status", res.StatusCode, "attempts", res.Attempts, "error", res.Err)
	}
	metrics.ObserveUpload(res.Path, result, res.Records, res.Attempts, res.Duration)
	if c.OnResult != nil {
		c.OnResult(res)
	}
}
