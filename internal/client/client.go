// Package client implements the agent that relays raw GNSS measurements to the collector.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/and161185/gnss-relay/internal/auth"
	"github.com/and161185/gnss-relay/internal/buffer"
	"github.com/and161185/gnss-relay/internal/client/transport"
	"github.com/and161185/gnss-relay/internal/config"
	"github.com/and161185/gnss-relay/internal/crypto"
	"github.com/and161185/gnss-relay/internal/metrics"
	"github.com/and161185/gnss-relay/internal/source"
	"github.com/and161185/gnss-relay/model"
)

const (
	PathMeasurements = "/gnssdata"
	PathNavigation   = "/gnssnavdata"

	tokenTTL = time.Hour
	// jobs waiting for a free worker, per worker
	queuePerWorker = 4
)

// Client drains the measurement buffer on a timer and uploads the batches.
type Client struct {
	source     source.Source
	buf        *buffer.Buffer
	config     *config.ClientConfig
	httpClient *http.Client
	logger     *zap.SugaredLogger
	realIP     string
	tokens     *auth.TokenSource
	caps       source.Capabilities
	flushEvery time.Duration

	// RetryDelays replaces utils.DefaultDelays as the pause schedule between attempts.
	RetryDelays []time.Duration
	// Record, when set, receives every delivery as a capture line.
	Record io.Writer
	// OnResult observes every finished upload.
	OnResult func(SendResult)
}

type job struct {
	path    string
	batchID string
	records int
	payload any
}

// NewClient creates an agent reading from src into buf.
func NewClient(src source.Source, buf *buffer.Buffer, cfg *config.ClientConfig) (*Client, error) {
	hc, err := NewHTTPClient(cfg)
	if err != nil {
		return nil, err
	}
	return NewClientWithHTTP(src, buf, cfg, hc), nil
}

// NewClientWithHTTP is NewClient with a ready http.Client.
func NewClientWithHTTP(src source.Source, buf *buffer.Buffer, cfg *config.ClientConfig, hc *http.Client) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if buf.OnDrop == nil {
		buf.OnDrop = func(n int) { metrics.AddDropped(metrics.DropOverflow, n) }
	}

	c := &Client{
		source:     src,
		buf:        buf,
		config:     cfg,
		httpClient: hc,
		logger:     logger,
		realIP:     detectOutboundIP(),
		caps:       source.Capabilities{APILevel: cfg.APILevel},
		flushEvery: time.Duration(cfg.ReportInterval) * time.Second,
	}
	if cfg.AuthSecret != "" {
		c.tokens = auth.NewTokenSource(cfg.AuthSecret, cfg.DeviceID, tokenTTL)
	}
	return c
}

// NewHTTPClient builds the upload client, sealing bodies when a public key is configured.
func NewHTTPClient(cfg *config.ClientConfig) (*http.Client, error) {
	hc := &http.Client{Timeout: time.Duration(cfg.ClientTimeout) * time.Second}
	rt := http.DefaultTransport
	if cfg.CryptoKeyPath != "" {
		pub, err := crypto.LoadPublicKey(cfg.CryptoKeyPath)
		if err != nil {
			return nil, fmt.Errorf("load public key: %w", err)
		}
		rt = &transport.EncryptRoundTripper{Base: rt, PubKey: pub}
	}
	hc.Transport = rt
	return hc, nil
}

func detectOutboundIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return ""
	}
	defer conn.Close()
	if la, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return la.IP.String()
	}
	return ""
}

// Run captures and uploads until ctx is done. On shutdown the buffer is drained once more
// and queued uploads are finished before Run returns.
func (c *Client) Run(ctx context.Context) error {
	workers := c.config.RateLimit
	if workers < 1 {
		workers = 1
	}
	jobs := make(chan job, workers*queuePerWorker)

	var handler source.Handler = source.HandlerFuncs{
		Measurements: func(ev model.MeasurementEvent) { c.onMeasurements(ev, jobs) },
		Navigation:   func(msg model.NavMessage) { c.onNavigation(msg, jobs) },
	}
	var recorder *source.Recorder
	if c.Record != nil {
		recorder = source.NewRecorder(c.Record, handler)
		handler = recorder
	}

	var producer sync.WaitGroup
	producer.Add(1)
	go func() {
		defer producer.Done()
		err := c.source.Subscribe(ctx, handler)
		switch {
		case errors.Is(err, source.ErrPermissionDenied):
			c.logger.Errorw("measurement capture refused, nothing will be sent", "error", err)
		case err != nil && ctx.Err() == nil:
			c.logger.Errorw("measurement source stopped", "error", err)
		default:
			c.logger.Debugw("measurement source finished")
		}
	}()

	var senders sync.WaitGroup
	for i := 0; i < workers; i++ {
		senders.Add(1)
		go func() {
			defer senders.Done()
			for j := range jobs {
				c.report(c.send(j))
			}
		}()
	}

	c.flushLoop(ctx, jobs)

	// release producers stuck on a full blocking buffer, then take what is left
	c.buf.Close()
	producer.Wait()
	c.flush(jobs, true)
	close(jobs)
	senders.Wait()

	if recorder != nil {
		if err := recorder.Err(); err != nil {
			c.logger.Errorw("capture recording failed", "error", err)
		}
	}
	return nil
}

func (c *Client) flushLoop(ctx context.Context, jobs chan<- job) {
	if c.config.Mode == config.ModeImmediate || c.flushEvery <= 0 {
		<-ctx.Done()
		return
	}
	t := time.NewTicker(c.flushEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.flush(jobs, false)
		}
	}
}

// flush hands the current buffer contents to the workers. It does not wait for the upload.
// A periodic flush drops the batch when every worker is busy and the queue is full;
// the final flush waits for a free slot since the workers are still draining.
func (c *Client) flush(jobs chan<- job, final bool) {
	batch := c.buf.DrainAll()
	metrics.SetBufferLen(c.buf.Len())
	if len(batch) == 0 {
		return
	}
	j := job{path: PathMeasurements, batchID: uuid.NewString(), records: len(batch), payload: batch}
	if final {
		jobs <- j
		return
	}
	c.enqueue(jobs, j)
}

func (c *Client) onMeasurements(ev model.MeasurementEvent, jobs chan<- job) {
	records := source.ToRecords(ev, c.caps)

	if c.config.Mode == config.ModeImmediate {
		for _, r := range records {
			c.enqueue(jobs, job{path: PathMeasurements, batchID: uuid.NewString(), records: 1, payload: []model.Measurement{r}})
		}
		return
	}

	appended := 0
	for _, r := range records {
		if c.buf.Append(r) {
			appended++
		}
	}
	metrics.IncAppended(appended)
	metrics.SetBufferLen(c.buf.Len())
}

func (c *Client) onNavigation(msg model.NavMessage, jobs chan<- job) {
	if !c.config.SendNav {
		return
	}
	c.enqueue(jobs, job{path: PathNavigation, batchID: uuid.NewString(), records: 1, payload: msg})
}

// enqueue never blocks the caller; when every worker is busy and the queue is full the job is dropped.
func (c *Client) enqueue(jobs chan<- job, j job) {
	select {
	case jobs <- j:
	default:
		metrics.AddDropped(metrics.DropQueueFull, j.records)
		c.logger.Warnw("send queue full, dropping", "path", j.path, "records", j.records)
	}
}
