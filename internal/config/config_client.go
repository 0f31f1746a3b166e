package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"runtime"

	"go.uber.org/zap"
)

// Agent modes.
const (
	ModeBatch     = "batch"     // flush the buffer on a timer
	ModeImmediate = "immediate" // send every record as soon as it is delivered
)

// Measurement sources.
const (
	SourceSim    = "sim"
	SourceReplay = "replay"
)

// ClientConfig holds the configuration settings for the agent.
type ClientConfig struct {
	ServerAddr     string // Collector address
	ReportInterval int    // Interval between buffer flushes (in seconds)
	PollInterval   int    // Simulator delivery interval (in seconds)
	ClientTimeout  int    // HTTP client timeout (in seconds)
	Key            string // Key for hash generation
	RateLimit      int    // Number of concurrent send workers
	CryptoKeyPath  string // Path to public key
	Mode           string // batch or immediate
	Source         string // sim or replay
	ReplayFile     string // Capture to play when Source is replay
	RecordFile     string // Capture file to write deliveries to
	APILevel       int    // Platform level used for the codeType capability check
	BufferCapacity int    // 0 keeps the buffer unbounded
	OverflowPolicy string // drop-oldest, drop-newest or block
	WarnAt         int    // Growth warning step for an unbounded buffer
	Retries        int    // Extra attempts per batch, 0 sends once
	Gzip           bool   // Compress request bodies
	SendNav        bool   // Forward navigation messages to /gnssnavdata
	AuthSecret     string // HS256 secret for bearer tokens
	DeviceID       string // Subject of issued tokens
	MetricsAddr    string // Listen address for /metrics, empty disables
	LogFile        string
	Logger         *zap.SugaredLogger
}

func defaultClientConfig() *ClientConfig {
	host, _ := os.Hostname()
	return &ClientConfig{
		ServerAddr:     "http://localhost:2121",
		ReportInterval: 5,
		PollInterval:   1,
		ClientTimeout:  10,
		RateLimit:      runtime.NumCPU(),
		Mode:           ModeBatch,
		Source:         SourceSim,
		APILevel:       29,
		BufferCapacity: 10000,
		OverflowPolicy: "drop-oldest",
		WarnAt:         10000,
		Retries:        0,
		DeviceID:       host,
	}
}

// NewClientConfig creates and returns a new ClientConfig by parsing flags and environment variables.
func NewClientConfig() (*ClientConfig, error) {
	return ParseClientConfig(flag.CommandLine, os.Args[1:])
}

// ParseClientConfig applies, in order: defaults, config file, flags, environment.
func ParseClientConfig(fs *flag.FlagSet, args []string) (*ClientConfig, error) {
	cfg := defaultClientConfig()

	var fAddr, fKey, fCrypto, fConf, fMode, fSource, fReplay, fRecord, fPolicy, fSecret, fDevice, fMetrics, fLog strFlag
	var fRep, fPoll, fTO, fRate, fAPI, fCap, fWarn, fRetries intFlag
	var fGzip, fNav boolFlag
	fs.Var(&fAddr, "a", "collector address (http(s)://host:port)")
	fs.Var(&fRep, "r", "report interval (seconds)")
	fs.Var(&fPoll, "p", "simulator interval (seconds)")
	fs.Var(&fTO, "t", "client timeout (seconds)")
	fs.Var(&fKey, "k", "Hash key string")
	fs.Var(&fRate, "l", "rate limit (send workers)")
	fs.Var(&fCrypto, "crypto-key", "Path to public key")
	fs.Var(&fConf, "c", "Path to JSON or YAML config file")
	fs.Var(&fConf, "config", "Path to JSON or YAML config file (alias)")
	fs.Var(&fMode, "mode", "batch or immediate")
	fs.Var(&fSource, "source", "sim or replay")
	fs.Var(&fReplay, "replay", "capture file to replay")
	fs.Var(&fRecord, "record", "capture file to record deliveries to")
	fs.Var(&fAPI, "api-level", "platform API level")
	fs.Var(&fCap, "buffer-cap", "buffer capacity, 0 for unbounded")
	fs.Var(&fPolicy, "overflow", "overflow policy: drop-oldest, drop-newest, block")
	fs.Var(&fWarn, "warn-at", "growth warning step for an unbounded buffer")
	fs.Var(&fRetries, "retries", "retries per batch")
	fs.Var(&fGzip, "gzip", "gzip request bodies")
	fs.Var(&fNav, "send-nav", "forward navigation messages")
	fs.Var(&fSecret, "auth-secret", "JWT signing secret")
	fs.Var(&fDevice, "device-id", "device identifier used in tokens")
	fs.Var(&fMetrics, "metrics-addr", "address for the /metrics endpoint")
	fs.Var(&fLog, "log-file", "additional log file")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if fConf.v == "" {
		fConf.v = os.Getenv("CONFIG")
	}
	if fConf.v != "" {
		var js clientFile
		if err := loadFile(fConf.v, &js); err != nil {
			return nil, err
		}
		setStr(&cfg.ServerAddr, js.Address, &fAddr)
		if err := setSeconds(&cfg.ReportInterval, js.ReportInterval, &fRep); err != nil {
			return nil, fmt.Errorf("report_interval: %w", err)
		}
		if err := setSeconds(&cfg.PollInterval, js.PollInterval, &fPoll); err != nil {
			return nil, fmt.Errorf("poll_interval: %w", err)
		}
		if err := setSeconds(&cfg.ClientTimeout, js.ClientTimeout, &fTO); err != nil {
			return nil, fmt.Errorf("client_timeout: %w", err)
		}
		setStr(&cfg.CryptoKeyPath, js.CryptoKey, &fCrypto)
		setStr(&cfg.Key, js.Key, &fKey)
		setInt(&cfg.RateLimit, js.RateLimit, &fRate)
		setStr(&cfg.Mode, js.Mode, &fMode)
		setStr(&cfg.Source, js.Source, &fSource)
		setStr(&cfg.ReplayFile, js.ReplayFile, &fReplay)
		setStr(&cfg.RecordFile, js.RecordFile, &fRecord)
		setInt(&cfg.APILevel, js.APILevel, &fAPI)
		setInt(&cfg.BufferCapacity, js.BufferCapacity, &fCap)
		setStr(&cfg.OverflowPolicy, js.OverflowPolicy, &fPolicy)
		setInt(&cfg.WarnAt, js.WarnAt, &fWarn)
		setInt(&cfg.Retries, js.Retries, &fRetries)
		setBool(&cfg.Gzip, js.Gzip, &fGzip)
		setBool(&cfg.SendNav, js.SendNav, &fNav)
		setStr(&cfg.AuthSecret, js.AuthSecret, &fSecret)
		setStr(&cfg.DeviceID, js.DeviceID, &fDevice)
		setStr(&cfg.MetricsAddr, js.MetricsAddress, &fMetrics)
		setStr(&cfg.LogFile, js.LogFile, &fLog)
	}

	fAddr.apply(&cfg.ServerAddr)
	fRep.apply(&cfg.ReportInterval)
	fPoll.apply(&cfg.PollInterval)
	fTO.apply(&cfg.ClientTimeout)
	fKey.apply(&cfg.Key)
	fRate.apply(&cfg.RateLimit)
	fCrypto.apply(&cfg.CryptoKeyPath)
	fMode.apply(&cfg.Mode)
	fSource.apply(&cfg.Source)
	fReplay.apply(&cfg.ReplayFile)
	fRecord.apply(&cfg.RecordFile)
	fAPI.apply(&cfg.APILevel)
	fCap.apply(&cfg.BufferCapacity)
	fPolicy.apply(&cfg.OverflowPolicy)
	fWarn.apply(&cfg.WarnAt)
	fRetries.apply(&cfg.Retries)
	fGzip.apply(&cfg.Gzip)
	fNav.apply(&cfg.SendNav)
	fSecret.apply(&cfg.AuthSecret)
	fDevice.apply(&cfg.DeviceID)
	fMetrics.apply(&cfg.MetricsAddr)
	fLog.apply(&cfg.LogFile)

	envErr := readClientEnvironment(cfg)

	cfg.ServerAddr = normalizeURL(cfg.ServerAddr)
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logger, err := NewLogger(cfg.LogFile)
	if err != nil {
		return nil, err
	}
	if envErr != nil {
		logger.Warn(envErr)
	}
	cfg.Logger = logger
	return cfg, nil
}

func (cfg *ClientConfig) validate() error {
	switch cfg.Mode {
	case ModeBatch, ModeImmediate:
	default:
		return fmt.Errorf("unknown mode %q", cfg.Mode)
	}
	switch cfg.Source {
	case SourceSim:
	case SourceReplay:
		if cfg.ReplayFile == "" {
			return errors.New("replay source needs a capture file")
		}
	default:
		return fmt.Errorf("unknown source %q", cfg.Source)
	}
	if cfg.ReportInterval <= 0 {
		return fmt.Errorf("report interval must be positive, got %d", cfg.ReportInterval)
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 1
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.WarnAt < 0 {
		return fmt.Errorf("warn-at must not be negative, got %d", cfg.WarnAt)
	}
	// IssueToken refuses an empty subject
	if cfg.AuthSecret != "" && cfg.DeviceID == "" {
		return errors.New("auth secret is set but device id is empty")
	}
	return nil
}

func readClientEnvironment(cfg *ClientConfig) error {
	envString("ADDRESS", &cfg.ServerAddr)
	envString("KEY", &cfg.Key)
	envString("CRYPTO_KEY", &cfg.CryptoKeyPath)
	envString("MODE", &cfg.Mode)
	envString("SOURCE", &cfg.Source)
	envString("REPLAY_FILE", &cfg.ReplayFile)
	envString("RECORD_FILE", &cfg.RecordFile)
	envString("OVERFLOW_POLICY", &cfg.OverflowPolicy)
	envString("AUTH_SECRET", &cfg.AuthSecret)
	envString("DEVICE_ID", &cfg.DeviceID)
	envString("METRICS_ADDRESS", &cfg.MetricsAddr)
	envString("LOG_FILE", &cfg.LogFile)

	return errors.Join(
		envInt("REPORT_INTERVAL", &cfg.ReportInterval),
		envInt("POLL_INTERVAL", &cfg.PollInterval),
		envInt("CLIENT_TIMEOUT", &cfg.ClientTimeout),
		envInt("WARN_AT", &cfg.WarnAt),
		envInt("RATE_LIMIT", &cfg.RateLimit),
		envInt("API_LEVEL", &cfg.APILevel),
		envInt("BUFFER_CAPACITY", &cfg.BufferCapacity),
		envInt("RETRIES", &cfg.Retries),
		envBool("GZIP", &cfg.Gzip),
		envBool("SEND_NAV", &cfg.SendNav),
	)
}
