package config

import (
	"errors"
	"flag"
	"os"

	"go.uber.org/zap"
)

// ServerConfig holds the configuration settings for the collector.
type ServerConfig struct {
	Addr          string // Listen address
	Logger        *zap.SugaredLogger
	DatabaseDsn   string // Data Source Name for PostgreSQL, empty keeps data in memory
	Key           string // Key for hash verification
	CryptoKeyPath string // Path to private key
	TrustedSubnet string // CIDR, ex. "192.168.1.0/24"
	AuthSecret    string // HS256 secret, empty disables token checks
	StoreCapacity int    // Records kept by the in-memory store
	LogFile       string
}

// NewServerConfig creates and returns a new ServerConfig by parsing flags and environment variables.
func NewServerConfig() (*ServerConfig, error) {
	return ParseServerConfig(flag.CommandLine, os.Args[1:])
}

// ParseServerConfig applies, in order: defaults, config file, flags, environment.
func ParseServerConfig(fs *flag.FlagSet, args []string) (*ServerConfig, error) {
	cfg := &ServerConfig{
		Addr:          "localhost:2121",
		StoreCapacity: 100000,
		LogFile:       "server.log",
	}

	var fAddr, fDSN, fKey, fCrypto, fTrusted, fSecret, fConf, fLog strFlag
	var fCap intFlag
	fs.Var(&fAddr, "a", "HTTP server address")
	fs.Var(&fDSN, "d", "DB connection string")
	fs.Var(&fKey, "k", "Hash key string")
	fs.Var(&fCrypto, "crypto-key", "Path to private key")
	fs.Var(&fTrusted, "t", "trusted subnet (CIDR)")
	fs.Var(&fSecret, "auth-secret", "JWT verification secret")
	fs.Var(&fCap, "store-cap", "records kept in memory")
	fs.Var(&fLog, "log-file", "additional log file")
	fs.Var(&fConf, "c", "Path to JSON or YAML config file")
	fs.Var(&fConf, "config", "Path to JSON or YAML config file (alias)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if fConf.v == "" {
		fConf.v = os.Getenv("CONFIG")
	}
	if fConf.v != "" {
		var js serverFile
		if err := loadFile(fConf.v, &js); err != nil {
			return nil, err
		}
		setStr(&cfg.Addr, js.Address, &fAddr)
		setStr(&cfg.DatabaseDsn, js.DatabaseDSN, &fDSN)
		setStr(&cfg.Key, js.Key, &fKey)
		setStr(&cfg.CryptoKeyPath, js.CryptoKey, &fCrypto)
		setStr(&cfg.TrustedSubnet, js.TrustedSubnet, &fTrusted)
		setStr(&cfg.AuthSecret, js.AuthSecret, &fSecret)
		setInt(&cfg.StoreCapacity, js.StoreCapacity, &fCap)
		setStr(&cfg.LogFile, js.LogFile, &fLog)
	}

	fAddr.apply(&cfg.Addr)
	fDSN.apply(&cfg.DatabaseDsn)
	fKey.apply(&cfg.Key)
	fCrypto.apply(&cfg.CryptoKeyPath)
	fTrusted.apply(&cfg.TrustedSubnet)
	fSecret.apply(&cfg.AuthSecret)
	fCap.apply(&cfg.StoreCapacity)
	fLog.apply(&cfg.LogFile)

	envErr := readServerEnvironment(cfg)

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

func readServerEnvironment(cfg *ServerConfig) error {
	envString("ADDRESS", &cfg.Addr)
	envString("DATABASE_DSN", &cfg.DatabaseDsn)
	envString("KEY", &cfg.Key)
	envString("CRYPTO_KEY", &cfg.CryptoKeyPath)
	envString("TRUSTED_SUBNET", &cfg.TrustedSubnet)
	envString("AUTH_SECRET", &cfg.AuthSecret)
	envString("LOG_FILE", &cfg.LogFile)

	return errors.Join(
		envInt("STORE_CAPACITY", &cfg.StoreCapacity),
	)
}
