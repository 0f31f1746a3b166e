package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type serverFile struct {
	Address       *string `json:"address" yaml:"address"`
	DatabaseDSN   *string `json:"database_dsn" yaml:"database_dsn"`
	Key           *string `json:"key" yaml:"key"`
	CryptoKey     *string `json:"crypto_key" yaml:"crypto_key"`
	TrustedSubnet *string `json:"trusted_subnet" yaml:"trusted_subnet"`
	AuthSecret    *string `json:"auth_secret" yaml:"auth_secret"`
	StoreCapacity *int    `json:"store_capacity" yaml:"store_capacity"`
	LogFile       *string `json:"log_file" yaml:"log_file"`
}

type clientFile struct {
	Address        *string `json:"address" yaml:"address"`
	ReportInterval *string `json:"report_interval" yaml:"report_interval"` // "5s"
	PollInterval   *string `json:"poll_interval" yaml:"poll_interval"`
	ClientTimeout  *string `json:"client_timeout" yaml:"client_timeout"`
	CryptoKey      *string `json:"crypto_key" yaml:"crypto_key"`
	Key            *string `json:"key" yaml:"key"`
	RateLimit      *int    `json:"rate_limit" yaml:"rate_limit"`
	Mode           *string `json:"mode" yaml:"mode"`
	Source         *string `json:"source" yaml:"source"`
	ReplayFile     *string `json:"replay_file" yaml:"replay_file"`
	RecordFile     *string `json:"record_file" yaml:"record_file"`
	APILevel       *int    `json:"api_level" yaml:"api_level"`
	BufferCapacity *int    `json:"buffer_capacity" yaml:"buffer_capacity"`
	OverflowPolicy *string `json:"overflow_policy" yaml:"overflow_policy"`
	WarnAt         *int    `json:"warn_at" yaml:"warn_at"`
	Retries        *int    `json:"retries" yaml:"retries"`
	Gzip           *bool   `json:"gzip" yaml:"gzip"`
	SendNav        *bool   `json:"send_nav" yaml:"send_nav"`
	AuthSecret     *string `json:"auth_secret" yaml:"auth_secret"`
	DeviceID       *string `json:"device_id" yaml:"device_id"`
	MetricsAddress *string `json:"metrics_address" yaml:"metrics_address"`
	LogFile        *string `json:"log_file" yaml:"log_file"`
}

// loadFile decodes a JSON or YAML config file, chosen by extension.
func loadFile(path string, dst any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, dst)
	default:
		err = json.Unmarshal(b, dst)
	}
	if err != nil {
		return fmt.Errorf("decode config %s: %w", path, err)
	}
	return nil
}

func setStr(dst *string, v *string, f *strFlag) {
	if v != nil && !f.set {
		*dst = *v
	}
}

func setInt(dst *int, v *int, f *intFlag) {
	if v != nil && !f.set {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool, f *boolFlag) {
	if v != nil && !f.set {
		*dst = *v
	}
}

func setSeconds(dst *int, v *string, f *intFlag) error {
	if v == nil || f.set {
		return nil
	}
	sec, err := parseDurationSeconds(*v)
	if err != nil {
		return fmt.Errorf("parse %q: %w", *v, err)
	}
	*dst = sec
	return nil
}
