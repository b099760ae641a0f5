package global

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Conf global config
var Conf Config

type Config struct {
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	Scheme     string           `yaml:"scheme"`
	Mode       string           `yaml:"mode"`
	Device     DeviceConfig     `yaml:"device"`
	Kdf        KdfConfig        `yaml:"kdf"`
	Relay      RelayConfig      `yaml:"relay"`
	Backend    BackendConfig    `yaml:"backend"`
	Prometheus PrometheusConfig `yaml:"prometheus"`
}

type DeviceConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	// DeviceKeyPath points at the software device key file (dev/test builds;
	// production builds use the platform secure element)
	DeviceKeyPath string `yaml:"deviceKeyPath"`
}

type KdfConfig struct {
	Iterations  uint32 `yaml:"iterations"`
	MemoryKB    uint32 `yaml:"memoryKb"`
	Parallelism uint8  `yaml:"parallelism"`
}

type RelayConfig struct {
	URL string `yaml:"url"`
	// AppVersionName is sent as originVersion in every envelope
	AppVersionName string `yaml:"appVersionName"`
	AppVersionCode int    `yaml:"appVersionCode"`
}

type BackendConfig struct {
	URL string `yaml:"url"`
	// RequestExpiryMinutes bounds how long a fetched browser request stays valid
	RequestExpiryMinutes int `yaml:"requestExpiryMinutes"`
}

type PrometheusConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// LoadConfig reads the yaml configuration file into the target struct.
func LoadConfig(path string, target *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, target)
}
