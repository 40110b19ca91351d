package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"dario.cat/mergo"
	"github.com/Shopify/ejson"
	"github.com/caarlos0/env/v6"
	"github.com/ghodss/yaml"
	"k8s.io/klog"
)

const (
	// ConfigEnvVar may hold the whole yaml config, taking precedence over the
	// config file
	ConfigEnvVar = "FINIMPORTER_CONFIG"
	// EjsonKeyEnvVar points at a file holding the ejson private key
	EjsonKeyEnvVar = "FINIMPORTER_EJSON_SECRET_KEY"

	defaultKeyDir = "/opt/ejson/keys"
)

// Read loads the config file (or ConfigEnvVar) and the secrets. Secrets come
// from the ejson file and the environment; environment values win.
func Read(configFile, secretsFile string) (*Config, *Secrets, error) {
	cfg, err := readConfig(ConfigEnvVar, configFile)
	if err != nil {
		return nil, nil, err
	}

	secrets, err := readSecrets(secretsFile)
	if err != nil {
		return nil, nil, err
	}

	return cfg, secrets, nil
}

// Defaults returns the config used when no config file exists.
func Defaults() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.SQL.Driver == "" {
		c.SQL.Driver = DriverSQLite
	}

	if c.SQL.SQLitePath == "" {
		c.SQL.SQLitePath = "finimporter.db"
	}

	if c.SQL.Database == "" {
		c.SQL.Database = "finimporter"
	}

	if c.SQL.ConnectTimeout.Duration == 0 {
		c.SQL.ConnectTimeout.Duration = 30 * time.Second
	}

	if c.Import.DefaultCurrency == "" {
		c.Import.DefaultCurrency = "EUR"
	}

	if c.Import.SampleLimit <= 0 {
		c.Import.SampleLimit = 10
	}

	if c.Categorize.RulesFile == "" {
		c.Categorize.RulesFile = "categories.yml"
	}

	if c.Schedule.UpdateFrequency == "" {
		c.Schedule.UpdateFrequency = "@every 1h"
	}

	if c.Influx.Database == "" {
		c.Influx.Database = "finimporter"
	}

	if c.Influx.Measurement == "" {
		c.Influx.Measurement = "imports"
	}
}

func (c *Config) validate() error {
	switch c.SQL.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unsupported sql driver %q, expected %s or %s", c.SQL.Driver, DriverSQLite, DriverPostgres)
	}

	for _, b := range c.Ynab.Budgets {
		if b.ID == "" {
			return fmt.Errorf("ynab budget %q is missing an id", b.Name)
		}
	}

	return nil
}

func readConfig(envName, filename string) (*Config, error) {
	var raw []byte
	var err error

	rawEnv := os.Getenv(envName)
	if rawEnv != "" {
		klog.Infof("Reading config from environment variable %s", envName)
		raw = []byte(rawEnv)
	} else {
		raw, err = os.ReadFile(filename)
		if os.IsNotExist(err) {
			klog.Infof("Config file %s not found, using defaults", filename)
			return Defaults(), nil
		} else if err != nil {
			return nil, err
		}
	}

	return parseConfig(raw)
}

func parseConfig(raw []byte) (*Config, error) {
	cfg := &Config{}

	err := yaml.Unmarshal(raw, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()

	return cfg, cfg.validate()
}

func readSecrets(filename string) (*Secrets, error) {
	ejsonSecrets, ejsonErr := readEjsonSecrets(filename)

	envSecrets, envErr := readEnvSecrets()

	if ejsonErr == nil && envErr == nil {
		err := mergo.Merge(envSecrets, *ejsonSecrets)
		if err != nil {
			return nil, fmt.Errorf("failed to merge secrets: %w", err)
		}
		return envSecrets, nil
	} else if ejsonErr != nil && envErr == nil {
		klog.V(1).Infof("No ejson secrets loaded: %v", ejsonErr)
		return envSecrets, nil
	} else if ejsonErr == nil && envErr != nil {
		klog.Warningf("Failed to parse env secrets: %v", envErr)
		return ejsonSecrets, nil
	}

	return nil, fmt.Errorf("failed to parse secrets. Ejson error: %v. Env error: %v", ejsonErr, envErr)
}

func readEjsonSecrets(filename string) (*Secrets, error) {
	ejsonSecrets := Secrets{}
	ejsonKeyFile := os.Getenv(EjsonKeyEnvVar)
	ejsonKey := []byte{}
	var err error

	if ejsonKeyFile != "" {
		ejsonKey, err = os.ReadFile(ejsonKeyFile)
		if err != nil {
			return nil, err
		}
	}

	raw, err := ejson.DecryptFile(filename, defaultKeyDir, string(ejsonKey))
	if err != nil {
		return nil, err
	}

	err = json.Unmarshal(raw, &ejsonSecrets)
	return &ejsonSecrets, err
}

func readEnvSecrets() (*Secrets, error) {
	envSecrets := Secrets{}
	err := env.Parse(&envSecrets)
	return &envSecrets, err
}
