package config

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config represents the server configuration
type Config struct {
	// Server settings
	Server struct {
		Name        string `yaml:"name" toml:"name" json:"name" env:"IRCD_SERVER_NAME"`
		Network     string `yaml:"network" toml:"network" json:"network" env:"IRCD_NETWORK"`
		Description string `yaml:"description" toml:"description" json:"description" env:"IRCD_DESCRIPTION"`
		Host        string `yaml:"host" toml:"host" json:"host" env:"IRCD_HOST"`
		Port        int    `yaml:"port" toml:"port" json:"port" env:"IRCD_PORT"`
		Password    string `yaml:"password" toml:"password" json:"password" env:"IRCD_PASSWORD"`
	} `yaml:"server" toml:"server" json:"server"`

	// Protocol limits
	Limits struct {
		KickLen int `yaml:"kick_len" toml:"kick_len" json:"kick_len" env:"IRCD_KICK_LEN"`
		MaxList int `yaml:"max_list" toml:"max_list" json:"max_list" env:"IRCD_MAX_LIST"`
		NickLen int `yaml:"nick_len" toml:"nick_len" json:"nick_len" env:"IRCD_NICK_LEN"`
	} `yaml:"limits" toml:"limits" json:"limits"`

	// Admin API settings
	Admin struct {
		Enabled      bool     `yaml:"enabled" toml:"enabled" json:"enabled" env:"IRCD_ADMIN_ENABLED"`
		Host         string   `yaml:"host" toml:"host" json:"host" env:"IRCD_ADMIN_HOST"`
		Port         int      `yaml:"port" toml:"port" json:"port" env:"IRCD_ADMIN_PORT"`
		BearerTokens []string `yaml:"bearer_tokens" toml:"bearer_tokens" json:"bearer_tokens" env:"IRCD_ADMIN_TOKENS"`
	} `yaml:"admin" toml:"admin" json:"admin"`

	// Operator definitions
	Operators []Operator `yaml:"operators" toml:"operators" json:"operators"`

	// Modules to load, in order
	Modules []string `yaml:"modules" toml:"modules" json:"modules"`

	// Free-form tag blocks consumed by modules, keyed by section name
	Tags map[string][]Tag `yaml:"tags" toml:"tags" json:"tags"`

	// Configuration source for rehashing
	Source string `yaml:"-" toml:"-" json:"-"`
}

// Operator is an operator block. Password holds a bcrypt hash.
type Operator struct {
	Name     string   `yaml:"name" toml:"name" json:"name"`
	Password string   `yaml:"password" toml:"password" json:"password"`
	Privs    []string `yaml:"privs" toml:"privs" json:"privs"`
}

// Default returns a configuration populated with defaults only
func Default() *Config {
	cfg := &Config{}
	cfg.Server.Name = "irc.example.com"
	cfg.Server.Network = "ExampleNet"
	cfg.Server.Description = "IRC Server"
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = 6667
	cfg.Limits.KickLen = 255
	cfg.Limits.MaxList = 100
	cfg.Limits.NickLen = 30
	cfg.Admin.Host = "127.0.0.1"
	cfg.Admin.Port = 8080
	return cfg
}

// Load loads configuration from a file or URL
func Load(source string) (*Config, error) {
	cfg := Default()

	if source != "" {
		if err := cfg.loadFromSource(source); err != nil {
			return nil, err
		}
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	return cfg, nil
}

// Reload reloads the configuration from the original source or a new source
func (c *Config) Reload(newSource string) error {
	source := c.Source
	if newSource != "" {
		source = newSource
	}

	newCfg, err := Load(source)
	if err != nil {
		return err
	}

	// Copy the new configuration to the current one
	*c = *newCfg
	return nil
}

// ConfTags returns the tag blocks configured under section, in file order
func (c *Config) ConfTags(section string) []Tag {
	if c == nil {
		return nil
	}
	return c.Tags[section]
}

// Operator looks up an operator block by name
func (c *Config) Operator(name string) (Operator, bool) {
	for _, op := range c.Operators {
		if op.Name == name {
			return op, true
		}
	}
	return Operator{}, false
}

// ListenAddress returns the formatted listen address for the IRC server
func (c *Config) ListenAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// AdminListenAddress returns the formatted listen address for the admin API
func (c *Config) AdminListenAddress() string {
	return fmt.Sprintf("%s:%d", c.Admin.Host, c.Admin.Port)
}

// loadFromSource loads configuration from a file or URL
func (c *Config) loadFromSource(source string) error {
	var data []byte
	var err error

	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		resp, err := http.Get(source)
		if err != nil {
			return fmt.Errorf("failed to load config from URL: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("failed to load config from URL, status: %s", resp.Status)
		}

		data, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read config from URL: %w", err)
		}
	} else {
		data, err = os.ReadFile(source)
		if err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := c.decode(source, data); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	c.Source = source
	return nil
}

// decode picks the format from the source extension
func (c *Config) decode(source string, data []byte) error {
	switch {
	case strings.HasSuffix(source, ".toml"):
		return toml.Unmarshal(data, c)
	case strings.HasSuffix(source, ".json"):
		return json.Unmarshal(data, c)
	default:
		return yaml.Unmarshal(data, c)
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration
func applyEnvOverrides(cfg *Config) {
	applyEnvOverridesRecursive(reflect.ValueOf(cfg).Elem())
}

func applyEnvOverridesRecursive(v reflect.Value) {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldValue := v.Field(i)

		if field.PkgPath != "" {
			continue
		}

		if envTag := field.Tag.Get("env"); envTag != "" {
			if envValue, exists := os.LookupEnv(envTag); exists {
				setFieldFromEnv(fieldValue, envValue)
			}
		} else if field.Type.Kind() == reflect.Struct {
			applyEnvOverridesRecursive(fieldValue)
		}
	}
}

// setFieldFromEnv sets a field's value from an environment variable
func setFieldFromEnv(field reflect.Value, envValue string) {
	switch field.Kind() {
	case reflect.String:
		field.SetString(envValue)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if v, err := strconv.ParseInt(strings.TrimSpace(envValue), 10, 64); err == nil {
			field.SetInt(v)
		}
	case reflect.Bool:
		field.SetBool(parseBool(envValue))
	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			values := strings.Split(envValue, ",")
			slice := reflect.MakeSlice(field.Type(), len(values), len(values))
			for i, v := range values {
				slice.Index(i).SetString(strings.TrimSpace(v))
			}
			field.Set(slice)
		}
	}
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "y" || s == "on"
}
