// Package config loads zkpdf settings from YAML files, ZKPDF_* environment
// variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/georgepadayatti/zkpdf/keys"
	"github.com/georgepadayatti/zkpdf/pdf/filters"
	"github.com/georgepadayatti/zkpdf/pdf/reader"
	"github.com/georgepadayatti/zkpdf/pdf/text"
	"github.com/georgepadayatti/zkpdf/sign/cms"
)

// Common errors
var (
	ErrConfigurationError   = errors.New("configuration error")
	ErrMissingRequiredField = errors.New("missing required field")
	ErrUnexpectedField      = errors.New("unexpected field in configuration")
	ErrInvalidConfigType    = errors.New("configuration must be a dictionary")
)

// DefaultServerName is the tool server name reported to clients.
const DefaultServerName = "zkpdf"

// ConfigError represents a configuration error with context.
type ConfigError struct {
	Field   string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error in '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("config error: %s", e.Message)
}

func (e *ConfigError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrConfigurationError
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

// LimitsConfig bounds the resources spent on one document.
type LimitsConfig struct {
	// MaxDecompressedSize bounds the decoded size of a single stream.
	MaxDecompressedSize int `yaml:"max-decompressed-size" json:"max_decompressed_size"`

	// MaxXObjectDepth bounds form XObject nesting during text extraction.
	MaxXObjectDepth int `yaml:"max-xobject-depth" json:"max_xobject_depth"`

	// MaxObjectStreamObjects bounds /N of an object stream.
	MaxObjectStreamObjects int `yaml:"max-objstm-objects" json:"max_objstm_objects"`

	// TJSpaceThreshold is the TJ adjustment beyond which a space is
	// inserted, in thousandths of a text space unit.
	TJSpaceThreshold float64 `yaml:"tj-space-threshold" json:"tj_space_threshold"`
}

// SetDefaults fills unset limits.
func (c *LimitsConfig) SetDefaults() {
	if c.MaxDecompressedSize == 0 {
		c.MaxDecompressedSize = filters.DefaultMaxOutput
	}
	if c.MaxXObjectDepth == 0 {
		c.MaxXObjectDepth = text.DefaultMaxXObjectDepth
	}
	if c.MaxObjectStreamObjects == 0 {
		c.MaxObjectStreamObjects = reader.DefaultMaxObjectStreamObjects
	}
	if c.TJSpaceThreshold == 0 {
		c.TJSpaceThreshold = text.DefaultTJSpaceThreshold
	}
}

// Validate rejects negative limits.
func (c *LimitsConfig) Validate() error {
	switch {
	case c.MaxDecompressedSize < 0:
		return NewConfigError("limits.max-decompressed-size", "must not be negative")
	case c.MaxXObjectDepth < 0:
		return NewConfigError("limits.max-xobject-depth", "must not be negative")
	case c.MaxObjectStreamObjects < 0:
		return NewConfigError("limits.max-objstm-objects", "must not be negative")
	case c.TJSpaceThreshold < 0:
		return NewConfigError("limits.tj-space-threshold", "must not be negative")
	}
	return nil
}

// SigningConfig holds the credential and signature dictionary entries
// used by the sign command. Either PFXFile or CertFile and KeyFile name
// the credential.
type SigningConfig struct {
	// PFXFile is the path to a PKCS#12 file.
	PFXFile string `yaml:"pfx-file" json:"pfx_file,omitempty"`

	// PFXPassphrase is the PKCS#12 passphrase.
	PFXPassphrase string `yaml:"pfx-passphrase" json:"-"`

	// CertFile is a PEM or DER certificate file; further certificates in
	// it form the chain.
	CertFile string `yaml:"cert-file" json:"cert_file,omitempty"`

	// KeyFile is a PEM or DER private key file.
	KeyFile string `yaml:"key-file" json:"key_file,omitempty"`

	// KeyPassphrase decrypts a legacy encrypted PEM key.
	KeyPassphrase string `yaml:"key-passphrase" json:"-"`

	// Hash is the digest algorithm name, sha256 by default.
	Hash string `yaml:"hash" json:"hash,omitempty"`

	Reason      string `yaml:"reason" json:"reason,omitempty"`
	Location    string `yaml:"location" json:"location,omitempty"`
	Name        string `yaml:"name" json:"name,omitempty"`
	ContactInfo string `yaml:"contact-info" json:"contact_info,omitempty"`
}

// SetDefaults fills unset signing settings.
func (c *SigningConfig) SetDefaults() {
	if c.Hash == "" {
		c.Hash = "sha256"
	}
}

// Validate checks the digest name and that at most one credential source
// is configured.
func (c *SigningConfig) Validate() error {
	if _, err := cms.AlgorithmByName(c.Hash); err != nil {
		return &ConfigError{Field: "signing.hash", Message: fmt.Sprintf("unsupported digest %q", c.Hash), Err: err}
	}
	if c.PFXFile != "" && (c.CertFile != "" || c.KeyFile != "") {
		return NewConfigError("signing", "pfx-file cannot be combined with cert-file or key-file")
	}
	if (c.CertFile == "") != (c.KeyFile == "") {
		return NewConfigError("signing", "cert-file and key-file must be given together")
	}
	return nil
}

// Algorithm returns the signature algorithm for Hash.
func (c *SigningConfig) Algorithm() (cms.SignatureAlgorithm, error) {
	return cms.AlgorithmByName(c.Hash)
}

// Credential loads the configured signing credential.
func (c *SigningConfig) Credential() (*keys.Credential, error) {
	switch {
	case c.PFXFile != "":
		cred, err := keys.LoadPKCS12(c.PFXFile, c.PFXPassphrase)
		if err != nil {
			return nil, fmt.Errorf("failed to load PKCS#12 credential: %w", err)
		}
		return cred, nil
	case c.CertFile != "" && c.KeyFile != "":
		cred, err := keys.LoadPEMDER(c.CertFile, c.KeyFile, c.keyPassphraseBytes())
		if err != nil {
			return nil, fmt.Errorf("failed to load cert and key: %w", err)
		}
		return cred, nil
	default:
		return nil, &ConfigError{
			Field:   "signing",
			Message: "pfx-file or cert-file and key-file are required",
			Err:     ErrMissingRequiredField,
		}
	}
}

func (c *SigningConfig) keyPassphraseBytes() []byte {
	if c.KeyPassphrase == "" {
		return nil
	}
	return []byte(c.KeyPassphrase)
}

// ServerConfig describes the tool server.
type ServerConfig struct {
	Name    string `yaml:"name" json:"name,omitempty"`
	Version string `yaml:"version" json:"version,omitempty"`
}

// SetDefaults fills unset server settings.
func (c *ServerConfig) SetDefaults() {
	if c.Name == "" {
		c.Name = DefaultServerName
	}
}

// Config is the complete zkpdf configuration.
type Config struct {
	Limits  LimitsConfig  `yaml:"limits" json:"limits"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
	Signing SigningConfig `yaml:"signing" json:"signing"`
	Server  ServerConfig  `yaml:"server" json:"server"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults fills every unset field.
func (c *Config) SetDefaults() {
	c.Limits.SetDefaults()
	c.Logging.SetDefaults()
	c.Signing.SetDefaults()
	c.Server.SetDefaults()
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Limits.Validate(); err != nil {
		return err
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	return c.Signing.Validate()
}

// configKeys lists the accepted keys of each section, as written in YAML.
var configKeys = map[string][]string{
	"":        {"limits", "logging", "signing", "server"},
	"limits":  {"max-decompressed-size", "max-xobject-depth", "max-objstm-objects", "tj-space-threshold"},
	"logging": {"level", "format", "output"},
	"signing": {"pfx-file", "pfx-passphrase", "cert-file", "key-file", "key-passphrase", "hash", "reason", "location", "name", "contact-info"},
	"server":  {"name", "version"},
}

// LoadConfig loads a configuration from a YAML file.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses configuration from YAML data, applies defaults and
// validates the result. Unknown keys are rejected.
func ParseConfig(data []byte) (*Config, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		var typeErr *yaml.TypeError
		if errors.As(err, &typeErr) {
			return nil, &ConfigError{Message: err.Error(), Err: ErrInvalidConfigType}
		}
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := checkSections(raw); err != nil {
		return nil, err
	}

	cfg, err := fromMap(normalizeMap(raw))
	if err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// fromMap decodes a key-normalized map through YAML.
func fromMap(data map[string]any) (*Config, error) {
	yamlData, err := yaml.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config map: %w", err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(yamlData, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func normalizeMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if sub, ok := v.(map[string]any); ok {
			v = normalizeMap(sub)
		}
		out[normalizeKey(k)] = v
	}
	return out
}

func checkSections(raw map[string]any) error {
	if err := CheckConfigKeys("configuration", configKeys[""], mapKeys(raw)); err != nil {
		return err
	}
	sections := mapKeys(raw)
	for _, name := range sections {
		value := raw[name]
		if value == nil {
			continue
		}
		section, ok := value.(map[string]any)
		if !ok {
			return &ConfigError{Field: name, Message: fmt.Sprintf("must be a dictionary, got %T", value), Err: ErrInvalidConfigType}
		}
		if err := CheckConfigKeys(name, configKeys[normalizeKey(name)], mapKeys(section)); err != nil {
			return err
		}
	}
	return nil
}

func mapKeys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// CheckConfigKeys checks if all provided keys are valid for a given configuration type.
func CheckConfigKeys(configName string, expectedKeys, suppliedKeys []string) error {
	expectedSet := make(map[string]bool)
	for _, k := range expectedKeys {
		expectedSet[normalizeKey(k)] = true
	}

	var unexpected []string
	for _, k := range suppliedKeys {
		if !expectedSet[normalizeKey(k)] {
			unexpected = append(unexpected, k)
		}
	}

	if len(unexpected) > 0 {
		keyWord := "key"
		if len(unexpected) > 1 {
			keyWord = "keys"
		}
		return fmt.Errorf("%w: unexpected %s in configuration for %s: %s",
			ErrUnexpectedField, keyWord, configName, strings.Join(unexpected, ", "))
	}

	return nil
}

// normalizeKey normalizes a configuration key (underscores to dashes).
func normalizeKey(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}
