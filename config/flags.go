package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes the environment variables read by Load. Nested keys
// join with underscores: ZKPDF_LIMITS_MAX_XOBJECT_DEPTH.
const EnvPrefix = "ZKPDF"

// flagKeys maps flag names registered by RegisterFlags to config keys.
var flagKeys = map[string]string{
	"log-level":             "logging.level",
	"log-format":            "logging.format",
	"log-output":            "logging.output",
	"max-decompressed-size": "limits.max-decompressed-size",
	"max-xobject-depth":     "limits.max-xobject-depth",
	"max-objstm-objects":    "limits.max-objstm-objects",
	"tj-space-threshold":    "limits.tj-space-threshold",

	"p12":          "signing.pfx-file",
	"password":     "signing.pfx-passphrase",
	"cert":         "signing.cert-file",
	"key":          "signing.key-file",
	"key-password": "signing.key-passphrase",
	"hash":         "signing.hash",
	"reason":       "signing.reason",
	"location":     "signing.location",
	"name":         "signing.name",
	"contact":      "signing.contact-info",
}

// RegisterFlags defines --config and the flags that override the limits
// and logging sections.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("config", "", "YAML configuration file")
	fs.String("log-level", d.Logging.Level, "Log level (debug, info, warn, error)")
	fs.String("log-format", d.Logging.Format, "Log format (text, json)")
	fs.String("log-output", d.Logging.Output, "Log output (stderr, stdout or a file path)")
	fs.Int("max-decompressed-size", d.Limits.MaxDecompressedSize, "Maximum decoded size of a stream in bytes")
	fs.Int("max-xobject-depth", d.Limits.MaxXObjectDepth, "Maximum form XObject nesting")
	fs.Int("max-objstm-objects", d.Limits.MaxObjectStreamObjects, "Maximum objects declared by an object stream")
	fs.Float64("tj-space-threshold", d.Limits.TJSpaceThreshold, "TJ adjustment treated as a word gap")
}

// RegisterSigningFlags defines the flags that override the signing
// section.
func RegisterSigningFlags(fs *pflag.FlagSet) {
	fs.String("p12", "", "PKCS#12 file holding the signing certificate and key")
	fs.String("password", "", "PKCS#12 passphrase")
	fs.String("cert", "", "Signing certificate (PEM or DER); further certificates form the chain")
	fs.String("key", "", "Private key (PEM or DER)")
	fs.String("key-password", "", "Passphrase of an encrypted PEM key")
	fs.String("hash", "sha256", "Digest algorithm (sha1, sha256, sha384, sha512)")
	fs.String("reason", "", "Reason for signing")
	fs.String("location", "", "Location of signing")
	fs.String("name", "", "Name of the signer")
	fs.String("contact", "", "Contact information of the signer")
}

// Load builds the configuration: defaults, then the file named by the
// --config flag, then ZKPDF_* environment variables, then flags set on
// the command line. flags may be nil.
func Load(flags *pflag.FlagSet) (*Config, error) {
	cfg := Default()
	if flags != nil {
		if f := flags.Lookup("config"); f != nil && f.Value.String() != "" {
			loaded, err := LoadConfig(f.Value.String())
			if err != nil {
				return nil, err
			}
			cfg = loaded
		}
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setViperDefaults(v, cfg)

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	populateFromViper(v, cfg)
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setViperDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("limits.max-decompressed-size", cfg.Limits.MaxDecompressedSize)
	v.SetDefault("limits.max-xobject-depth", cfg.Limits.MaxXObjectDepth)
	v.SetDefault("limits.max-objstm-objects", cfg.Limits.MaxObjectStreamObjects)
	v.SetDefault("limits.tj-space-threshold", cfg.Limits.TJSpaceThreshold)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.output", cfg.Logging.Output)

	v.SetDefault("signing.pfx-file", cfg.Signing.PFXFile)
	v.SetDefault("signing.pfx-passphrase", cfg.Signing.PFXPassphrase)
	v.SetDefault("signing.cert-file", cfg.Signing.CertFile)
	v.SetDefault("signing.key-file", cfg.Signing.KeyFile)
	v.SetDefault("signing.key-passphrase", cfg.Signing.KeyPassphrase)
	v.SetDefault("signing.hash", cfg.Signing.Hash)
	v.SetDefault("signing.reason", cfg.Signing.Reason)
	v.SetDefault("signing.location", cfg.Signing.Location)
	v.SetDefault("signing.name", cfg.Signing.Name)
	v.SetDefault("signing.contact-info", cfg.Signing.ContactInfo)

	v.SetDefault("server.name", cfg.Server.Name)
	v.SetDefault("server.version", cfg.Server.Version)
}

func populateFromViper(v *viper.Viper, cfg *Config) {
	cfg.Limits.MaxDecompressedSize = v.GetInt("limits.max-decompressed-size")
	cfg.Limits.MaxXObjectDepth = v.GetInt("limits.max-xobject-depth")
	cfg.Limits.MaxObjectStreamObjects = v.GetInt("limits.max-objstm-objects")
	cfg.Limits.TJSpaceThreshold = v.GetFloat64("limits.tj-space-threshold")

	cfg.Logging.Level = v.GetString("logging.level")
	cfg.Logging.Format = v.GetString("logging.format")
	cfg.Logging.Output = v.GetString("logging.output")

	cfg.Signing.PFXFile = v.GetString("signing.pfx-file")
	cfg.Signing.PFXPassphrase = v.GetString("signing.pfx-passphrase")
	cfg.Signing.CertFile = v.GetString("signing.cert-file")
	cfg.Signing.KeyFile = v.GetString("signing.key-file")
	cfg.Signing.KeyPassphrase = v.GetString("signing.key-passphrase")
	cfg.Signing.Hash = v.GetString("signing.hash")
	cfg.Signing.Reason = v.GetString("signing.reason")
	cfg.Signing.Location = v.GetString("signing.location")
	cfg.Signing.Name = v.GetString("signing.name")
	cfg.Signing.ContactInfo = v.GetString("signing.contact-info")

	cfg.Server.Name = v.GetString("server.name")
	cfg.Server.Version = v.GetString("server.version")
}
