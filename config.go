package databind

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// UnknownPolicy decides what a bean does with a property it has no binding for.
type UnknownPolicy uint8

// Unknown property policies.
const (
	UnknownFail   UnknownPolicy = iota // Abort with UnknownPropertyError
	UnknownIgnore                      // Skip the value
	UnknownReport                      // Skip the value and record an issue on the Context
)

var unknownPolicyNames = [...]string{"fail", "ignore", "report"}

func (p UnknownPolicy) String() string {
	if int(p) < len(unknownPolicyNames) {
		return unknownPolicyNames[p]
	}
	return fmt.Sprintf("UnknownPolicy(%d)", uint8(p))
}

// MarshalText implements encoding.TextMarshaler.
func (p UnknownPolicy) MarshalText() ([]byte, error) {
	if int(p) >= len(unknownPolicyNames) {
		return nil, fmt.Errorf("%w: unknown policy %d", ErrInvalidConfig, uint8(p))
	}
	return []byte(unknownPolicyNames[p]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *UnknownPolicy) UnmarshalText(text []byte) error {
	for i, name := range unknownPolicyNames {
		if name == string(text) {
			*p = UnknownPolicy(i) // #nosec G115 -- bounded by table
			return nil
		}
	}
	return fmt.Errorf("%w: unknown policy %q", ErrInvalidConfig, text)
}

// DefaultMaxDepth bounds nesting unless configured otherwise.
const DefaultMaxDepth = 1000

// Config is the registry-wide binding configuration. It is fixed when the
// registry is created; every Context sees the same snapshot.
type Config struct {
	UnknownPolicy    UnknownPolicy
	DefaultInclusion Inclusion
	TypeProperty     string // Discriminator for polymorphic bases without their own
	MaxDepth         int    // 0 disables the limit
	UseNumber        bool   // Untyped numbers decode as Number instead of float64

	handlerSet
}

// DefaultConfig returns the configuration NewMapper starts from.
func DefaultConfig() Config {
	return Config{
		TypeProperty: DefaultTypeProperty,
		MaxDepth:     DefaultMaxDepth,
		handlerSet:   defaultHandlers(),
	}
}

// normalized fills the fields a hand-built Config may have left empty.
func (c Config) normalized() Config {
	if c.TypeProperty == "" {
		c.TypeProperty = DefaultTypeProperty
	}
	c.handlerSet = c.handlerSet.clone()
	return c
}

// Validate reports configuration values that cannot be used.
func (c Config) Validate() error {
	var errs []error
	if int(c.UnknownPolicy) >= len(unknownPolicyNames) {
		errs = append(errs, fmt.Errorf("%w: unknown policy %d", ErrInvalidConfig, uint8(c.UnknownPolicy)))
	}
	if _, err := c.DefaultInclusion.MarshalText(); err != nil {
		errs = append(errs, err)
	}
	if c.MaxDepth < 0 {
		errs = append(errs, fmt.Errorf("%w: negative max depth %d", ErrInvalidConfig, c.MaxDepth))
	}
	return errors.Join(errs...)
}

// Option adjusts a Config.
type Option func(*Config)

// WithConfig replaces the scalar settings with those of cfg, keeping
// registered handlers.
func WithConfig(cfg Config) Option {
	return func(c *Config) {
		h := c.handlerSet
		*c = cfg
		c.handlerSet = h
	}
}

// WithUnknownPolicy sets the unknown property policy.
func WithUnknownPolicy(p UnknownPolicy) Option {
	return func(c *Config) { c.UnknownPolicy = p }
}

// WithDefaultInclusion sets the inclusion used by beans with no policy of their own.
func WithDefaultInclusion(i Inclusion) Option {
	return func(c *Config) { c.DefaultInclusion = i }
}

// WithTypeProperty sets the default discriminator property.
func WithTypeProperty(name string) Option {
	return func(c *Config) { c.TypeProperty = name }
}

// WithMaxDepth limits nesting. 0 disables the limit.
func WithMaxDepth(n int) Option {
	return func(c *Config) { c.MaxDepth = n }
}

// WithUseNumber decodes untyped numbers as Number.
func WithUseNumber(on bool) Option {
	return func(c *Config) { c.UseNumber = on }
}

// WithEncryptor installs enc for properties tagged encrypt=algo.
func WithEncryptor(algo EncryptAlgo, enc Encryptor) Option {
	return func(c *Config) {
		c.handlerSet = c.handlerSet.clone()
		c.encryptors[algo] = enc
	}
}

// WithHasher replaces the hasher for hash=algo.
func WithHasher(algo HashAlgo, h Hasher) Option {
	return func(c *Config) {
		c.handlerSet = c.handlerSet.clone()
		c.hashers[algo] = h
	}
}

// WithMasker replaces the masker for mask=mt.
func WithMasker(mt MaskType, m Masker) Option {
	return func(c *Config) {
		c.handlerSet = c.handlerSet.clone()
		c.maskers[mt] = m
	}
}

// configFile is the on-disk form of Config.
type configFile struct {
	Unknown      *UnknownPolicy `yaml:"unknown_properties"`
	Inclusion    *Inclusion     `yaml:"inclusion"`
	TypeProperty string         `yaml:"type_property"`
	MaxDepth     *int           `yaml:"max_depth"`
	UseNumber    bool           `yaml:"use_number"`
}

// ParseConfig reads a YAML document over DefaultConfig:
//
//	unknown_properties: report
//	inclusion: non_null
//	type_property: kind
//	max_depth: 64
//	use_number: true
func ParseConfig(data []byte) (Config, error) {
	var f configFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	cfg := DefaultConfig()
	if f.Unknown != nil {
		cfg.UnknownPolicy = *f.Unknown
	}
	if f.Inclusion != nil {
		cfg.DefaultInclusion = *f.Inclusion
	}
	if f.TypeProperty != "" {
		cfg.TypeProperty = f.TypeProperty
	}
	if f.MaxDepth != nil {
		cfg.MaxDepth = *f.MaxDepth
	}
	cfg.UseNumber = f.UseNumber

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads the YAML configuration at path.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- caller chooses the path
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return ParseConfig(data)
}
