package pipeline

import (
	"encoding/json"
	"strings"
)

// ConfigOption is a single named, typed pipeline parameter or output slot.
//
// Invariant: Default always validates against Type (enforced at
// construction and never re-checked afterward). Invariant: when Locked,
// SetValue is a no-op returning false and Reset is a no-op.
type ConfigOption struct {
	name        string
	def         string
	typ         OptionType
	envVariable string
	description string

	current *string
	locked  bool
}

// NewConfigOption constructs a ConfigOption, validating the default value
// against the parsed type. This is the only path that can fail: once
// constructed, a ConfigOption's default is known-good.
func NewConfigOption(name, def, typeTag, envVariable, description string) (*ConfigOption, error) {
	t := ParseOptionType(typeTag)
	normalizedDefault, err := validateDefault(name, t, def)
	if err != nil {
		return nil, err
	}
	return &ConfigOption{
		name:        name,
		def:         normalizedDefault,
		typ:         t,
		envVariable: envVariable,
		description: description,
	}, nil
}

// Name returns the option's name.
func (c *ConfigOption) Name() string { return c.name }

// Type returns the parsed option type.
func (c *ConfigOption) Type() OptionType { return c.typ }

// Default returns the (already-normalised) default value.
func (c *ConfigOption) Default() string { return c.def }

// EnvVariable returns the environment variable this option binds to.
func (c *ConfigOption) EnvVariable() string { return c.envVariable }

// Description returns the human-readable description.
func (c *ConfigOption) Description() string { return c.description }

// Locked reports whether this option has been locked (e.g. by job-meta
// snapshotting, §4.1 "Locking semantics").
func (c *ConfigOption) Locked() bool { return c.locked }

// Lock freezes the option's current value so SetValue/Reset become no-ops.
// Used by job creation to snapshot a macro-expanded output path.
func (c *ConfigOption) Lock() { c.locked = true }

// Value returns current if present, else default.
func (c *ConfigOption) Value() string {
	if c.current != nil {
		return *c.current
	}
	return c.def
}

// SetValue validates v against the option's type and, on success, stores
// the normalised value as current. Returns false without effect if the
// option is locked or v fails validation.
func (c *ConfigOption) SetValue(v string) bool {
	if c.locked {
		return false
	}
	normalized, ok := c.typ.Validate(v)
	if !ok {
		return false
	}
	c.current = &normalized
	return true
}

// Reset clears any override, so Value() falls back to Default. No-op when
// locked.
func (c *ConfigOption) Reset() {
	if c.locked {
		return
	}
	c.current = nil
}

// ExpandDatasetMacroAndLock replaces the literal token "[DATASET]" in the
// option's default with taskKey and locks the result as the current value.
// Used by job creation to snapshot an output option's path once per task
// (§4.4); it bypasses SetValue's type validation entirely, the same way
// UnmarshalJSON does, since the expanded path is not itself user input.
func (c *ConfigOption) ExpandDatasetMacroAndLock(taskKey string) {
	expanded := strings.ReplaceAll(c.def, "[DATASET]", taskKey)
	c.current = &expanded
	c.locked = true
}

// GetEnv returns the (env_variable, value) pair for wiring into a pipeline
// environment.
func (c *ConfigOption) GetEnv() (string, string) {
	return c.envVariable, c.Value()
}

// configOptionJSON is the wire schema for ConfigOption.ToDict/FromDict.
type configOptionJSON struct {
	Name        string  `json:"name"`
	Value       *string `json:"_value"`
	Locked      bool    `json:"_locked"`
	Default     string  `json:"default"`
	Type        string  `json:"type"`
	EnvVariable string  `json:"env_variable"`
	Description string  `json:"description"`
}

// MarshalJSON implements ConfigOption.to_dict().
func (c *ConfigOption) MarshalJSON() ([]byte, error) {
	return json.Marshal(configOptionJSON{
		Name:        c.name,
		Value:       c.current,
		Locked:      c.locked,
		Default:     c.def,
		Type:        c.typ.Raw(),
		EnvVariable: c.envVariable,
		Description: c.description,
	})
}

// UnmarshalJSON implements ConfigOption.from_dict(). Per the spec, a
// "_value" present in the payload sets the current value directly,
// bypassing SetValue's lock check and type validation entirely -- this is
// intentional, so a locked snapshot survives a save/load round trip even
// though the option is marked locked in the very same payload.
func (c *ConfigOption) UnmarshalJSON(data []byte) error {
	var j configOptionJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	c.name = j.Name
	c.def = j.Default
	c.typ = ParseOptionType(j.Type)
	c.envVariable = j.EnvVariable
	c.description = j.Description
	c.current = j.Value
	c.locked = j.Locked
	return nil
}
