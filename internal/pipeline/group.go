package pipeline

import (
	"encoding/json"

	"github.com/viame/batchrun/internal/errs"
)

// TypePredicate restricts which option types may join a ConfigOptionGroup.
type TypePredicate func(OptionType) bool

// AnyType accepts every option type; used by ParametersGroup.
func AnyType(OptionType) bool { return true }

// OutputType accepts only the two output-pattern types; used by OutputGroup.
func OutputType(t OptionType) bool { return t.IsOutputType() }

// ConfigOptionGroup is an ordered list of ConfigOptions sharing a group name
// and a type whitelist.
type ConfigOptionGroup struct {
	GroupName string
	predicate TypePredicate
	options   []*ConfigOption
}

// NewConfigOptionGroup builds an empty group with the given predicate.
func NewConfigOptionGroup(name string, predicate TypePredicate) *ConfigOptionGroup {
	return &ConfigOptionGroup{GroupName: name, predicate: predicate}
}

// NewParametersGroup builds a ParametersGroup: predicate accepts any type.
func NewParametersGroup(name string) *ConfigOptionGroup {
	return NewConfigOptionGroup(name, AnyType)
}

// NewOutputGroup builds an OutputGroup: predicate restricted to output types.
func NewOutputGroup(name string) *ConfigOptionGroup {
	return NewConfigOptionGroup(name, OutputType)
}

// Add appends opt to the group, rejecting it if its type fails the group's
// predicate.
func (g *ConfigOptionGroup) Add(opt *ConfigOption) error {
	if !g.predicate(opt.Type()) {
		return errs.New(errs.KindInvalidConfigType, "option %q: type %q is not permitted in group %q", opt.Name(), opt.Type().Raw(), g.GroupName)
	}
	g.options = append(g.options, opt)
	return nil
}

// Options returns the ordered option list.
func (g *ConfigOptionGroup) Options() []*ConfigOption { return g.options }

// Get returns the option with the given name, or nil.
func (g *ConfigOptionGroup) Get(name string) *ConfigOption {
	for _, o := range g.options {
		if o.Name() == name {
			return o
		}
	}
	return nil
}

// GetEnvPorts returns env_variable -> value() for every option in the group.
func (g *ConfigOptionGroup) GetEnvPorts() map[string]string {
	out := make(map[string]string, len(g.options))
	for _, o := range g.options {
		k, v := o.GetEnv()
		out[k] = v
	}
	return out
}

// ToMap renders the group as option-name -> ConfigOption, the schema used
// for the "output_config" snapshot in datasets_meta.json (§6).
func (g *ConfigOptionGroup) ToMap() map[string]*ConfigOption {
	out := make(map[string]*ConfigOption, len(g.options))
	for _, o := range g.options {
		out[o.Name()] = o
	}
	return out
}

// MarshalJSON renders the group's options keyed by name.
func (g *ConfigOptionGroup) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.ToMap())
}

// GroupFromMap reconstructs a ConfigOptionGroup from an option-name -> dict
// map, the reverse of ToMap/MarshalJSON.
func GroupFromMap(name string, predicate TypePredicate, m map[string]*ConfigOption) *ConfigOptionGroup {
	g := NewConfigOptionGroup(name, predicate)
	for _, o := range m {
		g.options = append(g.options, o)
	}
	return g
}

// Clone produces a deep copy of the group, useful for snapshotting an
// output group into job metadata before macro-expanding and locking it.
func (g *ConfigOptionGroup) Clone() *ConfigOptionGroup {
	clone := NewConfigOptionGroup(g.GroupName, g.predicate)
	clone.options = make([]*ConfigOption, len(g.options))
	for i, o := range g.options {
		c := *o
		clone.options[i] = &c
	}
	return clone
}
