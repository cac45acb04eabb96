package models

// RequiredProperty is a name and/or value predicate. An empty field is
// treated as absent.
type RequiredProperty struct {
	Name  string `json:"name,omitempty" yaml:"name,omitempty" toml:"name,omitempty"`
	Value string `json:"value,omitempty" yaml:"value,omitempty" toml:"value,omitempty"`
}

// Requirement is a predicate over an item's kind and properties.
// A nil *Requirement is vacuously satisfied.
type Requirement struct {
	RequiredKind       string             `json:"requiredKind,omitempty" yaml:"required_kind,omitempty" toml:"required_kind,omitempty"`
	RequiredProperties []RequiredProperty `json:"requiredProperties,omitempty" yaml:"required_properties,omitempty" toml:"required_properties,omitempty"`
}

// SelectableRequirement additionally demands that at least one linked item
// satisfies LinkRequirement when it is set.
type SelectableRequirement struct {
	Requirement     `yaml:",inline"`
	LinkRequirement *Requirement `json:"linkRequirement,omitempty" yaml:"link_requirement,omitempty" toml:"link_requirement,omitempty"`
}

// LinkRequirement links items that share a value for LinkPropertyName and
// also carry every RequiredProperties entry. Link targets are not filtered
// by kind.
type LinkRequirement struct {
	LinkPropertyName   string             `json:"linkPropertyName" yaml:"link_property_name" toml:"link_property_name"`
	RequiredProperties []RequiredProperty `json:"requiredProperties,omitempty" yaml:"required_properties,omitempty" toml:"required_properties,omitempty"`
}

// RequirementSet is the host-provided classification input.
type RequirementSet struct {
	Links         []LinkRequirement       `json:"links,omitempty" yaml:"links,omitempty" toml:"links,omitempty"`
	Selectable    []SelectableRequirement `json:"selectable,omitempty" yaml:"selectable,omitempty" toml:"selectable,omitempty"`
	AlwaysVisible []Requirement           `json:"alwaysVisible,omitempty" yaml:"always_visible,omitempty" toml:"always_visible,omitempty"`
}

// Empty reports whether no requirement of any kind is configured.
func (rs RequirementSet) Empty() bool {
	return len(rs.Links) == 0 && len(rs.Selectable) == 0 && len(rs.AlwaysVisible) == 0
}
