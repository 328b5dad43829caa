package graph

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/aretw0/phasewise/pkg/condition"
	"github.com/aretw0/phasewise/pkg/domain"
	"gopkg.in/yaml.v3"
)

// Definition is the serializable form of a phase graph, as written in
// configuration files. Build turns it into an immutable Graph.
type Definition struct {
	Name        string `json:"name" yaml:"name" mapstructure:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty" mapstructure:"description"`
	Entry       string `json:"entry" yaml:"entry" mapstructure:"entry"`
	Completion  string `json:"completion" yaml:"completion" mapstructure:"completion"`

	Phases []domain.Phase   `json:"phases" yaml:"phases" mapstructure:"phases"`
	Edges  []EdgeDefinition `json:"edges" yaml:"edges" mapstructure:"edges"`

	// Conditions declares custom named predicates. Entries override the
	// built-in presets of the same name.
	Conditions map[string]condition.Spec `json:"conditions,omitempty" yaml:"conditions,omitempty" mapstructure:"conditions"`
}

// EdgeDefinition is the configuration form of a transition edge.
// Active defaults to true when omitted.
type EdgeDefinition struct {
	From      string `json:"from" yaml:"from" mapstructure:"from"`
	To        string `json:"to" yaml:"to" mapstructure:"to"`
	Condition string `json:"condition,omitempty" yaml:"condition,omitempty" mapstructure:"condition"`
	Priority  int    `json:"priority,omitempty" yaml:"priority,omitempty" mapstructure:"priority"`
	Active    *bool  `json:"active,omitempty" yaml:"active,omitempty" mapstructure:"active"`
}

func (e EdgeDefinition) active() bool {
	return e.Active == nil || *e.Active
}

// ParseYAML decodes a YAML graph definition. Unknown keys are rejected.
func ParseYAML(data []byte) (Definition, error) {
	var def Definition
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil {
		return Definition{}, fmt.Errorf("failed to parse graph yaml: %w", err)
	}
	return def, nil
}

// ParseJSON decodes a JSON graph definition. Unknown keys are rejected.
func ParseJSON(data []byte) (Definition, error) {
	var def Definition
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&def); err != nil {
		return Definition{}, fmt.Errorf("failed to parse graph json: %w", err)
	}
	return def, nil
}
