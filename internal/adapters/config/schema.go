package config

import (
	"go.trai.ch/pour/internal/core/domain"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// Formula represents the structure of a formula file.
type Formula struct {
	Name      string          `yaml:"name"`
	Desc      string          `yaml:"desc,omitempty"`
	Homepage  string          `yaml:"homepage,omitempty"`
	URL       string          `yaml:"url"`
	SHA256    string          `yaml:"sha256"`
	Version   string          `yaml:"version,omitempty"`
	DependsOn []DependencyDTO `yaml:"depends_on,omitempty"`
}

// DependencyDTO is one depends_on entry. It is written either as a bare
// name or as a single-key map from name to a tag or a list of tags.
type DependencyDTO struct {
	Name string
	Tags []string
	Line int
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *DependencyDTO) UnmarshalYAML(node *yaml.Node) error {
	d.Line = node.Line

	switch node.Kind {
	case yaml.ScalarNode:
		d.Name = node.Value
		return nil
	case yaml.MappingNode:
		if len(node.Content) != 2 {
			return badEntry(node, "dependency map must have exactly one key")
		}
		key, value := node.Content[0], node.Content[1]
		if key.Kind != yaml.ScalarNode {
			return badEntry(node, "dependency name must be a string")
		}
		d.Name = key.Value

		switch value.Kind {
		case yaml.ScalarNode:
			if value.Tag != "!!null" {
				d.Tags = []string{value.Value}
			}
		case yaml.SequenceNode:
			for _, item := range value.Content {
				if item.Kind != yaml.ScalarNode {
					return badEntry(item, "scope tag must be a string")
				}
				d.Tags = append(d.Tags, item.Value)
			}
		default:
			return badEntry(value, "scope tags must be a string or a list")
		}
		return nil
	default:
		return badEntry(node, "dependency must be a name or a single-key map")
	}
}

// MarshalYAML implements yaml.Marshaler.
func (d DependencyDTO) MarshalYAML() (any, error) {
	if len(d.Tags) == 0 {
		return d.Name, nil
	}

	var value *yaml.Node
	if len(d.Tags) == 1 {
		value = &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: d.Tags[0]}
	} else {
		value = &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
		for _, tag := range d.Tags {
			value.Content = append(value.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: tag})
		}
	}

	return &yaml.Node{
		Kind: yaml.MappingNode,
		Content: []*yaml.Node{
			{Kind: yaml.ScalarNode, Tag: "!!str", Value: d.Name},
			value,
		},
	}, nil
}

func badEntry(node *yaml.Node, msg string) error {
	return zerr.With(zerr.Wrap(domain.ErrMalformedDescriptor, msg), "line", node.Line)
}
