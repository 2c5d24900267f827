package plan

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/roach88/erpseed/internal/ir"
)

// nodeFields converts a YAML mapping to Fields. An absent node yields nil.
func nodeFields(node *yaml.Node) (ir.Fields, error) {
	if node.Kind == 0 {
		return nil, nil
	}
	v, err := nodeValue(node)
	if err != nil {
		return nil, err
	}
	switch f := v.(type) {
	case ir.Fields:
		return f, nil
	case ir.Null:
		return nil, nil
	default:
		return nil, fmt.Errorf("line %d: expected a mapping, got %s", node.Line, ir.TypeName(v))
	}
}

func nodeValue(node *yaml.Node) (ir.Value, error) {
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return ir.Null{}, nil
		}
		return nodeValue(node.Content[0])

	case yaml.AliasNode:
		return nodeValue(node.Alias)

	case yaml.ScalarNode:
		return scalarValue(node)

	case yaml.SequenceNode:
		list := make(ir.List, 0, len(node.Content))
		for _, child := range node.Content {
			v, err := nodeValue(child)
			if err != nil {
				return nil, err
			}
			list = append(list, v)
		}
		return list, nil

	case yaml.MappingNode:
		fields := make(ir.Fields, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			keyNode, valNode := node.Content[i], node.Content[i+1]
			if keyNode.Kind != yaml.ScalarNode || keyNode.ShortTag() != "!!str" {
				return nil, fmt.Errorf("line %d: field names must be strings", keyNode.Line)
			}
			if _, dup := fields[keyNode.Value]; dup {
				return nil, fmt.Errorf("line %d: duplicate field %q", keyNode.Line, keyNode.Value)
			}
			v, err := nodeValue(valNode)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", keyNode.Value, err)
			}
			fields[keyNode.Value] = v
		}
		return fields, nil
	}
	return nil, fmt.Errorf("line %d: unsupported YAML node", node.Line)
}

func scalarValue(node *yaml.Node) (ir.Value, error) {
	switch node.ShortTag() {
	case "!!null":
		return ir.Null{}, nil
	case "!!bool":
		var b bool
		if err := node.Decode(&b); err != nil {
			return nil, fmt.Errorf("line %d: %w", node.Line, err)
		}
		return ir.Bool(b), nil
	case "!!int":
		var n int64
		if err := node.Decode(&n); err != nil {
			return nil, fmt.Errorf("line %d: %w", node.Line, err)
		}
		return ir.Int(n), nil
	case "!!float":
		return nil, fmt.Errorf("line %d: float %s not supported, use an integer", node.Line, node.Value)
	case "!!str", "!!timestamp":
		return ir.Str(node.Value), nil
	}
	return nil, fmt.Errorf("line %d: unsupported scalar tag %s", node.Line, node.ShortTag())
}
