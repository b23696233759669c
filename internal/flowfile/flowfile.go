// Package flowfile loads YAML flow descriptions and drives the flow
// construction API from them.
//
// A flow file is the data-driven face of the construction engine: every
// statement the engine accepts in code can be written as a YAML mapping.
// Keys inside a statement are open: condition aliases mix freely with the
// statement's own options, and the loader sorts out which is which. Unknown
// keys are hard errors with a "did you mean" suggestion.
package flowfile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/arkohler/atp/core/flow"
)

// Load reads and parses the flow file at path.
func Load(path string) (*flow.Flow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse parses a YAML flow description. The document is a mapping with a
// mandatory "flow" key (the flow name), an optional "program" key, and a
// "statements" sequence.
func Parse(data []byte) (*flow.Flow, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 {
		return nil, fmt.Errorf("empty document")
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: document must be a mapping", root.Line)
	}

	var name, program string
	var statements *yaml.Node
	for _, kv := range mappingPairs(root) {
		key, val := kv[0], kv[1]
		switch key.Value {
		case "flow":
			if err := val.Decode(&name); err != nil {
				return nil, decodeError(key.Value, val, err)
			}
		case "program":
			if err := val.Decode(&program); err != nil {
				return nil, decodeError(key.Value, val, err)
			}
		case "statements":
			statements = val
		default:
			return nil, unknownKey("document", key, []string{"flow", "program", "statements"})
		}
	}
	if name == "" {
		return nil, fmt.Errorf("flow name missing (top-level \"flow\" key)")
	}

	f := flow.New(name, program)
	if statements != nil {
		if err := buildStatements(f, statements); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// mappingPairs iterates a YAML mapping in document order.
func mappingPairs(n *yaml.Node) [][2]*yaml.Node {
	var pairs [][2]*yaml.Node
	for i := 0; i+1 < len(n.Content); i += 2 {
		pairs = append(pairs, [2]*yaml.Node{n.Content[i], n.Content[i+1]})
	}
	return pairs
}

func decodeError(key string, n *yaml.Node, err error) error {
	return fmt.Errorf("line %d: key %q: %w", n.Line, key, err)
}
