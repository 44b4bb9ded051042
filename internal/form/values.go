package form

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DecodeValues reads a YAML mapping of field key to value. Scalars keep
// their literal text, so 0123 stays "0123" and 450.50 stays "450.50".
// Unknown keys are an error.
func DecodeValues(r io.Reader) (map[string]string, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to parse values: %w", err)
	}

	root := &doc
	if root.Kind == yaml.DocumentNode {
		if len(root.Content) == 0 {
			return map[string]string{}, nil
		}
		root = root.Content[0]
	}
	if root.Kind == yaml.ScalarNode && root.Tag == "!!null" {
		return map[string]string{}, nil
	}
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("failed to parse values: expected a mapping of field to value")
	}

	values := make(map[string]string, len(root.Content)/2)
	var unknown []string
	for i := 0; i+1 < len(root.Content); i += 2 {
		k, v := root.Content[i].Value, root.Content[i+1]
		if _, ok := Lookup(k); !ok {
			unknown = append(unknown, k)
			continue
		}
		text, err := scalarText(v)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", k, err)
		}
		values[k] = text
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("unknown fields: %s", strings.Join(unknown, ", "))
	}
	return values, nil
}

// scalarText returns the source text of a scalar node. Nulls are empty.
func scalarText(n *yaml.Node) (string, error) {
	if n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	if n.Kind != yaml.ScalarNode {
		return "", errors.New("expected a scalar value")
	}
	if n.Tag == "!!null" {
		return "", nil
	}
	return n.Value, nil
}

// LoadValues reads a YAML values file into the form.
func (c *Controller) LoadValues(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open values file: %w", err)
	}
	defer f.Close()

	values, err := DecodeValues(f)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	c.Prefill(values)
	return nil
}

// EncodeValues writes the non-empty form values as YAML in field order.
func EncodeValues(w io.Writer, s Snapshot) error {
	doc := &yaml.Node{Kind: yaml.MappingNode}
	for _, f := range Fields {
		v, ok := s[f.Key]
		if !ok || v == "" {
			continue
		}
		doc.Content = append(doc.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: f.Key},
			&yaml.Node{Kind: yaml.ScalarNode, Value: v, Style: yaml.DoubleQuotedStyle},
		)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}
