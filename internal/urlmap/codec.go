package urlmap

import (
	"bytes"
	"errors"
	"fmt"

	"go.yaml.in/yaml/v3"
)

const (
	hostRulesKey    = "hostRules"
	pathMatchersKey = "pathMatchers"
	pathRulesKey    = "pathRules"

	nullTag = "!!null"
	seqTag  = "!!seq"
	strTag  = "!!str"
	mapTag  = "!!map"
)

// ErrMissingCollection is returned when a loaded document lacks hostRules or pathMatchers
var ErrMissingCollection = errors.New("url map is missing a required top-level collection")

// Decode parses a YAML URL map. Both hostRules and pathMatchers must be present;
// a null value counts as an empty collection.
func Decode(data []byte) (*Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse url map: %w", err)
	}
	if root.Kind == 0 || len(root.Content) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingCollection, hostRulesKey)
	}
	if root.Kind != yaml.DocumentNode || root.Content[0].Kind != yaml.MappingNode {
		return nil, errors.New("failed to parse url map: top-level YAML is not a mapping")
	}

	doc := &Document{root: &root}
	top := root.Content[0]

	doc.hostRulesSeq = mappingValue(top, hostRulesKey)
	if doc.hostRulesSeq == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingCollection, hostRulesKey)
	}
	if err := decodeSequence(doc.hostRulesSeq, &doc.HostRules); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", hostRulesKey, err)
	}

	doc.matchersSeq = mappingValue(top, pathMatchersKey)
	if doc.matchersSeq == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingCollection, pathMatchersKey)
	}
	if err := decodeSequence(doc.matchersSeq, &doc.PathMatchers); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", pathMatchersKey, err)
	}
	return doc, nil
}

// Encode writes the document back to YAML. Entries appended to HostRules, PathMatchers
// or a loaded matcher's PathRules are added to the node tree; loaded nodes are left as
// they were. A document built in memory gets both collections created.
func (d *Document) Encode() ([]byte, error) {
	if err := d.sync(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(d.root); err != nil {
		return nil, fmt.Errorf("failed to encode url map: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode url map: %w", err)
	}
	return buf.Bytes(), nil
}

func (d *Document) sync() error {
	if d.root == nil {
		d.root = &yaml.Node{
			Kind:    yaml.DocumentNode,
			Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: mapTag}},
		}
	}
	top := d.root.Content[0]
	if d.hostRulesSeq == nil {
		d.hostRulesSeq = addMappingKey(top, hostRulesKey)
	}
	if d.matchersSeq == nil {
		d.matchersSeq = addMappingKey(top, pathMatchersKey)
	}
	asSequence(d.hostRulesSeq)
	asSequence(d.matchersSeq)

	if err := appendEntries(d.hostRulesSeq, d.HostRules); err != nil {
		return fmt.Errorf("failed to encode %s: %w", hostRulesKey, err)
	}

	loaded := len(d.matchersSeq.Content)
	for i := 0; i < loaded && i < len(d.PathMatchers); i++ {
		if err := syncPathRules(d.matchersSeq.Content[i], d.PathMatchers[i].PathRules); err != nil {
			return fmt.Errorf("failed to encode %s of %q: %w", pathRulesKey, d.PathMatchers[i].Name, err)
		}
	}
	if err := appendEntries(d.matchersSeq, d.PathMatchers); err != nil {
		return fmt.Errorf("failed to encode %s: %w", pathMatchersKey, err)
	}
	return nil
}

// syncPathRules appends the path rules a loaded matcher node does not hold yet
func syncPathRules(matcher *yaml.Node, rules []PathRule) error {
	if matcher.Kind != yaml.MappingNode {
		return nil
	}
	seq := mappingValue(matcher, pathRulesKey)
	if seq == nil {
		if len(rules) == 0 {
			return nil
		}
		seq = addMappingKey(matcher, pathRulesKey)
	}
	asSequence(seq)
	return appendEntries(seq, rules)
}

// appendEntries encodes the entries past the end of seq and appends them to it
func appendEntries[T any](seq *yaml.Node, entries []T) error {
	if len(entries) <= len(seq.Content) {
		return nil
	}
	// flow style would inline the new entries on one line
	seq.Style &^= yaml.FlowStyle
	for _, e := range entries[len(seq.Content):] {
		var n yaml.Node
		if err := n.Encode(e); err != nil {
			return err
		}
		seq.Content = append(seq.Content, &n)
	}
	return nil
}

func decodeSequence(n *yaml.Node, out interface{}) error {
	if n.Kind == yaml.ScalarNode && n.Tag == nullTag {
		return nil
	}
	if n.Kind != yaml.SequenceNode {
		return fmt.Errorf("expected a sequence at line %d", n.Line)
	}
	return n.Decode(out)
}

// asSequence turns a null value node into an empty block sequence
func asSequence(n *yaml.Node) {
	if n.Kind == yaml.ScalarNode && n.Tag == nullTag {
		n.Kind = yaml.SequenceNode
		n.Tag = seqTag
		n.Value = ""
	}
}

func mappingValue(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

func addMappingKey(m *yaml.Node, key string) *yaml.Node {
	seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: seqTag}
	m.Content = append(m.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: strTag, Value: key}, seq)
	return seq
}
