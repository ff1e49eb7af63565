package wire

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v3"

	"github.com/roach88/hypetrace/internal/ir"
)

// YAML tags of the trace notation.
//
//	- [~, [!def [1, []]]]        attach a new sequence 1 to the root
//	- [!ref 1, [1, "two", 3.0]]   append three scalars to 1
//	- [!ref 1]                    emit 1
//
// !ts [sec, nsec] is a timestamp, !bytes "00ff" a byte string, !cbor "f7"
// any raw CBOR item and !float forces a float for integral literals.
// !share on a sequence or mapping makes it shareable; !shared N refers to
// the N-th shareable of the document, counted in document order.
const (
	yamlTagRef    = "!ref"
	yamlTagDef    = "!def"
	yamlTagTS     = "!ts"
	yamlTagBytes  = "!bytes"
	yamlTagCBOR   = "!cbor"
	yamlTagFloat  = "!float"
	yamlTagShare  = "!share"
	yamlTagShared = "!shared"
)

// yamlParser carries document-wide state across records.
type yamlParser struct {
	shared int
}

// ParseYAMLTrace parses a YAML document holding a sequence of records.
func ParseYAMLTrace(data []byte) ([]ir.Record, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse YAML trace: %w", err)
	}
	return RecordsFromYAML(&doc)
}

// RecordsFromYAML converts a YAML sequence node into records.
// A document node is unwrapped.
func RecordsFromYAML(node *yaml.Node) ([]ir.Record, error) {
	node = resolve(node)
	if node.Kind == yaml.DocumentNode {
		if len(node.Content) == 0 {
			return []ir.Record{}, nil
		}
		node = resolve(node.Content[0])
	}
	if node.Kind == 0 || isNull(node) {
		return []ir.Record{}, nil
	}
	if node.Kind != yaml.SequenceNode {
		return nil, yamlErr(node, "records must be a sequence")
	}

	p := &yamlParser{}
	records := make([]ir.Record, 0, len(node.Content))
	for i, n := range node.Content {
		rec, err := p.record(i, resolve(n))
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func (p *yamlParser) record(index int, node *yaml.Node) (ir.Record, error) {
	if node.Kind != yaml.SequenceNode {
		return nil, yamlErr(node, "record %d must be a sequence", index)
	}

	switch len(node.Content) {
	case 1:
		id, err := refFromYAML(resolve(node.Content[0]))
		if err != nil {
			return nil, err
		}
		return ir.Emit{Index: index, ID: id}, nil

	case 2:
		rec := ir.Attach{Index: index}
		parent := resolve(node.Content[0])
		if !isNull(parent) {
			id, err := refFromYAML(parent)
			if err != nil {
				return nil, err
			}
			rec.Parent = &id
		}
		children, err := p.value(node.Content[1])
		if err != nil {
			return nil, err
		}
		rec.Children = children
		return rec, nil

	default:
		return nil, yamlErr(node, "record %d has %d elements, want 1 or 2", index, len(node.Content))
	}
}

func refFromYAML(node *yaml.Node) (ir.ObjectID, error) {
	if node.Kind != yaml.ScalarNode || (node.Tag != yamlTagRef && node.ShortTag() != "!!int") {
		return 0, yamlErr(node, "expected !ref <id>")
	}
	n, err := strconv.ParseInt(strings.ReplaceAll(node.Value, "_", ""), 0, 64)
	if err != nil {
		return 0, yamlErr(node, "invalid object id %q", node.Value)
	}
	return ir.ObjectID(n), nil
}

// ValueFromYAML converts a YAML node into a value. Mapping order is kept.
func ValueFromYAML(node *yaml.Node) (ir.Value, error) {
	return (&yamlParser{}).value(node)
}

func (p *yamlParser) value(node *yaml.Node) (ir.Value, error) {
	node = resolve(node)
	if node.Tag == yamlTagShare {
		return p.shareable(node)
	}

	switch node.Kind {
	case yaml.ScalarNode:
		return scalarFromYAML(node)

	case yaml.SequenceNode:
		switch node.Tag {
		case yamlTagTS:
			return timestampFromYAML(node)
		case yamlTagDef:
			return p.definition(node)
		}
		arr := make(ir.Array, 0, len(node.Content))
		for _, n := range node.Content {
			v, err := p.value(n)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		return arr, nil

	case yaml.MappingNode:
		m := make(ir.Map, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			k, err := p.value(node.Content[i])
			if err != nil {
				return nil, err
			}
			v, err := p.value(node.Content[i+1])
			if err != nil {
				return nil, err
			}
			m = append(m, ir.Pair{Key: k, Value: v})
		}
		return m, nil

	default:
		return nil, yamlErr(node, "unsupported YAML node")
	}
}

func scalarFromYAML(node *yaml.Node) (ir.Value, error) {
	switch node.Tag {
	case yamlTagRef:
		id, err := refFromYAML(node)
		if err != nil {
			return nil, err
		}
		return ir.Ref(id), nil

	case yamlTagShared:
		n, err := strconv.Atoi(node.Value)
		if err != nil || n < 0 {
			return nil, yamlErr(node, "invalid shared reference %q", node.Value)
		}
		return ir.SharedRef(n), nil

	case yamlTagFloat:
		f, err := strconv.ParseFloat(node.Value, 64)
		if err != nil {
			var yf float64
			if derr := node.Decode(&yf); derr != nil {
				return nil, yamlErr(node, "invalid float %q", node.Value)
			}
			f = yf
		}
		return ir.Float(f), nil

	case yamlTagBytes:
		b, err := hex.DecodeString(strings.ReplaceAll(node.Value, " ", ""))
		if err != nil {
			return nil, yamlErr(node, "invalid hex %q", node.Value)
		}
		raw, err := cbor.Marshal(b)
		if err != nil {
			return nil, err
		}
		return ir.Opaque{Raw: raw}, nil

	case yamlTagCBOR:
		raw, err := hex.DecodeString(strings.ReplaceAll(node.Value, " ", ""))
		if err != nil {
			return nil, yamlErr(node, "invalid hex %q", node.Value)
		}
		if err := cbor.Wellformed(raw); err != nil {
			return nil, yamlErr(node, "raw CBOR is not well-formed: %v", err)
		}
		return ir.Opaque{Raw: raw}, nil
	}

	switch node.ShortTag() {
	case "!!null":
		return ir.Null{}, nil
	case "!!bool":
		var b bool
		if err := node.Decode(&b); err != nil {
			return nil, yamlErr(node, "invalid bool %q", node.Value)
		}
		return ir.Bool(b), nil
	case "!!int":
		var i int64
		if err := node.Decode(&i); err == nil {
			return ir.Int(i), nil
		}
		n, ok := new(big.Int).SetString(strings.ReplaceAll(node.Value, "_", ""), 0)
		if !ok {
			return nil, yamlErr(node, "invalid integer %q", node.Value)
		}
		return ir.NewBigInt(n), nil
	case "!!float":
		var f float64
		if err := node.Decode(&f); err != nil {
			return nil, yamlErr(node, "invalid float %q", node.Value)
		}
		return ir.Float(f), nil
	case "!!str":
		return ir.String(node.Value), nil
	default:
		return nil, yamlErr(node, "unsupported tag %s", node.Tag)
	}
}

func timestampFromYAML(node *yaml.Node) (ir.Value, error) {
	if len(node.Content) != 2 {
		return nil, yamlErr(node, "!ts wants [sec, nsec]")
	}
	var parts [2]int64
	for i, n := range node.Content {
		if err := resolve(n).Decode(&parts[i]); err != nil {
			return nil, yamlErr(n, "!ts component must be an integer")
		}
	}
	return ir.Timestamp{Sec: parts[0], Nsec: parts[1]}, nil
}

// shareable numbers the node before converting its content, so a
// !shared inside it refers to itself.
func (p *yamlParser) shareable(node *yaml.Node) (ir.Value, error) {
	if node.Kind != yaml.SequenceNode && node.Kind != yaml.MappingNode {
		return nil, yamlErr(node, "!share applies to sequences and mappings")
	}
	index := p.shared
	p.shared++

	inner := *node
	inner.Tag = "!!seq"
	if node.Kind == yaml.MappingNode {
		inner.Tag = "!!map"
	}
	v, err := p.value(&inner)
	if err != nil {
		return nil, err
	}
	return ir.Shareable{Index: index, Value: v}, nil
}

func (p *yamlParser) definition(node *yaml.Node) (ir.Value, error) {
	if len(node.Content) != 2 {
		return nil, yamlErr(node, "!def wants [id, value]")
	}
	id, err := refFromYAML(resolve(node.Content[0]))
	if err != nil {
		return nil, err
	}
	v, err := p.value(node.Content[1])
	if err != nil {
		return nil, err
	}
	return ir.Definition{ID: id, Value: v}, nil
}

func resolve(node *yaml.Node) *yaml.Node {
	for node.Kind == yaml.AliasNode && node.Alias != nil {
		node = node.Alias
	}
	return node
}

func isNull(node *yaml.Node) bool {
	return node.Kind == yaml.ScalarNode && node.ShortTag() == "!!null"
}

func yamlErr(node *yaml.Node, format string, args ...any) error {
	return fmt.Errorf("line %d: %s", node.Line, fmt.Sprintf(format, args...))
}
