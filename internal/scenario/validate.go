package scenario

import (
	"fmt"
	"slices"
	"strconv"

	"gopkg.in/yaml.v3"
)

// definitionFile is the YAML shape of a scenario.
type definitionFile struct {
	ID          string          `yaml:"id"`
	Name        string          `yaml:"name"`
	Title       string          `yaml:"title"`
	NativeTitle string          `yaml:"native_title"`
	Description string          `yaml:"description"`
	Blurb       string          `yaml:"blurb"`
	Severity    string          `yaml:"severity"`
	Steps       []string        `yaml:"steps"`
	Attributes  []attributeFile `yaml:"attributes"`
	Script      []actionFile    `yaml:"script"`
}

type attributeFile struct {
	Name    string    `yaml:"name"`
	Kind    string    `yaml:"kind"`
	Label   string    `yaml:"label"`
	Glyph   string    `yaml:"glyph"`
	Unit    string    `yaml:"unit"`
	Choices []string  `yaml:"choices"`
	Heading string    `yaml:"heading"`
	ShownBy string    `yaml:"shown_by"`
	Initial yaml.Node `yaml:"initial"`
}

type actionFile struct {
	At   string    `yaml:"at"`
	Step *int      `yaml:"step"`
	Set  yaml.Node `yaml:"set"`
	Say  string    `yaml:"say"`
	Stop bool      `yaml:"stop"`
}

// Parse decodes and validates a single scenario definition.
func Parse(data []byte) (*Definition, error) {
	var f definitionFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse scenario YAML: %w", err)
	}
	return f.compile()
}

func (f *definitionFile) compile() (*Definition, error) {
	invalid := func(field, format string, args ...any) error {
		return &ValidationError{Scenario: f.ID, Field: field, Message: fmt.Sprintf(format, args...)}
	}

	if f.ID == "" {
		return nil, invalid("id", "is required")
	}
	def := &Definition{
		ID:          f.ID,
		Name:        f.Name,
		Title:       f.Title,
		NativeTitle: f.NativeTitle,
		Description: f.Description,
		Blurb:       f.Blurb,
		Severity:    Severity(f.Severity),
		Steps:       f.Steps,
		index:       make(map[string]int, len(f.Attributes)),
	}
	if def.Name == "" {
		def.Name = def.Title
	}
	if def.Title == "" {
		def.Title = def.Name
	}
	if def.Name == "" {
		return nil, invalid("name", "name or title is required")
	}
	if def.Severity == "" {
		def.Severity = SeverityMedium
	}
	if !def.Severity.Valid() {
		return nil, invalid("severity", "unknown severity %q", f.Severity)
	}
	if len(def.Steps) == 0 {
		return nil, invalid("steps", "at least one step is required")
	}

	for i, af := range f.Attributes {
		field := fmt.Sprintf("attributes[%d]", i)
		if af.Name == "" {
			return nil, invalid(field, "name is required")
		}
		if _, dup := def.index[af.Name]; dup {
			return nil, invalid(field, "duplicate attribute %q", af.Name)
		}
		attr := Attribute{
			Name:    af.Name,
			Kind:    Kind(af.Kind),
			Label:   af.Label,
			Glyph:   af.Glyph,
			Unit:    af.Unit,
			Choices: af.Choices,
			Heading: af.Heading,
			ShownBy: af.ShownBy,
		}
		if attr.Label == "" {
			attr.Label = attr.Name
		}
		switch attr.Kind {
		case KindPoint, KindPolar, KindFlag, KindNumber:
		case KindChoice:
			if len(attr.Choices) == 0 {
				return nil, invalid(field, "choice attribute %q declares no choices", attr.Name)
			}
		default:
			return nil, invalid(field, "unknown kind %q", af.Kind)
		}
		if af.Initial.Kind == 0 {
			return nil, invalid(field+".initial", "is required")
		}
		initial, parts, err := decodeValue(attr, &af.Initial)
		if err != nil {
			return nil, invalid(field+".initial", "%v", err)
		}
		if attr.Entity() && parts != Both {
			return nil, invalid(field+".initial", "must set both components")
		}
		attr.Initial = initial

		def.index[attr.Name] = len(def.Attributes)
		def.Attributes = append(def.Attributes, attr)
	}

	for i, attr := range def.Attributes {
		field := fmt.Sprintf("attributes[%d]", i)
		if attr.Heading != "" {
			if ref, ok := def.Attribute(attr.Heading); !ok || ref.Kind != KindNumber {
				return nil, invalid(field+".heading", "%q is not a number attribute", attr.Heading)
			}
		}
		if attr.ShownBy != "" {
			if ref, ok := def.Attribute(attr.ShownBy); !ok || ref.Kind != KindFlag {
				return nil, invalid(field+".shown_by", "%q is not a flag attribute", attr.ShownBy)
			}
		}
	}

	if len(f.Script) == 0 {
		return nil, invalid("script", "is empty")
	}
	steps := make(map[int]struct{})
	lastStep := -1
	for i, af := range f.Script {
		field := fmt.Sprintf("script[%d]", i)
		at, err := ParseOffset(af.At)
		if err != nil {
			return nil, invalid(field+".at", "%v", err)
		}
		if i > 0 && at < def.Script[i-1].At {
			return nil, invalid(field+".at", "offset %v is before previous offset %v", at, def.Script[i-1].At)
		}

		action := Action{At: at, Say: af.Say, Stop: af.Stop}
		if af.Step != nil {
			step := *af.Step
			if step < 0 {
				return nil, invalid(field+".step", "must not be negative")
			}
			if step < lastStep {
				return nil, invalid(field+".step", "step %d follows step %d", step, lastStep)
			}
			lastStep = step
			steps[step] = struct{}{}
			action.Step = &step
		}

		set, err := def.decodeSet(&af.Set)
		if err != nil {
			return nil, invalid(field+".set", "%v", err)
		}
		action.Set = set

		if action.Step == nil && len(action.Set) == 0 && action.Say == "" && !action.Stop {
			return nil, invalid(field, "action does nothing")
		}
		if action.Stop && i != len(f.Script)-1 {
			return nil, invalid(field+".stop", "only the final action may stop the scenario")
		}
		def.Script = append(def.Script, action)
	}

	if !def.Script[len(def.Script)-1].Stop {
		return nil, invalid("script", "final action must stop the scenario")
	}
	if len(steps) != len(def.Steps) {
		return nil, invalid("steps", "script uses %d distinct steps but %d are declared", len(steps), len(def.Steps))
	}

	return def, nil
}

func (d *Definition) decodeSet(node *yaml.Node) ([]Assignment, error) {
	if node.Kind == 0 {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("must be a mapping of attribute to value")
	}
	set := make([]Assignment, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		attr, ok := d.Attribute(name)
		if !ok {
			return nil, fmt.Errorf("unknown attribute %q", name)
		}
		v, parts, err := decodeValue(attr, node.Content[i+1])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		set = append(set, Assignment{Attr: name, Value: v, Parts: parts})
	}
	return set, nil
}

// decodeValue decodes node as a value of attr's kind. Point and polar
// values may be partial mappings; the returned Component says which parts
// were present.
func decodeValue(attr Attribute, node *yaml.Node) (Value, Component, error) {
	v := Value{Kind: attr.Kind}
	switch attr.Kind {
	case KindPoint, KindPolar:
		names := [2]string{"x", "y"}
		if attr.Kind == KindPolar {
			names = [2]string{"angle", "radius"}
		}
		parts, pair, err := decodePair(node, names)
		if err != nil {
			return Value{}, 0, err
		}
		if attr.Kind == KindPoint {
			v.Point = Vec2{X: pair[0], Y: pair[1]}
		} else {
			v.Polar = Polar{Angle: pair[0], Radius: pair[1]}
		}
		return v, parts, nil

	case KindFlag:
		if node.Kind != yaml.ScalarNode || node.ShortTag() != "!!bool" {
			return Value{}, 0, fmt.Errorf("%s expects a boolean", attr.Kind)
		}
		if err := node.Decode(&v.Flag); err != nil {
			return Value{}, 0, err
		}

	case KindNumber:
		n, err := decodeNumber(node)
		if err != nil {
			return Value{}, 0, fmt.Errorf("%s expects a number", attr.Kind)
		}
		v.Number = n

	case KindChoice:
		if node.Kind != yaml.ScalarNode {
			return Value{}, 0, fmt.Errorf("%s expects one of %v", attr.Kind, attr.Choices)
		}
		if !slices.Contains(attr.Choices, node.Value) {
			return Value{}, 0, fmt.Errorf("%q is not one of %v", node.Value, attr.Choices)
		}
		v.Choice = node.Value
	}
	return v, Both, nil
}

func decodePair(node *yaml.Node, names [2]string) (Component, [2]float64, error) {
	var pair [2]float64
	switch node.Kind {
	case yaml.SequenceNode:
		if len(node.Content) != 2 {
			return 0, pair, fmt.Errorf("expects [%s, %s]", names[0], names[1])
		}
		for i, item := range node.Content {
			n, err := decodeNumber(item)
			if err != nil {
				return 0, pair, fmt.Errorf("%s: %w", names[i], err)
			}
			pair[i] = n
		}
		return Both, pair, nil

	case yaml.MappingNode:
		var parts Component
		for i := 0; i+1 < len(node.Content); i += 2 {
			key := node.Content[i].Value
			idx := slices.Index(names[:], key)
			if idx < 0 {
				return 0, pair, fmt.Errorf("unknown component %q", key)
			}
			n, err := decodeNumber(node.Content[i+1])
			if err != nil {
				return 0, pair, fmt.Errorf("%s: %w", key, err)
			}
			pair[idx] = n
			parts |= Component(1 << idx)
		}
		if parts == 0 {
			return 0, pair, fmt.Errorf("expects %s and/or %s", names[0], names[1])
		}
		return parts, pair, nil
	}
	return 0, pair, fmt.Errorf("expects [%s, %s] or a mapping", names[0], names[1])
}

func decodeNumber(node *yaml.Node) (float64, error) {
	if node.Kind != yaml.ScalarNode || (node.ShortTag() != "!!int" && node.ShortTag() != "!!float") {
		return 0, fmt.Errorf("not a number")
	}
	return strconv.ParseFloat(node.Value, 64)
}
