package scenario

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrNotFound is returned when a scenario id is not registered.
var ErrNotFound = errors.New("scenario not found")

// Severity ranks how much a scenario matters in the exam.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
)

// Valid reports whether s is a known severity tier.
func (s Severity) Valid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium:
		return true
	}
	return false
}

// Kind is the type of a visual attribute.
type Kind string

const (
	KindPoint  Kind = "point"  // position in the 0-100 plane
	KindPolar  Kind = "polar"  // angle and radius around the plane centre
	KindFlag   Kind = "flag"   // indicator on or off
	KindNumber Kind = "number" // gauge reading
	KindChoice Kind = "choice" // one of a declared set of labels
)

// Vec2 is a position in the 0-100 plane.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// OnPlane reports whether v lies inside the visible plane.
func (v Vec2) OnPlane() bool {
	return v.X >= 0 && v.X <= 100 && v.Y >= 0 && v.Y <= 100
}

// Polar is a position around the centre of the plane. Angle 0 points up and
// grows clockwise.
type Polar struct {
	Angle  float64 `json:"angle"`
	Radius float64 `json:"radius"`
}

// Vec2 converts p into plane coordinates.
func (p Polar) Vec2() Vec2 {
	rad := (p.Angle - 90) * math.Pi / 180
	return Vec2{
		X: 50 + math.Cos(rad)*p.Radius,
		Y: 50 + math.Sin(rad)*p.Radius,
	}
}

// Value is the current value of one attribute. Only the field matching Kind
// is meaningful. Values are comparable, so whole states can be checked with ==.
type Value struct {
	Kind   Kind
	Point  Vec2
	Polar  Polar
	Flag   bool
	Number float64
	Choice string
}

// Position returns the plane position of a point or polar value.
func (v Value) Position() (Vec2, bool) {
	switch v.Kind {
	case KindPoint:
		return v.Point, true
	case KindPolar:
		return v.Polar.Vec2(), true
	}
	return Vec2{}, false
}

func (v Value) String() string {
	switch v.Kind {
	case KindPoint:
		return fmt.Sprintf("(%s, %s)", formatFloat(v.Point.X), formatFloat(v.Point.Y))
	case KindPolar:
		return fmt.Sprintf("%s° r%s", formatFloat(v.Polar.Angle), formatFloat(v.Polar.Radius))
	case KindFlag:
		if v.Flag {
			return "on"
		}
		return "off"
	case KindNumber:
		return formatFloat(v.Number)
	case KindChoice:
		return v.Choice
	}
	return ""
}

// MarshalJSON encodes the value in its natural JSON shape.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindPoint:
		return json.Marshal(v.Point)
	case KindPolar:
		pos := v.Polar.Vec2()
		return json.Marshal(struct {
			Angle  float64 `json:"angle"`
			Radius float64 `json:"radius"`
			X      float64 `json:"x"`
			Y      float64 `json:"y"`
		}{v.Polar.Angle, v.Polar.Radius, round2(pos.X), round2(pos.Y)})
	case KindFlag:
		return json.Marshal(v.Flag)
	case KindNumber:
		return json.Marshal(v.Number)
	case KindChoice:
		return json.Marshal(v.Choice)
	}
	return []byte("null"), nil
}

// Attribute declares one piece of a scenario's visual state.
type Attribute struct {
	Name    string
	Kind    Kind
	Label   string
	Glyph   string
	Unit    string
	Choices []string
	// Heading names a number attribute holding the entity's rotation.
	Heading string
	// ShownBy names a flag attribute that hides the entity while false.
	ShownBy string
	Initial Value
}

// Entity reports whether the attribute is drawn on the plane.
func (a Attribute) Entity() bool {
	return a.Kind == KindPoint || a.Kind == KindPolar
}

// Component selects the parts of a point or polar value an assignment
// replaces.
type Component uint8

const (
	First  Component = 1 << iota // x or angle
	Second                       // y or radius

	Both = First | Second
)

// Assignment sets one attribute when an action fires.
type Assignment struct {
	Attr  string
	Value Value
	// Parts is only used for point and polar values.
	Parts Component
}

// Apply returns cur with the assignment applied.
func (a Assignment) Apply(cur Value) Value {
	switch a.Value.Kind {
	case KindPoint:
		if a.Parts&First != 0 {
			cur.Point.X = a.Value.Point.X
		}
		if a.Parts&Second != 0 {
			cur.Point.Y = a.Value.Point.Y
		}
		cur.Kind = KindPoint
		return cur
	case KindPolar:
		if a.Parts&First != 0 {
			cur.Polar.Angle = a.Value.Polar.Angle
		}
		if a.Parts&Second != 0 {
			cur.Polar.Radius = a.Value.Polar.Radius
		}
		cur.Kind = KindPolar
		return cur
	}
	return a.Value
}

// Action is one scheduled entry of a script.
type Action struct {
	At   time.Duration
	Step *int
	Set  []Assignment
	Say  string
	Stop bool
}

// Definition is an immutable, validated scenario.
type Definition struct {
	ID          string
	Name        string
	Title       string
	NativeTitle string
	Description string
	Blurb       string
	Severity    Severity
	Steps       []string
	Attributes  []Attribute
	Script      []Action

	index map[string]int
}

// Attribute looks up an attribute by name.
func (d *Definition) Attribute(name string) (Attribute, bool) {
	i, ok := d.index[name]
	if !ok {
		return Attribute{}, false
	}
	return d.Attributes[i], true
}

// InitialValues returns a fresh copy of the declared initial state.
func (d *Definition) InitialValues() map[string]Value {
	values := make(map[string]Value, len(d.Attributes))
	for _, a := range d.Attributes {
		values[a.Name] = a.Initial
	}
	return values
}

// Duration is the offset of the final action.
func (d *Definition) Duration() time.Duration {
	if len(d.Script) == 0 {
		return 0
	}
	return d.Script[len(d.Script)-1].At
}

// Lines returns every native-language line the script speaks.
func (d *Definition) Lines() []string {
	var lines []string
	for _, a := range d.Script {
		if a.Say != "" {
			lines = append(lines, a.Say)
		}
	}
	return lines
}

// ValidationError describes a definition rejected at registration.
type ValidationError struct {
	Scenario string
	Field    string
	Message  string
}

func (e *ValidationError) Error() string {
	if e.Scenario == "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("scenario %s: %s: %s", e.Scenario, e.Field, e.Message)
}

// ParseOffset parses a script offset. Plain integers are milliseconds,
// anything else must be a Go duration string such as "4500ms" or "1.5s".
func ParseOffset(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty offset")
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		if ms < 0 {
			return 0, fmt.Errorf("negative offset %q", s)
		}
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative offset %q", s)
	}
	return d, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
