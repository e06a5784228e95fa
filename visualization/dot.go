package visualization

import (
	"bytes"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/anggasct/crossing/pkg/fsm"
)

// DOTGenerator generates Graphviz DOT format representations of state machines
type DOTGenerator struct {
	definition *fsm.Definition
	options    DOTOptions
}

// DOTOptions configures the DOT generation
type DOTOptions struct {
	ShowGuardConditions bool
	ShowActions         bool
	ShowEntryExit       bool
	RankDirection       string // "TB", "LR", "BT", "RL"
	NodeShape           string
}

// DefaultDOTOptions returns sensible default options for DOT generation
func DefaultDOTOptions() DOTOptions {
	return DOTOptions{
		ShowGuardConditions: true,
		ShowActions:         true,
		ShowEntryExit:       true,
		RankDirection:       "LR",
		NodeShape:           "box",
	}
}

// NewDOTGenerator creates a new DOT generator for the given machine definition
func NewDOTGenerator(definition *fsm.Definition, options ...DOTOptions) *DOTGenerator {
	opts := DefaultDOTOptions()
	if len(options) > 0 {
		opts = options[0]
	}

	return &DOTGenerator{
		definition: definition,
		options:    opts,
	}
}

// Generate creates a DOT representation of the state machine. The output is deterministic: states and transitions
// appear in declaration order.
func (g *DOTGenerator) Generate() (string, error) {
	if g.definition == nil {
		return "", fmt.Errorf("no state machine definition")
	}

	var dot strings.Builder
	fmt.Fprintf(&dot, "digraph %q {\n", g.definition.Name())
	fmt.Fprintf(&dot, "  rankdir=%s;\n", g.options.RankDirection)
	fmt.Fprintf(&dot, "  node [shape=%s];\n", g.options.NodeShape)
	dot.WriteString("  edge [fontsize=10];\n\n")

	g.generateStates(&dot)
	dot.WriteString("\n")
	g.generateTransitions(&dot)

	dot.WriteString("}\n")
	return dot.String(), nil
}

// WriteTo writes the DOT representation to w
func (g *DOTGenerator) WriteTo(w io.Writer) (int64, error) {
	content, err := g.Generate()
	if err != nil {
		return 0, err
	}
	n, err := io.WriteString(w, content)
	return int64(n), err
}

func (g *DOTGenerator) generateStates(dot *strings.Builder) {
	initial := g.definition.InitialState()

	dot.WriteString("  // States\n")
	for _, state := range g.definition.States() {
		id := state.ID()
		shape := g.options.NodeShape
		fillColor := "lightblue"
		label := id

		if id == initial {
			fillColor = "lightgreen"
			label += `\n(initial)`
		}
		if state.IsFinal() {
			shape = "doublecircle"
			fillColor = "lightcoral"
		}
		if g.options.ShowEntryExit {
			if state.HasEntryAction() {
				label += `\nentry /`
			}
			if state.HasExitAction() {
				label += `\nexit /`
			}
		}

		fmt.Fprintf(dot, "  %q [shape=%s style=\"filled\" fillcolor=%s label=\"%s\"];\n", id, shape, fillColor, label)
	}
}

func (g *DOTGenerator) generateTransitions(dot *strings.Builder) {
	dot.WriteString("  // Transitions\n")
	for _, t := range g.definition.Transitions() {
		label := t.EventName
		if g.options.ShowGuardConditions && t.Guard != nil {
			guard := t.Description
			if guard == "" {
				guard = "guard"
			}
			label += fmt.Sprintf(" [%s]", guard)
		}
		if g.options.ShowActions && t.Action != nil {
			label += " /"
		}
		fmt.Fprintf(dot, "  %q -> %q [label=%q];\n", t.SourceState, t.TargetState, label)
	}
}

// SVGGenerator renders SVG by piping DOT through the Graphviz dot binary
type SVGGenerator struct {
	dotGenerator *DOTGenerator
}

// NewSVGGenerator creates a new SVG generator
func NewSVGGenerator(definition *fsm.Definition, options ...DOTOptions) *SVGGenerator {
	return &SVGGenerator{
		dotGenerator: NewDOTGenerator(definition, options...),
	}
}

// Generate creates an SVG representation of the state machine
func (g *SVGGenerator) Generate() (string, error) {
	dotContent, err := g.dotGenerator.Generate()
	if err != nil {
		return "", err
	}

	cmd := exec.Command("dot", "-Tsvg")
	cmd.Stdin = strings.NewReader(dotContent)

	var out bytes.Buffer
	cmd.Stdout = &out

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("failed to execute dot command: %w (make sure Graphviz is installed)", err)
	}

	return out.String(), nil
}

// GenerateSVG creates an SVG representation of the state machine
func (g *DOTGenerator) GenerateSVG() (string, error) {
	svgGen := &SVGGenerator{dotGenerator: g}
	return svgGen.Generate()
}
