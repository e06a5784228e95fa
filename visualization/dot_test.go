package visualization_test

import (
	"bytes"
	"os/exec"
	"strings"
	"testing"

	"github.com/anggasct/crossing/pkg/fsm"
	"github.com/anggasct/crossing/pkg/lifecycle"
	"github.com/anggasct/crossing/pkg/light"
	"github.com/anggasct/crossing/visualization"
)

func gateDefinition() *fsm.Definition {
	return fsm.NewMachine("gate").
		State("closed").Initial().
		To("open").On("lift").When(func(fsm.Context) bool { return true }).Describe("authorized").
		State("open").
		OnExit(func(fsm.Context) error { return nil }).
		To("closed").On("lower").Do(func(fsm.Context) error { return nil }).
		To("broken").On("crash").
		State("broken").Final().
		MustBuild()
}

func TestDOTGeneration(t *testing.T) {
	generator := visualization.NewDOTGenerator(gateDefinition())

	dotContent, err := generator.Generate()
	if err != nil {
		t.Fatalf("Failed to generate DOT: %v", err)
	}

	expected := []string{
		`digraph "gate" {`,
		"rankdir=LR;",
		`"closed" [shape=box style="filled" fillcolor=lightgreen label="closed\n(initial)"];`,
		`"open" [shape=box style="filled" fillcolor=lightblue label="open\nexit /"];`,
		`"broken" [shape=doublecircle`,
		`"closed" -> "open" [label="lift [authorized]"];`,
		`"open" -> "closed" [label="lower /"];`,
		`"open" -> "broken" [label="crash"];`,
	}
	for _, want := range expected {
		if !strings.Contains(dotContent, want) {
			t.Errorf("DOT content should contain %s", want)
		}
	}

	// Declaration order is kept, so output is stable across runs.
	again, _ := generator.Generate()
	if again != dotContent {
		t.Error("DOT output must be deterministic")
	}

	t.Logf("Generated DOT content:\n%s", dotContent)
}

func TestDOTGeneration_MinimalOptions(t *testing.T) {
	generator := visualization.NewDOTGenerator(gateDefinition(), visualization.DOTOptions{
		RankDirection: "TB",
		NodeShape:     "ellipse",
	})

	dotContent, err := generator.Generate()
	if err != nil {
		t.Fatalf("Failed to generate DOT: %v", err)
	}
	if !strings.Contains(dotContent, `"closed" -> "open" [label="lift"];`) {
		t.Error("guards should be hidden")
	}
	if strings.Contains(dotContent, "exit /") {
		t.Error("entry and exit markers should be hidden")
	}
	if !strings.Contains(dotContent, "node [shape=ellipse];") {
		t.Error("node shape option should be applied")
	}
}

func TestDOTGeneration_NilDefinition(t *testing.T) {
	if _, err := visualization.NewDOTGenerator(nil).Generate(); err == nil {
		t.Error("expected an error for a missing definition")
	}
}

func TestDOTGeneration_SimulationMachines(t *testing.T) {
	controller, err := light.New(light.Options{Period: 1})
	if err != nil {
		t.Fatalf("Failed to create light: %v", err)
	}
	runner, err := lifecycle.New(lifecycle.Options{})
	if err != nil {
		t.Fatalf("Failed to create lifecycle runner: %v", err)
	}

	var buf bytes.Buffer
	if _, err := visualization.NewDOTGenerator(controller.Definition()).WriteTo(&buf); err != nil {
		t.Fatalf("Failed to write DOT: %v", err)
	}
	if !strings.Contains(buf.String(), `"east" -> "west" [label="switch /"];`) {
		t.Errorf("light diagram missing switch edge:\n%s", buf.String())
	}

	buf.Reset()
	if _, err := visualization.NewDOTGenerator(runner.Definition()).WriteTo(&buf); err != nil {
		t.Fatalf("Failed to write DOT: %v", err)
	}
	for _, want := range []string{
		`"crossing" -> "crossing" [label="step [progress < steps] /"];`,
		`"crossing" -> "exited" [label="exit [progress == steps] /"];`,
		`label="crossing\nentry /"`,
	} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("lifecycle diagram should contain %s", want)
		}
	}
}

func TestSVGGenerator(t *testing.T) {
	if _, err := exec.LookPath("dot"); err != nil {
		t.Skip("Graphviz is not installed")
	}

	svgContent, err := visualization.NewSVGGenerator(gateDefinition()).Generate()
	if err != nil {
		t.Fatalf("Failed to generate SVG: %v", err)
	}
	if !strings.Contains(svgContent, "<svg") {
		t.Error("SVG content should contain an svg element")
	}
}
