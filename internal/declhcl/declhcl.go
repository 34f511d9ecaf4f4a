// Package declhcl is an optional declarative front-end for internal/graph:
// it parses an HCL document naming stages, machines, and function
// references, and drives them through graph.Registry's registration API.
//
// HCL cannot embed a Go function value, so function references in the
// document are names, resolved against a caller-supplied FuncRegistry at
// load time. This is the deferred-registration pattern: LoadFile decodes
// the whole document first and only then registers its stages and
// machines, in document order, mirroring a static-initializer pass without
// relying on Go's (unordered) package-init semantics.
//
// Grounded in the teacher's internal/model grid-loading pipeline
// (hclparse.Parser + gohcl.DecodeBody) and internal/schema's struct-tag
// schema style.
package declhcl

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/vk/vine/internal/graph"
)

// FuncRegistry maps the names used in "calls" attributes to the Go
// functions they invoke. LoadFile fails if a document references a name not
// present here.
type FuncRegistry map[string]func()

type document struct {
	Stages   []*stageBlock   `hcl:"stage,block"`
	Machines []*machineBlock `hcl:"machine,block"`
	Body     hcl.Body        `hcl:",remain"`
}

type stageBlock struct {
	Name  string      `hcl:"name,label"`
	Funcs []*funcBlock `hcl:"func,block"`
}

type funcBlock struct {
	Name      string   `hcl:"name,label"`
	Calls     string   `hcl:"calls"`
	DependsOn []string `hcl:"depends_on,optional"`
}

type machineBlock struct {
	Name    string            `hcl:"name,label"`
	Initial bool              `hcl:"initial,optional"`
	Nodes   []*stageNodeBlock `hcl:"stage_node,block"`
}

type stageNodeBlock struct {
	Name      string   `hcl:"name,label"`
	Stage     string   `hcl:"stage"`
	DependsOn []string `hcl:"depends_on,optional"`
}

// LoadFile parses path and registers its stages and machines into a fresh
// graph.Registry, resolving "calls" attributes against funcs. Functions
// within a stage, and stage_nodes within a machine, must be declared in
// dependency order: depends_on may only name something declared earlier
// in the same block, matching graph.Registry's forward-reference-only
// API.
func LoadFile(path string, funcs FuncRegistry) (*graph.Registry, error) {
	parser := hclparse.NewParser()
	f, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("declhcl: parsing %s: %w", path, diags)
	}

	var doc document
	if diags := gohcl.DecodeBody(f.Body, nil, &doc); diags.HasErrors() {
		return nil, fmt.Errorf("declhcl: decoding %s: %w", path, diags)
	}

	return build(&doc, funcs)
}

func build(doc *document, funcs FuncRegistry) (*graph.Registry, error) {
	reg := graph.New()

	stagesByName := make(map[string]graph.StageID, len(doc.Stages))
	for _, sb := range doc.Stages {
		if _, dup := stagesByName[sb.Name]; dup {
			return nil, fmt.Errorf("declhcl: duplicate stage %q", sb.Name)
		}
		stage := reg.NewStage()
		stagesByName[sb.Name] = stage

		funcsByName := make(map[string]graph.FuncRef, len(sb.Funcs))
		for _, fb := range sb.Funcs {
			fn, ok := funcs[fb.Calls]
			if !ok {
				return nil, fmt.Errorf("declhcl: stage %q func %q: unknown calls target %q", sb.Name, fb.Name, fb.Calls)
			}

			deps := make([]graph.FuncRef, 0, len(fb.DependsOn))
			for _, depName := range fb.DependsOn {
				dep, ok := funcsByName[depName]
				if !ok {
					return nil, fmt.Errorf("declhcl: stage %q func %q depends_on undeclared or forward-referenced func %q", sb.Name, fb.Name, depName)
				}
				deps = append(deps, dep)
			}

			ref := reg.AddFunctionNode(stage, fn, deps...)
			funcsByName[fb.Name] = ref
		}
	}

	var initial graph.MachineID
	var hasInitial bool

	for _, mb := range doc.Machines {
		machine := reg.NewMachine()
		if mb.Initial {
			if hasInitial {
				return nil, fmt.Errorf("declhcl: more than one machine marked initial")
			}
			initial = machine
			hasInitial = true
		}

		nodesByName := make(map[string]graph.StageNodeRef, len(mb.Nodes))
		for _, nb := range mb.Nodes {
			stage, ok := stagesByName[nb.Stage]
			if !ok {
				return nil, fmt.Errorf("declhcl: machine %q node %q: unknown stage %q", mb.Name, nb.Name, nb.Stage)
			}

			deps := make([]graph.StageNodeRef, 0, len(nb.DependsOn))
			for _, depName := range nb.DependsOn {
				dep, ok := nodesByName[depName]
				if !ok {
					return nil, fmt.Errorf("declhcl: machine %q node %q depends_on undeclared or forward-referenced node %q", mb.Name, nb.Name, depName)
				}
				deps = append(deps, dep)
			}

			ref := reg.AddStageNode(machine, stage, deps...)
			nodesByName[nb.Name] = ref
		}
	}

	if hasInitial {
		reg.SetInitialMachine(initial)
	}

	return reg, nil
}
