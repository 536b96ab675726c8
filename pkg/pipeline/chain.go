package pipeline

import (
	"sort"
	"strings"

	"github.com/dominikbraun/graph"
	"github.com/pkg/errors"

	"github.com/askiada/go-reconstruct/internal/store"
	"github.com/askiada/go-reconstruct/pkg/pipeline/model"
)

// checkChain verifies the declared paths of plan and returns the dependency graph of its
// stages together with its vertex store. Vertices are the stage names plus the start vertex, which stands for everything
// that exists before the first stage runs. Edges go from producer to consumer and are
// labelled with the path keys they carry.
func checkChain(plan Plan) (graph.Graph[string, string], store.CustomStore[string, string], error) {
	if len(plan.Stages) == 0 {
		return nil, nil, ErrEmptyPlan
	}

	start := model.StartStage.Name
	vertices := store.NewMemoryStore[string, string]()
	gra := graph.NewWithStore(graph.StringHash, vertices, graph.Directed(), graph.PreventCycles())
	err := gra.AddVertex(start)
	if err != nil {
		return nil, nil, errors.Wrap(err, "unable to add start vertex")
	}

	available := map[PathKey]string{
		PathImages:    start,
		PathWorkspace: start,
	}
	known := func(key PathKey) bool {
		_, inLayout := plan.Layout[key]

		return inLayout || key == PathImages || key == PathWorkspace
	}

	for _, key := range plan.Dirs {
		if !known(key) {
			return nil, nil, errors.Wrapf(ErrUnknownPathKey, "directory %q", key)
		}
		available[key] = start
	}
	if plan.Artifact != "" && !known(plan.Artifact) {
		return nil, nil, errors.Wrapf(ErrUnknownPathKey, "artifact %q", plan.Artifact)
	}

	for idx, stage := range plan.Stages {
		if stage.Command == nil {
			return nil, nil, errors.Wrapf(ErrMissingCommand, "stage %d (%s)", idx+1, stage.Name)
		}

		err := gra.AddVertex(stage.Name)
		if errors.Is(err, graph.ErrVertexAlreadyExists) {
			return nil, nil, errors.Wrapf(ErrDuplicateStage, "%q", stage.Name)
		}
		if err != nil {
			return nil, nil, errors.Wrapf(err, "unable to add stage %s", stage.Name)
		}

		carried := make(map[string][]string)
		for _, key := range stage.Requires {
			producer, ok := available[key]
			switch {
			case ok:
				carried[producer] = append(carried[producer], string(key))
			case !known(key):
				return nil, nil, errors.Wrapf(ErrUnknownPathKey, "stage %s requires %q", stage.Name, key)
			default:
				return nil, nil, errors.Wrapf(ErrUnresolvedPath, "stage %s requires %q", stage.Name, key)
			}
		}

		producers := make([]string, 0, len(carried))
		for producer := range carried {
			producers = append(producers, producer)
		}
		sort.Strings(producers)
		for _, producer := range producers {
			err := gra.AddEdge(producer, stage.Name, graph.EdgeAttribute("label", strings.Join(carried[producer], ",")))
			if err != nil {
				return nil, nil, errors.Wrapf(err, "unable to link %s to %s", producer, stage.Name)
			}
		}

		for _, key := range stage.Produces {
			if !known(key) {
				return nil, nil, errors.Wrapf(ErrUnknownPathKey, "stage %s produces %q", stage.Name, key)
			}
			available[key] = stage.Name
		}
	}

	return gra, vertices, nil
}

// dependencies returns the direct predecessors of name in lexical order.
func dependencies(gra graph.Graph[string, string], name string) ([]string, error) {
	predecessors, err := gra.PredecessorMap()
	if err != nil {
		return nil, errors.Wrap(err, "unable to get predecessors")
	}

	edges, ok := predecessors[name]
	if !ok {
		return nil, errors.Wrapf(graph.ErrVertexNotFound, "stage %q", name)
	}

	res := make([]string, 0, len(edges))
	for source := range edges {
		res = append(res, source)
	}
	sort.Strings(res)

	return res, nil
}

// inputs returns the edges into name, labelled with the keys they carry.
func inputs(gra graph.Graph[string, string], name string) ([]model.StageLink, error) {
	sources, err := dependencies(gra, name)
	if err != nil {
		return nil, err
	}

	res := make([]model.StageLink, 0, len(sources))
	for _, source := range sources {
		edge, err := gra.Edge(source, name)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to get edge %s -> %s", source, name)
		}
		var keys []string
		if label := edge.Properties.Attributes["label"]; label != "" {
			keys = strings.Split(label, ",")
		}
		res = append(res, model.StageLink{From: source, Keys: keys})
	}

	return res, nil
}
