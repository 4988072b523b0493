// Package ranking narrows a SchemaMap to the models worth showing.
package ranking

import (
	"strings"

	"github.com/phobologic/railsrel/internal/model"
)

// SelectModels returns a new SchemaMap with only the top-ranked models.
// sm.Models must already be sorted by rank.
// If maxModels is <= 0 or >= len(models), sm is returned unchanged.
func SelectModels(sm *model.SchemaMap, maxModels int) *model.SchemaMap {
	if maxModels <= 0 || maxModels >= len(sm.Models) {
		return sm
	}

	selected := sm.Models[:maxModels]
	names := make(map[string]struct{}, maxModels)
	for i := range selected {
		names[selected[i].Name] = struct{}{}
	}

	var edges []model.Edge
	for i := range sm.Edges {
		e := &sm.Edges[i]
		if _, ok := names[e.Source]; !ok {
			continue
		}
		if _, ok := names[e.Target]; ok || e.Target == "" {
			edges = append(edges, *e)
		}
	}

	return &model.SchemaMap{
		App:    sm.App,
		Models: selected,
		Edges:  edges,
	}
}

// FilterByModel returns a new SchemaMap containing the models whose name
// contains substr (case-insensitive), their direct neighbors in either
// direction, and the associations that touch a matched model.
func FilterByModel(sm *model.SchemaMap, substr string) *model.SchemaMap {
	lower := strings.ToLower(substr)

	matched := make(map[string]struct{})
	for i := range sm.Models {
		if strings.Contains(strings.ToLower(sm.Models[i].Name), lower) {
			matched[sm.Models[i].Name] = struct{}{}
		}
	}

	keep := make(map[string]struct{}, len(matched))
	for name := range matched {
		keep[name] = struct{}{}
	}

	var edges []model.Edge
	for i := range sm.Edges {
		e := &sm.Edges[i]
		_, srcOK := matched[e.Source]
		_, tgtOK := matched[e.Target]
		if !srcOK && !tgtOK {
			continue
		}
		edges = append(edges, *e)
		keep[e.Source] = struct{}{}
		if e.Target != "" {
			keep[e.Target] = struct{}{}
		}
	}

	var models []model.Model
	for i := range sm.Models {
		if _, ok := keep[sm.Models[i].Name]; ok {
			models = append(models, sm.Models[i])
		}
	}

	return &model.SchemaMap{
		App:    sm.App,
		Models: models,
		Edges:  edges,
	}
}
