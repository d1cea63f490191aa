package resolve

import (
	"context"
	"fmt"
	"strings"

	"github.com/clinigraph/trellis/internal/core/model"
	"github.com/clinigraph/trellis/internal/driver"
	"github.com/clinigraph/trellis/internal/ids"
)

// Resolver decides, per document-global entity, whether it matches a node
// already persisted in the graph store, is new, or is too ambiguous to place
// automatically. Entities of the same type must be resolved sequentially;
// the caller's merge tables assume no races between near-duplicates.
type Resolver struct {
	Driver           driver.GraphDriver
	IDs              ids.Generator
	MatchThreshold   float64
	AbstainThreshold float64
}

func NewResolver(d driver.GraphDriver, gen ids.Generator, matchThreshold, abstainThreshold float64) *Resolver {
	return &Resolver{
		Driver:           d,
		IDs:              gen,
		MatchThreshold:   matchThreshold,
		AbstainThreshold: abstainThreshold,
	}
}

// ResolveAll resolves entities in document order; the returned slice is
// positionally aligned with the input so assertion refs carry over.
func (r *Resolver) ResolveAll(ctx context.Context, entities []*model.Entity) ([]model.Resolution, error) {
	resolutions := make([]model.Resolution, 0, len(entities))
	for _, e := range entities {
		res, err := r.Resolve(ctx, e)
		if err != nil {
			return nil, err
		}
		resolutions = append(resolutions, res)
	}
	return resolutions, nil
}

// Resolve applies the decision policy for one entity. Instance entities are
// always new and never consult the store.
func (r *Resolver) Resolve(ctx context.Context, e *model.Entity) (model.Resolution, error) {
	if !e.Type.IsCatalog() {
		return model.Resolution{
			Entity:   e,
			Decision: model.DecisionNew,
			TargetID: r.IDs.EntityID(),
			Score:    1.0,
		}, nil
	}

	candidates, err := r.findCatalogMatches(ctx, e)
	if err != nil {
		return model.Resolution{}, fmt.Errorf("catalog lookup for %s failed: %w", e.Type.Label(), err)
	}

	if len(candidates) == 0 {
		return model.Resolution{
			Entity:   e,
			Decision: model.DecisionNew,
			TargetID: r.IDs.EntityID(),
			Score:    1.0,
		}, nil
	}

	best := candidates[0]
	bestScore := similarity(e.Attributes, best.props)
	for _, c := range candidates[1:] {
		if s := similarity(e.Attributes, c.props); s > bestScore {
			best, bestScore = c, s
		}
	}

	switch {
	case bestScore > r.MatchThreshold:
		return model.Resolution{
			Entity:   e,
			Decision: model.DecisionMatch,
			TargetID: best.uuid,
			Score:    bestScore,
		}, nil
	case bestScore > r.AbstainThreshold:
		return model.Resolution{
			Entity:         e,
			Decision:       model.DecisionAbstain,
			Score:          bestScore,
			PotentialMatch: best.uuid,
		}, nil
	default:
		// A low-confidence "new" still records how close the nearest
		// candidate was.
		return model.Resolution{
			Entity:   e,
			Decision: model.DecisionNew,
			TargetID: r.IDs.EntityID(),
			Score:    1.0 - bestScore,
		}, nil
	}
}

type candidate struct {
	uuid  string
	props map[string]any
}

// findCatalogMatches queries the store by (code, system), then code only,
// then case-insensitive name, returning the first non-empty candidate set.
func (r *Resolver) findCatalogMatches(ctx context.Context, e *model.Entity) ([]candidate, error) {
	code := e.StringAttr("code")
	system := e.StringAttr("system")
	name := e.StringAttr("name")

	type lookup struct {
		query  string
		params map[string]any
	}
	var lookups []lookup
	if code != "" && system != "" {
		lookups = append(lookups, lookup{
			query:  fmt.Sprintf(driver.FindCatalogByCodeSystemQuery, e.Type.Label()),
			params: map[string]any{"code": code, "system": system},
		})
	}
	if code != "" {
		lookups = append(lookups, lookup{
			query:  fmt.Sprintf(driver.FindCatalogByCodeQuery, e.Type.Label()),
			params: map[string]any{"code": code},
		})
	}
	if name != "" {
		lookups = append(lookups, lookup{
			query:  fmt.Sprintf(driver.FindCatalogByNameQuery, e.Type.Label()),
			params: map[string]any{"name": name},
		})
	}

	for _, l := range lookups {
		result, err := r.Driver.ExecuteQuery(ctx, l.query, l.params)
		if err != nil {
			return nil, err
		}
		var found []candidate
		for _, rec := range result.Records {
			uuidVal, _ := rec.Get("uuid")
			propsVal, _ := rec.Get("props")
			uuid, _ := uuidVal.(string)
			if uuid == "" {
				continue
			}
			props, _ := propsVal.(map[string]any)
			found = append(found, candidate{uuid: uuid, props: props})
		}
		if len(found) > 0 {
			return found, nil
		}
	}
	return nil, nil
}

// Internal bookkeeping properties are not evidence of agreement.
var ignoredProps = map[string]bool{
	"uuid":         true,
	"created_at":   true,
	"updated_at":   true,
	"update_count": true,
}

// similarity averages field-level agreement across the attributes present in
// both maps: exact equality 1.0, case-insensitive substring containment 0.5,
// disagreement 0.
func similarity(incoming, existing map[string]any) float64 {
	if len(incoming) == 0 || len(existing) == 0 {
		return 0
	}
	var total float64
	var fields int
	for key, iv := range incoming {
		if ignoredProps[key] || iv == nil {
			continue
		}
		ev, ok := existing[key]
		if !ok || ev == nil {
			continue
		}
		fields++
		a := fmt.Sprint(iv)
		b := fmt.Sprint(ev)
		switch {
		case a == b:
			total += 1.0
		case containsFold(a, b):
			total += 0.5
		}
	}
	if fields == 0 {
		return 0
	}
	return total / float64(fields)
}

func containsFold(a, b string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	return strings.Contains(la, lb) || strings.Contains(lb, la)
}
