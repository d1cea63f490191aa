package writer

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/clinigraph/trellis/internal/core/model"
	"github.com/clinigraph/trellis/internal/driver"
)

const DefaultBatchSize = 100

// allowedLabels is the closed set of node labels that may ever be
// interpolated into query text.
var allowedLabels = map[string]bool{
	"Patient":        true,
	"Encounter":      true,
	"Clinician":      true,
	"TestResult":     true,
	"Symptom":        true,
	"Disease":        true,
	"Test":           true,
	"Medication":     true,
	"Procedure":      true,
	"Guideline":      true,
	"SourceDocument": true,
	"Chunk":          true,
}

// allowedRelationships is the closed set of relationship types.
var allowedRelationships = map[string]bool{
	"HAS_ENCOUNTER":  true,
	"SEEN_BY":        true,
	"HAS_SYMPTOM":    true,
	"DIAGNOSED_AS":   true,
	"ORDERED_TEST":   true,
	"HAS_RESULT":     true,
	"OF_TEST":        true,
	"PRESCRIBED":     true,
	"PERFORMED":      true,
	"HAS_SYMPTOM_KB": true,
	"INDICATES_TEST": true,
	"HAS_TREATMENT":  true,
	"SUPPORTS":       true,
	"EVIDENCED_BY":   true,
	"EXTRACTED_FROM": true,
	"PART_OF":        true,
	"FOLLOWED_BY":    true,
}

var identifierChars = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// Writer executes upsert plans against the graph store in fixed-size,
// merge-by-key batches. Every merge is independently idempotent, so a failed
// batch is safe to retry in full.
type Writer struct {
	Driver    driver.GraphDriver
	BatchSize int
}

func NewWriter(d driver.GraphDriver, batchSize int) *Writer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Writer{Driver: d, BatchSize: batchSize}
}

// Result summarizes one upsert pass. Partial success is the norm: per-item
// and per-batch failures land in Errors while siblings proceed.
type Result struct {
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Batches int      `json:"batches"`
	Errors  []string `json:"errors,omitempty"`
}

// UpsertNodes merges nodes grouped by label, batch by batch. Nodes with a
// label outside the whitelist are rejected with an error entry and never
// reach query text.
func (w *Writer) UpsertNodes(ctx context.Context, nodes []model.NodeUpsert) Result {
	var res Result

	byLabel := map[string][]model.NodeUpsert{}
	var labelOrder []string
	for _, n := range nodes {
		label, ok := ValidateLabel(n.Label)
		if !ok {
			res.Errors = append(res.Errors, fmt.Sprintf("invalid label %q for node %s", n.Label, n.Key))
			continue
		}
		if _, seen := byLabel[label]; !seen {
			labelOrder = append(labelOrder, label)
		}
		byLabel[label] = append(byLabel[label], n)
	}

	for _, label := range labelOrder {
		group := byLabel[label]
		for i := 0; i < len(group); i += w.BatchSize {
			end := i + w.BatchSize
			if end > len(group) {
				end = len(group)
			}
			w.upsertNodeBatch(ctx, label, group[i:end], &res)
			res.Batches++
		}
	}
	return res
}

func (w *Writer) upsertNodeBatch(ctx context.Context, label string, batch []model.NodeUpsert, res *Result) {
	params := make([]map[string]any, 0, len(batch))
	for _, n := range batch {
		params = append(params, map[string]any{
			"key":        n.Key,
			"properties": SanitizeProperties(n.Properties),
		})
	}

	query := fmt.Sprintf(driver.UpsertNodeBatchQuery, label)
	result, err := w.Driver.ExecuteQuery(ctx, query, map[string]any{"nodes": params})
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("node batch failed for %s (%s..%s): %v",
			label, batch[0].Key, batch[len(batch)-1].Key, err))
		return
	}
	countOps(result.Records, res)
}

// UpsertRelationships merges relationships grouped by type, matched by the
// durable identifiers of their endpoint nodes.
func (w *Writer) UpsertRelationships(ctx context.Context, rels []model.RelationshipUpsert) Result {
	var res Result

	byType := map[string][]model.RelationshipUpsert{}
	var typeOrder []string
	for _, r := range rels {
		relType, ok := ValidateRelationshipType(r.Type)
		if !ok {
			res.Errors = append(res.Errors, fmt.Sprintf("invalid relationship type %q (%s -> %s)", r.Type, r.FromID, r.ToID))
			continue
		}
		if r.FromID == "" || r.ToID == "" {
			res.Errors = append(res.Errors, fmt.Sprintf("relationship %s missing endpoint (%q -> %q)", relType, r.FromID, r.ToID))
			continue
		}
		if _, seen := byType[relType]; !seen {
			typeOrder = append(typeOrder, relType)
		}
		byType[relType] = append(byType[relType], r)
	}

	for _, relType := range typeOrder {
		group := byType[relType]
		for i := 0; i < len(group); i += w.BatchSize {
			end := i + w.BatchSize
			if end > len(group) {
				end = len(group)
			}
			w.upsertRelationshipBatch(ctx, relType, group[i:end], &res)
			res.Batches++
		}
	}
	return res
}

func (w *Writer) upsertRelationshipBatch(ctx context.Context, relType string, batch []model.RelationshipUpsert, res *Result) {
	params := make([]map[string]any, 0, len(batch))
	for _, r := range batch {
		params = append(params, map[string]any{
			"from_id":    r.FromID,
			"to_id":      r.ToID,
			"properties": SanitizeProperties(r.Properties),
		})
	}

	query := fmt.Sprintf(driver.UpsertRelationshipBatchQuery, relType)
	result, err := w.Driver.ExecuteQuery(ctx, query, map[string]any{"rels": params})
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("relationship batch failed for %s (%s..%s): %v",
			relType, batch[0].FromID, batch[len(batch)-1].FromID, err))
		return
	}
	countOps(result.Records, res)
}

func countOps(records []*neo4j.Record, res *Result) {
	for _, rec := range records {
		op, _ := rec.Get("op")
		if op == "created" {
			res.Created++
		} else {
			res.Updated++
		}
	}
}

// ValidateLabel strips anything outside the identifier character set and
// checks the whitelist. It returns false for anything that must not reach
// query text.
func ValidateLabel(label string) (string, bool) {
	clean := identifierChars.ReplaceAllString(label, "")
	if clean == "" || !allowedLabels[clean] {
		return "", false
	}
	return clean, true
}

// ValidateRelationshipType uppercases, strips and whitelists a relationship
// type name.
func ValidateRelationshipType(relType string) (string, bool) {
	clean := strings.ToUpper(identifierChars.ReplaceAllString(relType, ""))
	if clean == "" || !allowedRelationships[clean] {
		return "", false
	}
	return clean, true
}

// SanitizeProperties restricts property keys to a safe character set and
// coerces values to what the store can hold: primitive scalars, RFC-3339
// strings for temporal values, and JSON strings for lists and maps.
func SanitizeProperties(properties map[string]any) map[string]any {
	sanitized := make(map[string]any, len(properties))
	for key, value := range properties {
		cleanKey := identifierChars.ReplaceAllString(key, "_")
		if cleanKey == "" || strings.HasPrefix(cleanKey, "_") {
			continue
		}
		if value == nil {
			continue
		}
		switch v := value.(type) {
		case string, bool,
			int, int8, int16, int32, int64,
			uint, uint8, uint16, uint32, uint64,
			float32, float64:
			sanitized[cleanKey] = v
		case time.Time:
			sanitized[cleanKey] = v.UTC().Format(time.RFC3339)
		case []string, []any, map[string]any:
			if data, err := json.Marshal(v); err == nil {
				sanitized[cleanKey] = string(data)
			}
		default:
			sanitized[cleanKey] = fmt.Sprint(v)
		}
	}
	return sanitized
}
