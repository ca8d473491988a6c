/*
builder.go - Shipment cohort selection, consensus, and graph emission

PURPOSE:
  Builds the consistency graph for one shipment from the current ledger
  state. The builder's correctness leans entirely on the ledger's ordering
  and immutability: records are processed in append order, and the same
  ledger always produces the same graph.

PIPELINE:
  1. Cohort: every record whose ledger batch ID or extracted batch ID
     equals the shipment ID, plus ONE expansion hop over the extracted
     batch IDs those records reference. Not a transitive closure: a
     document three hops away through chained references stays out.
  2. Normalize each record's tracked fields; absent values get a sentinel
     key that never collides with a real value.
  3. Consensus per field: highest occurrence count among present values,
     ties broken by lexicographic order of the normalized key. The
     tie-break is arbitrary but explicit; reproducibility is the
     requirement, not semantic correctness.
  4. Emit one document node per record, one entity node per distinct
     (field, normalized value), and exactly one edge per (record, field).

SEE ALSO:
  - normalize.go: Value canonicalization
  - ledger/store.go: The builder's only data source
*/
package graph

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/veritrail/ledger-engine/ledger"
)

// TrackedFields are the five extracted fields compared across a cohort,
// in emission order.
var TrackedFields = []string{"batch_id", "exporter", "quantity", "dates", "certificate_id"}

// missingKey is the comparison key for records lacking a field. The NUL
// prefix keeps it from ever equaling a normalized real value.
const missingKey = "\x00missing"

// =============================================================================
// BUILDER
// =============================================================================

// Builder constructs consistency graphs from ledger state.
type Builder struct {
	store  ledger.Store
	logger *slog.Logger
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) BuilderOption {
	return func(b *Builder) { b.logger = logger }
}

// NewBuilder creates a Builder reading from store.
func NewBuilder(store ledger.Store, opts ...BuilderOption) *Builder {
	b := &Builder{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build returns the consistency graph for shipmentID, or ErrShipmentNotFound
// if no record matches.
func (b *Builder) Build(ctx context.Context, shipmentID string) (*ConsistencyGraph, error) {
	records, err := b.store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger records: %w", err)
	}

	cohort := selectCohort(records, shipmentID)
	if len(cohort) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrShipmentNotFound, shipmentID)
	}
	b.logger.Debug("shipment cohort selected", "shipment_id", shipmentID, "records", len(cohort))

	values := normalizeCohort(cohort)
	consensus := computeConsensus(values)
	return emit(shipmentID, cohort, values, consensus), nil
}

// =============================================================================
// COHORT SELECTION - Direct matches plus one expansion hop
// =============================================================================

func extractedBatchID(r *ledger.Record) (string, bool) {
	id := r.DocumentMetadata.ExtractedEntities.BatchID
	if id == nil || *id == "" {
		return "", false
	}
	return *id, true
}

func selectCohort(records []ledger.Record, shipmentID string) []*ledger.Record {
	selected := make([]bool, len(records))

	// Direct matches: ledger-assigned batch ID or the document's own claim.
	for i := range records {
		if records[i].BatchID == shipmentID {
			selected[i] = true
			continue
		}
		if id, ok := extractedBatchID(&records[i]); ok && id == shipmentID {
			selected[i] = true
		}
	}

	// One expansion hop: any record claiming a batch ID that a selected
	// record also claims. Chains longer than one hop are not followed.
	referenced := make(map[string]bool)
	for i := range records {
		if !selected[i] {
			continue
		}
		if id, ok := extractedBatchID(&records[i]); ok {
			referenced[id] = true
		}
	}
	for i := range records {
		if selected[i] {
			continue
		}
		if id, ok := extractedBatchID(&records[i]); ok && referenced[id] {
			selected[i] = true
		}
	}

	var cohort []*ledger.Record
	for i := range records {
		if selected[i] {
			cohort = append(cohort, &records[i])
		}
	}
	return cohort
}

// =============================================================================
// NORMALIZATION AND CONSENSUS
// =============================================================================

// fieldValue normalizes one tracked field of one record.
func fieldValue(r *ledger.Record, field string) (Value, bool) {
	e := r.DocumentMetadata.ExtractedEntities
	switch field {
	case "batch_id":
		return normalizeOptional(e.BatchID)
	case "exporter":
		return normalizeOptional(e.Exporter)
	case "quantity":
		return normalizeOptional(e.Quantity)
	case "certificate_id":
		return normalizeOptional(e.CertificateID)
	case "dates":
		return NormalizeDateSet(e.Dates)
	}
	return Value{}, false
}

func normalizeOptional(raw *string) (Value, bool) {
	if raw == nil {
		return Value{}, false
	}
	return NormalizeScalar(*raw)
}

// normalizeCohort returns, per record, the normalized value of each tracked
// field. Missing fields carry the sentinel key.
func normalizeCohort(cohort []*ledger.Record) []map[string]Value {
	out := make([]map[string]Value, len(cohort))
	for i, rec := range cohort {
		out[i] = make(map[string]Value, len(TrackedFields))
		for _, field := range TrackedFields {
			if v, ok := fieldValue(rec, field); ok {
				out[i][field] = v
			} else {
				out[i][field] = Value{Key: missingKey, Display: "missing"}
			}
		}
	}
	return out
}

// computeConsensus picks, per field, the most frequent present value.
// Ties break to the lexicographically smallest normalized key. Fields with
// no present value have no consensus.
func computeConsensus(values []map[string]Value) map[string]Value {
	consensus := make(map[string]Value, len(TrackedFields))
	for _, field := range TrackedFields {
		counts := make(map[string]int)
		display := make(map[string]string)
		for _, recordValues := range values {
			v := recordValues[field]
			if v.Key == missingKey {
				continue
			}
			counts[v.Key]++
			if _, ok := display[v.Key]; !ok {
				display[v.Key] = v.Display
			}
		}

		var best string
		for key, n := range counts {
			if best == "" || n > counts[best] || (n == counts[best] && key < best) {
				best = key
			}
		}
		if best != "" {
			consensus[field] = Value{Key: best, Display: display[best]}
		}
	}
	return consensus
}

// =============================================================================
// GRAPH EMISSION
// =============================================================================

// entityNodeID derives a deterministic id from (field, normalized value) so
// the same cohort always yields the same ids.
func entityNodeID(field, key string) string {
	sum := sha256.Sum256([]byte(field + "\x00" + key))
	return "entity-" + hex.EncodeToString(sum[:])[:12]
}

func emit(shipmentID string, cohort []*ledger.Record, values []map[string]Value, consensus map[string]Value) *ConsistencyGraph {
	g := &ConsistencyGraph{ShipmentID: shipmentID}

	// Document nodes, in ledger order. A duplicated batch ID within the
	// cohort gets an ordinal suffix so node ids stay unique.
	docIDs := make([]string, len(cohort))
	seenDoc := make(map[string]int)
	for i, rec := range cohort {
		id := "doc-" + rec.BatchID
		seenDoc[id]++
		if n := seenDoc[id]; n > 1 {
			id = fmt.Sprintf("%s-%d", id, n)
		}
		docIDs[i] = id
		g.Nodes = append(g.Nodes, Node{
			ID:       id,
			Label:    rec.DocumentMetadata.OriginalFilename,
			NodeType: NodeDocument,
			Metadata: map[string]any{
				"batch_id":      rec.BatchID,
				"file_id":       rec.FileID,
				"document_type": rec.DocumentMetadata.DocumentType,
				"risk_level":    rec.ValidationResult.RiskLevel,
				"fraud_score":   rec.ValidationResult.FraudScore,
			},
		})
	}

	// Entity nodes, deduplicated by (field, normalized value), in first
	// observed order. The per-field "missing" node is created on demand.
	entityIDs := make(map[string]string) // field+"\x00"+key -> node id
	entityNode := func(field string, v Value) string {
		mapKey := field + "\x00" + v.Key
		if id, ok := entityIDs[mapKey]; ok {
			return id
		}
		id := entityNodeID(field, v.Key)
		entityIDs[mapKey] = id
		metadata := map[string]any{"field_name": field}
		if v.Key == missingKey {
			metadata["missing"] = true
		} else {
			metadata["value"] = v.Display
		}
		g.Nodes = append(g.Nodes, Node{
			ID:       id,
			Label:    v.Display,
			NodeType: NodeEntity,
			Metadata: metadata,
		})
		return id
	}

	// Exactly one edge per (record, field).
	for i, rec := range cohort {
		filename := rec.DocumentMetadata.OriginalFilename
		for _, field := range TrackedFields {
			v := values[i][field]
			target := entityNode(field, v)
			cons, hasConsensus := consensus[field]

			var edgeType EdgeType
			var explanation string
			switch {
			case !hasConsensus:
				// No record in the cohort has this field; nothing to disagree with.
				edgeType = EdgeMatch
				explanation = fmt.Sprintf("%s has no %s value; no document in the cohort reports one.", filename, field)
			case v.Key == cons.Key:
				edgeType = EdgeMatch
				explanation = fmt.Sprintf("%s agrees with the cohort consensus for %s (%q).", filename, field, cons.Display)
			case v.Key == missingKey:
				edgeType = EdgeMismatch
				explanation = fmt.Sprintf("%s is missing %s, which the cohort consensus reports as %q.", filename, field, cons.Display)
			default:
				edgeType = EdgeMismatch
				explanation = fmt.Sprintf("%s reports %s %q, but the cohort consensus is %q.", filename, field, v.Display, cons.Display)
			}

			g.Edges = append(g.Edges, Edge{
				ID:          fmt.Sprintf("edge-%s-%s", docIDs[i], field),
				Source:      docIDs[i],
				Target:      target,
				Type:        edgeType,
				FieldName:   field,
				Explanation: explanation,
			})
		}
	}

	return g
}
