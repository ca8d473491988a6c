/*
Package graph builds the cross-document consistency graph for a shipment.

PURPOSE:
  Documents describing the same shipment should agree on its facts: the
  batch they reference, who exported it, how much was shipped, when, and
  under which certificate. This package groups ledger records into a
  shipment cohort, computes per-field consensus, and emits a node/edge
  graph that makes agreement and disagreement visible.

  The graph is DERIVED state: it is recomputed from the current ledger on
  every query and never persisted. Its only data source is the ledger,
  whose ordering and immutability guarantees it relies on.

KEY CONCEPTS IN THIS FILE (types.go):
  - Node: A document (one ledger record) or an entity (one normalized value)
  - Edge: A document's relation to a field's cohort consensus (MATCH/MISMATCH)
  - ConsistencyGraph: The full payload for one shipment

INVARIANTS:
  - Exactly one edge per (document node, tracked field) pair
  - Entity nodes are deduplicated by (field, normalized value): documents
    agreeing on a value share one entity node
  - Node and edge ids are deterministic: the same cohort always yields the
    same graph

SEE ALSO:
  - normalize.go: Value canonicalization for comparison
  - builder.go: Cohort selection, consensus, emission
*/
package graph

import "errors"

// ErrShipmentNotFound is returned when no ledger record matches the
// requested shipment ID.
var ErrShipmentNotFound = errors.New("shipment not found")

// =============================================================================
// NODES AND EDGES
// =============================================================================

// NodeType distinguishes document nodes from entity nodes.
type NodeType string

const (
	NodeDocument NodeType = "document"
	NodeEntity   NodeType = "entity"
)

// EdgeType is a document's relation to a field's cohort consensus.
type EdgeType string

const (
	EdgeMatch    EdgeType = "MATCH"
	EdgeMismatch EdgeType = "MISMATCH"
)

// Node is a document or entity vertex.
type Node struct {
	ID       string         `json:"id"`
	Label    string         `json:"label"`
	NodeType NodeType       `json:"node_type"`
	Metadata map[string]any `json:"metadata"`
}

// Edge relates a document node to an entity node for one tracked field.
type Edge struct {
	ID          string   `json:"id"`
	Source      string   `json:"source"`
	Target      string   `json:"target"`
	Type        EdgeType `json:"type"`
	FieldName   string   `json:"field_name"`
	Explanation string   `json:"explanation"`
}

// ConsistencyGraph is the payload for one shipment.
type ConsistencyGraph struct {
	ShipmentID string `json:"shipment_id"`
	Nodes      []Node `json:"nodes"`
	Edges      []Edge `json:"edges"`
}
