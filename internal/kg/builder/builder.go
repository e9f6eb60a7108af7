package builder

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/CedricPei/MAS-RAG/internal/dataset"
	"github.com/CedricPei/MAS-RAG/pkg/utils"
)

type NodeKind string

const (
	KindDatabase     NodeKind = "Database"
	KindQuestion     NodeKind = "Question"
	KindBridgeEntity NodeKind = "BridgeEntity"
	KindDocument     NodeKind = "Document"
)

// NodeKinds lists every label the graph uses.
var NodeKinds = []NodeKind{KindDatabase, KindQuestion, KindBridgeEntity, KindDocument}

type RelationType string

const (
	RelAsksAbout  RelationType = "ASKS_ABOUT"
	RelBridgesTo  RelationType = "BRIDGES_TO"
	RelAnsweredBy RelationType = "ANSWERED_BY"
	RelMentions   RelationType = "MENTIONS"
)

// RelationEnds fixes the endpoint labels of every relation type.
var RelationEnds = map[RelationType][2]NodeKind{
	RelAsksAbout:  {KindQuestion, KindDatabase},
	RelBridgesTo:  {KindQuestion, KindBridgeEntity},
	RelAnsweredBy: {KindQuestion, KindDocument},
	RelMentions:   {KindDocument, KindBridgeEntity},
}

type Node struct {
	Kind  NodeKind
	Key   string
	Props map[string]any
}

type Edge struct {
	Type RelationType
	From string
	To   string
}

// Lineage is the graph of one database's dataset, deduplicated by key.
type Lineage struct {
	Nodes []Node
	Edges []Edge
}

func (l Lineage) NodesOf(kind NodeKind) []Node {
	var out []Node
	for _, n := range l.Nodes {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

func (l Lineage) EdgesOf(rel RelationType) []Edge {
	var out []Edge
	for _, e := range l.Edges {
		if e.Type == rel {
			out = append(out, e)
		}
	}
	return out
}

type builder struct {
	lineage Lineage
	nodes   map[string]bool
	edges   map[Edge]bool
}

func (b *builder) node(kind NodeKind, key string, props map[string]any) {
	id := string(kind) + "\x00" + key
	if b.nodes[id] {
		return
	}
	b.nodes[id] = true
	b.lineage.Nodes = append(b.lineage.Nodes, Node{Kind: kind, Key: key, Props: props})
}

func (b *builder) edge(rel RelationType, from, to string) {
	e := Edge{Type: rel, From: from, To: to}
	if b.edges[e] {
		return
	}
	b.edges[e] = true
	b.lineage.Edges = append(b.lineage.Edges, e)
}

// Build links questions to their database, to the rows their bridge query
// returned and to the documents written for them. Questions that never got
// past generation still appear, attached only to the database.
func Build(dbID string, questions []dataset.QuestionRecord, bridged []dataset.BridgedRecord, docs []dataset.DocumentRecord) (Lineage, error) {
	b := &builder{nodes: map[string]bool{}, edges: map[Edge]bool{}}
	b.node(KindDatabase, dbID, map[string]any{"db_id": dbID})

	for _, q := range questions {
		b.question(q)
	}

	for _, rec := range bridged {
		b.question(rec.QuestionRecord)
		for _, row := range rec.Instance {
			key, props, err := entity(rec.DBID, row)
			if err != nil {
				return Lineage{}, err
			}
			b.node(KindBridgeEntity, key, props)
			b.edge(RelBridgesTo, QuestionKey(rec.DBID, rec.ID), key)
		}
	}

	for _, doc := range docs {
		b.question(doc.QuestionRecord)
		docKey := QuestionKey(doc.DBID, doc.ID)
		b.node(KindDocument, docKey, map[string]any{
			"db_id":     doc.DBID,
			"record_id": int64(doc.ID),
			"doc_type":  dataset.Deref(doc.DocType),
			"doc_desc":  dataset.Deref(doc.DocDesc),
			"doc":       dataset.Deref(doc.Doc),
			"answer":    dataset.Deref(doc.Answer),
		})
		b.edge(RelAnsweredBy, QuestionKey(doc.DBID, doc.ID), docKey)

		for _, row := range doc.TargetObject {
			key, props, err := entity(doc.DBID, row)
			if err != nil {
				return Lineage{}, err
			}
			b.node(KindBridgeEntity, key, props)
			b.edge(RelMentions, docKey, key)
		}
	}

	return b.lineage, nil
}

func (b *builder) question(q dataset.QuestionRecord) {
	key := QuestionKey(q.DBID, q.ID)
	b.node(KindQuestion, key, map[string]any{
		"db_id":           q.DBID,
		"record_id":       int64(q.ID),
		"question":        dataset.Deref(q.Question),
		"nl2sql_question": dataset.Deref(q.NL2SQLQuestion),
		"sql_answer":      dataset.Deref(q.SQLAnswer),
		"doc_type":        dataset.Deref(q.DocType),
	})
	b.edge(RelAsksAbout, key, q.DBID)
}

// QuestionKey identifies a record within the graph. Documents share the key
// of their question under a different label.
func QuestionKey(dbID string, id int) string {
	return dbID + "/" + strconv.Itoa(id)
}

// entity keys a bridge row by its content so the same row returned for two
// questions becomes one node.
func entity(dbID string, row dataset.Row) (string, map[string]any, error) {
	data, err := json.Marshal(row)
	if err != nil {
		return "", nil, fmt.Errorf("failed to encode bridge row: %w", err)
	}

	label := ""
	if len(row.Values) > 0 {
		label = fmt.Sprint(row.Values[0])
	}
	return utils.HashParts(dbID, string(data)), map[string]any{
		"db_id":   dbID,
		"label":   label,
		"columns": append([]string(nil), row.Columns...),
		"row":     string(data),
	}, nil
}
