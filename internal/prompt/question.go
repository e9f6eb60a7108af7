package prompt

import "fmt"

// Style selects the question design rules.
type Style int

const (
	// StyleTargeted: the document covers exactly the entity the query returns.
	StyleTargeted Style = iota
	// StyleCollection: the query narrows to a group and the document compares its members.
	StyleCollection
	// StyleOpen: the oracle decides between the two and reports doc_type.
	StyleOpen
)

type QuestionInput struct {
	Schema            string
	Glossary          string
	ExistingQuestions string
}

const sharedInputs = `Each task provides only:
- REL_DB_SCHEMA: the schema of a relational database (RDB), one TABLE block per table.
- COLUMN_DESCRIPTION_JSON: narrative descriptions of the columns.
- EXISTING_QUESTIONS: questions already generated for this database, one per line.`

const sharedDiversity = `- Diversity: the new question MUST differ clearly from every line in EXISTING_QUESTIONS.
  The entity type may stay the same, but change the SQL shape (different WHERE filters,
  JOIN paths, ORDER BY or GROUP BY criteria) and the document topic (a different policy
  category or question domain). Swapping only a place name or a single metric is not enough.
- Keep the question simple: no nested conditions and no geographic or administrative
  qualifiers unless they are needed to disambiguate.
- Natural wording; never write "according to" or "reference".
- SQL must be a single line with no comments. Do not execute it.`

const targetedSystem = `
You design multi-hop, multi-source questions.
` + sharedInputs + `

Goals:
1. Write ONE concise English question (one sentence, two at most) that can only be
   answered by first solving a new NL2SQL sub-question on the RDB and then reading exactly
   one document from a vector document base (VDB).
2. State that NL2SQL sub-question (join at least two tables where the schema allows) and
   give the exact SQL text that answers it.
3. Describe the document the VDB must return so that both hops together yield one
   deterministic fact: a number, limit, tier, threshold or date.

Constraints:
- The SQL must return an identifier or text key, never a count or other aggregate, so
  that its result can key the document lookup.
- Scope everything to exactly the entity the SQL returns; no parent or owner qualifiers
  unless the SQL returns them.
- The NL2SQL sub-question and SQL fetch only that entity.
- Document description: narrative policy or handbook text (definitions, limits,
  exceptions, effective dates), no tables; the final answer is objective and unique.
- Entity continuity: when EXISTING_QUESTIONS is given, keep the SQL result in the same
  entity type as before; otherwise choose the most natural single entity.
` + sharedDiversity + `

Return one JSON object only:
{"question": "...", "nl2sql_question": "...", "sql_answer": "...", "doc_desc": "..."}
`

const collectionSystem = `
You design multi-hop, multi-source questions that need a collection-level document.
` + sharedInputs + `

Goal: write ONE concise English question answered in two hops.
- Hop 1 (NL2SQL): a SQL query returns a higher-level group or context (a district,
  publisher, league) that does not by itself answer the question.
- Hop 2 (document): a narrative document covering several members of that group is
  needed to compare them and find the final item or value.

Constraints:
- The SQL hop must not answer the question alone; the deciding comparison happens inside
  the document.
- Prefer joins. Return identifiers or names that define the group, not bare aggregates.
- The document description must make clear the document is a group-wide policy, manual or
  schedule covering multiple entities, with the details needed to pick the final answer.
` + sharedDiversity + `

Return one JSON object only:
{"question": "...", "nl2sql_question": "...", "sql_answer": "...", "doc_desc": "..."}
`

const openSystem = `
You design multi-hop, multi-source questions.
` + sharedInputs + `

Goals:
1. Write ONE concise English question that needs a new NL2SQL sub-question on the RDB
   followed by exactly one document from a vector document base (VDB).
2. State the NL2SQL sub-question (join at least two tables where possible) and give the
   exact SQL text that answers it.
3. Describe the document needed so that both hops yield one deterministic fact.
4. Classify the document:
   - "targeted_rule" when it concerns exactly the entity the SQL returns;
   - "collection_rule" when it spans a group containing that entity and the final answer
     needs a comparison inside the document.

Constraints:
- The SQL returns an identifier or text key that becomes the condition for the document
  lookup, not a count or aggregate.
- The question depends on both sources and stays one self-contained request.
- The document description names the policy or handbook content required without
  writing the document itself.
` + sharedDiversity + `

Return one JSON object only:
{"question": "...", "nl2sql_question": "...", "sql_answer": "...", "doc_type": "targeted_rule|collection_rule", "doc_desc": "..."}
`

var questionUser = Must(New("question_user", `
REL_DB_SCHEMA:
{{.Schema}}

COLUMN_DESCRIPTION_JSON:
{{.Glossary}}

EXISTING_QUESTIONS:
{{.ExistingQuestions}}

Using only the schema and column descriptions, design the multi-source question described
in the system instructions. Write the NL2SQL sub-question yourself, put its exact SQL in
"sql_answer", and describe the needed document in "doc_desc".
`))

func QuestionSystem(style Style) (string, error) {
	switch style {
	case StyleTargeted:
		return targetedSystemText, nil
	case StyleCollection:
		return collectionSystemText, nil
	case StyleOpen:
		return openSystemText, nil
	default:
		return "", fmt.Errorf("unknown question style %d", style)
	}
}

func QuestionUser(in QuestionInput) (string, error) {
	return questionUser.Render(in)
}

var (
	targetedSystemText   = trim(targetedSystem)
	collectionSystemText = trim(collectionSystem)
	openSystemText       = trim(openSystem)
)
