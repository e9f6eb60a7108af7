package prompt

import "strings"

type DocumentInput struct {
	Question       string
	NL2SQLQuestion string
	DocDesc        string
	Instance       string
	Collection     bool
}

var documentSystem = Must(New("document_system", `
You write internal narrative documents: policies, handbooks, memos.

Each task provides only:
- QUESTION: the final user question.
- NL2SQL_QUESTION: the intermediate question answered by a relational database.
- DOC_DESC: a description of the document to write.
- DB_INSTANCE: the rows that answer NL2SQL_QUESTION.

DB_INSTANCE is established fact. QUESTION must be answerable only by combining that fact
with the document you write.

Write ONE document section "doc" that:
- matches DOC_DESC in scope and register;
- makes the entity or entities in DB_INSTANCE relevant by name;
- reads as complete institutional text with surrounding definitions and conditions;
- contains the single fact that answers QUESTION exactly once, inside ordinary prose,
  never as a labelled callout such as "Answer:";
- includes several nearby plausible numbers, dates, fees or thresholds from the same
  policy domain so the needed fact does not stand alone.
{{- if .Collection}}
- covers several members of the group in DB_INSTANCE, giving each its own details, so
  the final answer comes from comparing them inside the document.
{{- end}}

Then give "answer": a short, unambiguous phrase answering QUESTION that can be read off
the document.

Strict rules:
- Pure narrative prose in paragraphs. No tables, no bullet or numbered lists.
- Never mention SQL, databases, queries, NL2SQL_QUESTION, DB_INSTANCE, or where any fact
  came from. Do not explain reasoning or mention multi-hop questions.
- The document alone must NOT answer QUESTION: do not restate the DB_INSTANCE result as
  the answer to NL2SQL_QUESTION or link the two.
- Aim for about 500 words.

Return one JSON object only:
{"doc": "...", "answer": "..."}
`))

var documentUser = Must(New("document_user", `
QUESTION:
{{.Question}}

NL2SQL_QUESTION:
{{.NL2SQLQuestion}}

DOC_DESC:
{{.DocDesc}}

DB_INSTANCE:
{{.Instance}}

Using only the information above and the system instructions, write the document and the
answer as one JSON object.
`))

func DocumentSystem(collection bool) (string, error) {
	return documentSystem.Render(DocumentInput{Collection: collection})
}

func DocumentUser(in DocumentInput) (string, error) {
	return documentUser.Render(in)
}

func trim(s string) string {
	return strings.TrimSpace(s)
}
