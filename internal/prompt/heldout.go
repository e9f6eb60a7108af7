package prompt

// HeldOutInput is a question paired with a document, shown without the rows
// that were meant to complete it.
type HeldOutInput struct {
	Question string
	Doc      string
}

var heldOutSystem = `You answer questions strictly from a single passage.

Use nothing but the passage. If the passage by itself does not determine one specific
answer, because it depends on a fact the passage does not state, reply with null.

Return one JSON object only:
{"answer": "..."} or {"answer": null}`

var heldOutUser = Must(New("held_out_user", `
PASSAGE:
{{.Doc}}

QUESTION:
{{.Question}}
`))

func HeldOutSystem() string {
	return heldOutSystem
}

func HeldOutUser(in HeldOutInput) (string, error) {
	return heldOutUser.Render(in)
}
