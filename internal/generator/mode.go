package generator

import (
	"fmt"
	"strings"

	"github.com/CedricPei/MAS-RAG/internal/dataset"
	"github.com/CedricPei/MAS-RAG/internal/prompt"
)

// Mode selects how questions are designed and which document type they carry.
type Mode string

const (
	ModeTargeted   Mode = "targeted"
	ModeCollection Mode = "collection"
	ModeOpen       Mode = "open"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeTargeted, ModeCollection, ModeOpen:
		return m, nil
	default:
		return "", fmt.Errorf("unknown mode %q (want targeted, collection or open)", s)
	}
}

// DocType is the fixed document type of the mode, or nil when the oracle asserts it.
func (m Mode) DocType() *string {
	switch m {
	case ModeTargeted:
		return dataset.StringPtr(dataset.DocTypeTargeted)
	case ModeCollection:
		return dataset.StringPtr(dataset.DocTypeCollection)
	default:
		return nil
	}
}

// Temperature used when proposing questions.
func (m Mode) Temperature() float32 {
	if m == ModeOpen {
		return 0
	}
	return 0.4
}

// Accepts reports whether a record with docType proceeds to synthesis.
func (m Mode) Accepts(docType *string) bool {
	fixed := m.DocType()
	if fixed == nil {
		return true
	}
	return docType != nil && *docType == *fixed
}

func (m Mode) style() prompt.Style {
	switch m {
	case ModeCollection:
		return prompt.StyleCollection
	case ModeOpen:
		return prompt.StyleOpen
	default:
		return prompt.StyleTargeted
	}
}
