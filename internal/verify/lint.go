package verify

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jdkato/prose/v2"

	"github.com/CedricPei/MAS-RAG/internal/dataset"
)

type Issue string

const (
	IssueMissingFields  Issue = "missing_fields"
	IssueTooShort       Issue = "too_short"
	IssueTooLong        Issue = "too_long"
	IssueMarkup         Issue = "html_markup"
	IssueMarkdown       Issue = "markdown_structure"
	IssueProvenance     Issue = "provenance_leak"
	IssueAnswerAbsent   Issue = "answer_absent"
	IssueAnswerRepeated Issue = "answer_repeated"
)

type LintConfig struct {
	MinWords int
	MaxWords int
}

// DefaultLintConfig brackets the roughly 500 words documents are asked for.
func DefaultLintConfig() LintConfig {
	return LintConfig{MinWords: 250, MaxWords: 900}
}

// DocumentFinding is the lint result of one document.
type DocumentFinding struct {
	RecordID    int     `json:"record_id"`
	Words       int     `json:"words"`
	Sentences   int     `json:"sentences"`
	AnswerCount int     `json:"answer_count"`
	Issues      []Issue `json:"issues,omitempty"`
}

func (f DocumentFinding) Clean() bool { return len(f.Issues) == 0 }

var (
	markdownLine = regexp.MustCompile(`(?m)^\s*(?:[-*+•]\s+|\d+[.)]\s+|\|.*\||#{1,6}\s)`)
	provenance   = regexp.MustCompile(`(?i)\b(?:sql|databases?|quer(?:y|ies|ied)|schemas?|db_instance|target_object|nl2sql\w*|bridge instance)\b`)
	markupTags   = "table, tr, td, th, ul, ol, li, h1, h2, h3"
)

// LintDocument applies the structural checks a document must pass. The
// held-out answerability check is separate because it needs the oracle.
func LintDocument(rec dataset.DocumentRecord, cfg LintConfig) (DocumentFinding, error) {
	finding := DocumentFinding{RecordID: rec.ID}
	if rec.Doc == nil || rec.Answer == nil || strings.TrimSpace(*rec.Doc) == "" {
		finding.Issues = append(finding.Issues, IssueMissingFields)
		return finding, nil
	}
	text := *rec.Doc

	doc, err := prose.NewDocument(text, prose.WithTagging(false), prose.WithExtraction(false))
	if err != nil {
		return finding, fmt.Errorf("failed to segment document %d: %w", rec.ID, err)
	}
	finding.Sentences = len(doc.Sentences())
	for _, tok := range doc.Tokens() {
		if isWord(tok.Text) {
			finding.Words++
		}
	}

	if cfg.MinWords > 0 && finding.Words < cfg.MinWords {
		finding.Issues = append(finding.Issues, IssueTooShort)
	}
	if cfg.MaxWords > 0 && finding.Words > cfg.MaxWords {
		finding.Issues = append(finding.Issues, IssueTooLong)
	}

	html, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return finding, fmt.Errorf("failed to parse document %d: %w", rec.ID, err)
	}
	if html.Find(markupTags).Length() > 0 {
		finding.Issues = append(finding.Issues, IssueMarkup)
	}
	if markdownLine.MatchString(text) {
		finding.Issues = append(finding.Issues, IssueMarkdown)
	}
	if provenance.MatchString(text) {
		finding.Issues = append(finding.Issues, IssueProvenance)
	}

	answer := strings.ToLower(strings.TrimSpace(*rec.Answer))
	if answer != "" {
		finding.AnswerCount = strings.Count(strings.ToLower(text), answer)
	}
	switch {
	case finding.AnswerCount == 0:
		finding.Issues = append(finding.Issues, IssueAnswerAbsent)
	case finding.AnswerCount > 1:
		finding.Issues = append(finding.Issues, IssueAnswerRepeated)
	}

	return finding, nil
}

func isWord(token string) bool {
	for _, r := range token {
		if ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9') || r > 127 {
			return true
		}
	}
	return false
}
