package dataset

import (
	"fmt"
	"path/filepath"
)

// Artifact names one of the three per-database output files.
type Artifact string

const (
	ArtifactQuestions Artifact = "questions"
	ArtifactBridged   Artifact = "bridged"
	ArtifactDocuments Artifact = "documents"
)

// Layout maps a database id to its artifact paths:
//
//	<root>/<db>/<prefix>_<db>.json
//	<root>/<db>/exe_<prefix>_<db>.json
//	<root>/<db>/<prefix>_doc_<db>.json
type Layout struct {
	Root   string
	Prefix string
}

func (l Layout) Dir(dbID string) string {
	return filepath.Join(l.Root, dbID)
}

func (l Layout) Questions(dbID string) string {
	return filepath.Join(l.Dir(dbID), fmt.Sprintf("%s_%s.json", l.Prefix, dbID))
}

func (l Layout) Bridged(dbID string) string {
	return filepath.Join(l.Dir(dbID), fmt.Sprintf("exe_%s_%s.json", l.Prefix, dbID))
}

func (l Layout) Documents(dbID string) string {
	return filepath.Join(l.Dir(dbID), fmt.Sprintf("%s_doc_%s.json", l.Prefix, dbID))
}

func (l Layout) Path(dbID string, artifact Artifact) (string, error) {
	switch artifact {
	case ArtifactQuestions:
		return l.Questions(dbID), nil
	case ArtifactBridged:
		return l.Bridged(dbID), nil
	case ArtifactDocuments:
		return l.Documents(dbID), nil
	default:
		return "", fmt.Errorf("unknown artifact %q", artifact)
	}
}
