// Package packs provides the builtin training corpora and validation for
// uploaded ones. A pack id is either a builtin name or "upload:<id>".
package packs

import (
	"embed"
	"fmt"
	"strings"
)

//go:embed data/*.txt
var packFS embed.FS

// MaxCorpusChars caps the joined corpus size for any pack.
const MaxCorpusChars = 200_000

// UploadPrefix marks pack ids that reference an uploaded corpus.
const UploadPrefix = "upload:"

// Descriptor describes a builtin pack for listing.
type Descriptor struct {
	PackID         string `json:"pack_id"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	DocumentCount  int    `json:"document_count"`
	CharacterCount int    `json:"character_count"`
}

type packMeta struct {
	title       string
	description string
}

// builtinOrder fixes the listing order.
var builtinOrder = []string{"regex", "abc_music", "chess_pgn", "sql_snippets", "arithmetic", "json"}

var builtinMeta = map[string]packMeta{
	"regex":        {"Regex Patterns", "Common practical regular expression snippets."},
	"abc_music":    {"ABC Music", "Small melodic snippets in ABC notation."},
	"chess_pgn":    {"Chess PGN", "Short opening and tactical move sequences."},
	"sql_snippets": {"SQL Snippets", "Short query patterns and clauses."},
	"arithmetic":   {"Arithmetic", "Digit-level addition and subtraction templates."},
	"json":         {"JSON Objects", "Small fixed-schema JSON lines with typed fields."},
}

// IsBuiltin reports whether the id names a builtin pack.
func IsBuiltin(packID string) bool {
	_, ok := builtinMeta[packID]
	return ok
}

// UploadID extracts the upload id from an "upload:<id>" pack id.
func UploadID(packID string) (string, bool) {
	if !strings.HasPrefix(packID, UploadPrefix) {
		return "", false
	}
	return strings.TrimPrefix(packID, UploadPrefix), true
}

// Docs returns the documents of a builtin pack.
func Docs(packID string) ([]string, error) {
	if !IsBuiltin(packID) {
		return nil, fmt.Errorf("unknown pack: %s", packID)
	}
	raw, err := packFS.ReadFile("data/" + packID + ".txt")
	if err != nil {
		return nil, fmt.Errorf("read pack %s: %w", packID, err)
	}
	return docsFromText(string(raw))
}

// Descriptors returns listing metadata for every builtin pack.
func Descriptors() ([]Descriptor, error) {
	out := make([]Descriptor, 0, len(builtinOrder))
	for _, packID := range builtinOrder {
		docs, err := Docs(packID)
		if err != nil {
			return nil, err
		}
		joined := strings.Join(docs, "\n")
		meta := builtinMeta[packID]
		out = append(out, Descriptor{
			PackID:         packID,
			Title:          meta.title,
			Description:    meta.description,
			DocumentCount:  len(docs),
			CharacterCount: len([]rune(joined)),
		})
	}
	return out, nil
}

// Resolve returns the training documents for a pack id. uploadText must be
// supplied for upload-backed packs.
func Resolve(packID string, uploadText string) ([]string, error) {
	if IsBuiltin(packID) {
		return Docs(packID)
	}
	if _, ok := UploadID(packID); ok {
		if uploadText == "" {
			return nil, fmt.Errorf("upload not found")
		}
		return docsFromText(uploadText)
	}
	return nil, fmt.Errorf("unknown pack: %s", packID)
}

// docsFromText splits corpus text into non-empty trimmed lines.
func docsFromText(text string) ([]string, error) {
	var docs []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			docs = append(docs, line)
		}
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("corpus contains no non-empty documents")
	}
	joined := strings.Join(docs, "\n")
	if len([]rune(joined)) > MaxCorpusChars {
		return nil, fmt.Errorf("corpus exceeds %d characters", MaxCorpusChars)
	}
	return docs, nil
}
