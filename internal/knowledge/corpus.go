// Package knowledge embeds the financial knowledge base and turns it into
// index chunks.
package knowledge

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"wealthadvisor-ai/pkg/utils"
	"wealthadvisor-ai/pkg/vectorindex"
)

//go:embed corpus.yaml
var corpusYAML []byte

type Document struct {
	Title    string `yaml:"title"`
	Category string `yaml:"category"`
	Content  string `yaml:"content"`
}

type corpusFile struct {
	Documents []Document `yaml:"documents"`
}

func Documents() ([]Document, error) {
	return parse(corpusYAML)
}

func parse(raw []byte) ([]Document, error) {
	var f corpusFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse knowledge corpus: %w", err)
	}
	for i, d := range f.Documents {
		if d.Title == "" || d.Category == "" || d.Content == "" {
			return nil, fmt.Errorf("knowledge corpus entry %d is incomplete", i)
		}
	}
	return f.Documents, nil
}

// Chunks splits every document and copies its metadata onto each piece.
func Chunks(chunkSize, overlap int) ([]vectorindex.Chunk, error) {
	docs, err := Documents()
	if err != nil {
		return nil, err
	}
	return ChunkDocuments(docs, chunkSize, overlap), nil
}

func ChunkDocuments(docs []Document, chunkSize, overlap int) []vectorindex.Chunk {
	var out []vectorindex.Chunk
	for _, d := range docs {
		meta := vectorindex.Metadata{
			Title:    d.Title,
			Category: d.Category,
			Source:   fmt.Sprintf("knowledge_base/%s/%s", d.Category, d.Title),
		}
		for _, piece := range utils.SplitText(d.Content, chunkSize, overlap) {
			out = append(out, vectorindex.Chunk{Content: piece, Metadata: meta})
		}
	}
	return out
}

// CorpusFunc adapts Chunks to the index rebuild hook.
func CorpusFunc(chunkSize, overlap int) vectorindex.CorpusFunc {
	return func() ([]vectorindex.Chunk, error) {
		return Chunks(chunkSize, overlap)
	}
}
