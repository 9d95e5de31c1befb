package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPassageSourcesFirstSeenOrder(t *testing.T) {
	passages := []Passage{
		{Source: "b.md"},
		{Source: "a.md"},
		{Source: "b.md"},
		{Source: ""},
		{Source: "c.md"},
	}
	assert.Equal(t, []string{"b.md", "a.md", "c.md"}, passageSources(passages))
}

func TestPassageSourcesEmpty(t *testing.T) {
	assert.Nil(t, passageSources(nil))
}

func TestSourceLinksCombinesRetrievalThenAuxiliary(t *testing.T) {
	resp := Response{
		Sources:     []string{"a.md", "b.md"},
		SourceLinks: []string{"https://x.example", "a.md"},
	}
	assert.Equal(t, []string{"a.md", "b.md", "https://x.example"}, SourceLinks(resp))
}

func TestSourceLinksEmptyResponseAllocatesNothing(t *testing.T) {
	assert.Nil(t, SourceLinks(Response{}))
}

func TestSourceLinksOnlyAuxiliary(t *testing.T) {
	resp := Response{SourceLinks: []string{"https://x.example", "https://x.example"}}
	assert.Equal(t, []string{"https://x.example"}, SourceLinks(resp))
}

func TestSerializePassages(t *testing.T) {
	out := serializePassages([]Passage{
		{Source: "a.md", Text: "first"},
		{Source: "b.md", Text: "second"},
	})
	assert.Equal(t, "SOURCE: a.md\nfirst\n\n---\n\nSOURCE: b.md\nsecond", out)
}

func TestSerializePassagesEmpty(t *testing.T) {
	assert.Contains(t, serializePassages(nil), "nothing relevant")
}
