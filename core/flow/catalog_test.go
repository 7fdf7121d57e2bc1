package flow

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogIsValid(t *testing.T) {
	cat, err := LoadCatalog("")
	require.NoError(t, err)
	assert.Contains(t, cat.GreetingWords, "namasthe")
	for _, intent := range intentOrder {
		assert.NotEmpty(t, cat.Intents[intent], intent)
	}
	_, ok := cat.City("bangalore")
	assert.True(t, ok)
}

func TestLoadCatalogFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	data := append([]byte(nil), defaultCatalog...)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	cat, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.Len(t, cat.Cities, 3)

	_, err = LoadCatalog(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestParseCatalogRejects(t *testing.T) {
	_, err := ParseCatalog([]byte("greeting_words: [hi]\nunknown_key: 1\n"))
	assert.Error(t, err)

	_, err = ParseCatalog([]byte("greeting_words: [hi]\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "texts.farewell is empty")
}

func TestKeywordsMatch(t *testing.T) {
	kw := Keywords{"fee", "pric*", "call back"}
	assert.True(t, kw.match(normalize(Input{Text: "Fee?"})))
	assert.True(t, kw.match(normalize(Input{Text: "pricing"})))
	assert.True(t, kw.match(normalize(Input{Text: "please call-back"})))
	assert.True(t, kw.match(normalize(Input{SelectionID: "fee"})))
	assert.False(t, kw.match(normalize(Input{Text: "feedback"})))
	assert.False(t, kw.match(normalize(Input{Text: "call me back"})))
	assert.False(t, kw.match(normalize(Input{})))
}
