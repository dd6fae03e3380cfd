package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/seedloop/internal/model"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadSeeds(t *testing.T) {
	path := writeFile(t, "seeds.yaml", `
seeds:
  - e1: {kind: person, key: alice}
    relation: works_at
    e2: {kind: org, key: acme}
  - e1: {kind: person, key: bob}
    relation: works_at
    e2: {kind: org, key: globex}
`)
	seeds, err := loadSeeds(path)
	require.NoError(t, err)
	require.Len(t, seeds, 2)
	assert.Equal(t, model.Fact{
		E1:       model.Entity{Kind: "person", Key: "alice"},
		Relation: "works_at",
		E2:       model.Entity{Kind: "org", Key: "acme"},
	}, seeds[0])
}

func TestLoadSeeds_Invalid(t *testing.T) {
	_, err := loadSeeds(writeFile(t, "empty.yaml", "seeds: []\n"))
	assert.Error(t, err)

	_, err = loadSeeds(writeFile(t, "partial.yaml", `
seeds:
  - e1: {kind: person}
    relation: works_at
    e2: {kind: org, key: acme}
`))
	assert.Error(t, err)

	_, err = loadSeeds(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadGold(t *testing.T) {
	path := writeFile(t, "gold.yaml", `
gold:
  - fact:
      e1: {kind: person, key: alice}
      relation: works_at
      e2: {kind: org, key: acme}
    segment: "doc#0"
    o1: 0
    o2: 1
    label: true
  - fact:
      e1: {kind: person, key: bob}
      relation: works_at
      e2: {kind: org, key: globex}
    segment: "doc#1"
    o1: 0
    o2: 1
    label: false
`)
	gold, err := loadGold(path)
	require.NoError(t, err)
	require.Equal(t, 2, gold.Len())

	s, ok := gold.Get(aliceEvidence())
	require.True(t, ok)
	assert.Equal(t, model.Label(true), s)

	_, err = loadGold(writeFile(t, "bad.yaml", "gold:\n  - label: true\n"))
	assert.Error(t, err)
}
