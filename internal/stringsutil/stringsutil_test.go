package stringsutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiff(t *testing.T) {
	toRemove, toAdd := Diff([]string{"A", "B"}, []string{"B", "C"})
	assert.Equal(t, []string{"A"}, toRemove)
	assert.Equal(t, []string{"C"}, toAdd)
}

func TestDiff_KeepsDesiredOrderAndDropsDuplicates(t *testing.T) {
	toRemove, toAdd := Diff(nil, []string{"Z", "A", "Z", "M"})
	assert.Empty(t, toRemove)
	assert.Equal(t, []string{"Z", "A", "M"}, toAdd)
}

func TestDiff_Equal(t *testing.T) {
	toRemove, toAdd := Diff([]string{"A", "B"}, []string{"B", "A"})
	assert.Empty(t, toRemove)
	assert.Empty(t, toAdd)
}

func TestDedupeStrings(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, DedupeStrings([]string{" a", "b", "", "a "}))
	assert.Nil(t, DedupeStrings(nil))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"x", "y"}, SplitList("x, y,,x"))
	assert.Nil(t, SplitList("  "))
}
