package resolver

import (
	"strconv"
	"testing"

	"github.com/kilupskalvis/lexmerge/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sense(id, gloss string) *models.Sense {
	return &models.Sense{ID: id, Gloss: models.MultiText{"en": gloss}}
}

func entryWith(senses ...*models.Sense) *models.Entry {
	return &models.Entry{ID: "target", Headword: "bank", Senses: senses}
}

func TestSignature_Normalizes(t *testing.T) {
	a := &models.Sense{Gloss: models.MultiText{"en": "River  Bank"}, Definition: models.MultiText{"en": "edge of a river"}}
	b := &models.Sense{Gloss: models.MultiText{"EN": " river bank "}, Definition: models.MultiText{"en": "Edge of a   river"}}
	assert.Equal(t, Signature(a), Signature(b))
	assert.NotEmpty(t, Signature(a))
}

func TestSignature_EmptyContent(t *testing.T) {
	assert.Equal(t, "", Signature(&models.Sense{ID: "s1"}))
	assert.Equal(t, "", Signature(&models.Sense{ID: "s1", Gloss: models.MultiText{"en": "   "}}))
}

func TestDetect_NoCollision(t *testing.T) {
	target := entryWith(sense("s1", "river bank"))
	assert.Nil(t, Detect(target, sense("s2", "money bank")))
}

func TestDetect_IDTakesPrecedence(t *testing.T) {
	target := entryWith(sense("s0", "money bank"), sense("s1", "river bank"))
	c := Detect(target, sense("s1", "money bank"))
	require.NotNil(t, c)
	assert.Equal(t, CollisionID, c.Type)
	assert.Equal(t, 1, c.ExistingIndex)
}

func TestDetect_Signature(t *testing.T) {
	target := entryWith(sense("s1", "river bank"))
	c := Detect(target, sense("x9", "River Bank"))
	require.NotNil(t, c)
	assert.Equal(t, CollisionSignature, c.Type)
	assert.Equal(t, "s1", c.ExistingID)
}

func TestDetect_EmptySignatureNeverCollides(t *testing.T) {
	target := entryWith(&models.Sense{ID: "s1"})
	assert.Nil(t, Detect(target, &models.Sense{ID: "s2"}))
}

func TestResolve_InsertWithoutCollision(t *testing.T) {
	d, err := Resolve(entryWith(sense("s1", "a")), sense("s2", "b"), models.ConflictSkip)
	require.NoError(t, err)
	assert.Equal(t, ActionInsert, d.Action)
	assert.False(t, d.Conflicted())
}

func TestResolve_Rename(t *testing.T) {
	target := entryWith(sense("s1", "a"))
	d, err := Resolve(target, sense("s1", "b"), models.ConflictRename)
	require.NoError(t, err)
	assert.Equal(t, ActionRename, d.Action)
	assert.Equal(t, "s1-1", d.NewID)
	assert.True(t, d.Conflicted())
}

func TestResolve_RenameIsDeterministic(t *testing.T) {
	target := entryWith(sense("s1", "a"), sense("s1-1", "b"), sense("s1-3", "c"))
	for i := 0; i < 3; i++ {
		d, err := Resolve(target, sense("s1", "z"), models.ConflictRename)
		require.NoError(t, err)
		assert.Equal(t, "s1-2", d.NewID)
	}
}

func TestResolve_RenameSignatureOnlyKeepsID(t *testing.T) {
	target := entryWith(sense("s1", "river bank"))
	d, err := Resolve(target, sense("s7", "river bank"), models.ConflictRename)
	require.NoError(t, err)
	assert.Equal(t, ActionRename, d.Action)
	assert.Equal(t, "s7", d.NewID)
}

func TestResolve_Skip(t *testing.T) {
	d, err := Resolve(entryWith(sense("s1", "a")), sense("s1", "b"), models.ConflictSkip)
	require.NoError(t, err)
	assert.Equal(t, ActionSkip, d.Action)
}

func TestResolve_Overwrite(t *testing.T) {
	target := entryWith(sense("s0", "x"), sense("s1", "a"))
	d, err := Resolve(target, sense("s1", "b"), models.ConflictOverwrite)
	require.NoError(t, err)
	assert.Equal(t, ActionOverwrite, d.Action)
	assert.Equal(t, 1, d.ReplaceIndex)
}

func TestResolve_SignatureOverwriteKeepsExistingID(t *testing.T) {
	target := entryWith(sense("t0", "x"), sense("t1", "river bank"))
	d, err := Resolve(target, sense("s7", "River Bank"), models.ConflictOverwrite)
	require.NoError(t, err)
	assert.Equal(t, ActionOverwrite, d.Action)
	assert.Equal(t, "t1", d.NewID)
	assert.Equal(t, 1, d.ReplaceIndex)
}

func TestPlacer_OverwriteReplacesContentInPlace(t *testing.T) {
	target := entryWith(sense("t0", "x"), sense("t1", "river bank"))
	incoming := sense("s7", "river bank")
	incoming.Definition = models.MultiText{"en": "edge of a river"}

	d, err := NewPlacer(target, models.ConflictOverwrite).Place(incoming)
	require.NoError(t, err)
	assert.Equal(t, ActionOverwrite, d.Action)
	assert.Equal(t, []string{"t0", "t1"}, target.SenseIDs())
	assert.Equal(t, "edge of a river", target.Senses[1].Definition["en"])
}

func TestPlacer_NeverOverwritesPlacedSenses(t *testing.T) {
	target := entryWith(sense("t1", "cat"))
	p := NewPlacer(target, models.ConflictOverwrite)

	d, err := p.Place(sense("s1", "dog"))
	require.NoError(t, err)
	assert.Equal(t, ActionInsert, d.Action)
	assert.Equal(t, "s1", d.NewID)

	d, err = p.Place(sense("s2", "Dog"))
	require.NoError(t, err)
	assert.Equal(t, ActionRename, d.Action)
	assert.True(t, d.Fallback)
	assert.Equal(t, "s2", d.NewID)
	assert.Equal(t, "s1", d.Collision.ExistingID)

	// same ID as a placed sense is reissued rather than replaced
	d, err = p.Place(sense("s1", "wolf"))
	require.NoError(t, err)
	assert.True(t, d.Fallback)
	assert.Equal(t, "s1-1", d.NewID)

	assert.Equal(t, []string{"t1", "s1", "s2", "s1-1"}, target.SenseIDs())
}

func TestPlacer_SkipLeavesTargetUntouched(t *testing.T) {
	target := entryWith(sense("s1", "a"))
	d, err := NewPlacer(target, models.ConflictSkip).Place(sense("s1", "b"))
	require.NoError(t, err)
	assert.Equal(t, ActionSkip, d.Action)
	assert.Equal(t, []string{"s1"}, target.SenseIDs())
	assert.Equal(t, "a", target.Senses[0].Gloss["en"])
}

func TestResolve_UnknownStrategy(t *testing.T) {
	_, err := Resolve(entryWith(sense("s1", "a")), sense("s1", "b"), models.ConflictStrategy("merge"))
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestResolve_UnknownStrategyWithoutCollision(t *testing.T) {
	// nothing to decide, so the strategy is never consulted
	d, err := Resolve(entryWith(sense("s1", "a")), sense("s2", "b"), models.ConflictStrategy("merge"))
	require.NoError(t, err)
	assert.Equal(t, ActionInsert, d.Action)
}

func TestReissueID_Unbounded(t *testing.T) {
	taken := map[string]bool{}
	for n := 1; n <= 500; n++ {
		taken["s1-"+strconv.Itoa(n)] = true
	}
	assert.Equal(t, "s1-501", ReissueID("s1", taken))
}
