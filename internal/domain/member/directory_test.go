package member

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewDirectory_Lookups(t *testing.T) {
	dir := NewDirectory([]Member{
		{ID: "m1", Name: "Alice", Email: "alice@example.com"},
		{ID: "", Name: "Ghost"},
		{ID: "m2", Name: "Bob"},
		{ID: "m1", Name: "Alice Duplicate"},
		{ID: "m3", Name: "Alice"},
	})

	assert.Equal(t, 3, dir.Len())

	m, ok := dir.ByID("m1")
	assert.True(t, ok)
	assert.Equal(t, "Alice", m.Name)

	_, ok = dir.ByID("")
	assert.False(t, ok)

	byName, ok := dir.ByName("Alice")
	assert.True(t, ok)
	assert.Equal(t, "m1", byName.ID, "first member in roster order wins on duplicate names")

	_, ok = dir.ByName("Ghost")
	assert.False(t, ok)
	_, ok = dir.ByName("")
	assert.False(t, ok)
}

func TestDirectory_NilIsEmpty(t *testing.T) {
	var dir *Directory

	_, ok := dir.ByID("m1")
	assert.False(t, ok)
	_, ok = dir.ByName("Alice")
	assert.False(t, ok)
	assert.Equal(t, 0, dir.Len())
	assert.Nil(t, dir.Members())
	assert.NotNil(t, dir.Snapshot())
	assert.Equal(t, NewDirectory(nil).Fingerprint(), dir.Fingerprint())
}

func TestDirectory_MembersReturnsCopy(t *testing.T) {
	dir := NewDirectory([]Member{{ID: "m1", Name: "Alice"}})
	members := dir.Members()
	members[0].Name = "Mallory"

	m, _ := dir.ByID("m1")
	assert.Equal(t, "Alice", m.Name)
}

func TestDirectory_Fingerprint(t *testing.T) {
	a := NewDirectory([]Member{{ID: "m1", Name: "Alice"}, {ID: "m2", Name: "Bob"}})
	reordered := NewDirectory([]Member{{ID: "m2", Name: "Bob"}, {ID: "m1", Name: "Alice"}})
	renamed := NewDirectory([]Member{{ID: "m1", Name: "Alice Smith"}, {ID: "m2", Name: "Bob"}})

	assert.Len(t, a.Fingerprint(), 64)
	assert.True(t, a.SameAs(reordered))
	assert.False(t, a.SameAs(renamed))
}

func TestMember_Validate(t *testing.T) {
	assert.NoError(t, Member{ID: "m1"}.Validate())
	assert.ErrorIs(t, Member{ID: "  "}.Validate(), ErrEmptyMemberID)
}
