package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type Location struct {
	City  *string `db:"city"`
	State string  `db:"state"`
}

type row struct {
	ID string `db:"id"`
	Location
	Skipped  string `db:"-"`
	Untagged string
	Created  int `db:"created_at"`
}

func TestStructTagValuesFlattensEmbedded(t *testing.T) {
	cols := StructTagValues(row{})
	assert.Equal(t, []string{"id", "city", "state", "created_at"}, cols)
}

func TestStructToMap(t *testing.T) {
	r := &row{ID: "a", Location: Location{City: StringPtr("Pune"), State: "MH"}, Created: 3}

	m := StructToMap(r)

	assert.Len(t, m, 4)
	assert.Equal(t, "a", m["id"])
	assert.Equal(t, "MH", m["state"])
	assert.Equal(t, "Pune", *(m["city"].(*string)))
	assert.Equal(t, 3, m["created_at"])
}

func TestStructToMapPanicsOnNonStruct(t *testing.T) {
	assert.Panics(t, func() { StructToMap(42) })
}

func TestNonEmptyPtr(t *testing.T) {
	assert.Nil(t, NonEmptyPtr("   "))
	assert.Equal(t, "x", *NonEmptyPtr(" x "))
}

func TestRoundFloat64(t *testing.T) {
	assert.Equal(t, 92.35, RoundFloat64(92.3456, 2))
}

func TestNanoID(t *testing.T) {
	id := NanoID()
	assert.Len(t, id, IDLength)
	assert.True(t, IsNanoID(id))
	assert.NotEqual(t, id, NanoID())

	assert.False(t, IsNanoID("short"))
	assert.False(t, IsNanoID("pb_qJipTPGaWPriJrFg4_E9b7_2zmNju"))
}
