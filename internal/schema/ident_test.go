package schema

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIdentValid(t *testing.T) {
	for _, name := range []string{"users", "field_1", "a", "sensor_readings_2024"} {
		id, err := NewIdent(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, id.String())
		assert.Equal(t, `"`+name+`"`, id.SQL())
	}
}

func TestNewIdentRejectsInjection(t *testing.T) {
	bad := []string{
		`users"; drop table users; --`,
		"users; drop table users",
		"users'--",
		"users name",
		"1users",
		"Users",
		"имя",
		"",
		"   ",
	}
	for _, name := range bad {
		_, err := NewIdent(name)
		assert.Error(t, err, "expected rejection for %q", name)
	}
}

func TestNewIdentRejectsReservedWords(t *testing.T) {
	for _, name := range []string{"select", "table", "where", "user"} {
		_, err := NewIdent(name)
		assert.Error(t, err, name)
	}
}

func TestNewIdentRejectsTooLong(t *testing.T) {
	_, err := NewIdent(strings.Repeat("a", 64))
	assert.Error(t, err)

	_, err = NewIdent(strings.Repeat("a", 63))
	assert.NoError(t, err)
}
