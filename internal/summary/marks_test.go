package summary

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fyrsmithlabs/pitchroom/internal/chat"
)

func TestMarks_Toggle(t *testing.T) {
	var k Marks
	a := chat.Message{ID: "a", Content: "first"}
	b := chat.Message{ID: "b", Content: "second"}

	assert.True(t, k.Toggle(b))
	assert.True(t, k.Toggle(a))
	assert.True(t, k.Contains("a"))
	assert.Equal(t, []chat.Message{b, a}, k.List(), "kept in marking order")

	assert.False(t, k.Toggle(b))
	assert.False(t, k.Contains("b"))
	assert.Equal(t, 1, k.Len())

	k.Clear()
	assert.Zero(t, k.Len())
	assert.Empty(t, k.List())
}

func TestMarks_ListIsCopy(t *testing.T) {
	var k Marks
	k.Toggle(chat.Message{ID: "a"})
	list := k.List()
	list[0].ID = "mutated"
	assert.True(t, k.Contains("a"))
}
