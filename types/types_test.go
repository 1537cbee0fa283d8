package types

import (
	"github.com/stretchr/testify/assert"
	"testing"
)

func point() *Type {
	return NewRecord([]Field{
		{Name: "x", Type: IntType},
		{Name: "y", Type: IntType},
	})
}

func TestEquivalent_Primitives(t *testing.T) {
	testData := []struct {
		a, b     *Type
		expected bool
	}{
		{a: IntType, b: IntType, expected: true},
		{a: BoolType, b: BoolType, expected: true},
		{a: CharType, b: CharType, expected: true},
		{a: IntType, b: BoolType, expected: false},
		{a: IntType, b: CharType, expected: false},
		{a: ErrorType, b: IntType, expected: true},
		{a: BoolType, b: ErrorType, expected: true},
		{a: AnyType, b: point(), expected: true},
	}
	for _, data := range testData {
		assert.Equal(t, data.expected, Equivalent(data.a, data.b))
		assert.Equal(t, data.expected, Equivalent(data.b, data.a))
	}
}

func TestEquivalent_Structural(t *testing.T) {
	testData := []struct {
		a, b     *Type
		expected bool
	}{
		// Two independently built types with the same shape match.
		{a: NewArray(8, IntType), b: NewArray(8, IntType), expected: true},
		{a: NewArray(8, IntType), b: NewArray(9, IntType), expected: false},
		{a: NewArray(8, IntType), b: NewArray(8, CharType), expected: false},
		{a: point(), b: point(), expected: true},
		// Field order matters.
		{a: point(), b: NewRecord([]Field{
			{Name: "y", Type: IntType},
			{Name: "x", Type: IntType},
		}), expected: false},
		// Field names matter.
		{a: point(), b: NewRecord([]Field{
			{Name: "x", Type: IntType},
			{Name: "z", Type: IntType},
		}), expected: false},
		{a: NewArray(3, point()), b: NewArray(3, point()), expected: true},
	}
	for _, data := range testData {
		assert.Equal(t, data.expected, Equivalent(data.a, data.b))
		assert.Equal(t, data.expected, Equivalent(data.b, data.a))
	}
}

func TestSizeWords(t *testing.T) {
	testData := []struct {
		tp       *Type
		expected int
	}{
		{tp: IntType, expected: 1},
		{tp: BoolType, expected: 1},
		{tp: CharType, expected: 1},
		{tp: NewArray(10, IntType), expected: 10},
		{tp: point(), expected: 2},
		{tp: NewArray(4, point()), expected: 8},
		{tp: NewRecord([]Field{
			{Name: "name", Type: NewArray(6, CharType)},
			{Name: "age", Type: IntType},
		}), expected: 7},
	}
	for _, data := range testData {
		assert.Equal(t, data.expected, data.tp.SizeWords())
	}
}

func TestNewRecord_FieldOffsets(t *testing.T) {
	rec := NewRecord([]Field{
		{Name: "name", Type: NewArray(6, CharType)},
		{Name: "age", Type: IntType},
		{Name: "tall", Type: BoolType},
	})
	name, ok := rec.Field("name")
	assert.True(t, ok)
	assert.Equal(t, 0, name.Offset)
	age, ok := rec.Field("age")
	assert.True(t, ok)
	assert.Equal(t, 6, age.Offset)
	tall, ok := rec.Field("tall")
	assert.True(t, ok)
	assert.Equal(t, 7, tall.Offset)
	_, ok = rec.Field("weight")
	assert.False(t, ok)
}

func TestString(t *testing.T) {
	assert.Equal(t, "Integer", IntType.String())
	assert.Equal(t, "array 8 of Char", NewArray(8, CharType).String())
	assert.Equal(t, "record x: Integer, y: Integer end", point().String())
}
