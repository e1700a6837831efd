package validation

import (
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Content string   `validate:"required,max=10"`
	Tags    []string `validate:"omitempty,dive,socialtag"`
	Links   []string `validate:"omitempty,dive,url"`
}

func TestTag(t *testing.T) {
	assert.True(t, Tag("go_lang"))
	assert.True(t, Tag("ab"))
	assert.False(t, Tag("a"))
	assert.False(t, Tag("has space"))
	assert.False(t, Tag("dash-ed"))
	assert.False(t, Tag(strings.Repeat("x", 129)))
	assert.True(t, Tag(strings.Repeat("x", 128)))
}

func TestStruct(t *testing.T) {
	require.NoError(t, Struct(&sample{Content: "ok", Tags: []string{"plants"}, Links: []string{"https://example.com/a.jpg"}}))

	err := Struct(&sample{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Content is required")

	err = Struct(&sample{Content: "this is too long"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at most 10")

	err = Struct(&sample{Content: "ok", Tags: []string{"bad tag"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Tags[0]")

	err = Struct(&sample{Content: "ok", Links: []string{"not a url"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "valid absolute url")
}

func TestRegisterRulesOnForeignEngine(t *testing.T) {
	v := validator.New()
	require.NoError(t, RegisterRules(v))

	type tagged struct {
		Tag string `binding:"required,socialtag"`
	}
	v.SetTagName("binding")
	assert.NoError(t, v.Struct(tagged{Tag: "golang"}))
	assert.Error(t, v.Struct(tagged{Tag: "a b"}))
}
