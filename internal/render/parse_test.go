package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGrammar(t *testing.T) {
	nodes, err := parse("Hello {{customer.name}}, {{#if vip}}welcome back{{/if}} " +
		"{{#each orders}}row {{id}} {{/each}}{{table stats}}{{chart stats}}{{image logo}}")
	require.NoError(t, err)

	require.Len(t, nodes, 9)
	assert.Equal(t, substNode("customer.name"), nodes[1])
	assert.Equal(t, "vip", nodes[3].(ifNode).path)
	assert.Equal(t, "orders", nodes[5].(eachNode).path)
	assert.Equal(t, tableNode("stats"), nodes[6])
	assert.Equal(t, chartNode("stats"), nodes[7])
	assert.Equal(t, imageNode("logo"), nodes[8])
}

func TestParseNestedBlocks(t *testing.T) {
	nodes, err := parse("{{#each rows}}{{#if flag}}x{{/if}}{{/each}}")
	require.NoError(t, err)
	require.Len(t, nodes, 1)

	each := nodes[0].(eachNode)
	require.Len(t, each.children, 1)
	assert.Equal(t, "flag", each.children[0].(ifNode).path)
}

func TestParseSyntaxErrors(t *testing.T) {
	for name, tpl := range map[string]string{
		"unterminated directive": "hello {{name",
		"empty directive":        "{{}}",
		"unclosed if":            "{{#if a}}body",
		"unclosed each":          "{{#each a}}body{{/if}}",
		"stray close":            "text {{/each}}",
		"unknown block":          "{{#unless a}}x{{/unless}}",
		"path with space":        "{{customer name}}",
		"if without path":        "{{#if }}x{{/if}}",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := parse(tpl)
			require.ErrorIs(t, err, ErrSyntax)
		})
	}
}

func TestParseMismatchedCloseReported(t *testing.T) {
	_, err := parse("{{#each rows}}{{#if flag}}x{{/each}}")
	require.ErrorIs(t, err, ErrSyntax)
}
