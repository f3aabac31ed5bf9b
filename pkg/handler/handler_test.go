package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripCodeFences(t *testing.T) {
	assert.Equal(t, "SELECT 1;", StripCodeFences("```sql\nSELECT 1;\n```", "sql"))
	assert.Equal(t, "SELECT 1;", StripCodeFences("```\nSELECT 1;\n```", "sql"))
	assert.Equal(t, `{"a":1}`, StripCodeFences("```json\n{\"a\":1}\n```", "json"))
	assert.Equal(t, "plain", StripCodeFences("  plain ", ""))
}
