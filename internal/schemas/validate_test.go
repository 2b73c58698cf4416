package schemas

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `{
	"type": "object",
	"required": ["name"],
	"properties": {
		"name": {"type": "string", "minLength": 1},
		"count": {"type": "integer", "minimum": 0}
	}
}`

func TestValidateJSONString(t *testing.T) {
	assert.NoError(t, ValidateJSONString(testSchema, `{"name": "CERC", "count": 2}`))
}

func TestValidateJSONStringFieldErrors(t *testing.T) {
	err := ValidateJSONString(testSchema, `{"count": -1}`)
	require.Error(t, err)

	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Len(t, validationErr.Errors, 2, "missing name and negative count both reported")
	assert.Contains(t, validationErr.Error(), "validation failed")
}

func TestValidateJSONStringBadSchema(t *testing.T) {
	err := ValidateJSONString(`{"type": nonsense`, `{}`)
	require.Error(t, err)

	var loadErr *SchemaLoadError
	assert.True(t, errors.As(err, &loadErr))
}
