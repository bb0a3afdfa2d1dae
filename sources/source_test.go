package sources

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	d := ParseDate("2024-03-15")
	require.NotNil(t, d)
	assert.Equal(t, 2024, d.Year())

	d = ParseDate("2024-03-15T10:30:00Z")
	require.NotNil(t, d)
	assert.Equal(t, 10, d.Hour())

	assert.Nil(t, ParseDate(""))
	assert.Nil(t, ParseDate("kein datum"))
}

func TestMarshalMetadata(t *testing.T) {
	data := MarshalMetadata(map[string]any{"k_number": "K240001"})
	assert.JSONEq(t, `{"k_number":"K240001"}`, string(data))

	// Nicht serialisierbare Werte liefern nil statt Fehler.
	assert.Nil(t, MarshalMetadata(map[string]any{"ch": make(chan int)}))
}

func TestPageCap(t *testing.T) {
	assert.Equal(t, 50, PageCap(50))
	assert.Equal(t, 10, PageCap(0))
	assert.Equal(t, 10, PageCap(-3))
}

func TestMappingError(t *testing.T) {
	err := &MappingError{Source: "fda_pma", Reason: "trade name missing"}
	assert.Contains(t, err.Error(), "fda_pma")
	assert.Contains(t, err.Error(), "trade name missing")
}
