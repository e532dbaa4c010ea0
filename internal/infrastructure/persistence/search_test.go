package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFold(t *testing.T) {
	tests := map[string]string{
		"Jabón":        "jabon",
		"AZÚCAR":       "azucar",
		"Piñata":       "pinata",
		"Crème brûlée": "creme brulee",
		"":             "",
	}
	for in, want := range tests {
		assert.Equal(t, want, Fold(in), in)
	}
}

func TestLikePattern(t *testing.T) {
	assert.Equal(t, "%cafe%", likePattern("  Café "))
	assert.Equal(t, `%50\%\_off%`, likePattern("50%_off"))
}

func TestProductOrder(t *testing.T) {
	assert.Equal(t, "name ASC", productOrder("", ""))
	assert.Equal(t, "sku DESC", productOrder("SKU", " desc "))
	assert.Equal(t, "CAST(price AS REAL) ASC", productOrder("price", "asc"))
	assert.Equal(t, "name ASC", productOrder("name; DROP TABLE products", "desc; --"))
}
