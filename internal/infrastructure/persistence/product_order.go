package persistence

import (
	"strings"
)

// productOrderColumns maps the sort keys a listing may ask for to the SQL
// expression that orders by them. Prices are stored as decimal text.
var productOrderColumns = map[string]string{
	"name":       "name",
	"sku":        "sku",
	"category":   "category",
	"price":      "CAST(price AS REAL)",
	"stock":      "stock",
	"updated_at": "updated_at",
	"synced_at":  "synced_at",
}

// productOrder returns a safe ORDER BY clause for a product listing.
// Unknown keys order by name; anything but "desc" is ascending.
func productOrder(orderBy, orderDir string) string {
	column, ok := productOrderColumns[strings.ToLower(strings.TrimSpace(orderBy))]
	if !ok {
		column = productOrderColumns["name"]
	}
	dir := "ASC"
	if strings.EqualFold(strings.TrimSpace(orderDir), "desc") {
		dir = "DESC"
	}
	return column + " " + dir
}
