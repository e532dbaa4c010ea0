package telemetry

import (
	"fmt"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/gorm"
)

// InstrumentStore registers the otelgorm plugin so every store statement
// becomes a child span of the sync phase that issued it. Query arguments are
// left out of span attributes since they carry client contact data.
func InstrumentStore(db *gorm.DB) error {
	if err := db.Use(otelgorm.NewPlugin(
		otelgorm.WithDBName("vendorsync"),
		otelgorm.WithoutQueryVariables(),
		otelgorm.WithoutMetrics(),
	)); err != nil {
		return fmt.Errorf("failed to instrument store: %w", err)
	}
	return nil
}
