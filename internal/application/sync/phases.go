package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/fieldsales/vendorsync/internal/domain/shared"
	"github.com/fieldsales/vendorsync/internal/infrastructure/gateway"
	"github.com/fieldsales/vendorsync/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// uploadPhase sends every unsynced order in one mutation and flips the
// orders the server acknowledged, matching on their creation key
func (o *Orchestrator) uploadPhase(ctx context.Context) PhaseReport {
	return o.phase(ctx, PhaseUpload, func(ctx context.Context, span trace.Span) PhaseReport {
		o.report("Obteniendo pedidos pendientes...")
		pending, err := o.deps.PendingOrders.FindUnsynced(ctx)
		if err != nil {
			return PhaseReport{Err: fmt.Errorf("load pending orders: %w", err)}
		}
		if len(pending) == 0 {
			return PhaseReport{Success: true, Message: MessageNoPending}
		}

		o.report(fmt.Sprintf("Subiendo %d pedidos...", len(pending)))
		orders := make([]gateway.UploadOrder, 0, len(pending))
		for _, order := range pending {
			orders = append(orders, gateway.UploadOrderFrom(order))
		}
		telemetry.SetAttribute(span, telemetry.SpanAttrOrders, len(orders))

		resp, err := o.deps.Gateway.UploadOrders(ctx, orders)
		if err != nil {
			return PhaseReport{Err: err}
		}

		o.report("Actualizando estado local...")
		flipped := 0
		for _, key := range resp.Acknowledged() {
			changed, err := o.deps.PendingOrders.MarkSyncedByCreatedAt(ctx, key)
			if err != nil {
				return PhaseReport{Count: flipped, Err: fmt.Errorf("mark order %s synced: %w", key, err)}
			}
			if changed {
				flipped++
			}
		}
		for _, failure := range resp.Errors {
			o.logger.Warn("Order rejected by server",
				zap.String("created_at", failure.CreatedAtOffline),
				zap.String("error", failure.Error),
			)
		}
		o.metrics.AddOrders(ctx, flipped)

		if !resp.Success {
			return PhaseReport{
				Count:   flipped,
				Failed:  len(pending) - flipped,
				Message: messageUploadFail,
				Err:     errors.New("upload response reported failure"),
			}
		}
		return PhaseReport{
			Success: true,
			Count:   flipped,
			Failed:  len(pending) - flipped,
			Message: fmt.Sprintf("%d pedidos sincronizados", flipped),
		}
	})
}

// catalogPhase pulls changes since the checkpoint, or the full catalog when
// none is stored, upserts every product and then advances the checkpoint
func (o *Orchestrator) catalogPhase(ctx context.Context) PhaseReport {
	return o.phase(ctx, PhaseCatalog, func(ctx context.Context, span trace.Span) PhaseReport {
		o.report("Descargando catálogo...")
		since, incremental, err := o.deps.Checkpoints.Get(ctx)
		if err != nil {
			return PhaseReport{Err: fmt.Errorf("read checkpoint: %w", err)}
		}
		telemetry.SetAttribute(span, telemetry.SpanAttrIncrement, incremental)

		var resp *gateway.CatalogResponse
		if incremental {
			resp, err = o.deps.Gateway.GetChanges(ctx, since)
		} else {
			resp, err = o.deps.Gateway.GetCatalog(ctx)
		}
		if err != nil {
			return PhaseReport{Err: err}
		}
		if !resp.Success {
			return PhaseReport{Message: messageCatalogFail, Err: errors.New("catalog response reported failure")}
		}

		o.report("Guardando productos localmente...")
		syncedAt := o.now()
		written, skipped := 0, 0
		for _, wire := range resp.Products {
			product := wire.ToDomain(syncedAt)
			if err := o.deps.Products.Upsert(ctx, product); err != nil {
				var domainErr *shared.DomainError
				if errors.As(err, &domainErr) {
					o.logger.Warn("Skipping invalid product",
						zap.String("product_id", product.ID),
						zap.String("reason", domainErr.Message),
					)
					skipped++
					continue
				}
				// checkpoint stays put so the next run replays this payload
				return PhaseReport{Count: written, Err: fmt.Errorf("store product %s: %w", product.ID, err)}
			}
			written++
		}
		o.metrics.AddProducts(ctx, written)
		telemetry.SetAttribute(span, telemetry.SpanAttrProducts, written)

		switch {
		case skipped > 0:
			// the checkpoint only moves once every product of the payload is stored
			o.logger.Warn("Products skipped; checkpoint unchanged", zap.Int("skipped", skipped))
		case resp.Timestamp == "":
			o.logger.Warn("Catalog response carried no timestamp; checkpoint unchanged")
		default:
			if _, err := o.deps.Checkpoints.Advance(ctx, resp.Timestamp); err != nil {
				return PhaseReport{Count: written, Err: fmt.Errorf("advance checkpoint: %w", err)}
			}
		}

		return PhaseReport{
			Success: true,
			Count:   written,
			Failed:  skipped,
			Message: fmt.Sprintf("%d productos actualizados", written),
		}
	})
}

// imagesPhase caches the image of every stored product. Failures are
// counted but never fail the phase.
func (o *Orchestrator) imagesPhase(ctx context.Context) PhaseReport {
	return o.phase(ctx, PhaseImages, func(ctx context.Context, _ trace.Span) PhaseReport {
		if o.deps.Images == nil {
			return PhaseReport{Success: true, Message: "Caché de imágenes deshabilitada"}
		}
		urls, err := o.deps.Products.ImageURLs(ctx)
		if err != nil {
			o.logger.Warn("Failed to list product images", zap.Error(err))
			return PhaseReport{Success: true, Message: "No se pudieron listar las imágenes", Err: err}
		}
		if len(urls) == 0 {
			return PhaseReport{Success: true, Message: "Sin imágenes"}
		}

		o.report("Descargando imágenes...")
		res := o.deps.Images.PrefetchAll(ctx, urls, func(done, total int) {
			o.report(fmt.Sprintf("Descargando imágenes: %d/%d", done, total))
		})
		o.metrics.AddImages(ctx, res.Success, res.Failed)
		return PhaseReport{
			Success: true,
			Count:   res.Success,
			Failed:  res.Failed,
			Message: fmt.Sprintf("%d imágenes en caché, %d fallidas", res.Success, res.Failed),
		}
	})
}

// clientsPhase mirrors the assigned clients
func (o *Orchestrator) clientsPhase(ctx context.Context) PhaseReport {
	return o.phase(ctx, PhaseClients, func(ctx context.Context, span trace.Span) PhaseReport {
		o.report("Sincronizando clientes...")
		resp, err := o.deps.Gateway.GetClients(ctx)
		if err != nil {
			return PhaseReport{Err: err}
		}
		if !resp.Success {
			return PhaseReport{Message: messageClientsFail, Err: errors.New("clients response reported failure")}
		}

		syncedAt := o.now()
		written := 0
		for _, wire := range resp.Clients {
			if err := o.deps.Clients.Upsert(ctx, wire.ToDomain(syncedAt)); err != nil {
				return PhaseReport{Count: written, Err: fmt.Errorf("store client %s: %w", wire.ID, err)}
			}
			written++
		}
		o.metrics.AddClients(ctx, written)
		telemetry.SetAttribute(span, telemetry.SpanAttrClients, written)
		return PhaseReport{Success: true, Count: written, Message: fmt.Sprintf("%d clientes sincronizados", written)}
	})
}

// historyPhase mirrors the confirmed orders with their lines
func (o *Orchestrator) historyPhase(ctx context.Context) PhaseReport {
	return o.phase(ctx, PhaseHistory, func(ctx context.Context, _ trace.Span) PhaseReport {
		o.report("Sincronizando historial de pedidos...")
		resp, err := o.deps.Gateway.GetOrderHistory(ctx, o.historyLimit)
		if err != nil {
			return PhaseReport{Err: err}
		}
		if !resp.OK() {
			return PhaseReport{Message: messageHistoryFail, Err: errors.New("history response reported failure")}
		}

		syncedAt := o.now()
		written := 0
		for _, wire := range resp.Orders {
			if err := o.deps.History.Upsert(ctx, wire.ToDomain(syncedAt)); err != nil {
				return PhaseReport{Count: written, Err: fmt.Errorf("store order %s: %w", wire.ID, err)}
			}
			written++
		}
		return PhaseReport{Success: true, Count: written, Message: fmt.Sprintf("%d pedidos en historial", written)}
	})
}
