package devserver

import (
	"fmt"
	"time"

	"github.com/fieldsales/vendorsync/internal/domain/shared"
	"github.com/fieldsales/vendorsync/internal/infrastructure/gateway"
	"github.com/fieldsales/vendorsync/internal/infrastructure/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultHistoryLimit = 50

func (s *Server) login(c *gin.Context, in call) (any, error) {
	var req gateway.LoginRequest
	if err := in.bind(&req); err != nil {
		return nil, err
	}
	if err := s.validate.StructCtx(c.Request.Context(), req); err != nil {
		return gateway.LoginResponse{Success: false, Message: "Usuario y contraseña son requeridos"}, nil
	}

	vendor, ok := s.data.Authenticate(req.Username, req.Password)
	if !ok {
		s.logger.Info("Login rejected", zap.String("username", req.Username))
		return gateway.LoginResponse{Success: false, Message: shared.ErrInvalidCredentials.Message}, nil
	}
	token, err := s.IssueToken(vendor)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	s.logger.Info("Vendor logged in", zap.String("vendor_id", vendor.ID))
	return gateway.LoginResponse{Success: true, Token: token, User: vendor.wire()}, nil
}

func (s *Server) catalogResponse(since time.Time) gateway.CatalogResponse {
	products := s.data.Products(since)
	return gateway.CatalogResponse{
		Success:       true,
		Timestamp:     s.timestamp(),
		Products:      products,
		TotalProducts: len(products),
	}
}

func (s *Server) getCatalog(_ *gin.Context, _ call) (any, error) {
	return s.catalogResponse(time.Time{}), nil
}

// getChanges returns products updated after lastSyncTimestamp, including
// deactivated ones. Without a timestamp it behaves like getCatalog.
func (s *Server) getChanges(_ *gin.Context, in call) (any, error) {
	var req gateway.CatalogInput
	if err := in.bind(&req); err != nil {
		return nil, err
	}
	if req.LastSyncTimestamp == "" {
		return s.catalogResponse(time.Time{}), nil
	}
	since, err := shared.ParseTimestamp(req.LastSyncTimestamp)
	if err != nil {
		return nil, badRequest("lastSyncTimestamp is not a valid timestamp")
	}
	return s.catalogResponse(since), nil
}

func (s *Server) getClients(c *gin.Context, _ call) (any, error) {
	vendor := currentVendor(c)
	return gateway.ClientsResponse{Success: true, Clients: s.data.Clients(vendor.ID)}, nil
}

func (s *Server) getOrderHistory(c *gin.Context, in call) (any, error) {
	var req gateway.HistoryInput
	if err := in.bind(&req); err != nil {
		return nil, err
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	success := true
	vendor := currentVendor(c)
	return gateway.OrderHistoryResponse{Success: &success, Orders: s.data.History(vendor.ID, limit)}, nil
}

// uploadOrders records each order once per creation key. A re-sent order is
// acknowledged with the id the first attempt produced.
func (s *Server) uploadOrders(c *gin.Context, in call) (any, error) {
	var req gateway.UploadOrdersRequest
	if err := in.bind(&req); err != nil {
		return nil, err
	}
	if len(req.Orders) == 0 {
		return nil, badRequest("orders must not be empty")
	}

	ctx := c.Request.Context()
	vendor := currentVendor(c)
	s.uploadMu.Lock()
	defer s.uploadMu.Unlock()

	resp := gateway.UploadOrdersResponse{
		Results: make([]gateway.UploadResult, 0, len(req.Orders)),
		Errors:  make([]gateway.UploadFailure, 0),
	}
	reject := func(key, msg string) {
		resp.Failed++
		resp.Errors = append(resp.Errors, gateway.UploadFailure{Success: false, Error: msg, CreatedAtOffline: key})
	}

	for _, order := range req.Orders {
		if err := s.validate.StructCtx(ctx, order); err != nil {
			reject(order.CreatedAtOffline, "Pedido inválido")
			continue
		}

		key := vendor.ID + ":" + order.CreatedAtOffline
		if id, found, err := s.idempotency.Lookup(ctx, key); err != nil {
			return nil, fmt.Errorf("idempotency lookup: %w", err)
		} else if found {
			logger.GetGinLogger(c).Debug("Duplicate upload acknowledged",
				zap.String("created_at_offline", order.CreatedAtOffline),
				zap.String("order_id", id),
			)
			resp.Uploaded++
			resp.Results = append(resp.Results, gateway.UploadResult{
				Success:          true,
				OrderID:          gateway.FlexibleID(id),
				CreatedAtOffline: order.CreatedAtOffline,
			})
			continue
		}

		id, err := s.data.RecordOrder(vendor, order)
		if err != nil {
			reject(order.CreatedAtOffline, err.Error())
			continue
		}
		held, _, err := s.idempotency.Claim(ctx, key, id, s.cfg.IdempotencyTTL)
		if err != nil {
			return nil, fmt.Errorf("idempotency claim: %w", err)
		}
		resp.Uploaded++
		resp.Results = append(resp.Results, gateway.UploadResult{
			Success:          true,
			OrderID:          gateway.FlexibleID(held),
			CreatedAtOffline: order.CreatedAtOffline,
		})
	}

	resp.Success = resp.Failed == 0
	logger.GetGinLogger(c).Info("Orders uploaded",
		zap.Int("uploaded", resp.Uploaded),
		zap.Int("failed", resp.Failed),
	)
	return resp, nil
}

func (s *Server) getStatus(c *gin.Context, _ call) (any, error) {
	vendor := currentVendor(c)
	resp := gateway.StatusResponse{
		Success:       true,
		Time:          s.timestamp(),
		User:          vendor.wire(),
		PendingOrders: s.data.PendingOrders(vendor.ID),
	}
	products, _, _ := s.data.Counts()
	resp.Catalog.TotalProducts = products
	resp.Catalog.LastUpdate = s.data.LastCatalogUpdate()
	return resp, nil
}
