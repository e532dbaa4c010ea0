package sync

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// ServerStatus is what the server reports about the session
type ServerStatus struct {
	Time          string `json:"timestamp"`
	User          string `json:"user"`
	TotalProducts int    `json:"totalProducts"`
	LastUpdate    string `json:"lastUpdate"`
	PendingOrders int    `json:"pendingOrders"`
}

// StatusReport describes the local store and, when reachable, the server
type StatusReport struct {
	Connected     bool          `json:"connected"`
	Running       bool          `json:"running"`
	LastSync      string        `json:"lastSync,omitempty"`
	Products      int64         `json:"products"`
	Clients       int64         `json:"clients"`
	PendingOrders int64         `json:"pendingOrders"`
	History       int64         `json:"history"`
	Server        *ServerStatus `json:"server,omitempty"`
	ServerError   string        `json:"serverError,omitempty"`
}

// Status gathers local counts and asks the server for its view when
// connected. A server failure is reported in ServerError, not returned.
func (o *Orchestrator) Status(ctx context.Context) (*StatusReport, error) {
	report := &StatusReport{Running: o.Running()}

	lastSync, _, err := o.deps.Checkpoints.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}
	report.LastSync = lastSync

	if report.Products, err = o.deps.Products.Count(ctx); err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}
	if report.Clients, err = o.deps.Clients.Count(ctx); err != nil {
		return nil, fmt.Errorf("count clients: %w", err)
	}
	if report.PendingOrders, err = o.deps.PendingOrders.CountUnsynced(ctx); err != nil {
		return nil, fmt.Errorf("count pending orders: %w", err)
	}
	if report.History, err = o.deps.History.Count(ctx); err != nil {
		return nil, fmt.Errorf("count order history: %w", err)
	}

	report.Connected = o.deps.Connectivity == nil || o.deps.Connectivity.IsConnected(ctx)
	if !report.Connected {
		return report, nil
	}

	status, err := o.deps.Gateway.GetStatus(ctx)
	if err != nil {
		o.logger.Debug("Server status unavailable", zap.Error(err))
		report.ServerError = translate(err)
		return report, nil
	}
	report.Server = &ServerStatus{
		Time:          status.Time,
		User:          status.User.Name,
		TotalProducts: status.Catalog.TotalProducts,
		LastUpdate:    status.Catalog.LastUpdate,
		PendingOrders: status.PendingOrders,
	}
	return report, nil
}
