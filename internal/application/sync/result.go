package sync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fieldsales/vendorsync/internal/domain/shared"
	"github.com/fieldsales/vendorsync/internal/infrastructure/gateway"
)

// Phase names a step of a sync run
type Phase string

const (
	PhaseUpload  Phase = "upload"
	PhaseCatalog Phase = "catalog"
	PhaseImages  Phase = "images"
	PhaseClients Phase = "clients"
	PhaseHistory Phase = "history"
)

// User-facing summary messages
const (
	MessageOffline     = "Sin conexión a internet"
	MessageInProgress  = "Sincronización en curso"
	MessageFullOK      = "Sincronización completa exitosa"
	MessageFullErrors  = "Sincronización completada con errores"
	MessageNoPending   = "No hay pedidos pendientes"
	MessageCancelled   = "Sincronización cancelada"
	messageUnknown     = "Error desconocido"
	messageCatalogFail = "Error al descargar catálogo"
	messageUploadFail  = "Error al subir pedidos"
	messageClientsFail = "Error al sincronizar clientes"
	messageHistoryFail = "Error al sincronizar historial"
)

// ErrSyncInProgress is reported when a run starts while another is active
var ErrSyncInProgress = errors.New("sync: another sync is in progress")

// ErrOffline is reported when the connectivity check fails
var ErrOffline = errors.New("sync: offline")

// PhaseReport is the outcome of one phase
type PhaseReport struct {
	Phase    Phase         `json:"phase"`
	Success  bool          `json:"success"`
	Message  string        `json:"message"`
	Count    int           `json:"count"`
	Failed   int           `json:"failed,omitempty"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// Result summarizes a sync run. Message is the only text meant for the
// vendor; Err keeps the underlying cause for logs.
type Result struct {
	Success         bool          `json:"success"`
	Offline         bool          `json:"offline"`
	Message         string        `json:"message"`
	ProductsUpdated int           `json:"productsUpdated"`
	OrdersSynced    int           `json:"ordersSynced"`
	ClientsSynced   int           `json:"clientsSynced"`
	HistorySynced   int           `json:"historySynced"`
	ImagesCached    int           `json:"imagesCached"`
	ImagesFailed    int           `json:"imagesFailed"`
	Phases          []PhaseReport `json:"phases,omitempty"`
	StartedAt       time.Time     `json:"startedAt"`
	FinishedAt      time.Time     `json:"finishedAt"`
	Err             error         `json:"-"`
}

// Phase returns the report of a phase, if it ran
func (r *Result) Phase(p Phase) (PhaseReport, bool) {
	for _, report := range r.Phases {
		if report.Phase == p {
			return report, true
		}
	}
	return PhaseReport{}, false
}

func (r *Result) add(report PhaseReport) {
	r.Phases = append(r.Phases, report)
	switch report.Phase {
	case PhaseUpload:
		r.OrdersSynced = report.Count
	case PhaseCatalog:
		r.ProductsUpdated = report.Count
	case PhaseImages:
		r.ImagesCached = report.Count
		r.ImagesFailed = report.Failed
	case PhaseClients:
		r.ClientsSynced = report.Count
	case PhaseHistory:
		r.HistorySynced = report.Count
	}
}

// Duration returns the wall time of the run
func (r *Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// translate turns an error into the message shown to the vendor
func translate(err error) string {
	var (
		remote  *gateway.RemoteError
		httpErr *gateway.HTTPError
		domain  *shared.DomainError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSyncInProgress):
		return MessageInProgress
	case errors.Is(err, ErrOffline):
		return MessageOffline
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return MessageCancelled
	case errors.Is(err, gateway.ErrNoSession):
		return shared.ErrUnauthenticated.Message
	case errors.Is(err, gateway.ErrSessionExpired), errors.Is(err, gateway.ErrUnauthorized):
		return "Sesión expirada. Inicie sesión nuevamente."
	case errors.Is(err, gateway.ErrTransport):
		return "No se pudo conectar con el servidor"
	case errors.As(err, &remote) && remote.Message != "" && !errors.As(err, &httpErr):
		return remote.Message
	case errors.As(err, &httpErr):
		if httpErr.StatusCode >= http.StatusInternalServerError {
			return fmt.Sprintf("Error del servidor (HTTP %d)", httpErr.StatusCode)
		}
		if httpErr.Remote != nil && httpErr.Remote.Message != "" {
			return httpErr.Remote.Message
		}
		return fmt.Sprintf("Solicitud rechazada (HTTP %d)", httpErr.StatusCode)
	case errors.Is(err, gateway.ErrUnrecognizedEnvelope):
		return "Respuesta inesperada del servidor"
	case errors.As(err, &domain):
		return domain.Message
	default:
		return messageUnknown
	}
}
