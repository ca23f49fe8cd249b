package audit

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-storefront/internal/obs"
)

// HTTPRecorder writes an audit entry after the wrapped handler returns.
type HTTPRecorder struct {
	Service *Service
	Logger  zerolog.Logger
}

// HTTPConfig customises how the audit entry is produced for a route.
type HTTPConfig struct {
	Action          string
	ResourceType    string
	ResourceIDParam string
	MetadataFunc    func(*http.Request, int) map[string]any
}

// Middleware returns a chi-compatible middleware that records audit entries.
// Failed writes are logged and never change the response.
func (r HTTPRecorder) Middleware(cfg HTTPConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if r.Service == nil || !r.Service.Enabled {
				next.ServeHTTP(w, req)
				return
			}

			rec := obs.NewStatusRecorder(w)
			next.ServeHTTP(rec, req)

			entry := Entry{
				Actor:        ActorFromRequest(req),
				Action:       cfg.Action,
				ResourceType: cfg.ResourceType,
				Status:       rec.Status(),
			}
			if cfg.ResourceIDParam != "" {
				entry.ResourceID = chi.URLParam(req, cfg.ResourceIDParam)
			}
			if cfg.MetadataFunc != nil {
				entry.Metadata = cfg.MetadataFunc(req, rec.Status())
			}
			if err := r.Service.Record(req.Context(), req, entry); err != nil {
				r.Logger.Warn().Err(err).Str("action", cfg.Action).Msg("audit_record_failed")
			}
		})
	}
}
