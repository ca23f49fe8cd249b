// Package audit records who changed catalog and order state from the admin
// surface.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/db"
	"github.com/noah-isme/toko-storefront/internal/obs"
)

// ActorKind represents the source of an audited action.
type ActorKind string

const (
	ActorKindAdmin     ActorKind = "admin"
	ActorKindUser      ActorKind = "user"
	ActorKindSystem    ActorKind = "system"
	ActorKindAnonymous ActorKind = "anonymous"
)

// Actor describes the entity performing the action.
type Actor struct {
	Kind   ActorKind
	UserID string
}

// Entry is one audited action. Empty Action and ResourceType are derived
// from the request route.
type Entry struct {
	Actor        Actor
	Action       string
	ResourceType string
	ResourceID   string
	Status       int
	Metadata     map[string]any
}

// Store defines the database operations required for auditing.
type Store interface {
	InsertAuditLog(ctx context.Context, arg db.InsertAuditLogParams) (db.InsertAuditLogRow, error)
	ListAuditLogs(ctx context.Context, arg db.ListAuditLogsParams) ([]db.AuditLog, error)
}

// Service persists audit logs for admin flows.
type Service struct {
	Store        Store
	Enabled      bool
	SamplingRate float64
}

// ActorFromRequest resolves the authenticated caller, if any.
func ActorFromRequest(r *http.Request) Actor {
	if r == nil {
		return Actor{Kind: ActorKindAnonymous}
	}
	userID, ok := common.UserID(r.Context())
	if !ok {
		return Actor{Kind: ActorKindAnonymous}
	}
	if common.Role(r.Context()) == "admin" {
		return Actor{Kind: ActorKindAdmin, UserID: userID}
	}
	return Actor{Kind: ActorKindUser, UserID: userID}
}

// Record persists an audit log entry when auditing is enabled. A nil
// receiver is a no-op so handlers can call it unconditionally.
func (s *Service) Record(ctx context.Context, req *http.Request, e Entry) error {
	if s == nil || !s.Enabled {
		return nil
	}
	if s.SamplingRate > 0 && s.SamplingRate < 1 && rand.Float64() > s.SamplingRate {
		return nil
	}
	if req == nil {
		return errors.New("audit: request is required")
	}
	if s.Store == nil {
		return errors.New("audit: store not configured")
	}

	route := obs.RoutePatternFromContext(req.Context())
	if route == "" {
		route = strings.TrimSpace(req.URL.Path)
	}
	status := e.Status
	if status == 0 {
		status = http.StatusOK
	}
	actorID, _ := db.ParseUUID(e.Actor.UserID)

	_, err := s.Store.InsertAuditLog(ctx, db.InsertAuditLogParams{
		ActorKind:    string(normalizeActorKind(e.Actor.Kind)),
		ActorUserID:  actorID,
		Action:       buildAction(e.Action, req.Method, route),
		ResourceType: buildResource(e.ResourceType, route),
		ResourceID:   db.Text(e.ResourceID),
		Method:       req.Method,
		Path:         req.URL.Path,
		Route:        db.Text(route),
		Status:       int32(status),
		Ip:           db.Text(common.ClientIP(req)),
		UserAgent:    db.Text(req.Header.Get("User-Agent")),
		RequestID:    requestID(req),
		Metadata:     encodeMetadata(e.Metadata, req.URL.RawQuery),
	})
	return err
}

func buildAction(action, method, route string) string {
	if trimmed := strings.TrimSpace(action); trimmed != "" {
		return trimmed
	}
	if route == "" {
		route = "/"
	}
	return strings.ToUpper(strings.TrimSpace(method)) + " " + route
}

// buildResource turns /api/v1/admin/products/{id} into admin.products.{id}.
func buildResource(resourceType, route string) string {
	if trimmed := strings.TrimSpace(resourceType); trimmed != "" {
		return trimmed
	}
	route = strings.Trim(strings.TrimSpace(route), "/")
	if route == "" {
		return "unknown"
	}
	segments := strings.Split(route, "/")
	if len(segments) >= 3 && segments[0] == "api" && segments[1] == "v1" {
		segments = segments[2:]
	}
	return strings.Join(segments, ".")
}

func normalizeActorKind(kind ActorKind) ActorKind {
	switch kind {
	case ActorKindAdmin, ActorKindUser, ActorKindSystem:
		return kind
	default:
		return ActorKindAnonymous
	}
}

func requestID(r *http.Request) pgtype.Text {
	if id := r.Header.Get("X-Request-ID"); id != "" {
		return db.Text(id)
	}
	return db.Text(r.Header.Get("X-Request-Id"))
}

func encodeMetadata(meta map[string]any, query string) []byte {
	if len(meta) == 0 && strings.TrimSpace(query) == "" {
		return nil
	}
	payload := make(map[string]any, len(meta)+1)
	for k, v := range meta {
		payload[k] = v
	}
	if strings.TrimSpace(query) != "" {
		payload["query"] = query
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return data
}
