// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/dalemusser/tenanthub/internal/app/store/audit"
	"github.com/dalemusser/tenanthub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Destinations for a category setting.
const (
	All = "all" // MongoDB + zap
	DB  = "db"  // MongoDB only
	Log = "log" // zap only
	Off = "off"
)

// Config holds audit logging configuration.
type Config struct {
	// Auth controls logging for authentication events (login, token rejection).
	Auth string
	// Admin controls logging for organization changes and lifecycle repairs.
	Admin string
}

// Sink persists audit events. *audit.Store satisfies it.
type Sink interface {
	Log(ctx context.Context, event audit.Event) error
}

// Logger provides convenience methods for logging audit events.
// It logs to a Sink (usually MongoDB) and to zap, as configured per category.
type Logger struct {
	store  Sink
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger. store may be nil, in which case "db"
// destinations are skipped (the in-memory backend has no audit collection).
func New(store Sink, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

// ClientIP extracts the client IP from the request, preferring proxy headers.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func userAgent(r *http.Request) string {
	if r == nil {
		return ""
	}
	return r.UserAgent()
}

func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
	}
	if event.IP != "" {
		fields = append(fields, zap.String("ip", event.IP))
	}
	if event.ActorID != nil {
		fields = append(fields, zap.String("actor_id", event.ActorID.Hex()))
	}
	if event.OrganizationID != nil {
		fields = append(fields, zap.String("organization_id", event.OrganizationID.Hex()))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records an audit event based on configuration.
// A nil Logger is a no-op.
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	var setting string
	switch event.Category {
	case audit.CategoryAuth:
		setting = l.config.Auth
	case audit.CategoryAdmin, audit.CategoryLifecycle:
		setting = l.config.Admin
	}
	if setting == "" {
		setting = All
	}
	if setting == Off {
		return
	}

	if setting == All || setting == Log {
		l.logToZap(event)
	}

	if (setting == All || setting == DB) && l.store != nil {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

// --- Authentication Events ---

// LoginSuccess logs a successful administrator login.
func (l *Logger) LoginSuccess(ctx context.Context, r *http.Request, adminID, orgID primitive.ObjectID, email string) {
	l.Log(ctx, audit.Event{
		Category:       audit.CategoryAuth,
		EventType:      audit.EventLoginSuccess,
		ActorID:        &adminID,
		OrganizationID: &orgID,
		IP:             ClientIP(r),
		UserAgent:      userAgent(r),
		Success:        true,
		Details:        map[string]string{"email": email},
	})
}

// LoginFailed logs a rejected login. knownEmail distinguishes an unknown
// address from a wrong password; clients never see the difference.
func (l *Logger) LoginFailed(ctx context.Context, r *http.Request, email string, knownEmail bool) {
	eventType, reason := audit.EventLoginFailedUnknownEmail, "unknown email"
	if knownEmail {
		eventType, reason = audit.EventLoginFailedWrongPassword, "wrong password"
	}
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     eventType,
		IP:            ClientIP(r),
		UserAgent:     userAgent(r),
		FailureReason: reason,
		Details:       map[string]string{"attempted_email": email},
	})
}

// LoginRateLimited logs a login refused by the rate limiter.
func (l *Logger) LoginRateLimited(ctx context.Context, r *http.Request) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     audit.EventLoginFailedRateLimit,
		IP:            ClientIP(r),
		UserAgent:     userAgent(r),
		FailureReason: "rate limit exceeded",
	})
}

// TokenRejected logs a request whose bearer token failed validation.
func (l *Logger) TokenRejected(ctx context.Context, r *http.Request, reason string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     audit.EventTokenRejected,
		IP:            ClientIP(r),
		UserAgent:     userAgent(r),
		FailureReason: reason,
	})
}

// --- Admin Events ---

// OrgCreated logs provisioning of a new organization.
func (l *Logger) OrgCreated(ctx context.Context, r *http.Request, org models.Organization) {
	l.Log(ctx, audit.Event{
		Category:       audit.CategoryAdmin,
		EventType:      audit.EventOrgCreated,
		OrganizationID: &org.ID,
		ActorID:        org.AdminID,
		IP:             ClientIP(r),
		UserAgent:      userAgent(r),
		Success:        true,
		Details: map[string]string{
			"organization_name": org.Name,
			"collection_name":   org.CollectionName,
		},
	})
}

// OrgRenamed logs a completed rename.
func (l *Logger) OrgRenamed(ctx context.Context, r *http.Request, actorID, orgID primitive.ObjectID, oldName, newName string) {
	l.Log(ctx, audit.Event{
		Category:       audit.CategoryAdmin,
		EventType:      audit.EventOrgRenamed,
		OrganizationID: &orgID,
		ActorID:        &actorID,
		IP:             ClientIP(r),
		UserAgent:      userAgent(r),
		Success:        true,
		Details:        map[string]string{"old_name": oldName, "new_name": newName},
	})
}

// OrgCredentialsUpdated logs an administrator email and/or password change.
func (l *Logger) OrgCredentialsUpdated(ctx context.Context, r *http.Request, actorID, orgID primitive.ObjectID, fieldsChanged string) {
	l.Log(ctx, audit.Event{
		Category:       audit.CategoryAdmin,
		EventType:      audit.EventOrgCredentialsUpdated,
		OrganizationID: &orgID,
		ActorID:        &actorID,
		IP:             ClientIP(r),
		UserAgent:      userAgent(r),
		Success:        true,
		Details:        map[string]string{"fields_changed": fieldsChanged},
	})
}

// OrgDeleted logs a completed delete.
func (l *Logger) OrgDeleted(ctx context.Context, r *http.Request, actorID, orgID primitive.ObjectID, name string) {
	l.Log(ctx, audit.Event{
		Category:       audit.CategoryAdmin,
		EventType:      audit.EventOrgDeleted,
		OrganizationID: &orgID,
		ActorID:        &actorID,
		IP:             ClientIP(r),
		UserAgent:      userAgent(r),
		Success:        true,
		Details:        map[string]string{"organization_name": name},
	})
}

// OrgAccessDenied logs an administrator acting on an organization that is not theirs.
func (l *Logger) OrgAccessDenied(ctx context.Context, r *http.Request, actorID primitive.ObjectID, targetName, action string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAdmin,
		EventType:     audit.EventOrgAccessDenied,
		ActorID:       &actorID,
		IP:            ClientIP(r),
		UserAgent:     userAgent(r),
		FailureReason: "forbidden",
		Details:       map[string]string{"organization_name": targetName, "action": action},
	})
}

// --- Lifecycle Events ---

// MigrationFailed logs a rename whose collection migration was abandoned.
func (l *Logger) MigrationFailed(ctx context.Context, orgID primitive.ObjectID, oldName, newName string, cause error) {
	reason := ""
	if cause != nil {
		reason = cause.Error()
	}
	l.Log(ctx, audit.Event{
		Category:       audit.CategoryLifecycle,
		EventType:      audit.EventMigrationFailed,
		OrganizationID: &orgID,
		FailureReason:  reason,
		Details:        map[string]string{"old_name": oldName, "new_name": newName},
	})
}

// OpReconciled logs the repair of an interrupted lifecycle operation.
func (l *Logger) OpReconciled(ctx context.Context, op models.LifecycleOp, action string) {
	l.Log(ctx, audit.Event{
		Category:       audit.CategoryLifecycle,
		EventType:      audit.EventOpReconciled,
		OrganizationID: op.OrganizationID,
		Success:        true,
		Details: map[string]string{
			"op_id":  op.ID.Hex(),
			"kind":   op.Kind,
			"step":   op.Step,
			"action": action,
		},
	})
}

// OrphanDropped logs removal of a tenant collection no organization references.
func (l *Logger) OrphanDropped(ctx context.Context, collection string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryLifecycle,
		EventType: audit.EventOrphanDropped,
		Success:   true,
		Details:   map[string]string{"collection_name": collection},
	})
}
