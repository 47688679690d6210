// Package audit provides security audit logging for SIEM consumption.
// It logs security-relevant events in structured JSON format for easy parsing
// and integration with security information and event management systems.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/jvaguiar05/smart-park-system/pkg/auth"
)

// SecurityEventType categorizes security-relevant events for filtering and alerting.
type SecurityEventType string

const (
	// EventSQLInjectionAttempt is logged when libinjection flags a search term.
	EventSQLInjectionAttempt SecurityEventType = "sql_injection_attempt"
	// EventAccessDenied is logged when the access resolver rejects a caller.
	EventAccessDenied SecurityEventType = "access_denied"
	// EventIngestRejected is logged when a hardware report fails API key or signature checks.
	EventIngestRejected SecurityEventType = "ingest_rejected"
	// EventStatusOverride is logged when an administrator sets a slot status by hand.
	EventStatusOverride SecurityEventType = "status_override"
)

// SecurityEvent represents an auditable security event with all relevant context
// for SIEM ingestion and analysis.
type SecurityEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType SecurityEventType `json:"event_type"`
	ClientID  *int64            `json:"client_id,omitempty"`
	UserID    string            `json:"user_id,omitempty"`
	ClientIP  string            `json:"client_ip,omitempty"`
	Details   any               `json:"details"`
	Severity  string            `json:"severity"` // info, warning, critical
}

// InjectionDetails contains specifics of a rejected search term.
type InjectionDetails struct {
	Field       string `json:"field"`
	Value       string `json:"value"`
	Fingerprint string `json:"fingerprint"` // libinjection fingerprint for pattern analysis
	Resource    string `json:"resource"`
}

// AccessDeniedDetails describes a resolver decision that blocked an operation.
type AccessDeniedDetails struct {
	Operation       string `json:"operation"`
	ClientID        int64  `json:"client_id"`
	EstablishmentID *int64 `json:"establishment_id,omitempty"`
	Level           string `json:"level"`
	Required        string `json:"required"`
}

// SecurityAuditor logs security events for SIEM consumption.
// Events are logged in structured JSON format with appropriate severity levels.
type SecurityAuditor struct {
	logger *zap.Logger
}

var _ auth.IngestAuditor = (*SecurityAuditor)(nil)

// NewSecurityAuditor creates a new security auditor with a dedicated logger namespace.
// The logger is automatically configured with "security_audit" namespace for easy
// filtering in SIEM systems.
func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	return &SecurityAuditor{logger: logger.Named("security_audit")}
}

// LogInjectionAttempt records a search term rejected by libinjection.
// This is logged at ERROR level with "critical" severity for immediate alerting.
//
// Example usage:
//
//	auditor.LogInjectionAttempt(ctx,
//	    audit.InjectionDetails{
//	        Field:       "search",
//	        Value:       "'; DROP TABLE slots--",
//	        Fingerprint: "s&1c",
//	        Resource:    "establishments",
//	    },
//	    r.RemoteAddr,
//	)
func (a *SecurityAuditor) LogInjectionAttempt(ctx context.Context, details InjectionDetails, clientIP string) {
	userID := auth.GetUserIDFromContext(ctx)

	event := SecurityEvent{
		Timestamp: time.Now().UTC(),
		EventType: EventSQLInjectionAttempt,
		UserID:    userID,
		ClientIP:  clientIP,
		Details:   details,
		Severity:  "critical",
	}

	// Ignoring error as marshaling known types should never fail
	eventJSON, _ := json.Marshal(event)

	a.logger.Error("SQL injection attempt detected",
		zap.String("event_json", string(eventJSON)),
		zap.String("field", details.Field),
		zap.String("resource", details.Resource),
		zap.String("fingerprint", details.Fingerprint),
		zap.String("client_ip", clientIP),
		zap.String("user_id", userID),
		zap.String("severity", "critical"),
	)
}

// LogAccessDenied records an operation the caller was not entitled to.
// Logged at WARN level; most denials are misconfigured clients, not attacks.
func (a *SecurityAuditor) LogAccessDenied(ctx context.Context, details AccessDeniedDetails, clientIP string) {
	userID := auth.GetUserIDFromContext(ctx)
	clientID := details.ClientID

	event := SecurityEvent{
		Timestamp: time.Now().UTC(),
		EventType: EventAccessDenied,
		ClientID:  &clientID,
		UserID:    userID,
		ClientIP:  clientIP,
		Details:   details,
		Severity:  "warning",
	}

	eventJSON, _ := json.Marshal(event)

	a.logger.Warn("Access denied",
		zap.String("event_json", string(eventJSON)),
		zap.String("operation", details.Operation),
		zap.Int64("client_id", details.ClientID),
		zap.String("level", details.Level),
		zap.String("required", details.Required),
		zap.String("client_ip", clientIP),
		zap.String("user_id", userID),
		zap.String("severity", "warning"),
	)
}

// LogIngestRejected records a hardware report that failed authentication.
// keyID is whatever the device sent and may be empty or unknown.
func (a *SecurityAuditor) LogIngestRejected(ctx context.Context, keyID, reason, clientIP string) {
	event := SecurityEvent{
		Timestamp: time.Now().UTC(),
		EventType: EventIngestRejected,
		ClientIP:  clientIP,
		Details: map[string]string{
			"key_id": keyID,
			"reason": reason,
		},
		Severity: "warning",
	}

	eventJSON, _ := json.Marshal(event)

	a.logger.Warn("Hardware report rejected",
		zap.String("event_json", string(eventJSON)),
		zap.String("key_id", keyID),
		zap.String("reason", reason),
		zap.String("client_ip", clientIP),
		zap.String("severity", "warning"),
	)
}

// LogStatusOverride records a manual status change made through the admin API.
// This is logged at INFO level and forms the audit trail of human overrides.
func (a *SecurityAuditor) LogStatusOverride(ctx context.Context, clientID, slotID int64, status string) {
	userID := auth.GetUserIDFromContext(ctx)

	event := SecurityEvent{
		Timestamp: time.Now().UTC(),
		EventType: EventStatusOverride,
		ClientID:  &clientID,
		UserID:    userID,
		Details: map[string]any{
			"slot_id": slotID,
			"status":  status,
		},
		Severity: "info",
	}

	eventJSON, _ := json.Marshal(event)

	a.logger.Info("Slot status overridden",
		zap.String("event_json", string(eventJSON)),
		zap.Int64("client_id", clientID),
		zap.Int64("slot_id", slotID),
		zap.String("status", status),
		zap.String("user_id", userID),
		zap.String("severity", "info"),
	)
}
