package auth

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/jvaguiar05/smart-park-system/pkg/apperrors"
	"github.com/jvaguiar05/smart-park-system/pkg/crypto"
	"github.com/jvaguiar05/smart-park-system/pkg/models"
)

// Headers a signed hardware report must carry.
const (
	HeaderAPIKey    = "X-Api-Key"
	HeaderTimestamp = "X-Timestamp"
	HeaderSignature = "X-Signature"
)

// Reasons a signed report is rejected, reported to the auditor.
const (
	RejectMissingHeaders = "missing_headers"
	RejectBadTimestamp   = "bad_timestamp"
	RejectClockSkew      = "clock_skew"
	RejectUnknownKey     = "unknown_key"
	RejectDisabledKey    = "disabled_key"
	RejectBadSignature   = "bad_signature"
	RejectBodyTooLarge   = "body_too_large"
	RejectReplayed       = "replayed"
)

// APIKeyStore looks up ingestion keys by their public key id.
// Returns apperrors.ErrNotFound for unknown or deleted keys.
type APIKeyStore interface {
	GetByKeyID(ctx context.Context, keyID string) (*models.APIKey, error)
}

// IngestAuditor records rejected hardware reports.
type IngestAuditor interface {
	LogIngestRejected(ctx context.Context, keyID, reason, clientIP string)
}

// SecretOpener decrypts a stored HMAC secret for its key id.
type SecretOpener interface {
	Open(keyID, sealed string) ([]byte, error)
}

// IngestVerifier authenticates hardware reports signed with a client's API key.
// The signature is hex(HMAC-SHA256(secret, X-Timestamp + "." + body)).
type IngestVerifier struct {
	keys         APIKeyStore
	secrets      SecretOpener
	auditor      IngestAuditor
	replays      ReplayGuard
	logger       *zap.Logger
	maxSkew      time.Duration
	maxBodyBytes int64
	now          func() time.Time
}

// NewIngestVerifier creates a verifier. maxSkew bounds the accepted timestamp drift.
func NewIngestVerifier(keys APIKeyStore, secrets SecretOpener, auditor IngestAuditor, maxSkew time.Duration, maxBodyBytes int64, logger *zap.Logger) *IngestVerifier {
	return &IngestVerifier{
		keys:         keys,
		secrets:      secrets,
		auditor:      auditor,
		logger:       logger.Named("ingest_auth"),
		maxSkew:      maxSkew,
		maxBodyBytes: maxBodyBytes,
		now:          time.Now,
	}
}

// WithReplayGuard rejects a signature that was already accepted.
// Without one, only reports carrying an event id are deduplicated.
func (v *IngestVerifier) WithReplayGuard(g ReplayGuard) *IngestVerifier {
	v.replays = g
	return v
}

// RequireSignedReport verifies the API key and signature, then puts the key in
// context and hands the already-read body to next.
// Needs a database scope in context, so it runs after the scope middleware.
func (v *IngestVerifier) RequireSignedReport(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		keyID := r.Header.Get(HeaderAPIKey)
		ts := r.Header.Get(HeaderTimestamp)
		sig := r.Header.Get(HeaderSignature)

		reject := func(reason string) {
			v.auditor.LogIngestRejected(r.Context(), keyID, reason, clientIP(r))
			if reason == RejectBodyTooLarge {
				writeAuthError(w, http.StatusRequestEntityTooLarge, "body_too_large", "Report body too large")
				return
			}
			writeAuthError(w, http.StatusUnauthorized, "invalid_signature", "Report signature verification failed")
		}

		if keyID == "" || ts == "" || sig == "" {
			reject(RejectMissingHeaders)
			return
		}

		unix, err := strconv.ParseInt(ts, 10, 64)
		if err != nil {
			reject(RejectBadTimestamp)
			return
		}
		drift := v.now().Sub(time.Unix(unix, 0))
		if drift > v.maxSkew || drift < -v.maxSkew {
			reject(RejectClockSkew)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, v.maxBodyBytes+1))
		if err != nil {
			writeAuthError(w, http.StatusBadRequest, "invalid_body", "Failed to read report body")
			return
		}
		if int64(len(body)) > v.maxBodyBytes {
			reject(RejectBodyTooLarge)
			return
		}

		key, err := v.keys.GetByKeyID(r.Context(), keyID)
		if errors.Is(err, apperrors.ErrNotFound) {
			reject(RejectUnknownKey)
			return
		}
		if err != nil {
			v.logger.Error("Failed to load API key", zap.String("key_id", keyID), zap.Error(err))
			writeAuthError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
			return
		}
		if !key.Enabled {
			reject(RejectDisabledKey)
			return
		}

		secret, err := v.secrets.Open(key.KeyID, key.HMACSecretEncrypted)
		if err != nil {
			v.logger.Error("Failed to decrypt API key secret", zap.String("key_id", keyID), zap.Error(err))
			writeAuthError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
			return
		}

		if !crypto.VerifySignature(secret, ts, body, sig) {
			reject(RejectBadSignature)
			return
		}

		claimed := false
		if v.replays != nil {
			// A timestamp stays acceptable for up to twice the skew after its first use.
			fresh, err := v.replays.Claim(r.Context(), key.KeyID, sig, 2*v.maxSkew)
			if err != nil {
				v.logger.Warn("Replay check unavailable, accepting report", zap.String("key_id", keyID), zap.Error(err))
			} else if !fresh {
				reject(RejectReplayed)
				return
			}
			claimed = err == nil
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		ctx := context.WithValue(r.Context(), APIKeyKey, key)
		if !claimed {
			next(w, r.WithContext(ctx))
			return
		}

		rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next(rec, r.WithContext(ctx))
		if rec.statusCode >= http.StatusInternalServerError {
			// The report was not applied; let the device retransmit it unchanged.
			if err := v.replays.Release(context.WithoutCancel(r.Context()), key.KeyID, sig); err != nil {
				v.logger.Warn("Failed to release report signature", zap.String("key_id", keyID), zap.Error(err))
			}
		}
	}
}

// statusRecorder captures the status code written by the ingest handler.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
