package logger

import (
	"log/slog"
)

// Standard field keys for structured logging.
// Use these keys consistently across all log statements so that the gateway,
// registry, and worker produce logs that can be aggregated and queried together.
const (
	// Request correlation
	KeyRequestID = "request_id" // HTTP request ID for correlation
	KeyEndpoint  = "endpoint"   // Request path or internal operation name
	KeyMethod    = "method"     // HTTP method

	// Identity
	KeyClientID    = "client_id"   // Client machine identity (certificate CN)
	KeyClientIP    = "client_ip"   // Remote IP address
	KeyOperatorID  = "operator_id" // Portal operator (user) ID
	KeyEmail       = "email"       // Operator email
	KeyFingerprint = "fingerprint" // Certificate SHA-256 fingerprint

	// Message pipeline
	KeyMessageID   = "message_id"   // External message UUID
	KeyPhone       = "phone"        // Sender number, always masked before logging
	KeyStatus      = "status"       // Message lifecycle status
	KeyAttempt     = "attempt"      // Delivery attempt number
	KeyMaxAttempts = "max_attempts" // Configured attempt ceiling
	KeyWorkerID    = "worker_id"    // Delivery worker identity
	KeyQueueKey    = "queue_key"    // Queue list key
	KeyQueueSize   = "queue_size"   // Advisory queue length
	KeyKeyVersion  = "key_version"  // Encryption key version
	KeyDomain      = "domain"       // Domain tag on a message or client

	// Audit
	KeyEventType = "event_type" // Audit event type
	KeySeverity  = "severity"   // Audit severity
	KeyReason    = "reason"     // Revocation or failure reason

	// Operation metadata
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
)

// ============================================================================
// Field constructors for type safety
// ============================================================================

// RequestID returns a slog.Attr for an HTTP request ID
func RequestID(id string) slog.Attr {
	return slog.String(KeyRequestID, id)
}

// Endpoint returns a slog.Attr for a request path or operation name
func Endpoint(e string) slog.Attr {
	return slog.String(KeyEndpoint, e)
}

// ClientID returns a slog.Attr for a client identity
func ClientID(id string) slog.Attr {
	return slog.String(KeyClientID, id)
}

// ClientIP returns a slog.Attr for a remote IP address
func ClientIP(addr string) slog.Attr {
	return slog.String(KeyClientIP, addr)
}

// OperatorID returns a slog.Attr for a portal operator ID
func OperatorID(id uint) slog.Attr {
	return slog.Uint64(KeyOperatorID, uint64(id))
}

// Email returns a slog.Attr for an operator email
func Email(email string) slog.Attr {
	return slog.String(KeyEmail, email)
}

// Fingerprint returns a slog.Attr for a certificate fingerprint
func Fingerprint(fp string) slog.Attr {
	return slog.String(KeyFingerprint, fp)
}

// MessageID returns a slog.Attr for an external message UUID
func MessageID(id string) slog.Attr {
	return slog.String(KeyMessageID, id)
}

// Phone returns a slog.Attr for a sender number. The value is masked;
// raw numbers must never reach a log line (see MaskPhone).
func Phone(number string) slog.Attr {
	return slog.String(KeyPhone, MaskPhone(number))
}

// Status returns a slog.Attr for a message lifecycle status
func Status(s string) slog.Attr {
	return slog.String(KeyStatus, s)
}

// Attempt returns a slog.Attr for a delivery attempt number
func Attempt(n int) slog.Attr {
	return slog.Int(KeyAttempt, n)
}

// WorkerID returns a slog.Attr for a delivery worker identity
func WorkerID(id string) slog.Attr {
	return slog.String(KeyWorkerID, id)
}

// QueueSize returns a slog.Attr for an advisory queue length
func QueueSize(n int64) slog.Attr {
	return slog.Int64(KeyQueueSize, n)
}

// KeyVersion returns a slog.Attr for an encryption key version
func KeyVersion(v int) slog.Attr {
	return slog.Int(KeyKeyVersion, v)
}

// EventType returns a slog.Attr for an audit event type
func EventType(t string) slog.Attr {
	return slog.String(KeyEventType, t)
}

// Reason returns a slog.Attr for a revocation or failure reason
func Reason(reason string) slog.Attr {
	return slog.String(KeyReason, reason)
}

// DurationMs returns a slog.Attr for duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}
