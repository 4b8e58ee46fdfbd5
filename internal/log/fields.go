// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldChannelID     = "channel_id"
	FieldGuildID       = "guild_id"
	FieldUserID        = "user_id"
	FieldRecordID      = "record_id"
	FieldCorrelationID = "correlation_id"
	FieldRequestID     = "request_id"

	// Lifecycle fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldOldState  = "old_state"
	FieldNewState  = "new_state"
	FieldReason    = "reason"

	// Timing fields
	FieldDurationMinutes  = "duration_minutes"
	FieldElapsedMinutes   = "elapsed_minutes"
	FieldRemainingMinutes = "remaining_minutes"
)
