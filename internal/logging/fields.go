package logging

// Common structured log field keys to keep logs searchable/consistent.
const (
	FieldTime       = "ts"
	FieldRequestID  = "request_id"
	FieldClientID   = "client_id"
	FieldEnrollment = "enrollment_id"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldRoute      = "route"
	FieldStatusCode = "status_code"
	FieldDurationMS = "duration_ms"
	FieldIntent     = "intent"
	FieldRemoteAddr = "remote_addr"
)
