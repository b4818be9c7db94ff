package log

// Common field names for structured logging
const (
	FieldComponent      = "component"
	FieldRequestID      = "request_id"
	FieldClientIP       = "client_ip"
	FieldMethod         = "method"
	FieldPath           = "path"
	FieldQuery          = "query"
	FieldStatusCode     = "status_code"
	FieldDuration       = "duration_ms"
	FieldUserAgent      = "user_agent"
	FieldSuccess        = "success"
	FieldError          = "error"
	FieldOperation      = "operation"
	FieldAction         = "action"
	FieldItemID         = "item_id"
	FieldDescription    = "description"
	FieldAmount         = "amount"
	FieldAmountLeft     = "amount_left"
	FieldMonth          = "month"
	FieldYear           = "year"
	FieldFromMonth      = "from_month"
	FieldToMonth        = "to_month"
	FieldMonthGap       = "month_gap"
	FieldSubkey         = "subkey"
	FieldNotificationID = "notification_id"
	FieldIntent         = "intent"
)

// Standard component names
const (
	ComponentApp       = "app"
	ComponentCLI       = "cli"
	ComponentHTTP      = "http"
	ComponentEngine    = "engine"
	ComponentStorage   = "storage"
	ComponentSchema    = "schema"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentCache     = "cache"
	ComponentSecurity  = "security"
	ComponentRateLimit = "rate_limit"
)

// Standard operation names
const (
	OpLoad     = "load"
	OpRollover = "rollover"
	OpDispatch = "dispatch"
	OpPersist  = "persist"
	OpSchedule = "schedule"
	OpSettings = "settings"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithRequestID(requestID string) LogFields {
	f[FieldRequestID] = requestID
	return f
}

func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

// WithError adds the error message; nil errors are skipped.
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithItem adds item fields. amount is the formatted decimal.
func (f LogFields) WithItem(id, desc, amount string) LogFields {
	f[FieldItemID] = id
	f[FieldDescription] = desc
	f[FieldAmount] = amount
	return f
}

// WithRollover adds the months a rollover moved between.
func (f LogFields) WithRollover(fromMonth, toMonth, gap int) LogFields {
	f[FieldFromMonth] = fromMonth
	f[FieldToMonth] = toMonth
	f[FieldMonthGap] = gap
	return f
}

func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	f[FieldUserAgent] = userAgent
	return f
}

func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64, success bool) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = success
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
