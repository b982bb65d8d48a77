package log

// Common field names for structured logging
const (
	FieldComponent = "component"
	FieldOperation = "operation"
	FieldError     = "error"
	FieldSuccess   = "success"
	FieldDuration  = "duration_ms"

	FieldMessageID      = "message_id"
	FieldBatchSize      = "batch_size"
	FieldQueue          = "queue"
	FieldNewlyProcessed = "newly_processed"
	FieldTransactions   = "transactions"
	FieldTotalSpending  = "total_spending"
	FieldCategory       = "category"
	FieldRuleName       = "rule_name"
	FieldSheetsRef      = "sheets_ref"
)

// Components defines standard component names
const (
	ComponentApp      = "app"
	ComponentWorker   = "worker"
	ComponentPipeline = "pipeline"
	ComponentClassify = "classify"
	ComponentRules    = "rules"
	ComponentCache    = "cache"
	ComponentStorage  = "storage"
	ComponentAMQP     = "amqp"
	ComponentSheets   = "sheets"
)

// Operations defines standard operation names
const (
	OpClassify  = "classify"
	OpUpsert    = "upsert"
	OpSummarize = "summarize"
	OpConsume   = "consume"
	OpPublish   = "publish"
	OpExport    = "export"
	OpValidate  = "validate"
	OpStartup   = "startup"
	OpShutdown  = "shutdown"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithMessageID adds the raw message ID field
func (f LogFields) WithMessageID(id int64) LogFields {
	f[FieldMessageID] = id
	return f
}

// WithRunResult adds the fields of a completed analysis run
func (f LogFields) WithRunResult(newlyProcessed, transactions int, totalSpending string) LogFields {
	f[FieldNewlyProcessed] = newlyProcessed
	f[FieldTransactions] = transactions
	f[FieldTotalSpending] = totalSpending
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
