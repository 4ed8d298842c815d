package api

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	syncRoute       = "/api/documents/:documentId"
	syncSpanName    = "document.sync"
	syncEventName   = "taskflow.document.sync"
	syncEventDomain = "taskflow"
)

// syncRequestMetrics collects per-request observations for the document sync
// endpoint and emits them once as a log entry plus an otel span event.
type syncRequestMetrics struct {
	logger       *log.Logger
	span         trace.Span
	start        time.Time
	authDuration time.Duration
	syncDuration time.Duration
	documentID   string
	tasksFound   int
	skipped      bool
	errorStage   string
}

func newSyncRequestMetrics(ctx context.Context, logger *log.Logger) (*syncRequestMetrics, context.Context) {
	m := &syncRequestMetrics{logger: logger, start: time.Now()}
	if ctx == nil {
		return m, nil
	}
	spanCtx, span := otel.Tracer("taskflow-api").Start(ctx, syncSpanName)
	m.span = span
	return m, spanCtx
}

func (m *syncRequestMetrics) ObserveAuth(duration time.Duration) {
	if duration > 0 {
		m.authDuration = duration
	}
}

func (m *syncRequestMetrics) ObserveSync(duration time.Duration) {
	if duration > 0 {
		m.syncDuration = duration
	}
}

func (m *syncRequestMetrics) SetDocumentID(id string) {
	m.documentID = id
}

func (m *syncRequestMetrics) SetTasksFound(count int) {
	if count < 0 {
		count = 0
	}
	m.tasksFound = count
}

func (m *syncRequestMetrics) SetSkipped(skipped bool) {
	m.skipped = skipped
}

func (m *syncRequestMetrics) SetErrorStage(stage string) {
	if stage != "" {
		m.errorStage = stage
	}
}

// Log emits the observability event exactly once; callers defer it.
func (m *syncRequestMetrics) Log(status int, err error) {
	if m == nil || m.logger == nil {
		return
	}

	totalMs := durationToMillis(time.Since(m.start))
	severityText, severityNumber := severityForStatus(status, err)

	attrs := map[string]any{
		"http.route":             syncRoute,
		"http.status_code":       status,
		"taskflow.sync.total_ms": totalMs,
		"taskflow.sync.skipped":  m.skipped,
	}
	if m.documentID != "" {
		attrs["taskflow.sync.document"] = m.documentID
	}
	if m.authDuration > 0 {
		attrs["taskflow.sync.auth_ms"] = durationToMillis(m.authDuration)
	}
	if m.syncDuration > 0 {
		attrs["taskflow.sync.sync_ms"] = durationToMillis(m.syncDuration)
	}
	if m.tasksFound > 0 {
		attrs["taskflow.sync.tasks_found"] = m.tasksFound
	}
	if m.errorStage != "" {
		attrs["taskflow.sync.error_stage"] = m.errorStage
	}
	if err != nil {
		attrs["error.message"] = err.Error()
	}

	fields := log.Fields{
		"event.name":      syncEventName,
		"event.domain":    syncEventDomain,
		"attributes":      attrs,
		"severity_text":   severityText,
		"severity_number": severityNumber,
	}

	if m.span != nil {
		spanAttrs := make([]attribute.KeyValue, 0, len(attrs)+3)
		for k, v := range attrs {
			spanAttrs = append(spanAttrs, anyAttribute(k, v))
		}
		m.span.SetAttributes(spanAttrs...)

		eventAttrs := append(spanAttrs,
			attribute.String("event.name", syncEventName),
			attribute.String("event.domain", syncEventDomain),
			attribute.String("severity_text", severityText),
		)
		m.span.AddEvent("observability.event", trace.WithAttributes(eventAttrs...))

		if severityText == "ERROR" {
			desc := m.errorStage
			if err != nil {
				desc = err.Error()
			}
			m.span.SetStatus(codes.Error, desc)
		} else {
			m.span.SetStatus(codes.Ok, "")
		}

		sc := m.span.SpanContext()
		if sc.HasTraceID() {
			fields["trace_id"] = sc.TraceID().String()
		}
		if sc.HasSpanID() {
			fields["span_id"] = sc.SpanID().String()
		}
		m.span.End()
	}

	entry := m.logger.WithFields(fields)
	switch severityText {
	case "ERROR":
		entry.Error("observability.event")
	case "WARN":
		entry.Warn("observability.event")
	default:
		entry.Info("observability.event")
	}
}

func severityForStatus(status int, err error) (string, int) {
	switch {
	case err != nil && status < 400:
		return "ERROR", 17
	case status >= 500:
		return "ERROR", 17
	case status >= 400:
		return "WARN", 13
	default:
		return "INFO", 9
	}
}

func anyAttribute(key string, value any) attribute.KeyValue {
	switch v := value.(type) {
	case bool:
		return attribute.Bool(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case string:
		return attribute.String(key, v)
	default:
		return attribute.String(key, "")
	}
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
