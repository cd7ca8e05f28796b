package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestProvider() (*sdktrace.TracerProvider, *tracetest.InMemoryExporter) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return tp, exporter
}

func TestRouterMiddleware_SpansPerRouteTemplate(t *testing.T) {
	tp, exporter := newTestProvider()

	r := mux.NewRouter()
	r.Use(RouterMiddleware(""))
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/{resource}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	api.HandleFunc("/{resource}/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	const parentTraceID = "4bf92f3577b34da6a3ce929d0e0e4736"

	tests := []struct {
		name        string
		target      string
		traceParent string
		wantSpan    string
	}{
		{
			name:     "collection",
			target:   "/api/people",
			wantSpan: "/api/{resource}",
		},
		{
			name:        "item continues incoming trace",
			target:      "/api/people/2f1c2d4e-7a0b-4a53-9a4e-1d2f3c4b5a69",
			traceParent: "00-" + parentTraceID + "-00f067aa0ba902b7-01",
			wantSpan:    "/api/{resource}/{id}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exporter.Reset()

			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.traceParent != "" {
				req.Header.Set("traceparent", tt.traceParent)
			}
			r.ServeHTTP(httptest.NewRecorder(), req)

			if err := tp.ForceFlush(context.Background()); err != nil {
				t.Fatalf("ForceFlush() error = %v", err)
			}
			spans := exporter.GetSpans()
			if len(spans) != 1 {
				t.Fatalf("Expected 1 span, got %d", len(spans))
			}
			if spans[0].Name != tt.wantSpan {
				t.Errorf("Expected span %q, got %q", tt.wantSpan, spans[0].Name)
			}
			if tt.traceParent != "" {
				if got := spans[0].SpanContext.TraceID().String(); got != parentTraceID {
					t.Errorf("Expected trace ID %s, got %s", parentTraceID, got)
				}
			}
		})
	}
}

func TestTracer_RecordsSpans(t *testing.T) {
	_, exporter := newTestProvider()

	_, span := Tracer().Start(context.Background(), "route_table.reload")
	span.End()

	spans := exporter.GetSpans()
	if len(spans) != 1 || spans[0].Name != "route_table.reload" {
		t.Errorf("Expected one route_table.reload span, got %v", spans)
	}
}
