package telemetry

import (
	"context"
	"testing"

	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

func TestNewResource_CarriesServiceNameAndVersion(t *testing.T) {
	res, err := newResource(context.Background(), "relay-test", "v1.2.3")
	if err != nil {
		t.Fatalf("newResource: %v", err)
	}

	got := map[string]string{}
	for _, kv := range res.Attributes() {
		got[string(kv.Key)] = kv.Value.Emit()
	}

	if got[string(semconv.ServiceNameKey)] != "relay-test" {
		t.Errorf("service.name = %q, want relay-test", got[string(semconv.ServiceNameKey)])
	}
	if got[string(semconv.ServiceVersionKey)] != "v1.2.3" {
		t.Errorf("service.version = %q, want v1.2.3", got[string(semconv.ServiceVersionKey)])
	}
}
