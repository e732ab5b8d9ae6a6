package tracing

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
)

// ExtractContext extracts trace context and baggage from an inbound carrier.
func ExtractContext(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}

// InjectContext writes trace context and baggage into an outbound carrier.
func InjectContext(ctx context.Context, carrier propagation.TextMapCarrier) {
	otel.GetTextMapPropagator().Inject(ctx, carrier)
}

var sensitiveAttributeKeys = map[attribute.Key]struct{}{
	"http.request.header.authorization": {},
	"http.request.header.cookie":        {},
	"stripe_signature":                  {},
	"session_token":                     {},
	"api_key":                           {},
}

// SafeAttributes drops attributes that could carry credentials or tokens.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	safe := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := sensitiveAttributeKeys[attr.Key]; ok {
			continue
		}
		safe = append(safe, attr)
	}
	return safe
}

var sensitiveErrorMarkers = []string{
	"sk_live",
	"sk_test",
	"whsec_",
	"bearer ",
	"authorization:",
}

// SafeError returns an error suitable for recording on a span. Errors whose
// message may embed a secret are replaced with a generic one.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	message := strings.ToLower(err.Error())
	for _, marker := range sensitiveErrorMarkers {
		if strings.Contains(message, marker) {
			return errors.New("redacted error")
		}
	}
	return err
}
