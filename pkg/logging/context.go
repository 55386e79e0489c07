package logging

import (
	"context"
)

const (
	TraceIDKey     = "trace_id"
	ItemIDKey      = "item_id"
	ServiceNameKey = "service_name"
)

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

func WithItemID(ctx context.Context, itemID string) context.Context {
	return context.WithValue(ctx, ItemIDKey, itemID)
}

func WithServiceName(ctx context.Context, serviceName string) context.Context {
	return context.WithValue(ctx, ServiceNameKey, serviceName)
}

func GetTraceID(ctx context.Context) string {
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

func GetItemID(ctx context.Context) string {
	if itemID, ok := ctx.Value(ItemIDKey).(string); ok {
		return itemID
	}
	return ""
}

func GetServiceName(ctx context.Context) string {
	if serviceName, ok := ctx.Value(ServiceNameKey).(string); ok {
		return serviceName
	}
	return ""
}

func GetLogFields(ctx context.Context) []interface{} {
	fields := make([]interface{}, 0, 6)

	if traceID := GetTraceID(ctx); traceID != "" {
		fields = append(fields, "trace_id", traceID)
	}

	if itemID := GetItemID(ctx); itemID != "" {
		fields = append(fields, "item_id", itemID)
	}

	if serviceName := GetServiceName(ctx); serviceName != "" {
		fields = append(fields, "service_name", serviceName)
	}

	return fields
}
