package databind

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestEmitters(_ *testing.T) {
	ctx := context.Background()
	failure := errors.New("test error")

	// Emission must never panic, with or without listeners.
	emitBindingCreated(ctx, "application/json", "User")
	emitEncodeStart(ctx, "application/json", "User")
	emitEncodeComplete(ctx, "application/json", "User", 128, time.Millisecond, nil)
	emitEncodeComplete(ctx, "application/json", "User", 0, time.Millisecond, failure)
	emitDecodeStart(ctx, "application/json", "User")
	emitDecodeComplete(ctx, "application/json", "User", time.Millisecond, 2, nil)
	emitDecodeComplete(ctx, "application/json", "User", time.Millisecond, 0, failure)
	emitResolveComplete(ctx, "User", "serialize", 3, time.Microsecond, nil)
	emitResolveComplete(ctx, "User", "deserialize", 0, time.Microsecond, failure)
	emitReconfigured(ctx, "enum", "Color", 2)
	emitIssue(ctx, "a.b", failure)
}

func TestSignalsInitialized(t *testing.T) {
	signals := map[string]any{
		"SignalBindingCreated": SignalBindingCreated,
		"SignalEncodeStart":    SignalEncodeStart,
		"SignalEncodeComplete": SignalEncodeComplete,
		"SignalDecodeStart":    SignalDecodeStart,
		"SignalDecodeComplete": SignalDecodeComplete,
		"SignalResolved":       SignalResolved,
		"SignalReconfigured":   SignalReconfigured,
		"SignalIssue":          SignalIssue,
		"KeyContentType":       KeyContentType,
		"KeyTypeName":          KeyTypeName,
		"KeyDirection":         KeyDirection,
		"KeyKind":              KeyKind,
		"KeyPath":              KeyPath,
		"KeySize":              KeySize,
		"KeyStrategyCount":     KeyStrategyCount,
		"KeyGeneration":        KeyGeneration,
		"KeyIssueCount":        KeyIssueCount,
		"KeyDuration":          KeyDuration,
		"KeyError":             KeyError,
	}
	for name, v := range signals {
		if v == nil {
			t.Errorf("%s is nil", name)
		}
	}
}
