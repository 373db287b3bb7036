package databind

import (
	"context"
	"time"

	"github.com/zoobzio/capitan"
)

// Signals for binding events.
var (
	SignalBindingCreated = capitan.NewSignal("databind.binding.created", "Typed binding instantiated")
	SignalEncodeStart    = capitan.NewSignal("databind.encode.start", "Encode operation beginning")
	SignalEncodeComplete = capitan.NewSignal("databind.encode.complete", "Encode operation finished")
	SignalDecodeStart    = capitan.NewSignal("databind.decode.start", "Decode operation beginning")
	SignalDecodeComplete = capitan.NewSignal("databind.decode.complete", "Decode operation finished")
	SignalResolved       = capitan.NewSignal("databind.resolve.complete", "Strategy resolution finished")
	SignalReconfigured   = capitan.NewSignal("databind.registry.reconfigured", "Registry override installed, cache generation advanced")
	SignalIssue          = capitan.NewSignal("databind.issue", "Non-fatal binding issue recorded")
)

// Keys for typed event data.
var (
	KeyContentType   = capitan.NewStringKey("content_type")
	KeyTypeName      = capitan.NewStringKey("type_name")
	KeyDirection     = capitan.NewStringKey("direction")
	KeyKind          = capitan.NewStringKey("kind")
	KeyPath          = capitan.NewStringKey("path")
	KeySize          = capitan.NewIntKey("size")
	KeyStrategyCount = capitan.NewIntKey("strategy_count")
	KeyGeneration    = capitan.NewIntKey("generation")
	KeyIssueCount    = capitan.NewIntKey("issue_count")
	KeyDuration      = capitan.NewDurationKey("duration")
	KeyError         = capitan.NewErrorKey("error")
)

func emitBindingCreated(ctx context.Context, contentType, typeName string) {
	capitan.Emit(ctx, SignalBindingCreated,
		KeyContentType.Field(contentType),
		KeyTypeName.Field(typeName),
	)
}

func emitEncodeStart(ctx context.Context, contentType, typeName string) {
	capitan.Emit(ctx, SignalEncodeStart,
		KeyContentType.Field(contentType),
		KeyTypeName.Field(typeName),
	)
}

func emitEncodeComplete(ctx context.Context, contentType, typeName string, size int, d time.Duration, err error) {
	fields := []capitan.Field{
		KeyContentType.Field(contentType),
		KeyTypeName.Field(typeName),
		KeySize.Field(size),
		KeyDuration.Field(d),
	}
	if err != nil {
		fields = append(fields, KeyError.Field(err))
		capitan.Error(ctx, SignalEncodeComplete, fields...)
		return
	}
	capitan.Emit(ctx, SignalEncodeComplete, fields...)
}

func emitDecodeStart(ctx context.Context, contentType, typeName string) {
	capitan.Emit(ctx, SignalDecodeStart,
		KeyContentType.Field(contentType),
		KeyTypeName.Field(typeName),
	)
}

func emitDecodeComplete(ctx context.Context, contentType, typeName string, d time.Duration, issues int, err error) {
	fields := []capitan.Field{
		KeyContentType.Field(contentType),
		KeyTypeName.Field(typeName),
		KeyDuration.Field(d),
		KeyIssueCount.Field(issues),
	}
	if err != nil {
		fields = append(fields, KeyError.Field(err))
		capitan.Error(ctx, SignalDecodeComplete, fields...)
		return
	}
	capitan.Emit(ctx, SignalDecodeComplete, fields...)
}

func emitResolveComplete(ctx context.Context, typeName, dir string, count int, d time.Duration, err error) {
	fields := []capitan.Field{
		KeyTypeName.Field(typeName),
		KeyDirection.Field(dir),
		KeyStrategyCount.Field(count),
		KeyDuration.Field(d),
	}
	if err != nil {
		fields = append(fields, KeyError.Field(err))
		capitan.Error(ctx, SignalResolved, fields...)
		return
	}
	capitan.Emit(ctx, SignalResolved, fields...)
}

func emitReconfigured(ctx context.Context, kind, typeName string, gen uint64) {
	capitan.Emit(ctx, SignalReconfigured,
		KeyKind.Field(kind),
		KeyTypeName.Field(typeName),
		KeyGeneration.Field(int(gen)), // #nosec G115 -- generations stay small
	)
}

func emitIssue(ctx context.Context, path string, err error) {
	capitan.Emit(ctx, SignalIssue,
		KeyPath.Field(path),
		KeyError.Field(err),
	)
}
