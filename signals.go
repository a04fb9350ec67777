package parcel

import (
	"context"
	"time"

	"github.com/zoobzio/capitan"
)

// Signals for codec events.
var (
	SignalCodecCreated   = capitan.NewSignal("parcel.codec.created", "Codec instantiated")
	SignalEncodeStart    = capitan.NewSignal("parcel.encode.start", "Encode operation beginning")
	SignalEncodeComplete = capitan.NewSignal("parcel.encode.complete", "Encode operation finished")
	SignalDecodeStart    = capitan.NewSignal("parcel.decode.start", "Decode operation beginning")
	SignalDecodeComplete = capitan.NewSignal("parcel.decode.complete", "Decode operation finished")
	SignalFieldIgnored   = capitan.NewSignal("parcel.field.ignored", "Malformed field left at its default")
	SignalCycleBroken    = capitan.NewSignal("parcel.cycle.broken", "Cyclic reference omitted from output")
)

// Keys for typed event data.
var (
	KeyContentType = capitan.NewStringKey("content_type")
	KeyTypeName    = capitan.NewStringKey("type_name")
	KeySize        = capitan.NewIntKey("size")
	KeyDuration    = capitan.NewDurationKey("duration")
	KeyError       = capitan.NewErrorKey("error")
	KeyField       = capitan.NewStringKey("field")
	KeyReason      = capitan.NewStringKey("reason")
	KeyMaskedCount = capitan.NewIntKey("masked_count")
)

// emitCodecCreated emits an event when a codec is created.
func emitCodecCreated(ctx context.Context, contentType string, masks int) {
	capitan.Emit(ctx, SignalCodecCreated,
		KeyContentType.Field(contentType),
		KeyMaskedCount.Field(masks),
	)
}

// emitEncodeStart emits an event when encode begins.
func emitEncodeStart(ctx context.Context, contentType, typeName string) {
	capitan.Emit(ctx, SignalEncodeStart,
		KeyContentType.Field(contentType),
		KeyTypeName.Field(typeName),
	)
}

// emitEncodeComplete emits an event when encode finishes.
func emitEncodeComplete(ctx context.Context, contentType, typeName string, size int, duration time.Duration, masked int, err error) {
	fields := []capitan.Field{
		KeyContentType.Field(contentType),
		KeyTypeName.Field(typeName),
		KeySize.Field(size),
		KeyDuration.Field(duration),
		KeyMaskedCount.Field(masked),
	}
	if err != nil {
		fields = append(fields, KeyError.Field(err))
		capitan.Error(ctx, SignalEncodeComplete, fields...)
	} else {
		capitan.Emit(ctx, SignalEncodeComplete, fields...)
	}
}

// emitDecodeStart emits an event when decode begins.
func emitDecodeStart(ctx context.Context, contentType, typeName string, size int) {
	capitan.Emit(ctx, SignalDecodeStart,
		KeyContentType.Field(contentType),
		KeyTypeName.Field(typeName),
		KeySize.Field(size),
	)
}

// emitDecodeComplete emits an event when decode finishes.
func emitDecodeComplete(ctx context.Context, contentType, typeName string, duration time.Duration, err error) {
	fields := []capitan.Field{
		KeyContentType.Field(contentType),
		KeyTypeName.Field(typeName),
		KeyDuration.Field(duration),
	}
	if err != nil {
		fields = append(fields, KeyError.Field(err))
		capitan.Error(ctx, SignalDecodeComplete, fields...)
	} else {
		capitan.Emit(ctx, SignalDecodeComplete, fields...)
	}
}

// emitFieldIgnored emits an event when a malformed field is skipped.
func emitFieldIgnored(ctx context.Context, field, reason string) {
	capitan.Emit(ctx, SignalFieldIgnored,
		KeyField.Field(field),
		KeyReason.Field(reason),
	)
}

// emitCycleBroken emits an event when a cyclic reference is dropped.
func emitCycleBroken(ctx context.Context, field, typeName string) {
	capitan.Emit(ctx, SignalCycleBroken,
		KeyField.Field(field),
		KeyTypeName.Field(typeName),
	)
}
