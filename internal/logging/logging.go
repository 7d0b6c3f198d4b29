// Package logging attaches structured zap logging to the event stream. The
// server, loader and store layers publish lifecycle events without knowing
// about zap; this package subscribes and writes one line per event, tagged
// with the request id when one is in scope.
package logging

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/openmerce/catalogql/internal/eventbus"
	"github.com/openmerce/catalogql/internal/events"
	"github.com/openmerce/catalogql/internal/reqid"
)

// Setup builds a production logger at the named level and subscribes it to
// the global event bus. An empty level means info.
func Setup(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if level != "" {
		lv, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, err
		}
		cfg.Level = zap.NewAtomicLevelAt(lv)
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	Subscribe(logger)
	return logger, nil
}

// Subscribe registers event handlers that write through logger. Start events
// log at debug, finish events at info, failures at warn or error.
func Subscribe(logger *zap.Logger) {
	eventbus.Subscribe(func(ctx context.Context, e events.HTTPStart) {
		logger.Debug("http request received",
			requestID(ctx),
			zap.String("method", e.Request.Method),
			zap.String("path", e.Request.URL.Path),
		)
	})
	eventbus.Subscribe(func(ctx context.Context, e events.HTTPFinish) {
		logger.Info("http request served",
			requestID(ctx),
			zap.String("method", e.Request.Method),
			zap.String("path", e.Request.URL.Path),
			zap.Int("status", e.Status),
			zap.Duration("duration", e.Duration),
		)
	})
	eventbus.Subscribe(func(ctx context.Context, e events.GraphQLStart) {
		logger.Debug("graphql operation started",
			requestID(ctx),
			zap.String("operation", e.OperationName),
			zap.String("type", e.OperationType),
		)
	})
	eventbus.Subscribe(func(ctx context.Context, e events.GraphQLFinish) {
		fields := []zap.Field{
			requestID(ctx),
			zap.String("operation", e.OperationName),
			zap.String("type", e.OperationType),
			zap.Int("errors", len(e.Errors)),
			zap.Duration("duration", e.Duration),
		}
		if len(e.Errors) > 0 {
			fields = append(fields, zap.Errors("error_details", e.Errors))
			logger.Warn("graphql operation finished with errors", fields...)
			return
		}
		logger.Info("graphql operation finished", fields...)
	})
	eventbus.Subscribe(func(ctx context.Context, e events.LoaderBatchStart) {
		logger.Debug("loader batch started",
			requestID(ctx),
			zap.String("loader", e.Loader),
			zap.Int("keys", e.Keys),
		)
	})
	eventbus.Subscribe(func(ctx context.Context, e events.LoaderBatchFinish) {
		if e.Err != nil {
			logger.Error("loader batch failed",
				requestID(ctx),
				zap.String("loader", e.Loader),
				zap.Int("keys", e.Keys),
				zap.Duration("duration", e.Duration),
				zap.Error(e.Err),
			)
			return
		}
		logger.Debug("loader batch finished",
			requestID(ctx),
			zap.String("loader", e.Loader),
			zap.Int("keys", e.Keys),
			zap.Duration("duration", e.Duration),
		)
	})
	eventbus.Subscribe(func(ctx context.Context, e events.StoreQueryStart) {
		logger.Debug("store query started", requestID(ctx), zap.String("op", e.Op))
	})
	eventbus.Subscribe(func(ctx context.Context, e events.StoreQueryFinish) {
		if e.Err != nil {
			logger.Error("store query failed",
				requestID(ctx),
				zap.String("op", e.Op),
				zap.Duration("duration", e.Duration),
				zap.Error(e.Err),
			)
			return
		}
		logger.Debug("store query finished",
			requestID(ctx),
			zap.String("op", e.Op),
			zap.Int("rows", e.Rows),
			zap.Duration("duration", e.Duration),
		)
	})
}

func requestID(ctx context.Context) zap.Field {
	if id, ok := reqid.FromContext(ctx); ok {
		return zap.String("request_id", id)
	}
	return zap.Skip()
}
