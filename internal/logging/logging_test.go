package logging

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/openmerce/catalogql/internal/eventbus"
	"github.com/openmerce/catalogql/internal/events"
	"github.com/openmerce/catalogql/internal/reqid"
)

func newObserved(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	eventbus.Use(eventbus.New())
	t.Cleanup(func() { eventbus.Use(nil) })
	Subscribe(zap.New(core))
	return logs
}

func TestHTTPFinishLogsRequestLine(t *testing.T) {
	logs := newObserved(t)
	ctx, id := reqid.NewContext(context.Background())

	req := &http.Request{Method: http.MethodPost, URL: &url.URL{Path: "/graphql"}}
	eventbus.Publish(ctx, events.HTTPFinish{Request: req, Status: 200, Duration: 5 * time.Millisecond})

	entries := logs.FilterMessage("http request served").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["request_id"] != id {
		t.Fatalf("request_id = %v, want %v", fields["request_id"], id)
	}
	if fields["status"] != int64(200) || fields["path"] != "/graphql" {
		t.Fatalf("unexpected fields: %v", fields)
	}
}

func TestGraphQLErrorsLogAtWarn(t *testing.T) {
	logs := newObserved(t)

	eventbus.Publish(context.Background(), events.GraphQLFinish{
		OperationName: "Products",
		OperationType: "query",
		Errors:        []error{errors.New("boom")},
		Duration:      time.Millisecond,
	})

	entries := logs.FilterMessage("graphql operation finished with errors").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 warn entry, got %d", len(entries))
	}
	if entries[0].Level != zapcore.WarnLevel {
		t.Fatalf("level = %v, want warn", entries[0].Level)
	}
}

func TestLoaderBatchFailureLogsAtError(t *testing.T) {
	logs := newObserved(t)

	eventbus.Publish(context.Background(), events.LoaderBatchFinish{
		Loader: "product_by_id", Keys: 3, Err: errors.New("database down"),
	})
	eventbus.Publish(context.Background(), events.LoaderBatchFinish{
		Loader: "product_by_id", Keys: 3,
	})

	if got := len(logs.FilterMessage("loader batch failed").All()); got != 1 {
		t.Fatalf("expected 1 error entry, got %d", got)
	}
	if got := len(logs.FilterMessage("loader batch finished").All()); got != 1 {
		t.Fatalf("expected 1 debug entry, got %d", got)
	}
}
