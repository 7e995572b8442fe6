package datastore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/diwise/cloud-datastore/internal/pkg/application/storage"
	"github.com/diwise/cloud-datastore/internal/pkg/presentation/api/datastore/auth"
	"github.com/diwise/cloud-datastore/pkg/datastore/wire"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	APIVersion string = "v1beta2"

	TraceAttributeDatasetID string = "dataset-id"
)

var tracer = otel.Tracer("datastore-fake/api")

// RegisterHandlers mounts the datasets API on r, backed by store.
func RegisterHandlers(ctx context.Context, r chi.Router, policies io.Reader, store storage.Store) error {

	authenticator, err := auth.NewAuthenticator(ctx, policies)
	if err != nil {
		return fmt.Errorf("failed to create api authenticator: %w", err)
	}

	r.Route("/datastore/"+APIVersion+"/datasets/{datasetId}", func(r chi.Router) {
		r.Use(
			Logger(logging.GetFromContext(ctx)),
			RequiredContentTypes([]string{wire.ContentType}),
		)

		r.Post("/lookup", NewRPCHandler("lookup", authenticator,
			func(ctx context.Context, datasetID string, body []byte) (wire.Message, error) {
				req, err := decode[wire.LookupRequest](body)
				if err != nil {
					return nil, err
				}
				return store.Lookup(ctx, datasetID, req)
			}))

		r.Post("/runQuery", NewRPCHandler("runQuery", authenticator,
			func(ctx context.Context, datasetID string, body []byte) (wire.Message, error) {
				req, err := decode[wire.RunQueryRequest](body)
				if err != nil {
					return nil, err
				}
				return store.RunQuery(ctx, datasetID, req)
			}))

		r.Post("/beginTransaction", NewRPCHandler("beginTransaction", authenticator,
			func(ctx context.Context, datasetID string, body []byte) (wire.Message, error) {
				req, err := decode[wire.BeginTransactionRequest](body)
				if err != nil {
					return nil, err
				}
				return store.BeginTransaction(ctx, datasetID, req)
			}))

		r.Post("/commit", NewRPCHandler("commit", authenticator,
			func(ctx context.Context, datasetID string, body []byte) (wire.Message, error) {
				req, err := decode[wire.CommitRequest](body)
				if err != nil {
					return nil, err
				}
				return store.Commit(ctx, datasetID, req)
			}))

		r.Post("/rollback", NewRPCHandler("rollback", authenticator,
			func(ctx context.Context, datasetID string, body []byte) (wire.Message, error) {
				req, err := decode[wire.RollbackRequest](body)
				if err != nil {
					return nil, err
				}
				return store.Rollback(ctx, datasetID, req)
			}))
	})

	return nil
}

type rpcFunc func(ctx context.Context, datasetID string, body []byte) (wire.Message, error)

func decode[T any, PT interface {
	*T
	wire.Message
}](body []byte) (PT, error) {
	req := PT(new(T))
	if err := wire.Unmarshal(body, req); err != nil {
		return nil, storage.NewInvalidRequestError(err.Error())
	}
	return req, nil
}

func NewRPCHandler(method string, authenticator auth.Enticator, call rpcFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error

		datasetID := chi.URLParam(r, "datasetId")

		ctx, span := tracer.Start(r.Context(), method,
			trace.WithAttributes(attribute.String(TraceAttributeDatasetID, datasetID)),
		)
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		log := logging.GetFromContext(ctx)

		err = authenticator.CheckAccess(ctx, r, datasetID, method)
		if err != nil {
			log.Warn("access denied", "method", method, "err", err.Error())
			http.Error(w, "access denied", http.StatusForbidden)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}

		response, err := call(ctx, datasetID, body)
		if err != nil {
			code := statusCodeFor(err)
			if code == http.StatusInternalServerError {
				log.Error("rpc failed", "method", method, "err", err.Error())
			}
			http.Error(w, err.Error(), code)
			return
		}

		b, err := wire.Marshal(response)
		if err != nil {
			log.Error("failed to encode response", "method", method, "err", err.Error())
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Add("Content-Type", wire.ContentType)
		w.WriteHeader(http.StatusOK)
		w.Write(b)
	}
}

func statusCodeFor(err error) int {
	var ire storage.InvalidRequestError
	var ute storage.UnknownTransactionError
	var nfe storage.NotFoundError
	var aee storage.AlreadyExistsError

	switch {
	case errors.As(err, &ire), errors.As(err, &ute):
		return http.StatusBadRequest
	case errors.As(err, &nfe):
		return http.StatusNotFound
	case errors.As(err, &aee):
		return http.StatusConflict
	}

	return http.StatusInternalServerError
}

func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			_, ctx, _ = o11y.AddTraceIDToLoggerAndStoreInContext(
				trace.SpanFromContext(ctx),
				logger,
				ctx)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func RequiredContentTypes(validTypes []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			contentType := r.Header.Get("Content-Type")
			isValidContentType := true

			if len(contentType) > 0 {
				isValidContentType = false

				for _, t := range validTypes {
					if strings.HasPrefix(contentType, t) {
						isValidContentType = true
						break
					}
				}
			}

			if isValidContentType {
				next.ServeHTTP(w, r)
			} else {
				http.Error(w, "unsupported media type", http.StatusUnsupportedMediaType)
			}
		})
	}
}
