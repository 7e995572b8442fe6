package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/diwise/cloud-datastore/pkg/datastore/keys"
	"github.com/diwise/cloud-datastore/pkg/datastore/wire"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
)

// Notifier posts a summary of every commit to an HTTP endpoint. Posts are
// queued and sent in order by a single worker.
type Notifier interface {
	Start() error
	Stop() error

	Committed(ctx context.Context, datasetID string, req *wire.CommitRequest, resp *wire.CommitResponse)
}

type Notification struct {
	DatasetID     string    `json:"datasetId"`
	Transactional bool      `json:"transactional"`
	Written       []string  `json:"written,omitempty"`
	Deleted       []string  `json:"deleted,omitempty"`
	IndexUpdates  int32     `json:"indexUpdates"`
	CommittedAt   time.Time `json:"committedAt"`
}

var tracer = otel.Tracer("datastore-fake/notifier")

type action func()

type notifier struct {
	mu       sync.RWMutex
	started  bool
	endpoint string

	queue chan action
}

func NewNotifier(ctx context.Context, endpoint string) (Notifier, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("a notification endpoint is required")
	}

	return &notifier{
		endpoint: endpoint,
		queue:    make(chan action, 32),
	}, nil
}

func (n *notifier) Start() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.started {
		return fmt.Errorf("already started")
	}

	n.started = true

	go n.run()

	return nil
}

// Stop waits for every queued notification to be sent.
func (n *notifier) Stop() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.started {
		resultChan := make(chan bool)

		n.queue <- func() {
			close(n.queue)
			resultChan <- true
		}

		<-resultChan
		n.started = false
	}
	return nil
}

func (n *notifier) Committed(ctx context.Context, datasetID string, req *wire.CommitRequest, resp *wire.CommitResponse) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	// the queue is closed once stopped
	if !n.started {
		return
	}

	var err error

	logger := logging.GetFromContext(ctx)
	notification := NewNotification(datasetID, req, resp)

	ctx, span := tracer.Start(
		tracing.ExtractHeaders(context.Background(), tracing.InjectHeaders(ctx)),
		"post",
	)

	n.queue <- func() {
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		err = postNotification(ctx, notification, n.endpoint)
		if err != nil {
			logger.Error("failed to post notification", "err", err.Error())
		}
	}
}

func NewNotification(datasetID string, req *wire.CommitRequest, resp *wire.CommitResponse) Notification {
	notification := Notification{
		DatasetID:     datasetID,
		Transactional: req.Mode == wire.Transactional,
		CommittedAt:   time.Now().UTC(),
	}

	if m := req.Mutation; m != nil {
		for _, e := range m.Upsert {
			notification.Written = append(notification.Written, keys.FromWire(e.Key).String())
		}
		for _, e := range m.Update {
			notification.Written = append(notification.Written, keys.FromWire(e.Key).String())
		}
		for _, e := range m.Insert {
			notification.Written = append(notification.Written, keys.FromWire(e.Key).String())
		}
		for _, k := range m.Delete {
			notification.Deleted = append(notification.Deleted, keys.FromWire(k).String())
		}
	}

	if resp != nil && resp.MutationResult != nil {
		notification.IndexUpdates = resp.MutationResult.IndexUpdates
		for _, k := range resp.MutationResult.InsertAutoIDKey {
			notification.Written = append(notification.Written, keys.FromWire(k).String())
		}
	}

	return notification
}

func postNotification(ctx context.Context, notification Notification, endpoint string) error {
	body, err := json.MarshalIndent(notification, "", " ")
	if err != nil {
		return fmt.Errorf("marshalling error (%w)", err)
	}

	httpClient := http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("unable to create new request (%w)", err)
	}

	req.Header.Add("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request (%w)", err)
	}

	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("notification endpoint returned status code %d", resp.StatusCode)
	}

	return nil
}

func (n *notifier) run() {
	for action := range n.queue {
		if action == nil {
			return
		}

		action()
	}
}
