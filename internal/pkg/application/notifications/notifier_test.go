package notifications

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/diwise/cloud-datastore/pkg/datastore/keys"
	"github.com/diwise/cloud-datastore/pkg/datastore/wire"
	testutils "github.com/diwise/service-chassis/pkg/test/http"
	"github.com/diwise/service-chassis/pkg/test/http/expects"
	"github.com/diwise/service-chassis/pkg/test/http/response"
	"github.com/matryer/is"
)

var Expects = testutils.Expects
var Returns = testutils.Returns

var method = expects.RequestMethod
var bodyContaining = expects.RequestBodyContaining

func TestSingleNotificationOnCommit(t *testing.T) {
	is := is.New(t)

	s := testutils.NewMockServiceThat(
		Expects(
			is,
			method(http.MethodPost),
			bodyContaining(`Thing,1001`),
		),
		Returns(
			response.Code(http.StatusOK),
		),
	)
	defer s.Close()

	ctx := context.Background()
	n, err := NewNotifier(ctx, s.URL())
	is.NoErr(err)

	is.NoErr(n.Start())

	n.Committed(ctx, "dataset", commitRequest(), commitResponse())

	is.NoErr(n.Stop())

	is.Equal(s.RequestCount(), 1)
}

func TestNoNotificationsBeforeStart(t *testing.T) {
	is := is.New(t)

	s := testutils.NewMockServiceThat(
		Expects(is, expects.AnyInput()),
		Returns(response.Code(http.StatusOK)),
	)
	defer s.Close()

	ctx := context.Background()
	n, _ := NewNotifier(ctx, s.URL())

	n.Committed(ctx, "dataset", commitRequest(), commitResponse())

	is.NoErr(n.Stop())
	is.Equal(s.RequestCount(), 0)
}

func TestCommitsRacingWithStopAreDroppedOrSent(t *testing.T) {
	is := is.New(t)

	s := testutils.NewMockServiceThat(
		Expects(is, expects.AnyInput()),
		Returns(response.Code(http.StatusOK)),
	)
	defer s.Close()

	ctx := context.Background()
	n, _ := NewNotifier(ctx, s.URL())
	is.NoErr(n.Start())

	const commits = 20

	var wg sync.WaitGroup
	for range commits {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n.Committed(ctx, "dataset", commitRequest(), commitResponse())
		}()
	}

	is.NoErr(n.Stop())
	wg.Wait()

	n.Committed(ctx, "dataset", commitRequest(), commitResponse())

	is.True(s.RequestCount() <= commits)
}

func TestNewNotification(t *testing.T) {
	is := is.New(t)

	notification := NewNotification("dataset", commitRequest(), commitResponse())

	is.True(notification.Transactional)
	is.Equal(notification.Written, []string{"Thing,1001"})
	is.Equal(notification.Deleted, []string{"Thing,7"})
	is.Equal(notification.IndexUpdates, int32(3))
}

func commitRequest() *wire.CommitRequest {
	return &wire.CommitRequest{
		Mode:        wire.Transactional,
		Transaction: []byte("tx"),
		Mutation: &wire.Mutation{
			InsertAutoID: []*wire.Entity{{Key: keys.ToWire(keys.MustNew("dataset", keys.Incomplete("Thing")))}},
			Delete:       []*wire.Key{keys.ToWire(keys.MustNew("dataset", keys.ID("Thing", 7)))},
		},
	}
}

func commitResponse() *wire.CommitResponse {
	return &wire.CommitResponse{
		MutationResult: &wire.MutationResult{
			IndexUpdates:    3,
			InsertAutoIDKey: []*wire.Key{keys.ToWire(keys.MustNew("dataset", keys.ID("Thing", 1001)))},
		},
	}
}
