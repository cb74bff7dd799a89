package alerts

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seatsniper/seatsniper/internal/models"
	"github.com/seatsniper/seatsniper/internal/notify"
	"github.com/seatsniper/seatsniper/internal/scoring"
	"github.com/seatsniper/seatsniper/internal/store"
	"github.com/seatsniper/seatsniper/internal/subscriptions"
)

type fakeNotifier struct {
	channel models.Channel
	err     error

	mu       sync.Mutex
	payloads []notify.Payload
}

func (f *fakeNotifier) Channel() models.Channel { return f.channel }

func (f *fakeNotifier) SendAlert(ctx context.Context, payload notify.Payload) notify.Delivery {
	f.mu.Lock()
	f.payloads = append(f.payloads, payload)
	f.mu.Unlock()
	if f.err != nil {
		return notify.Delivery{Status: notify.StatusFailed, Err: f.err}
	}
	return notify.Delivery{Success: true, MessageID: "m1", Status: notify.StatusDelivered}
}

func (f *fakeNotifier) sent() []notify.Payload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notify.Payload(nil), f.payloads...)
}

func testEvent() models.Event {
	return models.Event{
		Platform:   models.PlatformTicketmaster,
		PlatformID: "E1",
		Name:       "Pearl Jam",
		Venue:      models.Venue{Name: "Moda Center", City: "Portland"},
		DateTime:   time.Now().Add(5 * 24 * time.Hour),
		Category:   models.CategoryConcerts,
	}
}

func pick(price float64, quantity, score int) scoring.ScoredListing {
	return scoring.ScoredListing{
		Listing: models.Listing{
			Section:        "Floor A",
			Quantity:       quantity,
			PricePerTicket: price,
		},
		Score: scoring.Result{TotalScore: score, Recommendation: scoring.RecommendGood},
	}
}

func testSub(userID string) models.Subscription {
	return models.Subscription{
		UserID:   userID,
		Channel:  models.ChannelTelegram,
		Cities:   []string{"portland"},
		MinScore: 50,
		Active:   true,
	}
}

func newDispatcher(t *testing.T, n *fakeNotifier, subs ...models.Subscription) (*Dispatcher, *subscriptions.Registry) {
	t.Helper()
	ctx := context.Background()
	reg := subscriptions.New(ctx, nil)
	for _, sub := range subs {
		reg.Upsert(ctx, sub)
	}
	return New(reg, []notify.Notifier{n}, WithStore(store.NewMemory())), reg
}

func TestDispatchCooldownSuppressesRepeat(t *testing.T) {
	n := &fakeNotifier{channel: models.ChannelTelegram}
	d, _ := newDispatcher(t, n, testSub("u1"))
	ctx := context.Background()
	event := testEvent()
	picks := []scoring.ScoredListing{pick(80, 2, 90)}

	assert.Equal(t, 1, d.Dispatch(ctx, event, picks, 100, nil))
	// a second qualifying cycle inside the cooldown window
	assert.Equal(t, 0, d.Dispatch(ctx, event, picks, 100, nil))
	assert.Len(t, n.sent(), 1)
}

func TestDispatchCooldownReadsDurableLedger(t *testing.T) {
	n := &fakeNotifier{channel: models.ChannelTelegram}
	ctx := context.Background()
	reg := subscriptions.New(ctx, nil)
	reg.Upsert(ctx, testSub("u1"))
	mem := store.NewMemory()

	first := New(reg, []notify.Notifier{n}, WithStore(mem))
	require.Equal(t, 1, first.Dispatch(ctx, testEvent(), []scoring.ScoredListing{pick(80, 2, 90)}, 100, nil))

	// fresh dispatcher simulating a restart: empty ring, same ledger
	second := New(reg, []notify.Notifier{n}, WithStore(mem))
	assert.Equal(t, 0, second.Dispatch(ctx, testEvent(), []scoring.ScoredListing{pick(80, 2, 90)}, 100, nil))
}

func TestDispatchBudgetFilter(t *testing.T) {
	n := &fakeNotifier{channel: models.ChannelTelegram}
	sub := testSub("u1")
	sub.MaxPricePerTicket = 100
	d, _ := newDispatcher(t, n, sub)

	picks := []scoring.ScoredListing{pick(150, 2, 92), pick(80, 2, 88)}
	assert.Equal(t, 1, d.Dispatch(context.Background(), testEvent(), picks, 100, nil))

	sent := n.sent()
	require.Len(t, sent, 1)
	require.Len(t, sent[0].Picks, 1)
	assert.Equal(t, 80.0, sent[0].Picks[0].Listing.PricePerTicket)
}

func TestDispatchQuantityFilterSkipsSubscriber(t *testing.T) {
	n := &fakeNotifier{channel: models.ChannelTelegram}
	sub := testSub("u1")
	sub.MinQuantity = 4
	d, _ := newDispatcher(t, n, sub)

	picks := []scoring.ScoredListing{pick(80, 2, 90)}
	assert.Equal(t, 0, d.Dispatch(context.Background(), testEvent(), picks, 100, nil))
	assert.Empty(t, n.sent())
}

func TestDispatchPausedSubscriptionSkipped(t *testing.T) {
	n := &fakeNotifier{channel: models.ChannelTelegram}
	sub := testSub("u1")
	sub.Paused = true
	d, reg := newDispatcher(t, n, sub)

	assert.Equal(t, 0, d.Dispatch(context.Background(), testEvent(), []scoring.ScoredListing{pick(80, 2, 90)}, 100, nil))
	assert.Empty(t, n.sent())

	// paused, not gone
	got, ok := reg.Get("u1")
	require.True(t, ok)
	assert.True(t, got.Active)
}

func TestDispatchHardFailureDeactivates(t *testing.T) {
	n := &fakeNotifier{
		channel: models.ChannelTelegram,
		err:     errors.New("Forbidden: bot was blocked by the user"),
	}
	d, reg := newDispatcher(t, n, testSub("u1"))
	ctx := context.Background()
	picks := []scoring.ScoredListing{pick(80, 2, 90)}

	assert.Equal(t, 0, d.Dispatch(ctx, testEvent(), picks, 100, nil))

	got, ok := reg.Get("u1")
	require.True(t, ok)
	assert.False(t, got.Active)

	// next cycle dispatches nothing to the deactivated user
	n.err = nil
	assert.Equal(t, 0, d.Dispatch(ctx, testEvent(), picks, 100, nil))
	assert.Len(t, n.sent(), 1, "only the original failed attempt reached the notifier")
}

func TestDispatchTransientFailureKeepsSubscription(t *testing.T) {
	n := &fakeNotifier{channel: models.ChannelTelegram, err: errors.New("timeout awaiting response")}
	d, reg := newDispatcher(t, n, testSub("u1"))
	ctx := context.Background()

	assert.Equal(t, 0, d.Dispatch(ctx, testEvent(), []scoring.ScoredListing{pick(80, 2, 90)}, 100, nil))

	got, _ := reg.Get("u1")
	assert.True(t, got.Active)

	// transient failure leaves no cooldown record; the next cycle retries
	n.err = nil
	assert.Equal(t, 1, d.Dispatch(ctx, testEvent(), []scoring.ScoredListing{pick(80, 2, 90)}, 100, nil))
}

func TestDispatchCityAndKeywordFilters(t *testing.T) {
	n := &fakeNotifier{channel: models.ChannelTelegram}
	wrongCity := testSub("u1")
	wrongCity.Cities = []string{"seattle"}
	keyworded := testSub("u2")
	keyworded.Keywords = []string{"phish"}
	matching := testSub("u3")
	matching.Keywords = []string{"pearl"}
	d, _ := newDispatcher(t, n, wrongCity, keyworded, matching)

	assert.Equal(t, 1, d.Dispatch(context.Background(), testEvent(), []scoring.ScoredListing{pick(80, 2, 90)}, 100, nil))
	sent := n.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "u3", sent[0].Recipient)
}

func TestDispatchMutedEventSkipped(t *testing.T) {
	n := &fakeNotifier{channel: models.ChannelTelegram}
	d, _ := newDispatcher(t, n, testSub("u1"))
	event := testEvent()

	d.Mute(event.Key(), "u1")
	assert.Equal(t, 0, d.Dispatch(context.Background(), event, []scoring.ScoredListing{pick(80, 2, 90)}, 100, nil))

	d.Unmute(event.Key(), "u1")
	assert.Equal(t, 1, d.Dispatch(context.Background(), event, []scoring.ScoredListing{pick(80, 2, 90)}, 100, nil))
}

func TestRingPruneDropsOldRecords(t *testing.T) {
	r := newRing()
	r.record("e1", "u1", time.Now().Add(-25*time.Hour))
	r.record("e2", "u2", time.Now())

	assert.Equal(t, 1, r.prune())
	assert.Equal(t, 1, r.len())

	_, found := r.lastSent("e1", "u1")
	assert.False(t, found)
	_, found = r.lastSent("e2", "u2")
	assert.True(t, found)
}

func TestDispatchEmptyPicksNoAlerts(t *testing.T) {
	n := &fakeNotifier{channel: models.ChannelTelegram}
	d, _ := newDispatcher(t, n, testSub("u1"))
	assert.Equal(t, 0, d.Dispatch(context.Background(), testEvent(), nil, 0, nil))
}
