package outbox

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade_post/internal/config"
	"trade_post/internal/models"
)

const testWindow = 20 * time.Millisecond

// recorder collects pushes so tests can assert on what actually left the outbox.
type recorder struct {
	mu     sync.Mutex
	offers []models.TradeOffer
	counts []uint64
}

func (r *recorder) push(offer models.TradeOffer, counter uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.offers = append(r.offers, offer)
	r.counts = append(r.counts, counter)
}

func (r *recorder) wait(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		r.mu.Lock()
		got := len(r.offers)
		r.mu.Unlock()
		if got >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("expected %d pushes before deadline", n)
}

func (r *recorder) snapshot() ([]models.TradeOffer, []uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	offers := make([]models.TradeOffer, len(r.offers))
	copy(offers, r.offers)
	counts := make([]uint64, len(r.counts))
	copy(counts, r.counts)
	return offers, counts
}

func TestBurstCollapsesToOnePush(t *testing.T) {
	rec := &recorder{}
	o := NewWithWindow(testWindow, rec.push)
	defer o.Close()

	for gold := 1; gold <= 10; gold++ {
		o.Queue(models.TradeOffer{Gold: gold})
	}

	rec.wait(t, 1)
	time.Sleep(2 * testWindow) // no trailing second push

	offers, counts := rec.snapshot()
	require.Len(t, offers, 1)
	assert.Equal(t, 10, offers[0].Gold)
	assert.Equal(t, []uint64{1}, counts)
}

func TestCountersIncreaseMonotonically(t *testing.T) {
	rec := &recorder{}
	o := NewWithWindow(testWindow, rec.push)
	defer o.Close()

	for gold := 1; gold <= 3; gold++ {
		o.Queue(models.TradeOffer{Gold: gold * 10})
		rec.wait(t, gold)
	}

	_, counts := rec.snapshot()
	assert.Equal(t, []uint64{1, 2, 3}, counts)
	assert.Equal(t, uint64(3), o.Counter())
}

func TestQueuePrunesDraft(t *testing.T) {
	rec := &recorder{}
	o := NewWithWindow(testWindow, rec.push)
	defer o.Close()

	o.Queue(models.TradeOffer{Gold: 5, Items: []models.TradeOfferItem{
		{ID: 1, Name: "Sword", Quantity: 0, UnitCost: 30},
		{ID: 2, Name: "Healing Potion", Quantity: 1, UnitCost: 15},
	}})

	rec.wait(t, 1)
	offers, _ := rec.snapshot()
	require.Len(t, offers[0].Items, 1)
	assert.Equal(t, int32(2), offers[0].Items[0].ID)
}

func TestFlushPushesImmediately(t *testing.T) {
	rec := &recorder{}
	o := NewWithWindow(time.Hour, rec.push)
	defer o.Close()

	o.Queue(models.TradeOffer{Gold: 25})
	o.Flush()

	rec.wait(t, 1)
	offers, _ := rec.snapshot()
	assert.Equal(t, 25, offers[0].Gold)
}

func TestFlushWithoutPendingIsNoop(t *testing.T) {
	rec := &recorder{}
	o := NewWithWindow(testWindow, rec.push)
	defer o.Close()

	o.Flush()

	time.Sleep(2 * testWindow)
	offers, _ := rec.snapshot()
	assert.Empty(t, offers)
	assert.Equal(t, uint64(0), o.Counter())
}

func TestLockSuppressesPushes(t *testing.T) {
	rec := &recorder{}
	o := NewWithWindow(testWindow, rec.push)
	defer o.Close()

	o.Queue(models.TradeOffer{Gold: 5})
	o.SetLocked(true)
	o.Queue(models.TradeOffer{Gold: 50})

	time.Sleep(3 * testWindow)
	offers, _ := rec.snapshot()
	assert.Empty(t, offers, "pending and queued pushes are suppressed once locked")

	// A settlement rollback unlocks the side and editing resumes.
	o.SetLocked(false)
	o.Queue(models.TradeOffer{Gold: 15})
	rec.wait(t, 1)
	offers, counts := rec.snapshot()
	assert.Equal(t, 15, offers[0].Gold)
	assert.Equal(t, []uint64{1}, counts)
}

func TestCloseDiscardsPending(t *testing.T) {
	rec := &recorder{}
	o := NewWithWindow(testWindow, rec.push)

	o.Queue(models.TradeOffer{Gold: 5})
	o.Close()
	o.Queue(models.TradeOffer{Gold: 10})

	time.Sleep(3 * testWindow)
	offers, _ := rec.snapshot()
	assert.Empty(t, offers)
}

func TestNewUsesConfiguredWindow(t *testing.T) {
	rec := &recorder{}
	o := New(rec.push)
	defer o.Close()

	assert.Equal(t, config.OfferDebounce, o.window)

	// Flush fires the pending push without waiting out the window.
	o.Queue(models.TradeOffer{Gold: 5})
	o.Flush()
	rec.wait(t, 1)
	offers, counts := rec.snapshot()
	assert.Equal(t, 5, offers[0].Gold)
	assert.Equal(t, []uint64{1}, counts)
}
