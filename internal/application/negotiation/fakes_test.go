package negotiation

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/loadboard/loadboard/internal/domain/bid"
	"github.com/loadboard/loadboard/internal/domain/event"
	"github.com/loadboard/loadboard/internal/domain/load"
	domainNegotiation "github.com/loadboard/loadboard/internal/domain/negotiation"
)

// In-memory fakes with the same version-check semantics as the postgres
// repositories, so concurrency tests exercise the real contract.

type memBidRepo struct {
	mu     sync.Mutex
	nextID int64
	bids   map[uuid.UUID]*bid.Bid

	// failure injection for one bid's Update
	updateErrID uuid.UUID
	updateErr   error
}

func newMemBidRepo() *memBidRepo {
	return &memBidRepo{bids: make(map[uuid.UUID]*bid.Bid)}
}

func (r *memBidRepo) Create(ctx context.Context, b *bid.Bid) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	b.ID = r.nextID
	c := *b
	r.bids[b.BidID] = &c
	return nil
}

func (r *memBidRepo) Update(ctx context.Context, b *bid.Bid) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil && b.BidID == r.updateErrID {
		return r.updateErr
	}
	return r.updateLocked(b)
}

func (r *memBidRepo) updateLocked(b *bid.Bid) error {
	cur, ok := r.bids[b.BidID]
	if !ok {
		return bid.ErrNotFound
	}
	if cur.Version != b.Version {
		return bid.ErrConcurrentModification
	}
	c := *b
	c.Version++
	r.bids[b.BidID] = &c
	b.Version++
	return nil
}

func (r *memBidRepo) GetByID(ctx context.Context, bidID uuid.UUID) (*bid.Bid, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.bids[bidID]
	if !ok {
		return nil, nil
	}
	c := *cur
	return &c, nil
}

func (r *memBidRepo) ListByLoad(ctx context.Context, loadID uuid.UUID) ([]*bid.Bid, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*bid.Bid
	for _, b := range r.bids {
		if b.LoadID == loadID {
			c := *b
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memBidRepo) List(ctx context.Context, filter bid.Filter, limit, offset int) ([]*bid.Bid, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*bid.Bid
	for _, b := range r.bids {
		if filter.LoadID != nil && b.LoadID != *filter.LoadID {
			continue
		}
		if filter.CarrierID != nil && b.CarrierID != *filter.CarrierID {
			continue
		}
		if filter.Status != nil && b.Status != *filter.Status {
			continue
		}
		c := *b
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memThreadRepo struct {
	mu       sync.Mutex
	nextID   int64
	messages []*domainNegotiation.Message
	bids     *memBidRepo
}

func newMemThreadRepo(bids *memBidRepo) *memThreadRepo {
	return &memThreadRepo{bids: bids}
}

func (r *memThreadRepo) Append(ctx context.Context, m *domainNegotiation.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	m.ID = r.nextID
	c := *m
	r.messages = append(r.messages, &c)
	return nil
}

func (r *memThreadRepo) AppendWithBid(ctx context.Context, m *domainNegotiation.Message, b *bid.Bid) error {
	r.bids.mu.Lock()
	if err := r.bids.updateLocked(b); err != nil {
		r.bids.mu.Unlock()
		return err
	}
	r.bids.mu.Unlock()
	return r.Append(ctx, m)
}

func (r *memThreadRepo) ListByBid(ctx context.Context, bidID uuid.UUID) ([]*domainNegotiation.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domainNegotiation.Message
	for _, m := range r.messages {
		if m.BidID == bidID {
			c := *m
			out = append(out, &c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

type memLoadRepo struct {
	mu        sync.Mutex
	loads     map[uuid.UUID]*load.Load
	assignErr error
}

func newMemLoadRepo() *memLoadRepo {
	return &memLoadRepo{loads: make(map[uuid.UUID]*load.Load)}
}

func (r *memLoadRepo) put(l *load.Load) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *l
	r.loads[l.LoadID] = &c
}

func (r *memLoadRepo) GetByID(ctx context.Context, loadID uuid.UUID) (*load.Load, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.loads[loadID]
	if !ok {
		return nil, nil
	}
	c := *cur
	return &c, nil
}

func (r *memLoadRepo) AssignCarrier(ctx context.Context, loadID, carrierID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.assignErr != nil {
		return r.assignErr
	}
	cur, ok := r.loads[loadID]
	if !ok {
		return load.ErrNotFound
	}
	cur.Status = load.StatusAssigned
	cur.AssignedCarrierID = &carrierID
	return nil
}

// recordingBus captures published events for assertions.
type recordingBus struct {
	mu     sync.Mutex
	events []publishedEvent
}

type publishedEvent struct {
	Channel string
	Event   *event.Event
}

func (b *recordingBus) Publish(channelKey string, ev *event.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, publishedEvent{Channel: channelKey, Event: ev})
}

func (b *recordingBus) byChannel(channelKey string) []*event.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []*event.Event
	for _, p := range b.events {
		if p.Channel == channelKey {
			out = append(out, p.Event)
		}
	}
	return out
}
