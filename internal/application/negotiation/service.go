package negotiation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/loadboard/loadboard/internal/application/pricing"
	"github.com/loadboard/loadboard/internal/domain/bid"
	"github.com/loadboard/loadboard/internal/domain/event"
	"github.com/loadboard/loadboard/internal/domain/load"
	domainNegotiation "github.com/loadboard/loadboard/internal/domain/negotiation"
)

const siblingRejectReason = "another bid was accepted for this load"

// Service coordinates the negotiation workflow: it validates actions
// against the bid state machine, appends thread entries, applies pricing
// rules and publishes events. Actions on one bid are serialized through a
// per-bid lock; submit and terminal actions take the load lock first so
// bid creation, the sibling cascade and competing accepts on one load are
// serialized too. Lock order is always load before bid.
type Service struct {
	bids   bid.Repository
	thread domainNegotiation.Repository
	loads  load.Repository
	calc   *pricing.Calculator
	bus    event.Bus
	locks  *keyedLock
	logger zerolog.Logger
}

func NewService(
	bids bid.Repository,
	thread domainNegotiation.Repository,
	loads load.Repository,
	calc *pricing.Calculator,
	bus event.Bus,
	logger zerolog.Logger,
) *Service {
	return &Service{
		bids:   bids,
		thread: thread,
		loads:  loads,
		calc:   calc,
		bus:    bus,
		locks:  newKeyedLock(),
		logger: logger.With().Str("service", "negotiation").Logger(),
	}
}

func bidKey(id uuid.UUID) string  { return "bid:" + id.String() }
func loadKey(id uuid.UUID) string { return "load:" + id.String() }

// BidView pairs a bid with its derived negotiated amount so every consumer
// displays the same number.
type BidView struct {
	*bid.Bid
	CurrentAmount float64 `json:"currentAmount"`
}

// SubmitBid records a carrier's offer on a posted load. The load lock
// serializes creation against an in-flight accept on the same load, so a
// bid can never slip in after the sibling cascade ran.
func (s *Service) SubmitBid(ctx context.Context, loadID, carrierID uuid.UUID, amount float64, notes *string) (*bid.Bid, error) {
	lk := loadKey(loadID)
	s.locks.Lock(lk)
	defer s.locks.Unlock(lk)

	l, err := s.loads.GetByID(ctx, loadID)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, load.ErrNotFound
	}
	if l.Status == load.StatusAssigned {
		return nil, fmt.Errorf("load %s already assigned: %w", loadID, bid.ErrInvalidTransition)
	}

	b, err := bid.New(loadID, carrierID, amount, notes)
	if err != nil {
		return nil, err
	}
	if err := s.bids.Create(ctx, b); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("bid_id", b.BidID.String()).
		Str("load_id", loadID.String()).
		Float64("amount", amount).
		Msg("bid received")

	ev := event.New(event.TypeBidReceived, b.BidID, loadID, string(domainNegotiation.RoleCarrier), "", &amount)
	s.publish(ev, b.CarrierID)
	return b, nil
}

// SendMessage appends a chat entry to a bid's thread. Amount, when present,
// is a structured price proposal and becomes the current negotiated amount.
func (s *Service) SendMessage(ctx context.Context, bidID uuid.UUID, role domainNegotiation.SenderRole, body string, amount *float64) (*domainNegotiation.Message, error) {
	s.locks.Lock(bidKey(bidID))
	defer s.locks.Unlock(bidKey(bidID))

	b, err := s.getBid(ctx, bidID)
	if err != nil {
		return nil, err
	}
	if b.IsTerminal() {
		return nil, fmt.Errorf("bid %s is %s: %w", bidID, b.Status, bid.ErrThreadFrozen)
	}

	m, err := domainNegotiation.NewMessage(bidID, role, domainNegotiation.KindChat, body, amount)
	if err != nil {
		return nil, err
	}
	if err := s.thread.Append(ctx, m); err != nil {
		return nil, err
	}

	ev := event.New(event.TypeNegotiationMessage, bidID, b.LoadID, string(role), body, amount)
	s.publish(ev, b.CarrierID)
	return m, nil
}

// Counter records an admin counter-offer: the bid moves to COUNTERED (or
// stays there on a re-counter) and a structured thread entry is appended in
// the same transaction.
func (s *Service) Counter(ctx context.Context, bidID uuid.UUID, amount float64, body string) (*bid.Bid, error) {
	s.locks.Lock(bidKey(bidID))
	defer s.locks.Unlock(bidKey(bidID))

	b, err := s.getBid(ctx, bidID)
	if err != nil {
		return nil, err
	}
	if err := b.Counter(amount); err != nil {
		return nil, err
	}
	m, err := domainNegotiation.NewMessage(bidID, domainNegotiation.RoleAdmin, domainNegotiation.KindCounterOffer, body, &amount)
	if err != nil {
		return nil, err
	}
	if err := s.thread.AppendWithBid(ctx, m, b); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("bid_id", bidID.String()).
		Float64("counter_amount", amount).
		Msg("counter offer sent")

	ev := event.New(event.TypeBidCountered, bidID, b.LoadID, string(domainNegotiation.RoleAdmin), body, &amount)
	s.publish(ev, b.CarrierID)
	return b, nil
}

// Accept finalizes a bid. finalPrice defaults to the current negotiated
// amount when nil. All other live bids on the load are rejected within the
// same load lock scope, and the load service is told to assign the carrier.
func (s *Service) Accept(ctx context.Context, bidID uuid.UUID, finalPrice *float64, actorRole domainNegotiation.SenderRole) (*bid.Bid, error) {
	b, err := s.getBid(ctx, bidID)
	if err != nil {
		return nil, err
	}
	lk := loadKey(b.LoadID)
	s.locks.Lock(lk)
	defer s.locks.Unlock(lk)
	s.locks.Lock(bidKey(bidID))
	defer s.locks.Unlock(bidKey(bidID))

	// Re-read under the lock; a competing accept may have cascaded a
	// rejection onto this bid in the meantime.
	b, err = s.getBid(ctx, bidID)
	if err != nil {
		return nil, err
	}
	if b.IsTerminal() {
		return nil, fmt.Errorf("bid %s is %s: %w", bidID, b.Status, bid.ErrBidFinalized)
	}

	// The bid may predate an accept whose cascade it escaped (e.g. it was
	// created against a stale load snapshot); re-verify the load is still
	// open and carries no accepted bid before committing a second winner.
	l, err := s.loads.GetByID(ctx, b.LoadID)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, load.ErrNotFound
	}
	if l.Status == load.StatusAssigned {
		return nil, fmt.Errorf("load %s already assigned: %w", b.LoadID, bid.ErrInvalidTransition)
	}
	siblings, err := s.bids.ListByLoad(ctx, b.LoadID)
	if err != nil {
		return nil, err
	}
	for _, sib := range siblings {
		if sib.BidID != b.BidID && sib.Status == bid.StatusAccepted {
			return nil, fmt.Errorf("load %s already has an accepted bid: %w", b.LoadID, bid.ErrInvalidTransition)
		}
	}

	price := 0.0
	if finalPrice != nil {
		price = *finalPrice
	} else {
		msgs, err := s.thread.ListByBid(ctx, bidID)
		if err != nil {
			return nil, err
		}
		price = domainNegotiation.CurrentAmount(b, msgs)
	}

	if err := b.Accept(price); err != nil {
		return nil, err
	}
	if err := s.bids.Update(ctx, b); err != nil {
		return nil, err
	}

	rejected, cascadeErr := s.rejectSiblings(ctx, b, siblings)
	if cascadeErr != nil {
		// The accept is committed; a sibling left live here is caught by
		// the accepted-sibling re-check on its own accept path.
		s.logger.Error().Err(cascadeErr).
			Str("bid_id", bidID.String()).
			Str("load_id", b.LoadID.String()).
			Msg("sibling cascade failed after accept")
	}

	if err := s.loads.AssignCarrier(ctx, b.LoadID, b.CarrierID); err != nil {
		// The accept is committed; assignment is a side-effect call into
		// the load service and is surfaced but not rolled back.
		s.logger.Error().Err(err).
			Str("load_id", b.LoadID.String()).
			Str("carrier_id", b.CarrierID.String()).
			Msg("carrier assignment failed after accept")
	}

	s.logger.Info().
		Str("bid_id", bidID.String()).
		Float64("final_price", price).
		Int("siblings_rejected", len(rejected)).
		Msg("bid accepted")

	ev := event.New(event.TypeBidAccepted, b.BidID, b.LoadID, string(actorRole), "", &price)
	s.publish(ev, b.CarrierID)
	for _, sib := range rejected {
		rev := event.New(event.TypeBidRejected, sib.BidID, sib.LoadID, string(domainNegotiation.RoleAdmin), siblingRejectReason, nil)
		s.publish(rev, sib.CarrierID)
	}
	return b, nil
}

// Reject finalizes a bid with an optional reason.
func (s *Service) Reject(ctx context.Context, bidID uuid.UUID, reason *string, actorRole domainNegotiation.SenderRole) (*bid.Bid, error) {
	b, err := s.getBid(ctx, bidID)
	if err != nil {
		return nil, err
	}
	lk := loadKey(b.LoadID)
	s.locks.Lock(lk)
	defer s.locks.Unlock(lk)
	s.locks.Lock(bidKey(bidID))
	defer s.locks.Unlock(bidKey(bidID))

	b, err = s.getBid(ctx, bidID)
	if err != nil {
		return nil, err
	}
	if err := b.Reject(reason); err != nil {
		return nil, err
	}
	if err := s.bids.Update(ctx, b); err != nil {
		return nil, err
	}

	body := ""
	if reason != nil {
		body = *reason
	}
	ev := event.New(event.TypeBidRejected, b.BidID, b.LoadID, string(actorRole), body, nil)
	s.publish(ev, b.CarrierID)
	return b, nil
}

// rejectSiblings cascades rejection to every other live bid on the load.
// Caller holds the load lock and supplies the bid set read under it; each
// sibling's bid lock is taken in turn so an in-flight counter on that
// sibling is serialized against the cascade.
func (s *Service) rejectSiblings(ctx context.Context, winner *bid.Bid, siblings []*bid.Bid) ([]*bid.Bid, error) {
	reason := siblingRejectReason
	var rejected []*bid.Bid
	for _, sib := range siblings {
		if sib.BidID == winner.BidID || sib.IsTerminal() {
			continue
		}
		err := func() error {
			s.locks.Lock(bidKey(sib.BidID))
			defer s.locks.Unlock(bidKey(sib.BidID))

			cur, err := s.getBid(ctx, sib.BidID)
			if err != nil {
				return err
			}
			if cur.IsTerminal() {
				return nil
			}
			if err := cur.Reject(&reason); err != nil {
				return err
			}
			if err := s.bids.Update(ctx, cur); err != nil {
				return err
			}
			rejected = append(rejected, cur)
			return nil
		}()
		if err != nil {
			return rejected, err
		}
	}
	return rejected, nil
}

// Thread returns a bid's negotiation thread, oldest first.
func (s *Service) Thread(ctx context.Context, bidID uuid.UUID) ([]*domainNegotiation.Message, error) {
	if _, err := s.getBid(ctx, bidID); err != nil {
		return nil, err
	}
	return s.thread.ListByBid(ctx, bidID)
}

// CurrentAmount computes the effective negotiated price of a bid.
func (s *Service) CurrentAmount(ctx context.Context, bidID uuid.UUID) (float64, error) {
	b, err := s.getBid(ctx, bidID)
	if err != nil {
		return 0, err
	}
	msgs, err := s.thread.ListByBid(ctx, bidID)
	if err != nil {
		return 0, err
	}
	return domainNegotiation.CurrentAmount(b, msgs), nil
}

// GetBid returns the bid with its derived current amount.
func (s *Service) GetBid(ctx context.Context, bidID uuid.UUID) (*BidView, error) {
	b, err := s.getBid(ctx, bidID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.thread.ListByBid(ctx, bidID)
	if err != nil {
		return nil, err
	}
	return &BidView{Bid: b, CurrentAmount: domainNegotiation.CurrentAmount(b, msgs)}, nil
}

// ListBids returns the bids on a load with their current amounts, so the
// admin list shows the same numbers as every detail view.
func (s *Service) ListBids(ctx context.Context, loadID uuid.UUID) ([]*BidView, error) {
	bids, err := s.bids.ListByLoad(ctx, loadID)
	if err != nil {
		return nil, err
	}
	views := make([]*BidView, 0, len(bids))
	for _, b := range bids {
		msgs, err := s.thread.ListByBid(ctx, b.BidID)
		if err != nil {
			return nil, err
		}
		views = append(views, &BidView{Bid: b, CurrentAmount: domainNegotiation.CurrentAmount(b, msgs)})
	}
	return views, nil
}

// SearchBids lists bids across loads for back-office views. Callers clamp
// limit/offset.
func (s *Service) SearchBids(ctx context.Context, filter bid.Filter, limit, offset int) ([]*bid.Bid, error) {
	return s.bids.List(ctx, filter, limit, offset)
}

// QuoteLoad prices a load from its stored lane inputs.
func (s *Service) QuoteLoad(ctx context.Context, loadID uuid.UUID) (*pricing.Quote, error) {
	l, err := s.loads.GetByID(ctx, loadID)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, load.ErrNotFound
	}
	return s.calc.SuggestPrice(l.DistanceKm, l.WeightTons, l.LoadType, l.Region)
}

// MarginFor computes the platform/carrier split for a gross price. The
// gross-price guard lives here, not in the calculator.
func (s *Service) MarginFor(grossPrice, platformMarginPercent float64) (pricing.Margin, error) {
	if grossPrice <= 0 {
		return pricing.Margin{}, fmt.Errorf("gross price must be positive: %w", bid.ErrInvalidPrice)
	}
	return pricing.ComputeMargin(grossPrice, platformMarginPercent)
}

// AdvanceFor splits a carrier payout into advance and balance.
func (s *Service) AdvanceFor(carrierPayout, advancePercent float64) (pricing.Split, error) {
	if carrierPayout <= 0 {
		return pricing.Split{}, fmt.Errorf("carrier payout must be positive: %w", bid.ErrInvalidPrice)
	}
	return pricing.ComputeAdvanceSplit(carrierPayout, advancePercent)
}

func (s *Service) getBid(ctx context.Context, bidID uuid.UUID) (*bid.Bid, error) {
	b, err := s.bids.GetByID(ctx, bidID)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, bid.ErrNotFound
	}
	return b, nil
}

// publish fans an event out to the admin console, the owning carrier and
// anyone watching the load. Best effort; the stored state is authoritative.
func (s *Service) publish(ev *event.Event, carrierID uuid.UUID) {
	s.bus.Publish(event.ChannelAdmin, ev)
	s.bus.Publish(event.ChannelCarrier(carrierID), ev)
	s.bus.Publish(event.ChannelLoad(ev.LoadID), ev)
}
