package invitations

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/CDeX-Labs/CDeX-Web-Client/internal/api"
	"github.com/CDeX-Labs/CDeX-Web-Client/internal/metrics"
	"github.com/CDeX-Labs/CDeX-Web-Client/internal/notify"
	"github.com/CDeX-Labs/CDeX-Web-Client/internal/store"
	"github.com/rs/zerolog"
)

const defaultWorkers = 4

type Dispatcher interface {
	Do(ctx context.Context, method, path string, body, out any) error
}

type Options struct {
	Dispatcher Dispatcher
	// Cache defaults to a MemoryCache.
	Cache DetailCache
	// DetailTTL bounds how long cached details are reused.
	DetailTTL time.Duration
	// Workers bounds concurrent enhancement lookups.
	Workers  int
	Notifier notify.Notifier
	Metrics  *metrics.Metrics
	Logger   zerolog.Logger
}

// Store holds the user's invitations and their decorated view.
type Store struct {
	base     *store.Store[[]Invitation]
	enhanced *store.Store[[]Enhanced]

	// mu orders base changes against publication of the enhanced list.
	// Observers of either list must not call back into the store.
	mu sync.Mutex
	// generation increases each time the base collection changes.
	generation uint64

	dispatcher Dispatcher
	cache      DetailCache
	detailTTL  time.Duration
	workers    int
	notifier   notify.Notifier
	metrics    *metrics.Metrics
	logger     zerolog.Logger
}

func NewStore(opts Options) *Store {
	s := &Store{
		base:       store.New([]Invitation{}, store.CloneSlice[Invitation]),
		enhanced:   store.New([]Enhanced{}, cloneEnhanced),
		dispatcher: opts.Dispatcher,
		cache:      opts.Cache,
		detailTTL:  opts.DetailTTL,
		workers:    opts.Workers,
		notifier:   opts.Notifier,
		metrics:    opts.Metrics,
		logger:     opts.Logger.With().Str("component", "invitations").Logger(),
	}
	if s.cache == nil {
		s.cache = NewMemoryCache()
	}
	if s.workers <= 0 {
		s.workers = defaultWorkers
	}
	if s.notifier == nil {
		s.notifier = notify.NotifierFunc(func(notify.Notification) {})
	}
	return s
}

func (s *Store) Snapshot() []Invitation {
	return s.base.Snapshot()
}

func (s *Store) Enhanced() []Enhanced {
	return s.enhanced.Snapshot()
}

func (s *Store) Subscribe(fn store.Observer[[]Invitation]) func() {
	return s.base.Subscribe(fn)
}

func (s *Store) SubscribeEnhanced(fn store.Observer[[]Enhanced]) func() {
	return s.enhanced.Subscribe(fn)
}

func (s *Store) Close() {
	s.base.Close()
	s.enhanced.Close()
}

// Fetch loads the invitation list. The held list is only replaced, and
// observers notified, when the id set or a status differs.
func (s *Store) Fetch(ctx context.Context) error {
	var list []Invitation
	if err := s.dispatcher.Do(ctx, http.MethodGet, "/invitations", nil, &list); err != nil {
		s.surface(err, "Could not load invitations")
		return fmt.Errorf("fetch invitations: %w", err)
	}
	if list == nil {
		list = []Invitation{}
	}

	s.mu.Lock()
	changed := s.base.Update(func(cur []Invitation) ([]Invitation, bool) {
		if store.StructurallyEqual(statusIndex(cur), statusIndex(list)) {
			return cur, false
		}
		return list, true
	})
	if changed {
		s.generation++
		s.enhanced.Update(func(cur []Enhanced) ([]Enhanced, bool) {
			next := reproject(cur, list)
			return next, !store.StructurallyEqual(cur, next)
		})
	}
	s.mu.Unlock()

	s.logger.Debug().Int("count", len(list)).Bool("changed", changed).Msg("Invitations loaded")
	return nil
}

// Enhance decorates every invitation with its contest and inviter details
// and publishes the result in base order. A failed lookup leaves only that
// invitation partially decorated and is logged, never notified.
func (s *Store) Enhance(ctx context.Context) ([]Enhanced, error) {
	s.mu.Lock()
	gen := s.generation
	base := s.base.Snapshot()
	s.mu.Unlock()

	ctx = api.Quietly(ctx)

	out := make([]Enhanced, len(base))
	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup

	for i, inv := range base {
		wg.Add(1)
		go func(i int, inv Invitation) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				out[i] = Enhanced{Invitation: inv}
				return
			}
			out[i] = s.enhanceOne(ctx, inv)
		}(i, inv)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		s.logger.Debug().Msg("Invitations changed during enhancement, result discarded")
		return s.enhanced.Snapshot(), nil
	}

	s.enhanced.Update(func(cur []Enhanced) ([]Enhanced, bool) {
		if store.StructurallyEqual(cur, out) {
			return cur, false
		}
		return out, true
	})
	return cloneEnhanced(out), nil
}

func (s *Store) enhanceOne(ctx context.Context, inv Invitation) Enhanced {
	e := Enhanced{Invitation: inv}

	if inv.ContestID != "" {
		contest, err := cached(ctx, s.cache, contestKey(inv.ContestID), s.detailTTL, func(ctx context.Context) (ContestDetails, error) {
			var d ContestDetails
			err := s.dispatcher.Do(ctx, http.MethodGet, "/contests/"+url.PathEscape(inv.ContestID), nil, &d)
			return d, err
		})
		if err != nil {
			s.enhanceFailed(err, inv, "contest")
		} else {
			e.ContestDetails = &contest
		}
	}

	if inv.InvitedBy != "" {
		inviter, err := cached(ctx, s.cache, userKey(inv.InvitedBy), s.detailTTL, func(ctx context.Context) (InviterDetails, error) {
			var d InviterDetails
			err := s.dispatcher.Do(ctx, http.MethodGet, "/users/"+url.PathEscape(inv.InvitedBy), nil, &d)
			return d, err
		})
		if err != nil {
			s.enhanceFailed(err, inv, "inviter")
		} else {
			e.InviterDetails = &inviter
		}
	}

	return e
}

func (s *Store) enhanceFailed(err error, inv Invitation, detail string) {
	s.metrics.IncEnhanceFailures()
	s.logger.Warn().
		Err(err).
		Str("invitationId", inv.ID).
		Str("detail", detail).
		Msg("Failed to enhance invitation")
}

// Respond accepts or rejects an invitation and reloads the list. The local
// status is never flipped ahead of the server.
func (s *Store) Respond(ctx context.Context, id string, accept bool) error {
	path := "/invitations/" + url.PathEscape(id) + "/respond"
	if err := s.dispatcher.Do(ctx, http.MethodPost, path, respondRequest{Accept: accept}, nil); err != nil {
		s.surface(err, "Could not respond to the invitation")
		return fmt.Errorf("respond to invitation %s: %w", id, err)
	}

	message := "Invitation declined"
	if accept {
		message = "Invitation accepted"
	}
	s.notifier.Notify(notify.Notification{Kind: notify.KindSuccess, Message: message})

	s.logger.Info().Str("invitationId", id).Bool("accept", accept).Msg("Responded to invitation")
	return s.Fetch(ctx)
}

func (s *Store) surface(err error, message string) {
	if api.Surfaced(err) || errors.Is(err, context.Canceled) {
		return
	}
	var failed *api.RequestFailedError
	if errors.As(err, &failed) && failed.Message != "" {
		message += ": " + failed.Message
	}
	s.notifier.Notify(notify.Notification{Kind: notify.KindRequestFailed, Message: message})
}

func statusIndex(list []Invitation) map[string]Status {
	idx := make(map[string]Status, len(list))
	for _, inv := range list {
		idx[inv.ID] = inv.Status
	}
	return idx
}

// reproject carries details already known for an invitation over to the
// new base list. Ids and statuses always come from base.
func reproject(cur []Enhanced, base []Invitation) []Enhanced {
	known := make(map[string]Enhanced, len(cur))
	for _, e := range cur {
		known[e.ID] = e
	}

	out := make([]Enhanced, len(base))
	for i, inv := range base {
		out[i] = Enhanced{Invitation: inv}
		prev, ok := known[inv.ID]
		if !ok {
			continue
		}
		if prev.ContestID == inv.ContestID {
			out[i].ContestDetails = prev.ContestDetails
		}
		if prev.InvitedBy == inv.InvitedBy {
			out[i].InviterDetails = prev.InviterDetails
		}
	}
	return out
}

func cloneEnhanced(list []Enhanced) []Enhanced {
	out := make([]Enhanced, len(list))
	for i, e := range list {
		out[i] = e
		if e.ContestDetails != nil {
			d := *e.ContestDetails
			out[i].ContestDetails = &d
		}
		if e.InviterDetails != nil {
			d := *e.InviterDetails
			out[i].InviterDetails = &d
		}
	}
	return out
}
