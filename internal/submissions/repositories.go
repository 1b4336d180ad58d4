package submissions

import (
	"context"
	"fmt"
	"net/http"

	"github.com/CDeX-Labs/CDeX-Web-Client/internal/store"
)

func (s *Store) Repositories() []Repository {
	return s.repos.Snapshot()
}

func (s *Store) SubscribeRepositories(fn store.Observer[[]Repository]) func() {
	return s.repos.Subscribe(fn)
}

// FetchRepositories loads the user's contest repositories. Observers are
// only notified when the list differs structurally from what is held.
func (s *Store) FetchRepositories(ctx context.Context) error {
	var list []Repository
	if err := s.dispatcher.Do(ctx, http.MethodGet, "/repositories", nil, &list); err != nil {
		s.surface(err, "Could not load repositories")
		return fmt.Errorf("fetch repositories: %w", err)
	}
	if list == nil {
		list = []Repository{}
	}

	changed := s.repos.Update(func(cur []Repository) ([]Repository, bool) {
		if store.StructurallyEqual(cur, list) {
			return cur, false
		}
		return list, true
	})

	s.logger.Debug().Int("count", len(list)).Bool("changed", changed).Msg("Repositories loaded")
	return nil
}
