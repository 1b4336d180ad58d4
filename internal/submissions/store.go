package submissions

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/CDeX-Labs/CDeX-Web-Client/internal/api"
	"github.com/CDeX-Labs/CDeX-Web-Client/internal/metrics"
	"github.com/CDeX-Labs/CDeX-Web-Client/internal/notify"
	"github.com/CDeX-Labs/CDeX-Web-Client/internal/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	// ErrRejected is returned when the server answered with an error shape.
	ErrRejected = errors.New("submission rejected")
	// ErrClosed is returned once the store no longer takes results.
	ErrClosed = errors.New("submissions store closed")
	// ErrDuplicatePlaceholder is returned when a correlation id is already pending.
	ErrDuplicatePlaceholder = errors.New("submission already pending for correlation id")
)

type Dispatcher interface {
	Do(ctx context.Context, method, path string, body, out any) error
	DoMultipart(ctx context.Context, method, path string, body, out any) error
}

type Options struct {
	Dispatcher Dispatcher
	// OwnerID returns the signed-in user's id for placeholders.
	OwnerID func() string
	// SettleDelay is waited between repository creation and submission.
	SettleDelay time.Duration
	Notifier    notify.Notifier
	Metrics     *metrics.Metrics
	Logger      zerolog.Logger

	NewID func() string
	Now   func() time.Time
}

// Store is the submission collection of the signed-in user.
type Store struct {
	state *store.Store[[]Submission]
	repos *store.Store[[]Repository]

	dispatcher  Dispatcher
	ownerID     func() string
	settleDelay time.Duration
	notifier    notify.Notifier
	metrics     *metrics.Metrics
	logger      zerolog.Logger
	newID       func() string
	now         func() time.Time
}

func NewStore(opts Options) *Store {
	s := &Store{
		state:       store.New([]Submission{}, cloneSubmissions),
		repos:       store.New([]Repository{}, store.CloneSlice[Repository]),
		dispatcher:  opts.Dispatcher,
		ownerID:     opts.OwnerID,
		settleDelay: opts.SettleDelay,
		notifier:    opts.Notifier,
		metrics:     opts.Metrics,
		logger:      opts.Logger.With().Str("component", "submissions").Logger(),
		newID:       opts.NewID,
		now:         opts.Now,
	}
	if s.ownerID == nil {
		s.ownerID = func() string { return "" }
	}
	if s.notifier == nil {
		s.notifier = notify.NotifierFunc(func(notify.Notification) {})
	}
	if s.newID == nil {
		s.newID = func() string { return uuid.New().String() }
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *Store) Snapshot() []Submission {
	return s.state.Snapshot()
}

func (s *Store) Subscribe(fn store.Observer[[]Submission]) func() {
	return s.state.Subscribe(fn)
}

// View projects the current collection through a filter and sort order.
func (s *Store) View(filter Filter, key SortKey, order Order) []Submission {
	return Project(s.state.Snapshot(), filter, key, order)
}

// Close drops results of operations that are still in flight.
func (s *Store) Close() {
	s.state.Close()
	s.repos.Close()
}

// Fetch loads the user's submissions for a contest.
func (s *Store) Fetch(ctx context.Context, contestID string) error {
	path := "/submissions"
	if contestID != "" {
		path += "?contestId=" + url.QueryEscape(contestID)
	}

	var list []Submission
	if err := s.dispatcher.Do(ctx, http.MethodGet, path, nil, &list); err != nil {
		s.surface(err, "Could not load submissions")
		return fmt.Errorf("fetch submissions: %w", err)
	}

	s.state.Update(func(cur []Submission) ([]Submission, bool) {
		return merge(cur, list), true
	})

	s.logger.Debug().Str("contestId", contestID).Int("count", len(list)).Msg("Submissions loaded")
	return nil
}

type codeRequest struct {
	CorrelationID string `json:"correlationId"`
	ContestID     string `json:"contestId"`
	Language      string `json:"language"`
	Code          string `json:"code"`
}

// Submit sends source code for a contest. The placeholder is visible to
// observers before the request leaves.
func (s *Store) Submit(ctx context.Context, contestID, language, code string) (Submission, error) {
	p := s.placeholder(contestID, language)
	p.Code = code

	return s.submit(ctx, p, func(ctx context.Context) (response, error) {
		var resp response
		err := s.dispatcher.Do(ctx, http.MethodPost, "/submissions", codeRequest{
			CorrelationID: p.CorrelationID,
			ContestID:     contestID,
			Language:      language,
			Code:          code,
		}, &resp)
		return resp, err
	})
}

type filesRequest struct {
	CorrelationID string     `json:"correlationId"`
	ContestID     string     `json:"contestId"`
	Language      string     `json:"language"`
	Files         []api.File `json:"files"`
}

// SubmitFiles sends source files as a multipart form.
func (s *Store) SubmitFiles(ctx context.Context, contestID, language string, files []api.File) (Submission, error) {
	p := s.placeholder(contestID, language)

	return s.submit(ctx, p, func(ctx context.Context) (response, error) {
		var resp response
		err := s.dispatcher.DoMultipart(ctx, http.MethodPost, "/submissions", filesRequest{
			CorrelationID: p.CorrelationID,
			ContestID:     contestID,
			Language:      language,
			Files:         files,
		}, &resp)
		return resp, err
	})
}

type repoRequest struct {
	CorrelationID    string `json:"correlationId"`
	ContestID        string `json:"contestId"`
	Language         string `json:"language"`
	RepoURL          string `json:"repoURL"`
	IsRepoSubmission bool   `json:"isRepoSubmission"`
}

// SubmitRepository creates the contest repository, waits for it to settle
// and submits it.
func (s *Store) SubmitRepository(ctx context.Context, contestID, language string) (Submission, error) {
	p := s.placeholder(contestID, language)
	p.IsRepoSubmission = true

	return s.submit(ctx, p, func(ctx context.Context) (response, error) {
		var repo struct {
			RepoURL string `json:"repoURL"`
		}
		path := "/contests/" + url.PathEscape(contestID) + "/repository"
		if err := s.dispatcher.Do(ctx, http.MethodPost, path, nil, &repo); err != nil {
			return response{}, fmt.Errorf("create repository: %w", err)
		}
		if repo.RepoURL == "" {
			return response{Error: "repository was not created"}, nil
		}

		s.logger.Debug().Str("repoURL", repo.RepoURL).Dur("delay", s.settleDelay).Msg("Waiting for repository to settle")
		if err := sleep(ctx, s.settleDelay); err != nil {
			return response{}, err
		}

		var resp response
		err := s.dispatcher.Do(ctx, http.MethodPost, "/submissions", repoRequest{
			CorrelationID:    p.CorrelationID,
			ContestID:        contestID,
			Language:         language,
			RepoURL:          repo.RepoURL,
			IsRepoSubmission: true,
		}, &resp)
		return resp, err
	})
}

// ApplyVerdict records a judged result for a confirmed submission.
func (s *Store) ApplyVerdict(v Verdict) bool {
	return s.state.Update(func(cur []Submission) ([]Submission, bool) {
		return applyVerdict(cur, v)
	})
}

func (s *Store) placeholder(contestID, language string) Submission {
	id := s.newID()
	return Submission{
		ID:            id,
		CorrelationID: id,
		ContestID:     contestID,
		OwnerID:       s.ownerID(),
		Language:      language,
		Status:        boolPtr(false),
		Score:         nil,
		CreatedAt:     s.now(),
		Phase:         PhasePlaceholder,
	}
}

func (s *Store) submit(ctx context.Context, p Submission, send func(context.Context) (response, error)) (Submission, error) {
	corrID := p.CorrelationID

	if !s.state.Update(func(cur []Submission) ([]Submission, bool) {
		return insertPlaceholder(cur, p)
	}) {
		if s.state.Closed() {
			return p, ErrClosed
		}
		return p, fmt.Errorf("%w: %s", ErrDuplicatePlaceholder, corrID)
	}
	s.metrics.IncPlaceholders()

	resp, err := send(ctx)
	s.metrics.DecPlaceholders()

	if s.state.Closed() {
		s.logger.Debug().Err(err).Str("correlationId", corrID).Msg("Store closed, submission result dropped")
		if err == nil {
			err = ErrClosed
		}
		return p, err
	}

	if err == nil && resp.Error == "" && resp.ID == "" {
		resp.Error = "invalid server response"
	}

	if err != nil || resp.Error != "" {
		message := resp.Error
		if err != nil {
			message = failureMessage(err)
		} else {
			err = fmt.Errorf("%w: %s", ErrRejected, resp.Error)
		}

		p.Phase = PhaseFailed
		p.Status = boolPtr(false)
		p.Error = message
		s.state.Update(func(cur []Submission) ([]Submission, bool) {
			return fail(cur, corrID, message)
		})
		s.metrics.IncReconciliation("failed")
		s.surface(err, "Submission failed: "+message)

		s.logger.Warn().Err(err).Str("correlationId", corrID).Msg("Submission failed")
		return p, err
	}

	record := resp.Submission
	s.state.Update(func(cur []Submission) ([]Submission, bool) {
		return confirm(cur, corrID, record)
	})
	s.metrics.IncReconciliation("confirmed")
	s.notifier.Notify(notify.Notification{Kind: notify.KindSuccess, Message: "Submission received"})

	s.logger.Info().
		Str("correlationId", corrID).
		Str("submissionId", record.ID).
		Str("contestId", record.ContestID).
		Msg("Submission confirmed")

	record.Phase = PhaseConfirmed
	if record.CorrelationID == "" {
		record.CorrelationID = corrID
	}
	return record, nil
}

// surface shows message unless the dispatcher already notified for err.
func (s *Store) surface(err error, message string) {
	if api.Surfaced(err) || errors.Is(err, context.Canceled) {
		return
	}
	s.notifier.Notify(notify.Notification{Kind: notify.KindRequestFailed, Message: message})
}

func failureMessage(err error) string {
	var failed *api.RequestFailedError
	if errors.As(err, &failed) && failed.Message != "" {
		return failed.Message
	}
	return err.Error()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
