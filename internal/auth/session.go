package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/looplab/fsm"

	"github.com/autopeer-io/cartrack/internal/pkg/outcome"
	"github.com/autopeer-io/cartrack/internal/pkg/stream"
	fsmutil "github.com/autopeer-io/cartrack/internal/pkg/util/fsm"
	"github.com/autopeer-io/cartrack/pkg/log"
)

// Identity is the signed-in user.
type Identity struct {
	Email   string `json:"email"`
	IDToken string `json:"-"`
}

const (
	stateIdle    = "idle"
	stateLoading = "loading"
	stateSuccess = "success"
	stateError   = "error"

	eventSignIn  = "sign_in"
	eventSucceed = "succeed"
	eventFail    = "fail"
	eventSignOut = "sign_out"
)

// Session drives the sign-in lifecycle and publishes it as a stream of
// Outcome[Identity]. It is the only producer of that stream.
type Session struct {
	source TokenSource
	logger log.Logger

	mu       sync.Mutex
	machine  *fsm.FSM
	attempt  uint64
	outcomes *stream.State[outcome.Outcome[Identity]]
}

// NewSession returns a signed-out Session.
func NewSession(source TokenSource) *Session {
	s := &Session{
		source: source,
		logger: log.WithName("auth"),
		outcomes: stream.NewStateOf(outcome.Idle[Identity](),
			stream.WithEqual(outcome.Equal[Identity])),
	}

	s.machine = fsm.NewFSM(
		stateIdle,
		fsm.Events{
			{Name: eventSignIn, Src: []string{stateIdle, stateLoading, stateSuccess, stateError}, Dst: stateLoading},
			{Name: eventSucceed, Src: []string{stateLoading}, Dst: stateSuccess},
			{Name: eventFail, Src: []string{stateLoading}, Dst: stateError},
			{Name: eventSignOut, Src: []string{stateLoading, stateSuccess, stateError}, Dst: stateIdle},
		},
		fsm.Callbacks{
			"before_" + eventSucceed: fsmutil.WrapEvent(func(_ context.Context, e *fsm.Event) error {
				if id, ok := argIdentity(e); !ok || id.IDToken == "" {
					return errors.New("sign-in produced an empty identity token")
				}
				return nil
			}),
			"enter_state": func(_ context.Context, e *fsm.Event) {
				s.publish(e)
			},
		},
	)
	return s
}

func (s *Session) publish(e *fsm.Event) {
	var o outcome.Outcome[Identity]
	switch e.Dst {
	case stateLoading:
		o = outcome.Loading[Identity]()
	case stateSuccess:
		id, _ := argIdentity(e)
		o = outcome.Success(id)
	case stateError:
		var cause error
		if len(e.Args) > 0 {
			cause, _ = e.Args[0].(error)
		}
		o = outcome.Failure[Identity](cause)
	default:
		o = outcome.Idle[Identity]()
	}
	s.logger.Info("Auth state changed", "from", e.Src, "to", e.Dst)
	s.outcomes.Set(o)
}

func argIdentity(e *fsm.Event) (Identity, bool) {
	if len(e.Args) == 0 {
		return Identity{}, false
	}
	id, ok := e.Args[0].(Identity)
	return id, ok
}

// SignIn fetches a token from the source and moves to Success or Error.
// A source without credential moves back to Idle and returns ErrNoCredential.
// A SignOut issued while the fetch is running wins over its result.
func (s *Session) SignIn(ctx context.Context) error {
	s.mu.Lock()
	s.attempt++
	attempt := s.attempt
	err := fsmutil.Fire(ctx, s.machine, eventSignIn)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	tok, fetchErr := s.source.FetchToken(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if attempt != s.attempt {
		return context.Canceled
	}

	switch {
	case fetchErr != nil:
		if err := fsmutil.Fire(ctx, s.machine, eventFail, fetchErr); err != nil {
			return err
		}
		return fetchErr
	case tok == nil:
		if err := fsmutil.Fire(ctx, s.machine, eventSignOut); err != nil {
			return err
		}
		return ErrNoCredential
	}

	id := Identity{Email: tok.Email, IDToken: tok.IDToken}
	if err := fsmutil.Fire(ctx, s.machine, eventSucceed, id); err != nil {
		failErr := fmt.Errorf("sign in: %w", err)
		if ferr := fsmutil.Fire(ctx, s.machine, eventFail, failErr); ferr != nil {
			return ferr
		}
		return failErr
	}
	s.logger.Info("Signed in", "email", id.Email)
	return nil
}

// SignOut returns to Idle and abandons a running SignIn.
func (s *Session) SignOut(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempt++
	if s.machine.Current() == stateIdle {
		return nil
	}
	return fsmutil.Fire(ctx, s.machine, eventSignOut)
}

// Current returns the latest outcome.
func (s *Session) Current() outcome.Outcome[Identity] {
	o, _ := s.outcomes.Get()
	return o
}

// Outcomes streams auth outcomes, starting with the current one.
func (s *Session) Outcomes(ctx context.Context) <-chan outcome.Outcome[Identity] {
	return s.outcomes.Subscribe(ctx)
}

// FetchToken returns a fresh identity token for the signed-in user, or ""
// when signed out. A source whose credential is gone signs the session out;
// a fetch error leaves the published identity as is.
func (s *Session) FetchToken(ctx context.Context) (string, error) {
	if !s.Current().IsSuccess() {
		return "", nil
	}
	tok, err := s.source.FetchToken(ctx)
	switch {
	case err != nil:
		return "", err
	case tok == nil:
		s.logger.Info("Credential withdrawn, signing out")
		if err := s.SignOut(ctx); err != nil {
			return "", fmt.Errorf("sign out: %w", err)
		}
		return "", nil
	}
	return tok.IDToken, nil
}
