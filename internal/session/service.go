package session

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"

	"github.com/autopeer-io/cartrack/internal/api"
	"github.com/autopeer-io/cartrack/internal/auth"
	"github.com/autopeer-io/cartrack/internal/pkg/metrics"
	"github.com/autopeer-io/cartrack/internal/pkg/outcome"
	"github.com/autopeer-io/cartrack/internal/pkg/retry"
	"github.com/autopeer-io/cartrack/internal/pkg/stream"
	"github.com/autopeer-io/cartrack/internal/prefs"
	"github.com/autopeer-io/cartrack/pkg/log"
)

// ErrUnknownCar is returned by SelectCar for a car the profile does not own.
var ErrUnknownCar = errors.New("car is not registered to the signed-in user")

// Backend is the part of the API the session loads from.
type Backend interface {
	Conf(ctx context.Context) (*api.Conf, error)
	Me(ctx context.Context) (*api.User, error)
}

// AuthSource publishes the sign-in outcome.
type AuthSource interface {
	Outcomes(ctx context.Context) <-chan outcome.Outcome[auth.Identity]
}

// PreferenceStore reads and writes the user's preferences.
type PreferenceStore interface {
	Preferences(ctx context.Context) <-chan prefs.Preference
	SelectCar(id string) error
	SetLanguage(code string) error
}

type Config struct {
	// RetryInterval separates failed configuration and profile fetches.
	RetryInterval time.Duration
	// DefaultLanguage is used when neither the user nor the backend picks one.
	DefaultLanguage string
	Clock           clock.Clock
}

// profileResult tags a fetched profile with the identity it belongs to.
type profileResult struct {
	identity auth.Identity
	user     *api.User
}

// Service owns the session state. Every stream it exposes has itself as
// the only producer.
type Service struct {
	backend Backend
	auth    AuthSource
	prefs   PreferenceStore
	cfg     Config
	logger  log.Logger

	conf      *stream.State[outcome.Outcome[*api.Conf]]
	profile   *stream.State[outcome.Outcome[profileResult]]
	state     *stream.State[State]
	activeCar *stream.State[*api.Car]
}

func NewService(backend Backend, authSrc AuthSource, store PreferenceStore, cfg Config) *Service {
	if cfg.Clock == nil {
		cfg.Clock = clock.RealClock{}
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 30 * time.Second
	}
	return &Service{
		backend:   backend,
		auth:      authSrc,
		prefs:     store,
		cfg:       cfg,
		logger:    log.WithName("session"),
		conf:      stream.NewStateOf(outcome.Idle[*api.Conf]()),
		profile:   stream.NewStateOf(outcome.Idle[profileResult]()),
		state:     stream.NewStateOf(State{Kind: KindLoading}, stream.WithEqual(stateEqual)),
		activeCar: stream.NewStateOf[*api.Car](nil, stream.WithEqual(carEqual)),
	}
}

func stateEqual(a, b State) bool { return reflect.DeepEqual(a, b) }

func carEqual(a, b *api.Car) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Run loads the configuration and profile and composes the state until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.loadConf(ctx) })
	g.Go(func() error { return s.loadProfiles(ctx) })
	g.Go(func() error { return s.compose(ctx) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Current returns the latest session state.
func (s *Service) Current() State {
	st, _ := s.state.Get()
	return st
}

// States streams session states, starting with the current one.
func (s *Service) States(ctx context.Context) <-chan State {
	return s.state.Subscribe(ctx)
}

// ActiveCar streams the active car; nil while none is resolved.
func (s *Service) ActiveCar(ctx context.Context) <-chan *api.Car {
	return s.activeCar.Subscribe(ctx)
}

// SelectCar persists id as the active car. When a profile is loaded the car
// must belong to it.
func (s *Service) SelectCar(id string) error {
	st := s.Current()
	if st.Kind == KindLoggedIn && id != "" && findCar(st.Profile.Cars, id) == nil {
		return fmt.Errorf("%w: %s", ErrUnknownCar, id)
	}
	return s.prefs.SelectCar(id)
}

// SetLanguage persists the preferred language code.
func (s *Service) SetLanguage(code string) error {
	return s.prefs.SetLanguage(code)
}

// loadConf fetches the configuration until the first success, then stops for good.
func (s *Service) loadConf(ctx context.Context) error {
	s.conf.Set(outcome.Loading[*api.Conf]())
	err := retry.UntilSuccess(ctx, s.cfg.Clock, s.cfg.RetryInterval, "conf", func(ctx context.Context) error {
		conf, err := s.backend.Conf(ctx)
		metrics.LoaderAttemptsTotal.WithLabelValues("conf", metrics.Result(err)).Inc()
		if err != nil {
			if ctx.Err() == nil {
				s.conf.Set(outcome.Failure[*api.Conf](err))
			}
			return err
		}
		s.logger.Info("Configuration loaded", "languages", len(conf.Languages))
		s.conf.Set(outcome.Success(conf))
		return nil
	})
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// loadProfiles restarts the profile fetch from scratch every time the user
// signs in, and resets it while signed out.
func (s *Service) loadProfiles(ctx context.Context) error {
	outcomes := stream.Distinct(ctx, s.auth.Outcomes(ctx), outcome.Equal[auth.Identity])
	stream.SwitchLatest(ctx, outcomes, func(runCtx context.Context, o outcome.Outcome[auth.Identity]) {
		id, ok := o.Value()
		if !ok {
			s.profile.Set(outcome.Idle[profileResult]())
			return
		}

		s.profile.Set(outcome.Loading[profileResult]())
		_ = retry.UntilSuccess(runCtx, s.cfg.Clock, s.cfg.RetryInterval, "profile", func(ctx context.Context) error {
			user, err := s.backend.Me(ctx)
			metrics.LoaderAttemptsTotal.WithLabelValues("profile", metrics.Result(err)).Inc()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err != nil {
				s.profile.Set(outcome.Failure[profileResult](err))
				return err
			}
			s.logger.Info("Profile loaded", "email", user.Email, "cars", len(user.Cars))
			s.profile.Set(outcome.Success(profileResult{identity: id, user: user}))
			return nil
		})
	})
	return nil
}

func (s *Service) compose(ctx context.Context) error {
	confCh := s.conf.Subscribe(ctx)
	authCh := s.auth.Outcomes(ctx)
	profileCh := s.profile.Subscribe(ctx)
	prefCh := s.prefs.Preferences(ctx)

	var (
		conf     outcome.Outcome[*api.Conf]
		identity outcome.Outcome[auth.Identity]
		profile  outcome.Outcome[profileResult]
		pref     prefs.Preference
	)

	for {
		select {
		case <-ctx.Done():
			return nil
		case v, ok := <-confCh:
			if !ok {
				return nil
			}
			conf = v
		case v, ok := <-authCh:
			if !ok {
				return nil
			}
			identity = v
		case v, ok := <-profileCh:
			if !ok {
				return nil
			}
			profile = v
		case v, ok := <-prefCh:
			if !ok {
				return nil
			}
			pref = v
		}
		s.publish(conf, identity, profile, pref)
	}
}

func (s *Service) publish(conf outcome.Outcome[*api.Conf], identity outcome.Outcome[auth.Identity], profile outcome.Outcome[profileResult], pref prefs.Preference) {
	lang := outcome.Map(conf, func(c *api.Conf) *api.LanguagePack {
		return SelectLanguage(c, pref.Language, s.cfg.DefaultLanguage)
	})

	// A profile fetched for another identity is not loaded yet as far as
	// the current one is concerned.
	user := outcome.Loading[*api.User]()
	if res, ok := profile.Value(); ok {
		if id, signedIn := identity.Value(); signedIn && id == res.identity {
			user = outcome.Success(res.user)
		}
	}

	next := Derive(lang, identity, user, pref)
	if prev := s.Current(); prev.Kind != next.Kind {
		s.logger.Info("Session state changed", "from", prev.Kind.String(), "to", next.Kind.String())
	}
	s.state.Set(next)
	s.activeCar.Set(next.ActiveCar())

	for _, k := range []Kind{KindLoading, KindAnonymous, KindLoggedIn} {
		v := 0.0
		if k == next.Kind {
			v = 1
		}
		metrics.SessionState.WithLabelValues(k.String()).Set(v)
	}
}
