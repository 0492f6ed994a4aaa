// Package session composes sign-in, remote configuration, profile and
// preferences into the state rendered by UI collaborators.
package session

import (
	"fmt"

	"github.com/autopeer-io/cartrack/internal/api"
	"github.com/autopeer-io/cartrack/internal/auth"
	"github.com/autopeer-io/cartrack/internal/pkg/outcome"
	"github.com/autopeer-io/cartrack/internal/prefs"
)

// Kind is the renderable state of a session.
type Kind int

const (
	KindLoading Kind = iota
	KindAnonymous
	KindLoggedIn
)

var kindNames = []string{"loading", "anonymous", "loggedIn"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	for i, name := range kindNames {
		if name == string(text) {
			*k = Kind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown session kind %q", text)
}

// Profile is the signed-in user with the active car resolved.
type Profile struct {
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	Cars      []api.Car `json:"cars"`
	ActiveCar *api.Car  `json:"activeCar,omitempty"`
}

// State is Loading, Anonymous(Language) or LoggedIn(Profile, Language).
type State struct {
	Kind     Kind              `json:"kind"`
	Language *api.LanguagePack `json:"language,omitempty"`
	Profile  *Profile          `json:"profile,omitempty"`
}

// Derive computes the session state from its inputs:
//   - language not loaded: Loading
//   - not signed in: Anonymous
//   - profile not loaded: Loading
//   - otherwise LoggedIn, with the car selected in pref as active car.
func Derive(lang outcome.Outcome[*api.LanguagePack], identity outcome.Outcome[auth.Identity], profile outcome.Outcome[*api.User], pref prefs.Preference) State {
	pack, ok := lang.Value()
	if !ok {
		return State{Kind: KindLoading}
	}
	if !identity.IsSuccess() {
		return State{Kind: KindAnonymous, Language: pack}
	}
	user, ok := profile.Value()
	if !ok || user == nil {
		return State{Kind: KindLoading}
	}
	return State{
		Kind:     KindLoggedIn,
		Language: pack,
		Profile: &Profile{
			Email:     user.Email,
			Name:      user.Name,
			Cars:      user.Cars,
			ActiveCar: findCar(user.Cars, pref.SelectedCarID),
		},
	}
}

// ActiveCar returns the active car of a LoggedIn state, nil otherwise.
func (s State) ActiveCar() *api.Car {
	if s.Kind != KindLoggedIn || s.Profile == nil {
		return nil
	}
	return s.Profile.ActiveCar
}

// Redacted returns a copy of s without car capability tokens, fit for
// publishing to display collaborators.
func (s State) Redacted() State {
	if s.Profile == nil {
		return s
	}
	p := *s.Profile
	p.Cars = make([]api.Car, len(s.Profile.Cars))
	for i, c := range s.Profile.Cars {
		c.Token = ""
		p.Cars[i] = c
	}
	if p.ActiveCar != nil {
		c := *p.ActiveCar
		c.Token = ""
		p.ActiveCar = &c
	}
	s.Profile = &p
	return s
}

func findCar(cars []api.Car, id string) *api.Car {
	if id == "" {
		return nil
	}
	for i := range cars {
		if cars[i].ID == id {
			c := cars[i]
			return &c
		}
	}
	return nil
}

// SelectLanguage picks the pack for preferred, then the bundle's default,
// then fallback, then the first pack. A bundle without packs yields an
// empty pack coded fallback.
func SelectLanguage(conf *api.Conf, preferred, fallback string) *api.LanguagePack {
	for _, code := range []string{preferred, confDefault(conf), fallback} {
		if pack, ok := conf.Find(code); ok {
			return pack
		}
	}
	if conf != nil && len(conf.Languages) > 0 {
		return &conf.Languages[0]
	}
	return &api.LanguagePack{Code: fallback}
}

func confDefault(conf *api.Conf) string {
	if conf == nil {
		return ""
	}
	return conf.DefaultLanguage
}
