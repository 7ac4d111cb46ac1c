package bulk_downloader

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"sort"

	"github.com/hashicorp/go-multierror"

	"github.com/alanbriolat/bulk-downloader/generic"
)

var (
	ErrDuplicateProvider = errors.New("duplicate provider name")
	ErrInvalidProvider   = errors.New("invalid provider")
	ErrNoMatch           = errors.New("no provider matched the input")
	ErrUnknownProvider   = errors.New("unknown provider")
)

var (
	PriorityHighest int16 = math.MinInt16
	PriorityDefault int16 = 0
	PriorityLowest  int16 = math.MaxInt16
)

// A MatchFunc returns a Resolver if it knows how to handle the URL, or an error describing why it doesn't.
type MatchFunc = func(*url.URL) (Resolver, error)

// A Provider matches links for one site, giving a Resolver that can find the resources behind a Post.
type Provider struct {
	Name  string
	Match MatchFunc
	// Priority of the matcher, lower (including negative) means matching earlier.
	Priority int16
}

func (p Provider) WithName(name string) Provider {
	p.Name = name
	return p
}

func (p Provider) WithPriority(priority int16) Provider {
	p.Priority = priority
	return p
}

// A Match is the result of a Provider successfully matching a Post.
type Match struct {
	ProviderName string
	Resolver     Resolver
}

// A ProviderRegistry is a collection of Provider instances which can be used to route posts to resolvers.
type ProviderRegistry struct {
	providers   []*Provider
	providerMap map[string]*Provider
}

// Add registers a Provider with the ProviderRegistry. Provider.Name and Provider.Match must be set, and
// Provider.Name must be unique within the ProviderRegistry.
func (r *ProviderRegistry) Add(p Provider) error {
	if r.providerMap == nil {
		r.providerMap = make(map[string]*Provider)
	}
	if p.Name == "" || p.Match == nil {
		return ErrInvalidProvider
	}
	if _, ok := r.providerMap[p.Name]; ok {
		return ErrDuplicateProvider
	}
	r.providerMap[p.Name] = &p
	r.providers = append(r.providers, r.providerMap[p.Name])
	r.sortByPriority()
	return nil
}

// Create is a shortcut for Add(Provider{Name: ..., Match: ...}).
func (r *ProviderRegistry) Create(name string, f MatchFunc) error {
	return r.Add(Provider{
		Name:  name,
		Match: f,
	})
}

// CreatePriority is a shortcut for Add(Provider{Name: ..., Match: ..., Priority: ...}).
func (r *ProviderRegistry) CreatePriority(name string, f MatchFunc, priority int16) error {
	return r.Add(Provider{
		Name:     name,
		Match:    f,
		Priority: priority,
	})
}

// GetPriority gets the priority of the named Provider. If ErrUnknownProvider is returned, the returned priority is the
// default priority.
func (r *ProviderRegistry) GetPriority(name string) (int16, error) {
	if p, ok := r.providerMap[name]; ok {
		return p.Priority, nil
	} else {
		return PriorityDefault, ErrUnknownProvider
	}
}

// List returns the names of registered providers in priority order.
func (r *ProviderRegistry) List() []string {
	names := make([]string, 0, len(r.providers))
	for _, p := range r.providers {
		names = append(names, p.Name)
	}
	return names
}

// Match the post's link against each Provider in priority order. If nothing matches, the returned error combines
// every provider's reason.
func (r *ProviderRegistry) Match(post *Post) (*Match, error) {
	if len(r.providers) == 0 {
		return nil, ErrNoMatch
	}
	parsedURL, err := url.Parse(post.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoMatch, err)
	}
	result := multierror.Append(nil, ErrNoMatch)
	for _, p := range r.providers {
		if resolver, err := p.Match(parsedURL); resolver != nil && err == nil {
			return &Match{ProviderName: p.Name, Resolver: resolver}, nil
		} else if err != nil {
			result = multierror.Append(result, multierror.Prefix(err, fmt.Sprintf("[%v]", p.Name)))
		}
	}
	return nil, result.ErrorOrNil()
}

// MatchWith will attempt to match a post against a specific provider.
func (r *ProviderRegistry) MatchWith(name string, post *Post) (*Match, error) {
	p, ok := r.providerMap[name]
	if !ok {
		return nil, ErrUnknownProvider
	}
	parsedURL, err := url.Parse(post.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoMatch, err)
	}
	if resolver, err := p.Match(parsedURL); resolver != nil && err == nil {
		return &Match{ProviderName: p.Name, Resolver: resolver}, nil
	} else if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoMatch, err)
	} else {
		return nil, ErrNoMatch
	}
}

// MustAdd wraps Add but panics if there is an error.
func (r *ProviderRegistry) MustAdd(p Provider) {
	generic.Unwrap_(r.Add(p))
}

// MustCreate wraps Create but panics if there is an error.
func (r *ProviderRegistry) MustCreate(name string, f MatchFunc) {
	generic.Unwrap_(r.Create(name, f))
}

// MustCreatePriority wraps CreatePriority but panics if there is an error.
func (r *ProviderRegistry) MustCreatePriority(name string, f MatchFunc, priority int16) {
	generic.Unwrap_(r.CreatePriority(name, f, priority))
}

// SetPriority adjust the priority of a named Provider.
func (r *ProviderRegistry) SetPriority(name string, priority int16) error {
	if p, ok := r.providerMap[name]; ok {
		p.Priority = priority
		r.sortByPriority()
		return nil
	} else {
		return ErrUnknownProvider
	}
}

// Providers with equal priority keep their registration order.
func (r *ProviderRegistry) sortByPriority() {
	sort.SliceStable(r.providers, func(i, j int) bool {
		return r.providers[i].Priority < r.providers[j].Priority
	})
}
