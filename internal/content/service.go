// Package content owns the in-memory mirrors of the seven portfolio
// collections and keeps them synchronized with the document store. It seeds
// defaults on first run, applies live updates from subscriptions, and is the
// only component that writes content to the store.
package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"slices"
	"sync"
	"time"

	"portfolio/api/internal/docstore"
)

// Collection names double as document-store collection identifiers.
const (
	CollectionProfile      = "profile"
	CollectionResearch     = "researchInterests"
	CollectionTeaching     = "teachingInterests"
	CollectionPublications = "publications"
	CollectionTalks        = "talks"
	CollectionActivities   = "activities"
	CollectionLab          = "lab"
)

const (
	keyMain = "main"
	keyList = "list"
)

// State tracks each collection's synchronization lifecycle.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateSeeding       State = "seeding"
	StateSubscribed    State = "subscribed"
	StateErrored       State = "errored"
)

var (
	// ErrUnauthorized is returned by every mutation attempted without an
	// authenticated session. No write happens.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrAlreadyExists is returned when adding a lab member or research
	// area string that is already present.
	ErrAlreadyExists = errors.New("already exists")
)

// Actor identifies the caller of a mutation.
type Actor struct {
	UserID        string
	Name          string
	Authenticated bool
}

// Snapshot is a consistent copy of all collections, shaped for the frontend.
type Snapshot struct {
	Profile           Profile            `json:"profile"`
	ResearchInterests []ResearchInterest `json:"researchInterests"`
	TeachingInterests []TeachingInterest `json:"teachingInterests"`
	Publications      []Publication      `json:"publications"`
	Talks             []Talk             `json:"talks"`
	Activities        []Activity         `json:"activities"`
	Lab               Lab                `json:"lab"`
	IsLoading         bool               `json:"isLoading"`
}

type Service struct {
	store docstore.Store
	now   func() time.Time

	mu           sync.RWMutex
	profile      Profile
	research     []ResearchInterest
	teaching     []TeachingInterest
	publications []Publication
	talks        []Talk
	activities   []Activity
	lab          Lab
	states       map[string]State
	lastErrs     map[string]string
	loading      bool
	unsubs       []func()
	listeners    []func(collection string)
}

// New creates the service with default content in its mirrors. The public
// site can render before Bootstrap completes and never sees an empty state.
func New(store docstore.Store) *Service {
	s := &Service{
		store:        store,
		now:          time.Now,
		profile:      defaultProfile(),
		research:     defaultResearchInterests(),
		teaching:     defaultTeachingInterests(),
		publications: defaultPublications(),
		talks:        defaultTalks(),
		activities:   defaultActivities(),
		lab:          defaultLab(),
		states:       make(map[string]State, 7),
		lastErrs:     make(map[string]string, 7),
		loading:      true,
	}
	for _, collection := range Collections() {
		s.states[collection] = StateUninitialized
	}
	return s
}

// Collections lists the seven collection names in presentation order.
func Collections() []string {
	return []string{
		CollectionProfile,
		CollectionResearch,
		CollectionTeaching,
		CollectionPublications,
		CollectionTalks,
		CollectionActivities,
		CollectionLab,
	}
}

// OnChange registers a listener invoked after any mirror update, with the
// changed collection's name. Register before Bootstrap.
func (s *Service) OnChange(fn func(collection string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Bootstrap seeds absent documents with defaults, then installs the seven
// live subscriptions. The loading flag drops once the pass completes,
// regardless of per-collection errors.
func (s *Service) Bootstrap(ctx context.Context) error {
	var firstErr error
	for _, seed := range s.seedPlan() {
		if err := s.seedIfAbsent(ctx, seed.collection, seed.key, seed.value); err != nil {
			s.setErrored(seed.collection, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	for _, sub := range s.subscriptionPlan() {
		collection := sub.collection
		apply := sub.apply
		unsub := s.store.Subscribe(collection, sub.key,
			func(doc json.RawMessage) {
				if err := apply(doc); err != nil {
					log.Printf("content: apply %s snapshot: %v", collection, err)
					s.setErrored(collection, err)
					return
				}
				s.setSubscribed(collection)
				s.notify(collection)
			},
			func(err error) {
				log.Printf("content: %s subscription error: %v", collection, err)
				s.setErrored(collection, err)
			},
		)
		s.mu.Lock()
		s.unsubs = append(s.unsubs, unsub)
		s.mu.Unlock()
	}

	s.mu.Lock()
	s.loading = false
	s.mu.Unlock()
	return firstErr
}

// Close tears down all live subscriptions.
func (s *Service) Close() {
	s.mu.Lock()
	unsubs := s.unsubs
	s.unsubs = nil
	s.mu.Unlock()
	for _, unsub := range unsubs {
		unsub()
	}
}

type seedEntry struct {
	collection string
	key        string
	value      any
}

func (s *Service) seedPlan() []seedEntry {
	return []seedEntry{
		{CollectionProfile, keyMain, defaultProfile()},
		{CollectionResearch, keyList, listDoc[ResearchInterest]{Items: defaultResearchInterests()}},
		{CollectionTeaching, keyList, listDoc[TeachingInterest]{Items: defaultTeachingInterests()}},
		{CollectionPublications, keyList, listDoc[Publication]{Items: defaultPublications()}},
		{CollectionTalks, keyList, listDoc[Talk]{Items: defaultTalks()}},
		{CollectionActivities, keyList, listDoc[Activity]{Items: defaultActivities()}},
		{CollectionLab, keyMain, defaultLab()},
	}
}

func (s *Service) seedIfAbsent(ctx context.Context, collection, key string, value any) error {
	_, err := s.store.Get(ctx, collection, key)
	if err == nil {
		return nil
	}
	if !errors.Is(err, docstore.ErrNotFound) {
		return fmt.Errorf("check %s: %w", collection, err)
	}

	s.setState(collection, StateSeeding)
	doc, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s default: %w", collection, err)
	}
	if err := s.store.Set(ctx, collection, key, doc); err != nil {
		return fmt.Errorf("seed %s: %w", collection, err)
	}
	log.Printf("content: seeded %s with default data", collection)
	return nil
}

type subscriptionEntry struct {
	collection string
	key        string
	apply      func(json.RawMessage) error
}

func (s *Service) subscriptionPlan() []subscriptionEntry {
	return []subscriptionEntry{
		{CollectionProfile, keyMain, func(doc json.RawMessage) error {
			var profile Profile
			if err := json.Unmarshal(doc, &profile); err != nil {
				return err
			}
			s.mu.Lock()
			s.profile = profile
			s.mu.Unlock()
			return nil
		}},
		{CollectionResearch, keyList, applyListDoc(s, &s.research)},
		{CollectionTeaching, keyList, applyListDoc(s, &s.teaching)},
		{CollectionPublications, keyList, applyListDoc(s, &s.publications)},
		{CollectionTalks, keyList, applyListDoc(s, &s.talks)},
		{CollectionActivities, keyList, applyListDoc(s, &s.activities)},
		{CollectionLab, keyMain, func(doc json.RawMessage) error {
			var lab Lab
			if err := json.Unmarshal(doc, &lab); err != nil {
				return err
			}
			s.mu.Lock()
			s.lab = lab
			s.mu.Unlock()
			return nil
		}},
	}
}

type listDoc[T any] struct {
	Items []T `json:"items"`
}

// applyListDoc replaces a list mirror wholesale from a {items: [...]} document.
func applyListDoc[T any](s *Service, mirror *[]T) func(json.RawMessage) error {
	return func(doc json.RawMessage) error {
		var parsed listDoc[T]
		if err := json.Unmarshal(doc, &parsed); err != nil {
			return err
		}
		if parsed.Items == nil {
			parsed.Items = []T{}
		}
		s.mu.Lock()
		*mirror = parsed.Items
		s.mu.Unlock()
		return nil
	}
}

func (s *Service) setState(collection string, state State) {
	s.mu.Lock()
	s.states[collection] = state
	s.mu.Unlock()
}

func (s *Service) setSubscribed(collection string) {
	s.mu.Lock()
	s.states[collection] = StateSubscribed
	delete(s.lastErrs, collection)
	s.mu.Unlock()
}

func (s *Service) setErrored(collection string, err error) {
	s.mu.Lock()
	s.states[collection] = StateErrored
	s.lastErrs[collection] = err.Error()
	s.mu.Unlock()
}

func (s *Service) notify(collection string) {
	s.mu.RLock()
	listeners := slices.Clone(s.listeners)
	s.mu.RUnlock()
	for _, fn := range listeners {
		fn(collection)
	}
}

// Accessors return copies; callers never hold references into the mirrors.

func (s *Service) Profile() Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile
}

func (s *Service) ResearchInterests() []ResearchInterest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.research)
}

func (s *Service) TeachingInterests() []TeachingInterest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.teaching)
}

func (s *Service) Publications() []Publication {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.publications)
}

func (s *Service) Talks() []Talk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.talks)
}

func (s *Service) Activities() []Activity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.activities)
}

func (s *Service) Lab() Lab {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lab := s.lab
	lab.Research = slices.Clone(lab.Research)
	lab.Members = slices.Clone(lab.Members)
	return lab
}

func (s *Service) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *Service) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lab := s.lab
	lab.Research = slices.Clone(lab.Research)
	lab.Members = slices.Clone(lab.Members)
	return Snapshot{
		Profile:           s.profile,
		ResearchInterests: slices.Clone(s.research),
		TeachingInterests: slices.Clone(s.teaching),
		Publications:      slices.Clone(s.publications),
		Talks:             slices.Clone(s.talks),
		Activities:        slices.Clone(s.activities),
		Lab:               lab,
		IsLoading:         s.loading,
	}
}

// States reports the per-collection synchronization state, with the last
// error message for any errored collection.
func (s *Service) States() (map[string]string, map[string]string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	states := make(map[string]string, len(s.states))
	for collection, state := range s.states {
		states[collection] = string(state)
	}
	errs := make(map[string]string, len(s.lastErrs))
	for collection, message := range s.lastErrs {
		errs[collection] = message
	}
	return states, errs
}

// CollectionDocument marshals the current mirror of one collection in its
// document-store shape. Used for edit history snapshots.
func (s *Service) CollectionDocument(collection string) (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch collection {
	case CollectionProfile:
		return json.Marshal(s.profile)
	case CollectionResearch:
		return json.Marshal(listDoc[ResearchInterest]{Items: s.research})
	case CollectionTeaching:
		return json.Marshal(listDoc[TeachingInterest]{Items: s.teaching})
	case CollectionPublications:
		return json.Marshal(listDoc[Publication]{Items: s.publications})
	case CollectionTalks:
		return json.Marshal(listDoc[Talk]{Items: s.talks})
	case CollectionActivities:
		return json.Marshal(listDoc[Activity]{Items: s.activities})
	case CollectionLab:
		return json.Marshal(s.lab)
	}
	return nil, fmt.Errorf("unknown collection %q", collection)
}
