package content

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
)

// Every mutation checks the actor first and writes nothing when the session
// is not authenticated. List mutations overwrite the whole backing document;
// the mirror catches up from the subscription echo of that write. Updating or
// removing an id that is not present is a deliberate no-op.

func (s *Service) newItemID() string {
	return strconv.FormatInt(s.now().UnixMilli(), 10)
}

// UpdateProfile merges the given fields into the profile document.
func (s *Service) UpdateProfile(ctx context.Context, actor Actor, patch ProfilePatch) error {
	if !actor.Authenticated {
		return ErrUnauthorized
	}
	fields, err := patchFields(patch)
	if err != nil {
		return err
	}
	if len(fields) == 0 {
		return nil
	}
	if err := s.store.Update(ctx, CollectionProfile, keyMain, fields); err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return nil
}

func (s *Service) AddResearchInterest(ctx context.Context, actor Actor, title string) (ResearchInterest, error) {
	if !actor.Authenticated {
		return ResearchInterest{}, ErrUnauthorized
	}
	item := ResearchInterest{ID: s.newItemID(), Title: title}
	s.mu.RLock()
	items := append(slices.Clone(s.research), item)
	s.mu.RUnlock()
	if err := writeListDocOf(ctx, s, CollectionResearch, items); err != nil {
		return ResearchInterest{}, err
	}
	return item, nil
}

func (s *Service) RemoveResearchInterest(ctx context.Context, actor Actor, id string) error {
	if !actor.Authenticated {
		return ErrUnauthorized
	}
	s.mu.RLock()
	items := removeByID(s.research, id)
	s.mu.RUnlock()
	return writeListDocOf(ctx, s, CollectionResearch, items)
}

func (s *Service) AddTeachingInterest(ctx context.Context, actor Actor, title string) (TeachingInterest, error) {
	if !actor.Authenticated {
		return TeachingInterest{}, ErrUnauthorized
	}
	item := TeachingInterest{ID: s.newItemID(), Title: title}
	s.mu.RLock()
	items := append(slices.Clone(s.teaching), item)
	s.mu.RUnlock()
	if err := writeListDocOf(ctx, s, CollectionTeaching, items); err != nil {
		return TeachingInterest{}, err
	}
	return item, nil
}

func (s *Service) RemoveTeachingInterest(ctx context.Context, actor Actor, id string) error {
	if !actor.Authenticated {
		return ErrUnauthorized
	}
	s.mu.RLock()
	items := removeByID(s.teaching, id)
	s.mu.RUnlock()
	return writeListDocOf(ctx, s, CollectionTeaching, items)
}

// PublicationInput carries the fields of a new publication; the id is
// assigned here.
type PublicationInput struct {
	Title   string `json:"title"`
	Authors string `json:"authors"`
	Venue   string `json:"venue"`
	Year    string `json:"year"`
	URL     string `json:"url,omitempty"`
}

func (s *Service) AddPublication(ctx context.Context, actor Actor, input PublicationInput) (Publication, error) {
	if !actor.Authenticated {
		return Publication{}, ErrUnauthorized
	}
	item := Publication{
		ID:      s.newItemID(),
		Title:   input.Title,
		Authors: input.Authors,
		Venue:   input.Venue,
		Year:    input.Year,
		URL:     input.URL,
	}
	s.mu.RLock()
	items := append(slices.Clone(s.publications), item)
	s.mu.RUnlock()
	if err := writeListDocOf(ctx, s, CollectionPublications, items); err != nil {
		return Publication{}, err
	}
	return item, nil
}

func (s *Service) UpdatePublication(ctx context.Context, actor Actor, id string, patch PublicationPatch) error {
	if !actor.Authenticated {
		return ErrUnauthorized
	}
	s.mu.RLock()
	items := updateByID(s.publications, id, patch.apply)
	s.mu.RUnlock()
	return writeListDocOf(ctx, s, CollectionPublications, items)
}

func (s *Service) RemovePublication(ctx context.Context, actor Actor, id string) error {
	if !actor.Authenticated {
		return ErrUnauthorized
	}
	s.mu.RLock()
	items := removeByID(s.publications, id)
	s.mu.RUnlock()
	return writeListDocOf(ctx, s, CollectionPublications, items)
}

type TalkInput struct {
	Title       string `json:"title"`
	Venue       string `json:"venue"`
	Date        string `json:"date"`
	Description string `json:"description,omitempty"`
}

func (s *Service) AddTalk(ctx context.Context, actor Actor, input TalkInput) (Talk, error) {
	if !actor.Authenticated {
		return Talk{}, ErrUnauthorized
	}
	item := Talk{
		ID:          s.newItemID(),
		Title:       input.Title,
		Venue:       input.Venue,
		Date:        input.Date,
		Description: input.Description,
	}
	s.mu.RLock()
	items := append(slices.Clone(s.talks), item)
	s.mu.RUnlock()
	if err := writeListDocOf(ctx, s, CollectionTalks, items); err != nil {
		return Talk{}, err
	}
	return item, nil
}

func (s *Service) UpdateTalk(ctx context.Context, actor Actor, id string, patch TalkPatch) error {
	if !actor.Authenticated {
		return ErrUnauthorized
	}
	s.mu.RLock()
	items := updateByID(s.talks, id, patch.apply)
	s.mu.RUnlock()
	return writeListDocOf(ctx, s, CollectionTalks, items)
}

func (s *Service) RemoveTalk(ctx context.Context, actor Actor, id string) error {
	if !actor.Authenticated {
		return ErrUnauthorized
	}
	s.mu.RLock()
	items := removeByID(s.talks, id)
	s.mu.RUnlock()
	return writeListDocOf(ctx, s, CollectionTalks, items)
}

type ActivityInput struct {
	Title        string `json:"title"`
	Organization string `json:"organization"`
	Description  string `json:"description"`
	StartDate    string `json:"startDate"`
	EndDate      string `json:"endDate,omitempty"`
}

func (s *Service) AddActivity(ctx context.Context, actor Actor, input ActivityInput) (Activity, error) {
	if !actor.Authenticated {
		return Activity{}, ErrUnauthorized
	}
	item := Activity{
		ID:           s.newItemID(),
		Title:        input.Title,
		Organization: input.Organization,
		Description:  input.Description,
		StartDate:    input.StartDate,
		EndDate:      input.EndDate,
	}
	s.mu.RLock()
	items := append(slices.Clone(s.activities), item)
	s.mu.RUnlock()
	if err := writeListDocOf(ctx, s, CollectionActivities, items); err != nil {
		return Activity{}, err
	}
	return item, nil
}

func (s *Service) UpdateActivity(ctx context.Context, actor Actor, id string, patch ActivityPatch) error {
	if !actor.Authenticated {
		return ErrUnauthorized
	}
	s.mu.RLock()
	items := updateByID(s.activities, id, patch.apply)
	s.mu.RUnlock()
	return writeListDocOf(ctx, s, CollectionActivities, items)
}

func (s *Service) RemoveActivity(ctx context.Context, actor Actor, id string) error {
	if !actor.Authenticated {
		return ErrUnauthorized
	}
	s.mu.RLock()
	items := removeByID(s.activities, id)
	s.mu.RUnlock()
	return writeListDocOf(ctx, s, CollectionActivities, items)
}

// UpdateLab merges the lab's scalar fields; member and research lists have
// their own operations.
func (s *Service) UpdateLab(ctx context.Context, actor Actor, patch LabPatch) error {
	if !actor.Authenticated {
		return ErrUnauthorized
	}
	fields, err := patchFields(patch)
	if err != nil {
		return err
	}
	if len(fields) == 0 {
		return nil
	}
	if err := s.store.Update(ctx, CollectionLab, keyMain, fields); err != nil {
		return fmt.Errorf("update lab: %w", err)
	}
	return nil
}

func (s *Service) AddLabMember(ctx context.Context, actor Actor, member string) error {
	return s.addLabString(ctx, actor, "members", member)
}

func (s *Service) RemoveLabMember(ctx context.Context, actor Actor, member string) error {
	return s.removeLabString(ctx, actor, "members", member)
}

func (s *Service) AddLabResearch(ctx context.Context, actor Actor, area string) error {
	return s.addLabString(ctx, actor, "research", area)
}

func (s *Service) RemoveLabResearch(ctx context.Context, actor Actor, area string) error {
	return s.removeLabString(ctx, actor, "research", area)
}

func (s *Service) addLabString(ctx context.Context, actor Actor, field, value string) error {
	if !actor.Authenticated {
		return ErrUnauthorized
	}
	s.mu.RLock()
	current := s.labStrings(field)
	if slices.Contains(current, value) {
		s.mu.RUnlock()
		return ErrAlreadyExists
	}
	updated := append(slices.Clone(current), value)
	s.mu.RUnlock()

	return s.writeLabStrings(ctx, field, updated)
}

func (s *Service) removeLabString(ctx context.Context, actor Actor, field, value string) error {
	if !actor.Authenticated {
		return ErrUnauthorized
	}
	s.mu.RLock()
	current := s.labStrings(field)
	s.mu.RUnlock()
	updated := slices.DeleteFunc(slices.Clone(current), func(v string) bool { return v == value })

	return s.writeLabStrings(ctx, field, updated)
}

// labStrings must be called with the lock held.
func (s *Service) labStrings(field string) []string {
	if field == "members" {
		return s.lab.Members
	}
	return s.lab.Research
}

// writeLabStrings overwrites one of the lab's string arrays and applies the
// same value to the mirror immediately; the subscription echo converges to
// the identical state.
func (s *Service) writeLabStrings(ctx context.Context, field string, values []string) error {
	raw, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("marshal lab %s: %w", field, err)
	}
	if err := s.store.Update(ctx, CollectionLab, keyMain, map[string]json.RawMessage{field: raw}); err != nil {
		return fmt.Errorf("update lab %s: %w", field, err)
	}

	s.mu.Lock()
	if field == "members" {
		s.lab.Members = values
	} else {
		s.lab.Research = values
	}
	s.mu.Unlock()
	s.notify(CollectionLab)
	return nil
}

type identifiable interface {
	itemID() string
}

func writeListDocOf[T any](ctx context.Context, s *Service, collection string, items []T) error {
	doc, err := json.Marshal(listDoc[T]{Items: items})
	if err != nil {
		return fmt.Errorf("marshal %s: %w", collection, err)
	}
	if err := s.store.Set(ctx, collection, keyList, doc); err != nil {
		return fmt.Errorf("write %s: %w", collection, err)
	}
	return nil
}

func updateByID[T identifiable](items []T, id string, apply func(T) T) []T {
	out := make([]T, len(items))
	for i, item := range items {
		if item.itemID() == id {
			out[i] = apply(item)
		} else {
			out[i] = item
		}
	}
	return out
}

func removeByID[T identifiable](items []T, id string) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if item.itemID() != id {
			out = append(out, item)
		}
	}
	return out
}

// patchFields converts a patch struct into the named top-level fields it
// actually sets.
func patchFields(patch any) (map[string]json.RawMessage, error) {
	encoded, err := json.Marshal(patch)
	if err != nil {
		return nil, fmt.Errorf("marshal patch: %w", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(encoded, &fields); err != nil {
		return nil, fmt.Errorf("decode patch: %w", err)
	}
	return fields, nil
}
