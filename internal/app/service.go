package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"portfolio/api/internal/assets"
	"portfolio/api/internal/auth"
	"portfolio/api/internal/authpw"
	"portfolio/api/internal/config"
	"portfolio/api/internal/content"
	"portfolio/api/internal/export"
	"portfolio/api/internal/history"
	"portfolio/api/internal/search"
	"portfolio/api/internal/store"
	"portfolio/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Email        string
	JTI          string
	ExpiresAt    time.Time
}

// userStore reads owner accounts. Backed by Postgres; nil in deployments
// without a database, which run the public site read-only.
type userStore interface {
	GetUserByID(ctx context.Context, userID string) (store.User, error)
}

// sessionStore holds refresh tokens. Backed by Redis when configured,
// Postgres otherwise.
type sessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash string, user store.User, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

// revocationStore tracks revoked access tokens until they expire.
type revocationStore interface {
	RevokeAccessToken(ctx context.Context, jti string, expiresAt time.Time) error
	IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error)
}

// pinger reports backing-store connectivity for the readiness endpoint.
type pinger interface {
	Ping(ctx context.Context) error
}

// Deps wires the subsystems into the service. Content is required; the rest
// may be nil and the matching endpoints degrade gracefully.
type Deps struct {
	Content  *content.Service
	AuthPW   *authpw.Service
	Users    userStore
	Sessions sessionStore
	Revoker  revocationStore
	Search   *search.Service
	History  *history.Service
	Export   *export.Service
	Assets   AssetStore
	Pinger   pinger
}

// AssetStore uploads images and returns public URLs.
type AssetStore interface {
	UploadImage(ctx context.Context, r io.Reader, size int64, contentType string) (string, error)
}

type Service struct {
	cfg      config.Config
	content  *content.Service
	authpw   *authpw.Service
	users    userStore
	sessions sessionStore
	revoker  revocationStore
	search   *search.Service
	history  *history.Service
	export   *export.Service
	assets   AssetStore
	pinger   pinger
	events   *eventHub
}

func New(cfg config.Config, deps Deps) *Service {
	s := &Service{
		cfg:      cfg,
		content:  deps.Content,
		authpw:   deps.AuthPW,
		users:    deps.Users,
		sessions: deps.Sessions,
		revoker:  deps.Revoker,
		search:   deps.Search,
		history:  deps.History,
		export:   deps.Export,
		assets:   deps.Assets,
		pinger:   deps.Pinger,
		events:   newEventHub(),
	}

	source := contentRecords{s.content}
	s.content.OnChange(func(collection string) {
		if s.search != nil {
			s.search.ReindexCollection(collection, source)
		}
		s.events.publish(collection)
	})
	return s
}

// SubscribeEvents returns a channel of changed collection names for the live
// update stream, with a cancel func that must be called when the client goes
// away.
func (s *Service) SubscribeEvents() (<-chan string, func()) {
	return s.events.subscribe()
}

// Bootstrap seeds and subscribes the content mirrors, initializes the edit
// history baseline, and pushes the loaded content into the search index.
func (s *Service) Bootstrap(ctx context.Context) error {
	if err := s.content.Bootstrap(ctx); err != nil {
		return err
	}

	if s.history != nil {
		snapshots := make(map[string]json.RawMessage, len(content.Collections()))
		for _, collection := range content.Collections() {
			doc, err := s.content.CollectionDocument(collection)
			if err != nil {
				return err
			}
			snapshots[collection] = doc
		}
		if err := s.history.Ensure(snapshots, s.cfg.AdminName); err != nil {
			return fmt.Errorf("init history: %w", err)
		}
	}

	if s.search != nil {
		s.search.ReindexAll(contentRecords{s.content})
	}
	return nil
}

func (s *Service) Ping(ctx context.Context) error {
	if s.pinger == nil {
		return nil
	}
	return s.pinger.Ping(ctx)
}

func (s *Service) AuthConfigured() bool {
	return s.authpw != nil && s.sessions != nil
}

// SignIn authenticates the owner and opens a session. Unknown email and bad
// password surface as distinct codes so the admin login form can say which.
func (s *Service) SignIn(ctx context.Context, email, password string) (Session, error) {
	if !s.AuthConfigured() {
		return Session{}, domainError(http.StatusServiceUnavailable, "AUTH_UNAVAILABLE", "Authentication not configured", nil)
	}
	user, err := s.authpw.SignIn(ctx, email, password)
	if errors.Is(err, authpw.ErrUserNotFound) {
		return Session{}, domainError(http.StatusUnauthorized, "USER_NOT_FOUND", "No account for this email", nil)
	}
	if errors.Is(err, authpw.ErrWrongPassword) {
		return Session{}, domainError(http.StatusUnauthorized, "WRONG_PASSWORD", "Incorrect password", nil)
	}
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	if !s.AuthConfigured() {
		return Session{}, domainError(http.StatusServiceUnavailable, "AUTH_UNAVAILABLE", "Authentication not configured", nil)
	}
	tokenHash := auth.HashToken(refreshToken)
	user, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, auth.ErrInvalidToken
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:   user.ID,
		Email: user.Email,
		JTI:   jti,
		Exp:   expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		Email:        user.Email,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	if s.revoker != nil {
		revoked, err := s.revoker.IsAccessTokenRevoked(ctx, claims.JTI)
		if err != nil {
			return Session{}, err
		}
		if revoked {
			return Session{}, auth.ErrInvalidToken
		}
	}

	userName := ""
	if s.users != nil {
		user, err := s.users.GetUserByID(ctx, claims.Sub)
		if err != nil {
			return Session{}, err
		}
		userName = user.DisplayName
	}

	return Session{
		Token:     token,
		UserID:    claims.Sub,
		UserName:  userName,
		Email:     claims.Email,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if session.JTI != "" && s.revoker != nil {
		_ = s.revoker.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt)
	}
	if refreshToken != "" && s.sessions != nil {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

func (s *Service) ChangePassword(ctx context.Context, session Session, currentPassword, newPassword string) error {
	if !s.AuthConfigured() {
		return domainError(http.StatusServiceUnavailable, "AUTH_UNAVAILABLE", "Authentication not configured", nil)
	}
	err := s.authpw.ChangePassword(ctx, session.UserID, currentPassword, newPassword)
	if errors.Is(err, authpw.ErrWrongPassword) {
		return domainError(http.StatusUnauthorized, "WRONG_PASSWORD", "Incorrect current password", nil)
	}
	if err != nil {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
	}
	return nil
}

func (s *Service) actor(session Session) content.Actor {
	return content.Actor{
		UserID:        session.UserID,
		Name:          session.UserName,
		Authenticated: session.UserID != "",
	}
}

// mutationError translates content-layer failures into domain errors: the
// auth gate maps to 401, duplicate lab strings to 409, and anything else is
// a failed write against the backing store.
func mutationError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, content.ErrUnauthorized) {
		return domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
	}
	if errors.Is(err, content.ErrAlreadyExists) {
		return domainError(http.StatusConflict, "ALREADY_EXISTS", "Entry already exists", nil)
	}
	return domainError(http.StatusBadGateway, "WRITE_ERROR", "Content write failed", nil)
}

// recordHistory commits the collection's post-mutation state to the audit
// trail. History failures only log; the mutation already succeeded.
func (s *Service) recordHistory(collection, author, message string) {
	if s.history == nil {
		return
	}
	doc, err := s.content.CollectionDocument(collection)
	if err != nil {
		log.Printf("history: snapshot %s: %v", collection, err)
		return
	}
	if author == "" {
		author = "admin"
	}
	if _, err := s.history.Record(collection, doc, author, message); err != nil {
		log.Printf("history: record %s: %v", collection, err)
	}
}

// Content mutations. Each wraps the content service call, then records the
// audit trail entry.

func (s *Service) UpdateProfile(ctx context.Context, session Session, patch content.ProfilePatch) error {
	if err := s.content.UpdateProfile(ctx, s.actor(session), patch); err != nil {
		return mutationError(err)
	}
	s.recordHistory(content.CollectionProfile, session.UserName, "Update profile")
	return nil
}

func (s *Service) AddResearchInterest(ctx context.Context, session Session, title string) (content.ResearchInterest, error) {
	item, err := s.content.AddResearchInterest(ctx, s.actor(session), title)
	if err != nil {
		return content.ResearchInterest{}, mutationError(err)
	}
	s.recordHistory(content.CollectionResearch, session.UserName, "Add research interest "+item.ID)
	return item, nil
}

func (s *Service) RemoveResearchInterest(ctx context.Context, session Session, id string) error {
	if err := s.content.RemoveResearchInterest(ctx, s.actor(session), id); err != nil {
		return mutationError(err)
	}
	s.recordHistory(content.CollectionResearch, session.UserName, "Remove research interest "+id)
	return nil
}

func (s *Service) AddTeachingInterest(ctx context.Context, session Session, title string) (content.TeachingInterest, error) {
	item, err := s.content.AddTeachingInterest(ctx, s.actor(session), title)
	if err != nil {
		return content.TeachingInterest{}, mutationError(err)
	}
	s.recordHistory(content.CollectionTeaching, session.UserName, "Add teaching interest "+item.ID)
	return item, nil
}

func (s *Service) RemoveTeachingInterest(ctx context.Context, session Session, id string) error {
	if err := s.content.RemoveTeachingInterest(ctx, s.actor(session), id); err != nil {
		return mutationError(err)
	}
	s.recordHistory(content.CollectionTeaching, session.UserName, "Remove teaching interest "+id)
	return nil
}

func (s *Service) AddPublication(ctx context.Context, session Session, input content.PublicationInput) (content.Publication, error) {
	item, err := s.content.AddPublication(ctx, s.actor(session), input)
	if err != nil {
		return content.Publication{}, mutationError(err)
	}
	s.recordHistory(content.CollectionPublications, session.UserName, "Add publication "+item.ID)
	return item, nil
}

func (s *Service) UpdatePublication(ctx context.Context, session Session, id string, patch content.PublicationPatch) error {
	if err := s.content.UpdatePublication(ctx, s.actor(session), id, patch); err != nil {
		return mutationError(err)
	}
	s.recordHistory(content.CollectionPublications, session.UserName, "Update publication "+id)
	return nil
}

func (s *Service) RemovePublication(ctx context.Context, session Session, id string) error {
	if err := s.content.RemovePublication(ctx, s.actor(session), id); err != nil {
		return mutationError(err)
	}
	if s.search != nil {
		s.search.DeleteRecord(search.ResultPublication, id)
	}
	s.recordHistory(content.CollectionPublications, session.UserName, "Remove publication "+id)
	return nil
}

func (s *Service) AddTalk(ctx context.Context, session Session, input content.TalkInput) (content.Talk, error) {
	item, err := s.content.AddTalk(ctx, s.actor(session), input)
	if err != nil {
		return content.Talk{}, mutationError(err)
	}
	s.recordHistory(content.CollectionTalks, session.UserName, "Add talk "+item.ID)
	return item, nil
}

func (s *Service) UpdateTalk(ctx context.Context, session Session, id string, patch content.TalkPatch) error {
	if err := s.content.UpdateTalk(ctx, s.actor(session), id, patch); err != nil {
		return mutationError(err)
	}
	s.recordHistory(content.CollectionTalks, session.UserName, "Update talk "+id)
	return nil
}

func (s *Service) RemoveTalk(ctx context.Context, session Session, id string) error {
	if err := s.content.RemoveTalk(ctx, s.actor(session), id); err != nil {
		return mutationError(err)
	}
	if s.search != nil {
		s.search.DeleteRecord(search.ResultTalk, id)
	}
	s.recordHistory(content.CollectionTalks, session.UserName, "Remove talk "+id)
	return nil
}

func (s *Service) AddActivity(ctx context.Context, session Session, input content.ActivityInput) (content.Activity, error) {
	item, err := s.content.AddActivity(ctx, s.actor(session), input)
	if err != nil {
		return content.Activity{}, mutationError(err)
	}
	s.recordHistory(content.CollectionActivities, session.UserName, "Add activity "+item.ID)
	return item, nil
}

func (s *Service) UpdateActivity(ctx context.Context, session Session, id string, patch content.ActivityPatch) error {
	if err := s.content.UpdateActivity(ctx, s.actor(session), id, patch); err != nil {
		return mutationError(err)
	}
	s.recordHistory(content.CollectionActivities, session.UserName, "Update activity "+id)
	return nil
}

func (s *Service) RemoveActivity(ctx context.Context, session Session, id string) error {
	if err := s.content.RemoveActivity(ctx, s.actor(session), id); err != nil {
		return mutationError(err)
	}
	if s.search != nil {
		s.search.DeleteRecord(search.ResultActivity, id)
	}
	s.recordHistory(content.CollectionActivities, session.UserName, "Remove activity "+id)
	return nil
}

func (s *Service) UpdateLab(ctx context.Context, session Session, patch content.LabPatch) error {
	if err := s.content.UpdateLab(ctx, s.actor(session), patch); err != nil {
		return mutationError(err)
	}
	s.recordHistory(content.CollectionLab, session.UserName, "Update lab")
	return nil
}

func (s *Service) AddLabMember(ctx context.Context, session Session, member string) error {
	if err := s.content.AddLabMember(ctx, s.actor(session), member); err != nil {
		return mutationError(err)
	}
	s.recordHistory(content.CollectionLab, session.UserName, "Add lab member")
	return nil
}

func (s *Service) RemoveLabMember(ctx context.Context, session Session, member string) error {
	if err := s.content.RemoveLabMember(ctx, s.actor(session), member); err != nil {
		return mutationError(err)
	}
	s.recordHistory(content.CollectionLab, session.UserName, "Remove lab member")
	return nil
}

func (s *Service) AddLabResearch(ctx context.Context, session Session, area string) error {
	if err := s.content.AddLabResearch(ctx, s.actor(session), area); err != nil {
		return mutationError(err)
	}
	s.recordHistory(content.CollectionLab, session.UserName, "Add lab research area")
	return nil
}

func (s *Service) RemoveLabResearch(ctx context.Context, session Session, area string) error {
	if err := s.content.RemoveLabResearch(ctx, s.actor(session), area); err != nil {
		return mutationError(err)
	}
	s.recordHistory(content.CollectionLab, session.UserName, "Remove lab research area")
	return nil
}

// Search executes a public full-text search across publications, talks, and
// activities.
func (s *Service) Search(q string, filterType string, limit, offset int) (search.Response, error) {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q}, nil
	}
	return s.search.Search(search.Query{
		Text:       q,
		FilterType: search.ResultType(filterType),
		Limit:      limit,
		Offset:     offset,
	}), nil
}

// History returns the most recent audit trail entries.
func (s *Service) History(limit int) ([]history.CommitInfo, error) {
	if s.history == nil {
		return []history.CommitInfo{}, nil
	}
	return s.history.Log(limit)
}

// HistorySnapshot returns a collection's document as of a commit.
func (s *Service) HistorySnapshot(hash, collection string) (json.RawMessage, history.CommitInfo, error) {
	if s.history == nil {
		return nil, history.CommitInfo{}, domainError(http.StatusNotFound, "NOT_FOUND", "History not configured", nil)
	}
	return s.history.SnapshotAt(hash, collection)
}

// ExportCV renders the current content as a PDF CV.
func (s *Service) ExportCV() (*export.Result, error) {
	if s.export == nil {
		return nil, domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "CV export not configured", nil)
	}
	result, err := s.export.ExportCV()
	if errors.Is(err, export.ErrPDFDependencyMissing) {
		return nil, domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "PDF renderer not installed", nil)
	}
	return result, err
}

func (s *Service) Content() *content.Service {
	return s.content
}

// UploadImage stores an uploaded image and returns its public URL.
func (s *Service) UploadImage(ctx context.Context, r io.Reader, size int64, contentType string) (string, error) {
	if s.assets == nil {
		return "", domainError(http.StatusServiceUnavailable, "ASSETS_UNAVAILABLE", "Asset storage not configured", nil)
	}
	url, err := s.assets.UploadImage(ctx, r, size, contentType)
	if errors.Is(err, assets.ErrUnsupportedType) {
		return "", domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Unsupported image type", nil)
	}
	return url, err
}

// eventHub fans changed-collection notifications out to live stream clients.
type eventHub struct {
	mu   sync.Mutex
	subs map[int]chan string
	next int
}

func newEventHub() *eventHub {
	return &eventHub{subs: make(map[int]chan string)}
}

func (h *eventHub) subscribe() (<-chan string, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.next
	h.next++
	ch := make(chan string, 16)
	h.subs[id] = ch
	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(sub)
		}
	}
}

// publish drops the event for any subscriber whose buffer is full rather
// than blocking a mutation on a slow client.
func (h *eventHub) publish(collection string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- collection:
		default:
		}
	}
}

// contentRecords adapts the content mirrors to the search indexing source.
type contentRecords struct {
	content *content.Service
}

func (c contentRecords) PublicationRecords() []search.PublicationRecord {
	items := c.content.Publications()
	records := make([]search.PublicationRecord, 0, len(items))
	for _, item := range items {
		records = append(records, search.PublicationRecord{
			ID:      item.ID,
			Title:   item.Title,
			Authors: item.Authors,
			Venue:   item.Venue,
			Year:    item.Year,
		})
	}
	return records
}

func (c contentRecords) TalkRecords() []search.TalkRecord {
	items := c.content.Talks()
	records := make([]search.TalkRecord, 0, len(items))
	for _, item := range items {
		records = append(records, search.TalkRecord{
			ID:          item.ID,
			Title:       item.Title,
			Venue:       item.Venue,
			Date:        item.Date,
			Description: item.Description,
		})
	}
	return records
}

func (c contentRecords) ActivityRecords() []search.ActivityRecord {
	items := c.content.Activities()
	records := make([]search.ActivityRecord, 0, len(items))
	for _, item := range items {
		records = append(records, search.ActivityRecord{
			ID:           item.ID,
			Title:        item.Title,
			Organization: item.Organization,
			Description:  item.Description,
		})
	}
	return records
}
