package service

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/chat-server-go/internal/cache"
	"github.com/openclaw/chat-server-go/internal/llm"
	"github.com/openclaw/chat-server-go/internal/model"
	redisclient "github.com/openclaw/chat-server-go/internal/redis"
	"github.com/openclaw/chat-server-go/internal/repository"
	"github.com/openclaw/chat-server-go/internal/sse"
)

// memStore backs the in-memory repositories used by service tests.
type memStore struct {
	mu            sync.Mutex
	users         map[string]*model.User
	sessions      map[string]*model.Session
	interactions  map[string]*model.Interaction
	refreshTokens map[string]*model.RefreshToken
	failWith      error
}

func newMemStore() *memStore {
	return &memStore{
		users:         make(map[string]*model.User),
		sessions:      make(map[string]*model.Session),
		interactions:  make(map[string]*model.Interaction),
		refreshTokens: make(map[string]*model.RefreshToken),
	}
}

func (s *memStore) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = err
}

type memSessionRepo struct{ *memStore }

func (r memSessionRepo) Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	now := time.Now().UTC()
	session := &model.Session{ID: params.ID, UserID: params.UserID, InteractionIDs: []string{}, CreatedAt: now, LastActiveAt: now}
	r.sessions[session.ID] = session
	cp := *session
	return &cp, nil
}

func (r memSessionRepo) FindByIDForUser(ctx context.Context, id, userID string) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	session, ok := r.sessions[id]
	if !ok || session.UserID != userID {
		return nil, nil
	}
	cp := *session
	cp.InteractionIDs = slices.Clone(session.InteractionIDs)
	return &cp, nil
}

func (r memSessionRepo) Touch(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if session, ok := r.sessions[id]; ok {
		session.LastActiveAt = at
	}
	return nil
}

func (r memSessionRepo) AddInteraction(ctx context.Context, id, interactionID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if session, ok := r.sessions[id]; ok {
		session.InteractionIDs = append(session.InteractionIDs, interactionID)
		session.LastActiveAt = at
	}
	return nil
}

func (r memSessionRepo) RemoveInteraction(ctx context.Context, id, interactionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if session, ok := r.sessions[id]; ok {
		session.InteractionIDs = slices.DeleteFunc(session.InteractionIDs, func(v string) bool { return v == interactionID })
	}
	return nil
}

func (r memSessionRepo) Delete(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return false, nil
	}
	delete(r.sessions, id)
	for iid, interaction := range r.interactions {
		if interaction.SessionID == id {
			delete(r.interactions, iid)
		}
	}
	return true, nil
}

type memInteractionRepo struct{ *memStore }

func (r memInteractionRepo) Create(ctx context.Context, params model.CreateInteractionParams) (*model.Interaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	now := time.Now().UTC()
	interaction := &model.Interaction{
		ID:            params.ID,
		SessionID:     params.SessionID,
		UserID:        params.UserID,
		Messages:      model.MessagePairs{},
		CreatedAt:     now,
		UpdatedAt:     now,
		LastMessageAt: now,
	}
	r.interactions[interaction.ID] = interaction
	cp := *interaction
	return &cp, nil
}

func (r memInteractionRepo) FindByIDForUser(ctx context.Context, id, userID string) (*model.Interaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	interaction, ok := r.interactions[id]
	if !ok || interaction.UserID != userID {
		return nil, nil
	}
	cp := *interaction
	cp.Messages = slices.Clone(interaction.Messages)
	return &cp, nil
}

func (r memInteractionRepo) AppendMessage(ctx context.Context, id string, pair model.MessagePair) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return false, r.failWith
	}
	interaction, ok := r.interactions[id]
	if !ok {
		return false, nil
	}
	interaction.Messages = append(interaction.Messages, pair)
	interaction.UpdatedAt = pair.Timestamp
	interaction.LastMessageAt = pair.Timestamp
	return true, nil
}

func (r memInteractionRepo) Delete(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.interactions[id]; !ok {
		return false, nil
	}
	delete(r.interactions, id)
	return true, nil
}

type memUserRepo struct{ *memStore }

func (r memUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	cp := *user
	return &cp, nil
}

func (r memUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			cp := *user
			return &cp, nil
		}
	}
	return nil, nil
}

func (r memUserRepo) Create(ctx context.Context, params model.CreateUserParams) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == params.Email {
			return nil, repository.ErrDuplicate
		}
	}
	now := time.Now().UTC()
	user := &model.User{
		ID:           params.ID,
		Email:        params.Email,
		PasswordHash: params.PasswordHash,
		Name:         params.Name,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.users[user.ID] = user
	cp := *user
	return &cp, nil
}

type memRefreshTokenRepo struct{ *memStore }

func (r memRefreshTokenRepo) Create(ctx context.Context, params model.CreateRefreshTokenParams) (*model.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	token := &model.RefreshToken{
		ID:        params.ID,
		UserID:    params.UserID,
		TokenHash: params.TokenHash,
		ExpiresAt: params.ExpiresAt,
		CreatedAt: time.Now().UTC(),
	}
	r.refreshTokens[token.ID] = token
	cp := *token
	return &cp, nil
}

func (r memRefreshTokenRepo) FindActive(ctx context.Context, id, tokenHash string) (*model.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	token, ok := r.refreshTokens[id]
	if !ok || token.TokenHash != tokenHash || token.IsRevoked || !token.ExpiresAt.After(time.Now()) {
		return nil, nil
	}
	cp := *token
	return &cp, nil
}

func (r memRefreshTokenRepo) Revoke(ctx context.Context, tokenHash string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, token := range r.refreshTokens {
		if token.TokenHash == tokenHash && !token.IsRevoked {
			token.IsRevoked = true
			return true, nil
		}
	}
	return false, nil
}

func (r memRefreshTokenRepo) RevokeExpired(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, token := range r.refreshTokens {
		if !token.IsRevoked && !token.ExpiresAt.After(time.Now()) {
			token.IsRevoked = true
			n++
		}
	}
	return n, nil
}

// scriptedGenerator replies with a fixed text and records what it saw.
type scriptedGenerator struct {
	mu    sync.Mutex
	reply string
	err   error
	calls [][]llm.Turn
}

func (g *scriptedGenerator) Generate(ctx context.Context, turns []llm.Turn) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, turns)
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

func (g *scriptedGenerator) lastTurns() []llm.Turn {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.calls) == 0 {
		return nil
	}
	return g.calls[len(g.calls)-1]
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []sse.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, userID string, event sse.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type chatFixture struct {
	service   *ChatService
	store     *memStore
	cache     *cache.Cache
	mr        *miniredis.Miniredis
	generator *scriptedGenerator
	events    *recordingPublisher
}

const (
	testSessionTTL     = 24 * time.Hour
	testInteractionTTL = 30 * time.Minute
)

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	client, err := redisclient.NewClient("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	store := newMemStore()
	c := cache.New(client, testSessionTTL, testInteractionTTL)
	generator := &scriptedGenerator{reply: "Hello from the assistant"}
	events := &recordingPublisher{}

	return &chatFixture{
		service:   NewChatService(memSessionRepo{store}, memInteractionRepo{store}, c, generator, events, 20),
		store:     store,
		cache:     c,
		mr:        mr,
		generator: generator,
		events:    events,
	}
}
