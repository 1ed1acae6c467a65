package service

import (
	"context"
	"sync"
	"time"

	"github.com/tacops-cl/community-server/internal/domain"
	"github.com/tacops-cl/community-server/internal/repository"
)

// =============================================================================
// Mock Repository Types
// =============================================================================

// mockUserRepository is an in-memory implementation of
// repository.UserRepository.
type mockUserRepository struct {
	mu     sync.Mutex
	users  map[int64]*domain.User
	stats  map[int64]*domain.UserStats
	nextID int64

	createErr error
	getErr    error
	patchErr  error
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{
		users:  make(map[int64]*domain.User),
		stats:  make(map[int64]*domain.UserStats),
		nextID: 1,
	}
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	for _, u := range m.users {
		if u.Username == user.Username || u.Email == user.Email {
			return domain.ErrUserAlreadyExists
		}
	}
	user.ID = m.nextID
	m.nextID++
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *mockUserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *mockUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, u := range m.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *mockUserRepository) List(ctx context.Context) ([]*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.User
	for _, u := range m.users {
		cp := *u
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockUserRepository) Count(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.users)), nil
}

func (m *mockUserRepository) ApplyPatch(ctx context.Context, id int64, patch repository.UserPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.patchErr != nil {
		return m.patchErr
	}
	u, ok := m.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	if patch.Username != nil {
		for uid, other := range m.users {
			if uid != id && other.Username == *patch.Username {
				return domain.ErrUserAlreadyExists
			}
		}
		u.Username = *patch.Username
	}
	if patch.Email != nil {
		for uid, other := range m.users {
			if uid != id && other.Email == *patch.Email {
				return domain.ErrUserAlreadyExists
			}
		}
		u.Email = *patch.Email
	}
	if patch.Role != nil {
		u.Role = *patch.Role
	}
	if patch.Avatar != nil {
		u.Avatar = *patch.Avatar
	}
	if patch.Status != nil {
		u.Status = *patch.Status
	}
	if patch.SetClan {
		u.Clan = patch.Clan
	}
	return nil
}

func (m *mockUserRepository) SetActive(ctx context.Context, id int64, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.IsActive = active
	return nil
}

func (m *mockUserRepository) SetOnline(ctx context.Context, id int64, online bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.IsOnline = online
	return nil
}

func (m *mockUserRepository) TouchLastLogin(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	now := time.Now().UTC()
	u.LastLogin = &now
	return nil
}

func (m *mockUserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

func (m *mockUserRepository) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.users, id)
	delete(m.stats, id)
	return nil
}

func (m *mockUserRepository) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username || u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockUserRepository) CreateStats(ctx context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats[userID] = &domain.UserStats{UserID: userID}
	return nil
}

func (m *mockUserRepository) Ranking(ctx context.Context) ([]*repository.RankedUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*repository.RankedUser
	for id, u := range m.users {
		if !u.IsActive {
			continue
		}
		stats, ok := m.stats[id]
		if !ok {
			stats = &domain.UserStats{UserID: id}
		}
		ucp, scp := *u, *stats
		out = append(out, &repository.RankedUser{User: &ucp, Stats: &scp})
	}
	return out, nil
}

// mockSessionRepository is an in-memory implementation of
// repository.SessionRepository with the same CAS semantics as the real
// backends.
type mockSessionRepository struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session

	createErr error
	getErr    error
}

func newMockSessionRepository() *mockSessionRepository {
	return &mockSessionRepository{sessions: make(map[string]*domain.Session)}
}

func (m *mockSessionRepository) Create(ctx context.Context, session *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	cp := *session
	m.sessions[session.Token] = &cp
	return nil
}

func (m *mockSessionRepository) Get(ctx context.Context, token string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	s, ok := m.sessions[token]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *mockSessionRepository) UpdateExpiry(ctx context.Context, token string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[token]
	if !ok {
		return repository.ErrNotFound
	}
	s.ExpiresAt = expiresAt
	return nil
}

func (m *mockSessionRepository) Rotate(ctx context.Context, oldToken, newToken string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[oldToken]
	if !ok {
		return repository.ErrNotFound
	}
	delete(m.sessions, oldToken)
	s.Token = newToken
	s.ExpiresAt = expiresAt
	m.sessions[newToken] = s
	return nil
}

func (m *mockSessionRepository) Delete(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
	return nil
}

func (m *mockSessionRepository) DeleteByUserID(ctx context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for token, s := range m.sessions {
		if s.UserID == userID {
			delete(m.sessions, token)
		}
	}
	return nil
}

func (m *mockSessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	var n int64
	for token, s := range m.sessions {
		if s.Expired(now) {
			delete(m.sessions, token)
			n++
		}
	}
	return n, nil
}

func (m *mockSessionRepository) Count(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.sessions)), nil
}

// mockNewsRepository is an in-memory implementation of
// repository.NewsRepository.
type mockNewsRepository struct {
	mu     sync.Mutex
	items  map[int64]*domain.NewsItem
	likes  map[int64]map[int64]bool // newsID -> userID set
	nextID int64

	toggleErr error
}

func newMockNewsRepository() *mockNewsRepository {
	return &mockNewsRepository{
		items:  make(map[int64]*domain.NewsItem),
		likes:  make(map[int64]map[int64]bool),
		nextID: 1,
	}
}

func (m *mockNewsRepository) Create(ctx context.Context, item *domain.NewsItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item.ID = m.nextID
	m.nextID++
	cp := *item
	m.items[item.ID] = &cp
	return nil
}

func (m *mockNewsRepository) GetByID(ctx context.Context, id int64) (*domain.NewsItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *item
	return &cp, nil
}

func (m *mockNewsRepository) List(ctx context.Context) ([]*domain.NewsItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.NewsItem
	for _, item := range m.items {
		cp := *item
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockNewsRepository) ApplyPatch(ctx context.Context, id int64, patch repository.NewsPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return repository.ErrNotFound
	}
	if patch.Title != nil {
		item.Title = *patch.Title
	}
	if patch.Content != nil {
		item.Content = *patch.Content
	}
	if patch.Image != nil {
		item.Image = *patch.Image
	}
	if patch.Author != nil {
		item.Author = *patch.Author
	}
	if patch.IsPinned != nil {
		item.IsPinned = *patch.IsPinned
	}
	return nil
}

func (m *mockNewsRepository) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.items, id)
	delete(m.likes, id)
	return nil
}

func (m *mockNewsRepository) IncrementViews(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return repository.ErrNotFound
	}
	item.Views++
	return nil
}

func (m *mockNewsRepository) ToggleLike(ctx context.Context, newsID, userID int64) (bool, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.toggleErr != nil {
		return false, 0, m.toggleErr
	}
	if _, ok := m.items[newsID]; !ok {
		return false, 0, repository.ErrNotFound
	}
	set, ok := m.likes[newsID]
	if !ok {
		set = make(map[int64]bool)
		m.likes[newsID] = set
	}
	var liked bool
	if set[userID] {
		delete(set, userID)
	} else {
		set[userID] = true
		liked = true
	}
	return liked, int64(len(set)), nil
}

// mockCommentRepository is an in-memory implementation of
// repository.CommentRepository with compare-and-set moderation
// transitions.
type mockCommentRepository struct {
	mu       sync.Mutex
	comments map[int64]*domain.Comment
	nextID   int64
}

func newMockCommentRepository() *mockCommentRepository {
	return &mockCommentRepository{
		comments: make(map[int64]*domain.Comment),
		nextID:   1,
	}
}

func (m *mockCommentRepository) Create(ctx context.Context, comment *domain.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	comment.ID = m.nextID
	m.nextID++
	cp := *comment
	m.comments[comment.ID] = &cp
	return nil
}

func (m *mockCommentRepository) GetByID(ctx context.Context, id int64) (*domain.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.comments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *mockCommentRepository) ListVisibleByNews(ctx context.Context, newsID int64) ([]*domain.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Comment
	for _, c := range m.comments {
		if c.NewsID == newsID && !c.IsDeleted {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockCommentRepository) SoftDelete(ctx context.Context, id int64, deletedBy int64, deletedAt time.Time, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.comments[id]
	if !ok || c.IsDeleted {
		return repository.ErrNotFound
	}
	c.IsDeleted = true
	c.DeletedBy = &deletedBy
	c.DeletedAt = &deletedAt
	c.DeletionReason = &reason
	return nil
}

func (m *mockCommentRepository) Restore(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.comments[id]
	if !ok || !c.IsDeleted {
		return repository.ErrNotFound
	}
	c.IsDeleted = false
	c.DeletedBy = nil
	c.DeletedAt = nil
	c.DeletionReason = nil
	return nil
}

func (m *mockCommentRepository) ListDeleted(ctx context.Context) ([]*domain.DeletedComment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.DeletedComment
	for _, c := range m.comments {
		if !c.IsDeleted {
			continue
		}
		out = append(out, &domain.DeletedComment{
			ID:             c.ID,
			NewsID:         c.NewsID,
			Content:        c.Content,
			CreatedAt:      c.CreatedAt,
			DeletedAt:      c.DeletedAt,
			DeletionReason: c.DeletionReason,
		})
	}
	return out, nil
}

// mockClanRepository is an in-memory implementation of
// repository.ClanRepository. Member tag cascades mutate the linked
// user repository when one is attached.
type mockClanRepository struct {
	mu     sync.Mutex
	clans  map[int64]*domain.Clan
	nextID int64

	users *mockUserRepository
}

func newMockClanRepository() *mockClanRepository {
	return &mockClanRepository{
		clans:  make(map[int64]*domain.Clan),
		nextID: 1,
	}
}

func (m *mockClanRepository) Create(ctx context.Context, clan *domain.Clan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.clans {
		if c.Name == clan.Name || c.Tag == clan.Tag {
			return domain.ErrClanAlreadyExists
		}
	}
	clan.ID = m.nextID
	m.nextID++
	cp := *clan
	m.clans[clan.ID] = &cp
	return nil
}

func (m *mockClanRepository) GetByID(ctx context.Context, id int64) (*domain.Clan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clans[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *mockClanRepository) List(ctx context.Context) ([]*domain.Clan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Clan
	for _, c := range m.clans {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockClanRepository) ExistsByNameOrTag(ctx context.Context, name, tag string, excludeID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, c := range m.clans {
		if id == excludeID {
			continue
		}
		if c.Name == name || c.Tag == tag {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockClanRepository) ApplyPatch(ctx context.Context, id int64, oldTag string, patch repository.ClanPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clans[id]
	if !ok {
		return repository.ErrNotFound
	}
	if patch.Name != nil {
		c.Name = *patch.Name
	}
	if patch.Tag != nil && *patch.Tag != oldTag {
		c.Tag = *patch.Tag
		m.cascadeTag(oldTag, *patch.Tag)
	} else if patch.Tag != nil {
		c.Tag = *patch.Tag
	}
	if patch.Logo != nil {
		c.Logo = *patch.Logo
	}
	if patch.Description != nil {
		c.Description = *patch.Description
	}
	return nil
}

func (m *mockClanRepository) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clans[id]
	if !ok {
		return repository.ErrNotFound
	}
	if m.users != nil {
		m.users.mu.Lock()
		for _, u := range m.users.users {
			if u.Clan != nil && *u.Clan == c.Tag {
				u.Clan = nil
			}
		}
		m.users.mu.Unlock()
	}
	delete(m.clans, id)
	return nil
}

func (m *mockClanRepository) cascadeTag(oldTag, newTag string) {
	if m.users == nil {
		return
	}
	m.users.mu.Lock()
	defer m.users.mu.Unlock()
	for _, u := range m.users.users {
		if u.Clan != nil && *u.Clan == oldTag {
			tag := newTag
			u.Clan = &tag
		}
	}
}

// mockMessageRepository is an in-memory implementation of
// repository.MessageRepository.
type mockMessageRepository struct {
	mu       sync.Mutex
	messages []*domain.Message
	nextID   int64
}

func newMockMessageRepository() *mockMessageRepository {
	return &mockMessageRepository{nextID: 1}
}

func (m *mockMessageRepository) Create(ctx context.Context, msg *domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg.ID = m.nextID
	m.nextID++
	cp := *msg
	m.messages = append(m.messages, &cp)
	return nil
}

func (m *mockMessageRepository) Conversation(ctx context.Context, userID, otherID int64) ([]*domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Message
	for _, msg := range m.messages {
		if (msg.FromUserID == userID && msg.ToUserID == otherID) ||
			(msg.FromUserID == otherID && msg.ToUserID == userID) {
			cp := *msg
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockMessageRepository) MarkRead(ctx context.Context, recipientID, senderID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.messages {
		if msg.ToUserID == recipientID && msg.FromUserID == senderID {
			msg.IsRead = true
		}
	}
	return nil
}

func (m *mockMessageRepository) UnreadCounts(ctx context.Context, recipientID int64) ([]*domain.UnreadCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[int64]int64)
	for _, msg := range m.messages {
		if msg.ToUserID == recipientID && !msg.IsRead {
			counts[msg.FromUserID]++
		}
	}
	var out []*domain.UnreadCount
	for from, n := range counts {
		out = append(out, &domain.UnreadCount{FromUserID: from, Count: n})
	}
	return out, nil
}
