package platform

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/spec-kit/ticketbot/internal/domain"
)

// Memory is an in-process Platform for local runs and tests.
type Memory struct {
	mu       sync.Mutex
	seq      int
	channels map[string]*memoryChannel
	failures map[string]error
	now      func() time.Time
}

type memoryChannel struct {
	Channel
	members  map[string]Access
	roles    map[string]Access
	messages []domain.Message
}

var _ Platform = (*Memory)(nil)

// NewMemory returns an empty platform.
func NewMemory() *Memory {
	return &Memory{
		channels: map[string]*memoryChannel{},
		failures: map[string]error{},
		now:      time.Now,
	}
}

// Fail makes op ("create", "member_access", "role_access", "delete", "post",
// "recent", "list") return err until cleared with a nil err.
func (m *Memory) Fail(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, op)
		return
	}
	m.failures[op] = err
}

func (m *Memory) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

// AddChannel registers an existing channel, as if created outside the service.
func (m *Memory) AddChannel(ch Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch.ID == "" {
		ch.ID = m.nextID("ch")
	}
	m.channels[ch.ID] = &memoryChannel{Channel: ch, members: map[string]Access{}, roles: map[string]Access{}}
}

func (m *Memory) CreateChannel(_ context.Context, spec ChannelSpec) (*Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failures["create"]; err != nil {
		return nil, err
	}
	ch := &memoryChannel{
		Channel: Channel{
			ID:         m.nextID("ch"),
			TenantID:   spec.TenantID,
			CategoryID: spec.CategoryID,
			Name:       spec.Name,
			Topic:      spec.Topic,
			CreatedAt:  m.now(),
		},
		members: map[string]Access{},
		roles:   map[string]Access{},
	}
	for _, ow := range spec.Overwrites {
		if ow.Kind == TargetMember {
			ch.members[ow.TargetID] = ow.Access
		} else {
			ch.roles[ow.TargetID] = ow.Access
		}
	}
	m.channels[ch.ID] = ch
	out := ch.Channel
	return &out, nil
}

func (m *Memory) SetMemberAccess(_ context.Context, channelID, userID string, access Access) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failures["member_access"]; err != nil {
		return err
	}
	ch, ok := m.channels[channelID]
	if !ok {
		return ErrChannelNotFound
	}
	ch.members[userID] = access
	return nil
}

func (m *Memory) SetRoleAccess(_ context.Context, channelID, roleID string, access Access) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failures["role_access"]; err != nil {
		return err
	}
	ch, ok := m.channels[channelID]
	if !ok {
		return ErrChannelNotFound
	}
	ch.roles[roleID] = access
	return nil
}

func (m *Memory) DeleteChannel(_ context.Context, channelID, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failures["delete"]; err != nil {
		return err
	}
	if _, ok := m.channels[channelID]; !ok {
		return ErrChannelNotFound
	}
	delete(m.channels, channelID)
	return nil
}

func (m *Memory) PostMessage(_ context.Context, channelID, content string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failures["post"]; err != nil {
		return "", err
	}
	ch, ok := m.channels[channelID]
	if !ok {
		return "", ErrChannelNotFound
	}
	msg := domain.Message{
		ID:        m.nextID("msg"),
		AuthorID:  domain.SystemActorID,
		Author:    "ticketbot",
		Content:   content,
		CreatedAt: m.now(),
	}
	ch.messages = append(ch.messages, msg)
	return msg.ID, nil
}

// AddMessage appends a member message to a channel.
func (m *Memory) AddMessage(channelID string, msg domain.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.channels[channelID]
	if !ok {
		return
	}
	if msg.ID == "" {
		msg.ID = m.nextID("msg")
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = m.now()
	}
	ch.messages = append(ch.messages, msg)
}

func (m *Memory) RecentMessages(_ context.Context, channelID string, limit int) ([]domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failures["recent"]; err != nil {
		return nil, err
	}
	ch, ok := m.channels[channelID]
	if !ok {
		return nil, ErrChannelNotFound
	}
	msgs := ch.messages
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return append([]domain.Message(nil), msgs...), nil
}

func (m *Memory) ListChannels(_ context.Context, tenantID, categoryID string) ([]Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failures["list"]; err != nil {
		return nil, err
	}
	var out []Channel
	for _, ch := range m.channels {
		if ch.TenantID != tenantID {
			continue
		}
		if categoryID != "" && ch.CategoryID != categoryID {
			continue
		}
		out = append(out, ch.Channel)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Exists reports whether the channel is still present.
func (m *Memory) Exists(channelID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.channels[channelID]
	return ok
}

// MemberAccess returns the member overwrite on a channel.
func (m *Memory) MemberAccess(channelID, userID string) (Access, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.channels[channelID]
	if !ok {
		return Access{}, false
	}
	a, ok := ch.members[userID]
	return a, ok
}

// RoleAccess returns the role overwrite on a channel.
func (m *Memory) RoleAccess(channelID, roleID string) (Access, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.channels[channelID]
	if !ok {
		return Access{}, false
	}
	a, ok := ch.roles[roleID]
	return a, ok
}

// Messages returns every message posted to a channel.
func (m *Memory) Messages(channelID string) []domain.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.channels[channelID]
	if !ok {
		return nil
	}
	return append([]domain.Message(nil), ch.messages...)
}
