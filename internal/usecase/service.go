package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"messenger-store/internal/domain"
)

type MessageStore interface {
	Append(ctx context.Context, msg domain.Message) error
	Page(ctx context.Context, conversationID domain.ID, before time.Time, limit int) ([]domain.Message, error)
}

type ConversationIndex interface {
	Touch(ctx context.Context, s domain.ConversationSummary) error
	Page(ctx context.Context, userID domain.ID, before time.Time, limit int) ([]domain.ConversationSummary, error)
	Lookup(ctx context.Context, userID, conversationID domain.ID) (domain.ConversationSummary, bool, error)
	FindWithPeer(ctx context.Context, userID, peerID domain.ID) (domain.ConversationSummary, bool, error)
}

type ParamGetter interface {
	GetParametersByPath(ctx context.Context, path string) (map[string]string, error)
}

// Limits bounds page sizes and message payloads.
type Limits struct {
	DefaultPage int
	MaxPage     int
	MaxContent  int
}

func (l Limits) validate() error {
	if l.DefaultPage <= 0 || l.MaxPage <= 0 || l.MaxContent <= 0 {
		return errors.New("limits must be positive")
	}
	if l.DefaultPage > l.MaxPage {
		return errors.New("default page limit exceeds max page limit")
	}
	return nil
}

// Service coordinates the message store and the conversation index for the
// messenger's send and read paths.
type Service struct {
	messages      MessageStore
	conversations ConversationIndex
	params        ParamGetter
	paramPrefix   string

	limitsMu     sync.RWMutex
	limitsLoaded bool
	limits       Limits
}

// NewService builds a Service. params may be nil, in which case limits are
// never overridden from Parameter Store.
func NewService(m MessageStore, c ConversationIndex, params ParamGetter, paramPrefix string, limits Limits) (*Service, error) {
	if m == nil {
		return nil, errors.New("usecase: message store must not be nil")
	}
	if c == nil {
		return nil, errors.New("usecase: conversation index must not be nil")
	}
	if err := limits.validate(); err != nil {
		return nil, fmt.Errorf("usecase: %w", err)
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	return &Service{
		messages:      m,
		conversations: c,
		params:        params,
		paramPrefix:   paramPrefix,
		limits:        limits,
		limitsLoaded:  params == nil || paramPrefix == "",
	}, nil
}

func (s *Service) ensureLimits(ctx context.Context) (Limits, error) {
	s.limitsMu.RLock()
	if s.limitsLoaded {
		l := s.limits
		s.limitsMu.RUnlock()
		return l, nil
	}
	s.limitsMu.RUnlock()

	s.limitsMu.Lock()
	defer s.limitsMu.Unlock()
	if s.limitsLoaded {
		return s.limits, nil
	}

	l, err := s.loadSSMLimits(ctx, s.limits)
	if err != nil {
		return Limits{}, err
	}
	s.limits = l
	s.limitsLoaded = true
	return l, nil
}

// loadSSMLimits applies the overrides found under <prefix>/config. Missing
// keys keep the configured value.
func (s *Service) loadSSMLimits(ctx context.Context, base Limits) (Limits, error) {
	vals, err := s.params.GetParametersByPath(ctx, s.paramPrefix+"/config")
	if err != nil {
		return Limits{}, fmt.Errorf("usecase: load limits: %w", err)
	}

	l := base
	for key, dst := range map[string]*int{
		"default_page_limit": &l.DefaultPage,
		"max_page_limit":     &l.MaxPage,
		"max_content_length": &l.MaxContent,
	} {
		raw, ok := vals[key]
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return Limits{}, fmt.Errorf("usecase: parse %s: %w", key, err)
		}
		*dst = n
	}
	if err := l.validate(); err != nil {
		return Limits{}, fmt.Errorf("usecase: %w", err)
	}
	return l, nil
}

var now = func() time.Time {
	return time.Now().UTC()
}

var newUUID = func() domain.ID {
	return uuid.New()
}
