package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/weiawesome/wes-io-chat/internal/domain"
	"github.com/weiawesome/wes-io-chat/internal/idgen"
	"github.com/weiawesome/wes-io-chat/internal/repository"
	"github.com/weiawesome/wes-io-chat/pkg/log"
)

// MessageOptions tunes the message log.
type MessageOptions struct {
	MaxContentLength int
	HistoryPageLimit int
	// AppendRetries bounds how often a lost sequence race is retried.
	AppendRetries int
	// SeqCacheSize bounds how many rooms keep their last seq in memory.
	SeqCacheSize int
}

type messageServiceImpl struct {
	repo  repository.MessageRepository
	rooms RoomService
	ids   *idgen.ULIDGenerator
	opts  MessageOptions
	now   func() time.Time

	// seqs caches the last stored seq per room. Entries are only written
	// while the room lock is held; an evicted room reloads from the store.
	seqs *lru.Cache[string, int64]
}

// NewMessageService creates a message log backed by repo. Membership is
// checked against rooms under the room lock.
func NewMessageService(repo repository.MessageRepository, rooms RoomService, opts MessageOptions) MessageService {
	if opts.MaxContentLength <= 0 {
		opts.MaxContentLength = 4000
	}
	if opts.HistoryPageLimit <= 0 {
		opts.HistoryPageLimit = 100
	}
	if opts.AppendRetries < 0 {
		opts.AppendRetries = 0
	}
	if opts.SeqCacheSize <= 0 {
		opts.SeqCacheSize = 10000
	}
	// lru.New only fails on a non-positive size.
	seqs, _ := lru.New[string, int64](opts.SeqCacheSize)
	return &messageServiceImpl{
		repo:  repo,
		rooms: rooms,
		ids:   idgen.NewULIDGenerator(),
		opts:  opts,
		now:   func() time.Time { return time.Now().UTC() },
		seqs:  seqs,
	}
}

// Append stores a message from sender with the next sequence number of
// the room. It returns only after the store acknowledged the write.
func (s *messageServiceImpl) Append(ctx context.Context, roomID, sender, content string) (*domain.Message, error) {
	if err := validIdentity(sender); err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, domain.ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > s.opts.MaxContentLength {
		return nil, domain.ErrContentTooLong
	}

	var msg *domain.Message
	err := s.rooms.WithMembership(ctx, roomID, sender, func(ctx context.Context) error {
		var err error
		msg, err = s.appendLocked(ctx, roomID, sender, content)
		return err
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *messageServiceImpl) appendLocked(ctx context.Context, roomID, sender, content string) (*domain.Message, error) {
	l := log.Ctx(ctx)

	id, err := s.ids.Generate()
	if err != nil {
		return nil, err
	}

	for attempt := 0; ; attempt++ {
		seq, err := s.nextSeq(ctx, roomID)
		if err != nil {
			return nil, err
		}

		msg := &domain.Message{
			ID:        id,
			RoomID:    roomID,
			Seq:       seq,
			SenderID:  sender,
			Content:   content,
			CreatedAt: s.now(),
		}
		err = s.repo.Append(ctx, msg)
		if err == nil {
			s.storeSeq(roomID, seq)
			return msg, nil
		}

		// The cached seq is stale or the write outcome is unknown.
		s.forgetSeq(roomID)
		if !errors.Is(err, domain.ErrDuplicateSeq) {
			return nil, err
		}
		if attempt >= s.opts.AppendRetries {
			return nil, domain.StorageError("append message", err)
		}
		l.Warn().Str(log.FieldRoomID, roomID).Int64(log.FieldSeq, seq).Int("attempt", attempt+1).
			Msg("sequence already taken, reloading")
	}
}

func (s *messageServiceImpl) nextSeq(ctx context.Context, roomID string) (int64, error) {
	if last, ok := s.seqs.Get(roomID); ok {
		return last + 1, nil
	}

	last, err := s.repo.LastSeq(ctx, roomID)
	if err != nil {
		return 0, err
	}
	return last + 1, nil
}

func (s *messageServiceImpl) storeSeq(roomID string, seq int64) {
	s.seqs.Add(roomID, seq)
}

func (s *messageServiceImpl) forgetSeq(roomID string) {
	s.seqs.Remove(roomID)
}

// History returns the room's full log in seq order. Non-members get
// domain.ErrForbidden.
func (s *messageServiceImpl) History(ctx context.Context, roomID, requester string) ([]domain.Message, error) {
	if err := s.authorizeRead(ctx, roomID, requester); err != nil {
		return nil, err
	}
	msgs, err := s.repo.List(ctx, roomID, 0, 0)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}
	return msgs, nil
}

// HistoryPage returns up to limit messages with seq greater than afterSeq.
func (s *messageServiceImpl) HistoryPage(ctx context.Context, roomID, requester string, afterSeq int64, limit int) (*domain.HistoryResponse, error) {
	if err := s.authorizeRead(ctx, roomID, requester); err != nil {
		return nil, err
	}
	if afterSeq < 0 {
		afterSeq = 0
	}
	if limit <= 0 || limit > s.opts.HistoryPageLimit {
		limit = s.opts.HistoryPageLimit
	}

	// Fetch one extra row to learn whether another page exists.
	msgs, err := s.repo.List(ctx, roomID, afterSeq, limit+1)
	if err != nil {
		return nil, err
	}

	resp := &domain.HistoryResponse{RoomID: roomID, Messages: msgs}
	if len(msgs) > limit {
		resp.Messages = msgs[:limit]
		resp.HasMore = true
	}
	if resp.Messages == nil {
		resp.Messages = []domain.Message{}
	}
	if n := len(resp.Messages); n > 0 {
		resp.NextSeq = resp.Messages[n-1].Seq
	}
	return resp, nil
}

func (s *messageServiceImpl) authorizeRead(ctx context.Context, roomID, requester string) error {
	if err := validIdentity(requester); err != nil {
		return err
	}
	err := s.rooms.CheckMember(ctx, roomID, requester)
	if errors.Is(err, domain.ErrNotMember) {
		return domain.ErrForbidden
	}
	return err
}
