package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"versus-backend/internal/broadcast"
	"versus-backend/internal/domain"
	"versus-backend/internal/repository"
	"versus-backend/pkg/logger"
)

// RecentCommentLimit is the number of comments returned for a room.
const RecentCommentLimit = 50

var (
	votedPrefixes = []string{"Team", "Warrior", "Fan", "Defender", "Captain", "Super"}
	anonNames     = []string{"Agente_007", "Anon_Spectator", "Ghost_Viewer", "Mystery_Guest", "Lurker_Max", "Shadow_Walker"}
)

// ErrCommentTooLong is returned for comments over domain.MaxCommentLength.
var ErrCommentTooLong = fmt.Errorf("comment exceeds %d characters", domain.MaxCommentLength)

type SocialService struct {
	battles   repository.BattleRepository
	comments  repository.CommentRepository
	reactions repository.ReactionRepository
	publisher Publisher
	logger    *logger.Logger
	now       func() time.Time
	intn      func(n int) int
}

func NewSocialService(repos *repository.Repositories, publisher Publisher, log *logger.Logger) *SocialService {
	return &SocialService{
		battles:   repos.Battle,
		comments:  repos.Comment,
		reactions: repos.Reaction,
		publisher: publisher,
		logger:    log.Component("social"),
		now:       time.Now,
		intn:      rand.IntN,
	}
}

// ListComments returns the most recent comments of a room, newest first.
func (s *SocialService) ListComments(ctx context.Context, battleID string) ([]domain.Comment, error) {
	comments, err := s.comments.Recent(ctx, battleID, RecentCommentLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load comments: %w", err)
	}
	return comments, nil
}

// PostComment stores a comment and broadcasts it to the room. The author's
// team is their current vote; a missing nickname is generated from it.
func (s *SocialService) PostComment(ctx context.Context, battleID string, req domain.CommentRequest) (*domain.Comment, error) {
	if utf8.RuneCountInString(req.Content) > domain.MaxCommentLength {
		return nil, ErrCommentTooLong
	}

	battle, err := s.battles.Get(ctx, battleID)
	if err != nil && !errors.Is(err, domain.ErrBattleNotFound) {
		return nil, err
	}

	var team string
	if battle != nil {
		team, _ = battle.DeviceVote(req.Fingerprint)
	}

	nickname := strings.TrimSpace(req.Nickname)
	if nickname != "" {
		taken, err := s.comments.NicknameTaken(ctx, battleID, nickname, req.Fingerprint)
		if err != nil {
			return nil, fmt.Errorf("failed to check nickname: %w", err)
		}
		if taken {
			return nil, domain.ErrNicknameTaken
		}
	} else {
		nickname = s.generateNickname(battle, team)
	}

	comment := &domain.Comment{
		ID:          uuid.NewString(),
		BattleID:    battleID,
		Fingerprint: req.Fingerprint,
		Nickname:    nickname,
		Team:        team,
		Content:     req.Content,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.comments.Add(ctx, comment); err != nil {
		return nil, fmt.Errorf("failed to store comment: %w", err)
	}

	s.publisher.Publish(broadcast.NewEvent(broadcast.EventChatMessage, battleID, comment))
	s.logger.Debug("Comment posted",
		zap.String("battle_id", battleID),
		zap.String("nickname", nickname))
	return comment, nil
}

func (s *SocialService) generateNickname(battle *domain.Battle, team string) string {
	if battle == nil {
		return "Anon_" + uuid.NewString()[:4]
	}
	if i := battle.OptionIndex(team); i >= 0 {
		name := strings.ReplaceAll(battle.Options[i].Name, " ", "")
		return fmt.Sprintf("%s%s_%d", votedPrefixes[s.intn(len(votedPrefixes))], name, s.intn(100))
	}
	return fmt.Sprintf("%s_%d", anonNames[s.intn(len(anonNames))], s.intn(1000))
}

// PostReaction stores a reaction and broadcasts it to the room.
func (s *SocialService) PostReaction(ctx context.Context, battleID string, req domain.ReactionRequest) (*domain.Reaction, error) {
	reaction := &domain.Reaction{
		ID:          uuid.NewString(),
		BattleID:    battleID,
		OptionID:    req.OptionID,
		Fingerprint: req.Fingerprint,
		Type:        req.Type,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.reactions.Add(ctx, reaction); err != nil {
		return nil, fmt.Errorf("failed to store reaction: %w", err)
	}

	s.publisher.Publish(broadcast.NewEvent(broadcast.EventReaction, battleID, reaction))
	return reaction, nil
}
