package service

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"versus-backend/internal/domain"
	"versus-backend/internal/generator"
	"versus-backend/internal/metrics"
	"versus-backend/internal/repository"
	"versus-backend/pkg/logger"
)

// DefaultTheme is used whenever no generated theme is available.
var DefaultTheme = domain.Theme{
	OptionAColor: "#ef4444",
	OptionBColor: "#3b82f6",
	Background:   "linear-gradient(to right, #1f2937, #111827)",
}

// MemeTemplate is a caption layout; Boxes is the number of captions it takes.
type MemeTemplate struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Boxes int    `json:"boxes"`
}

var memeTemplates = []MemeTemplate{
	{ID: "drake", Name: "Drake Hotline Bling", Boxes: 2},
	{ID: "distracted-boyfriend", Name: "Distracted Boyfriend", Boxes: 3},
	{ID: "two-buttons", Name: "Two Buttons", Boxes: 2},
	{ID: "change-my-mind", Name: "Change My Mind", Boxes: 1},
}

// RetrySettings bounds generator calls at both decoration call sites.
type RetrySettings struct {
	MaxAttempts int
	Delay       time.Duration
	Timeout     time.Duration
}

// DecorationService produces advisory themes and meme captions. Generator
// failures always degrade to fixed fallbacks.
type DecorationService struct {
	gen      generator.TextGenerator
	repo     repository.BattleRepository
	cache    *CacheService
	settings RetrySettings
	metrics  *metrics.Metrics
	logger   *logger.Logger

	group  singleflight.Group
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex // orders wg.Add against Close
	closed bool
}

// NewDecorationService creates the service. gen may be nil, in which case
// every call returns its fallback.
func NewDecorationService(gen generator.TextGenerator, repo repository.BattleRepository, cache *CacheService, settings RetrySettings, m *metrics.Metrics, log *logger.Logger) *DecorationService {
	if settings.Timeout <= 0 {
		settings.Timeout = 10 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &DecorationService{
		gen:      gen,
		repo:     repo,
		cache:    cache,
		settings: settings,
		metrics:  m,
		logger:   log.Component("decoration"),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func retryPolicy[T any](s *DecorationService, kind string, fallback func() T) generator.RetryPolicy[T] {
	return generator.RetryPolicy[T]{
		MaxAttempts: s.settings.MaxAttempts,
		Delay:       s.settings.Delay,
		Fallback:    fallback,
		OnAttempt: func(attempt int, err error) {
			s.metrics.GeneratorCalls.WithLabelValues(kind, "retry").Inc()
			s.logger.Warn("Generator attempt failed",
				zap.String("kind", kind),
				zap.Int("attempt", attempt),
				zap.Error(err))
		},
	}
}

func (s *DecorationService) record(kind string, generated bool) {
	result := "ok"
	if !generated {
		result = "fallback"
	}
	s.metrics.GeneratorCalls.WithLabelValues(kind, result).Inc()
}

// Theme asks the generator for a color theme for b.
func (s *DecorationService) Theme(ctx context.Context, b *domain.Battle) domain.Theme {
	if s.gen == nil {
		s.record("theme", false)
		return DefaultTheme
	}

	prompt := themePrompt(b)
	policy := retryPolicy(s, "theme", func() domain.Theme { return DefaultTheme })
	theme, generated := policy.Do(ctx, func(ctx context.Context) (domain.Theme, error) {
		text, err := s.gen.Generate(ctx, prompt)
		if err != nil {
			return domain.Theme{}, err
		}
		t, err := generator.DecodeJSON[domain.Theme](text)
		if err != nil {
			return domain.Theme{}, err
		}
		if t.OptionAColor == "" || t.OptionBColor == "" || t.Background == "" {
			return domain.Theme{}, errors.New("theme is missing fields")
		}
		return t, nil
	})
	s.record("theme", generated)
	return theme
}

func themePrompt(b *domain.Battle) string {
	names := make([]string, 0, len(b.Options))
	for _, opt := range b.Options {
		names = append(names, opt.Name)
	}
	optionsText := ""
	if len(names) > 0 {
		optionsText = "Options: " + strings.Join(names, ", ")
	}
	return fmt.Sprintf(`Generate a color theme for a battle named %q %s. Return ONLY a JSON object with this structure: { "optionAColor": "#hex", "optionBColor": "#hex", "background": "valid css background value for a linear gradient" }. Ensure high contrast and vibrant colors suitable for a dark mode UI.`, b.Name, optionsText)
}

// Templates lists the meme layouts captions can be generated for.
func (s *DecorationService) Templates() []MemeTemplate {
	return memeTemplates
}

// Meme picks a template for b and fills its captions.
func (s *DecorationService) Meme(ctx context.Context, b *domain.Battle) domain.Meme {
	tpl := templateFor(b.BattleID)
	fallback := func() []string { return fallbackCaptions(tpl, b) }

	if s.gen == nil || len(b.Options) < 2 {
		s.record("meme", false)
		return domain.Meme{TemplateID: tpl.ID, Texts: fallback(), Generated: false}
	}

	prompt := memePrompt(tpl, b)
	policy := retryPolicy(s, "meme", fallback)
	texts, generated := policy.Do(ctx, func(ctx context.Context) ([]string, error) {
		text, err := s.gen.Generate(ctx, prompt)
		if err != nil {
			return nil, err
		}
		captions, err := generator.DecodeJSON[[]string](text)
		if err != nil {
			return nil, err
		}
		if len(captions) != tpl.Boxes {
			return nil, fmt.Errorf("expected %d captions, got %d", tpl.Boxes, len(captions))
		}
		return captions, nil
	})
	s.record("meme", generated)

	return domain.Meme{TemplateID: tpl.ID, Texts: texts, Generated: generated}
}

// templateFor keeps the template stable for a given battle.
func templateFor(battleID string) MemeTemplate {
	h := fnv.New32a()
	_, _ = h.Write([]byte(battleID))
	return memeTemplates[int(h.Sum32()%uint32(len(memeTemplates)))]
}

// leaderAndRival returns the option with the most votes (first on ties)
// and the first other option.
func leaderAndRival(b *domain.Battle) (leader, rival string) {
	if len(b.Options) == 0 {
		return "", ""
	}
	li := 0
	for i, opt := range b.Options {
		if opt.Votes > b.Options[li].Votes {
			li = i
		}
	}
	leader = b.Options[li].Name
	for i, opt := range b.Options {
		if i != li {
			return leader, opt.Name
		}
	}
	return leader, leader
}

func fallbackCaptions(tpl MemeTemplate, b *domain.Battle) []string {
	leader, rival := leaderAndRival(b)
	switch tpl.ID {
	case "drake":
		return []string{rival, leader}
	case "distracted-boyfriend":
		return []string{leader, "Me", rival}
	case "two-buttons":
		return []string{leader, rival}
	default:
		return []string{fmt.Sprintf("%s is better than %s", leader, rival)}
	}
}

func memePrompt(tpl MemeTemplate, b *domain.Battle) string {
	leader, rival := leaderAndRival(b)
	return fmt.Sprintf(`Write funny captions for the %q meme template, which has %d text boxes, about the battle %q where %q currently leads %q. Return ONLY a JSON array of exactly %d short strings.`,
		tpl.Name, tpl.Boxes, b.Name, leader, rival, tpl.Boxes)
}

// UpgradeOnRead generates and stores a theme for a battle that has none.
// It returns immediately; concurrent calls for one battle share a single
// generation.
func (s *DecorationService) UpgradeOnRead(b *domain.Battle) {
	if b.Theme != nil {
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	battle := *b
	go func() {
		defer s.wg.Done()
		_, _, _ = s.group.Do(battle.BattleID, func() (any, error) {
			ctx, cancel := context.WithTimeout(s.ctx, s.settings.Timeout)
			defer cancel()

			theme := s.Theme(ctx, &battle)
			if err := s.repo.SetTheme(ctx, battle.BattleID, theme); err != nil {
				if !errors.Is(err, domain.ErrBattleNotFound) {
					s.logger.Warn("Failed to store theme",
						zap.String("battle_id", battle.BattleID),
						zap.Error(err))
				}
				return nil, nil
			}
			s.cache.InvalidateView(ctx, battle.BattleID)
			s.logger.Debug("Theme stored", zap.String("battle_id", battle.BattleID))
			return nil, nil
		})
	}()
}

// Wait blocks until pending upgrades finish.
func (s *DecorationService) Wait() {
	s.wg.Wait()
}

// Close cancels pending upgrades and waits for them.
func (s *DecorationService) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}
