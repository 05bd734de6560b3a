package service

import (
	"context"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"versus-backend/internal/broadcast"
	"versus-backend/internal/domain"
)

func TestSocialService_PostComment_GeneratedNicknames(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.createBattle(t, "Red Team vs Blue Team", "Red Team", "Blue Team")

	_, err := env.battles.Vote(ctx, id, domain.VoteRequest{OptionID: "opt1", DeviceID: "voter"})
	require.NoError(t, err)

	voter, err := env.social.PostComment(ctx, id, domain.CommentRequest{Fingerprint: "voter", Content: "go red"})
	require.NoError(t, err)
	assert.Equal(t, "opt1", voter.Team)
	assert.Regexp(t, regexp.MustCompile(`^(Team|Warrior|Fan|Defender|Captain|Super)RedTeam_\d{1,2}$`), voter.Nickname)

	lurker, err := env.social.PostComment(ctx, id, domain.CommentRequest{Fingerprint: "lurker", Content: "hmm"})
	require.NoError(t, err)
	assert.Empty(t, lurker.Team)
	assert.Regexp(t, regexp.MustCompile(`^(Agente_007|Anon_Spectator|Ghost_Viewer|Mystery_Guest|Lurker_Max|Shadow_Walker)_\d{1,3}$`), lurker.Nickname)

	stranger, err := env.social.PostComment(ctx, "no-such-battle", domain.CommentRequest{Fingerprint: "x", Content: "hello?"})
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^Anon_[0-9a-f]{4}$`), stranger.Nickname)

	msgs := env.publisher.ofType(broadcast.EventChatMessage)
	require.Len(t, msgs, 3)
	assert.Equal(t, id, msgs[0].BattleID)
}

func TestSocialService_PostComment_ExplicitNickname(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.createBattle(t, "A vs B", "A", "B")

	first, err := env.social.PostComment(ctx, id, domain.CommentRequest{Fingerprint: "f1", Content: "hi", Nickname: "  Neo  "})
	require.NoError(t, err)
	assert.Equal(t, "Neo", first.Nickname)

	// The same fingerprint may reuse its nickname.
	_, err = env.social.PostComment(ctx, id, domain.CommentRequest{Fingerprint: "f1", Content: "again", Nickname: "Neo"})
	require.NoError(t, err)

	_, err = env.social.PostComment(ctx, id, domain.CommentRequest{Fingerprint: "f2", Content: "me too", Nickname: "neo"})
	assert.ErrorIs(t, err, domain.ErrNicknameTaken)

	// Nicknames are scoped to a battle.
	other := env.createBattle(t, "C vs D", "C", "D")
	_, err = env.social.PostComment(ctx, other, domain.CommentRequest{Fingerprint: "f2", Content: "mine", Nickname: "Neo"})
	assert.NoError(t, err)
}

func TestSocialService_PostComment_TooLong(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.social.PostComment(ctx, "b", domain.CommentRequest{Fingerprint: "f", Content: strings.Repeat("x", domain.MaxCommentLength+1)})
	assert.ErrorIs(t, err, ErrCommentTooLong)

	_, err = env.social.PostComment(ctx, "b", domain.CommentRequest{Fingerprint: "f", Content: strings.Repeat("é", domain.MaxCommentLength)})
	assert.NoError(t, err)
	assert.Len(t, env.publisher.ofType(broadcast.EventChatMessage), 1)
}

func TestSocialService_ListComments_NewestFirst(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for i := 0; i < RecentCommentLimit+5; i++ {
		_, err := env.social.PostComment(ctx, "b", domain.CommentRequest{Fingerprint: "f", Content: string(rune('a' + i%26))})
		require.NoError(t, err)
	}

	comments, err := env.social.ListComments(ctx, "b")
	require.NoError(t, err)
	require.Len(t, comments, RecentCommentLimit)
	for i := 1; i < len(comments); i++ {
		assert.False(t, comments[i].CreatedAt.After(comments[i-1].CreatedAt))
	}

	empty, err := env.social.ListComments(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSocialService_PostReaction(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	reaction, err := env.social.PostReaction(ctx, "b", domain.ReactionRequest{Fingerprint: "f", Type: "🔥", OptionID: "opt1"})
	require.NoError(t, err)
	assert.NotEmpty(t, reaction.ID)
	assert.Equal(t, "opt1", reaction.OptionID)

	events := env.publisher.ofType(broadcast.EventReaction)
	require.Len(t, events, 1)
	assert.Equal(t, reaction, events[0].Data)
}
