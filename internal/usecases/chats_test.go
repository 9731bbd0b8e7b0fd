package usecases

import (
	"context"
	"testing"
	"time"

	"github.com/practice-sem-2/chat-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type ChatsUsecaseTestSuite struct {
	UsecaseTestSuite
}

func TestChatsUsecaseTestSuite(t *testing.T) {
	suite.Run(t, &ChatsUsecaseTestSuite{})
}

func (s *ChatsUsecaseTestSuite) Test_CreateChat_PrivateReturnsExistingPair() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	e := s.newEnv(DefaultLimits())

	first := s.createPrivate(ctx, e, "694a909e-bec7-4dbe-bf38-935a99d848cc", ucAlice, ucBob)
	require.Len(s.T(), first.Members, 2)

	// Same pair from the other side, different requested id: no new chat.
	again, err := e.uc.CreateChat(ctx, actor(ucBob), models.ChatCreate{
		ChatID:  "67f85047-09d0-42a2-a5ee-9ce8db28cb07",
		Kind:    models.ChatKindPrivate,
		Members: []string{ucAlice},
	})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), first.ChatID, again.ChatID)

	// A different pair still gets its own chat.
	e.expectEvents(1)
	other, err := e.uc.CreateChat(ctx, actor(ucAlice), models.ChatCreate{
		ChatID:  "0e3f9361-01ae-4b83-aea4-81b44a2d1d26",
		Kind:    models.ChatKindPrivate,
		Members: []string{ucCarol},
	})
	require.NoError(s.T(), err)
	assert.NotEqual(s.T(), first.ChatID, other.ChatID)
}

func (s *ChatsUsecaseTestSuite) Test_CreateChat_PrivateRequiresExactlyTwo() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	e := s.newEnv(DefaultLimits())

	_, err := e.uc.CreateChat(ctx, actor(ucAlice), models.ChatCreate{
		ChatID:  "694a909e-bec7-4dbe-bf38-935a99d848cc",
		Kind:    models.ChatKindPrivate,
		Members: []string{ucBob, ucCarol},
	})
	assert.ErrorIs(s.T(), err, ErrValidation)

	// Self-chat collapses to a single member after dedup.
	_, err = e.uc.CreateChat(ctx, actor(ucAlice), models.ChatCreate{
		ChatID:  "694a909e-bec7-4dbe-bf38-935a99d848cc",
		Kind:    models.ChatKindPrivate,
		Members: []string{ucAlice},
	})
	assert.ErrorIs(s.T(), err, ErrValidation)
}

func (s *ChatsUsecaseTestSuite) Test_CreateChat_GroupValidation() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	e := s.newEnv(DefaultLimits())

	_, err := e.uc.CreateChat(ctx, actor(ucAlice), models.ChatCreate{
		ChatID:  "694a909e-bec7-4dbe-bf38-935a99d848cc",
		Kind:    models.ChatKindGroup,
		Name:    "  ",
		Members: []string{ucBob, ucCarol},
	})
	assert.ErrorIs(s.T(), err, ErrValidation, "blank name is rejected")

	_, err = e.uc.CreateChat(ctx, actor(ucAlice), models.ChatCreate{
		ChatID:  "694a909e-bec7-4dbe-bf38-935a99d848cc",
		Kind:    models.ChatKindGroup,
		Name:    "team chat",
		Members: []string{ucBob},
	})
	assert.ErrorIs(s.T(), err, ErrValidation, "two members are not a group")

	chat := s.createGroup(ctx, e, "694a909e-bec7-4dbe-bf38-935a99d848cc", ucAlice, ucBob, ucCarol)
	require.Len(s.T(), chat.Members, 3)
	creator := chat.Member(ucAlice)
	require.NotNil(s.T(), creator)
	assert.True(s.T(), creator.IsAdmin, "creator starts as group admin")
	assert.False(s.T(), chat.Member(ucBob).IsAdmin)
}

func (s *ChatsUsecaseTestSuite) Test_CreateChat_GroupMemberLimit() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	limits := DefaultLimits()
	limits.GroupMemberLimit = 3
	e := s.newEnv(limits)

	_, err := e.uc.CreateChat(ctx, actor(ucAlice), models.ChatCreate{
		ChatID:  "694a909e-bec7-4dbe-bf38-935a99d848cc",
		Kind:    models.ChatKindGroup,
		Name:    "team chat",
		Members: []string{ucBob, ucCarol, ucDave},
	})
	assert.ErrorIs(s.T(), err, ErrCapacityExceeded)
}

func (s *ChatsUsecaseTestSuite) Test_CreateChat_LinkedEntityDedupAndRoster() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	e := s.newEnv(DefaultLimits())
	entity := "0e3f9361-01ae-4b83-aea4-81b44a2d1d26"

	_, err := e.uc.CreateChat(ctx, actor(ucAlice), models.ChatCreate{
		ChatID:       "694a909e-bec7-4dbe-bf38-935a99d848cc",
		Kind:         models.ChatKindEvent,
		LinkedEntity: entity,
	})
	assert.ErrorIs(s.T(), err, ErrPermissionDenied, "creator must belong to the event")

	e.rosters.allow(entity, ucAlice)
	e.rosters.allow(entity, ucBob)

	e.expectEvents(1)
	first, err := e.uc.CreateChat(ctx, actor(ucAlice), models.ChatCreate{
		ChatID:       "694a909e-bec7-4dbe-bf38-935a99d848cc",
		Kind:         models.ChatKindEvent,
		LinkedEntity: entity,
	})
	require.NoError(s.T(), err)

	again, err := e.uc.CreateChat(ctx, actor(ucBob), models.ChatCreate{
		ChatID:       "67f85047-09d0-42a2-a5ee-9ce8db28cb07",
		Kind:         models.ChatKindEvent,
		LinkedEntity: entity,
	})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), first.ChatID, again.ChatID, "one chat per linked event")
}

func (s *ChatsUsecaseTestSuite) Test_GetChat_Visibility() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	e := s.newEnv(DefaultLimits())
	chat := s.createGroup(ctx, e, "694a909e-bec7-4dbe-bf38-935a99d848cc", ucAlice, ucBob, ucCarol)

	_, err := e.uc.GetChat(ctx, actor(ucBob), chat.ChatID)
	assert.NoError(s.T(), err)

	_, err = e.uc.GetChat(ctx, actor(ucDave), chat.ChatID)
	assert.ErrorIs(s.T(), err, ErrNotFound, "existence is not leaked to strangers")

	_, err = e.uc.GetChat(ctx, nil, chat.ChatID)
	assert.ErrorIs(s.T(), err, ErrAuthenticationRequired)
}

func (s *ChatsUsecaseTestSuite) Test_AddParticipant() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	e := s.newEnv(DefaultLimits())
	chat := s.createGroup(ctx, e, "694a909e-bec7-4dbe-bf38-935a99d848cc", ucAlice, ucBob, ucCarol)

	_, err := e.uc.AddParticipant(ctx, actor(ucBob), chat.ChatID, ucDave)
	assert.ErrorIs(s.T(), err, ErrPermissionDenied, "ordinary members can't invite")

	e.expectEvents(1)
	updated, err := e.uc.AddParticipant(ctx, actor(ucAlice), chat.ChatID, ucDave)
	require.NoError(s.T(), err)
	assert.NotNil(s.T(), updated.Member(ucDave))

	_, err = e.uc.AddParticipant(ctx, actor(ucAlice), chat.ChatID, ucDave)
	assert.ErrorIs(s.T(), err, ErrAlreadyMember)
}

func (s *ChatsUsecaseTestSuite) Test_AddParticipant_PrivateIsFixed() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	e := s.newEnv(DefaultLimits())
	chat := s.createPrivate(ctx, e, "694a909e-bec7-4dbe-bf38-935a99d848cc", ucAlice, ucBob)

	_, err := e.uc.AddParticipant(ctx, actor(ucAlice), chat.ChatID, ucCarol)
	assert.ErrorIs(s.T(), err, ErrInvalidOperation)

	_, err = e.uc.RemoveParticipant(ctx, actor(ucAlice), chat.ChatID, ucBob)
	assert.ErrorIs(s.T(), err, ErrInvalidOperation)
}

func (s *ChatsUsecaseTestSuite) Test_RemoveParticipant() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	e := s.newEnv(DefaultLimits())
	chat := s.createGroup(ctx, e, "694a909e-bec7-4dbe-bf38-935a99d848cc", ucAlice, ucBob, ucCarol)

	_, err := e.uc.RemoveParticipant(ctx, actor(ucAlice), chat.ChatID, ucAlice)
	assert.ErrorIs(s.T(), err, ErrInvalidOperation, "self-removal goes through leave")

	_, err = e.uc.RemoveParticipant(ctx, moderator(ucDave), chat.ChatID, ucAlice)
	assert.ErrorIs(s.T(), err, ErrInvalidOperation, "the creator can't be removed")

	e.expectEvents(1)
	updated, err := e.uc.RemoveParticipant(ctx, actor(ucAlice), chat.ChatID, ucBob)
	require.NoError(s.T(), err)
	assert.Nil(s.T(), updated.Member(ucBob))

	_, err = e.uc.RemoveParticipant(ctx, actor(ucAlice), chat.ChatID, ucBob)
	assert.ErrorIs(s.T(), err, ErrNotAMember)
}

func (s *ChatsUsecaseTestSuite) Test_LeaveChat_SoleAdminStays() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	e := s.newEnv(DefaultLimits())
	chat := s.createGroup(ctx, e, "694a909e-bec7-4dbe-bf38-935a99d848cc", ucAlice, ucBob, ucCarol)

	err := e.uc.LeaveChat(ctx, actor(ucAlice), chat.ChatID)
	assert.ErrorIs(s.T(), err, ErrInvalidOperation, "last admin is stuck until another is promoted")

	require.NoError(s.T(), e.uc.SetAdmin(ctx, actor(ucAlice), chat.ChatID, ucBob, true))

	e.expectEvents(1)
	assert.NoError(s.T(), e.uc.LeaveChat(ctx, actor(ucAlice), chat.ChatID))

	e.expectEvents(1)
	assert.NoError(s.T(), e.uc.LeaveChat(ctx, actor(ucCarol), chat.ChatID), "plain members leave freely")
}

func (s *ChatsUsecaseTestSuite) Test_SetAdmin() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	e := s.newEnv(DefaultLimits())
	chat := s.createGroup(ctx, e, "694a909e-bec7-4dbe-bf38-935a99d848cc", ucAlice, ucBob, ucCarol)

	assert.ErrorIs(s.T(),
		e.uc.SetAdmin(ctx, actor(ucBob), chat.ChatID, ucCarol, true),
		ErrPermissionDenied)
	assert.ErrorIs(s.T(),
		e.uc.SetAdmin(ctx, actor(ucAlice), chat.ChatID, ucAlice, false),
		ErrInvalidOperation, "creator can't demote themselves")
	assert.ErrorIs(s.T(),
		e.uc.SetAdmin(ctx, actor(ucAlice), chat.ChatID, ucDave, true),
		ErrNotAMember)

	require.NoError(s.T(), e.uc.SetAdmin(ctx, actor(ucAlice), chat.ChatID, ucBob, true))
	updated, err := e.uc.GetChat(ctx, actor(ucAlice), chat.ChatID)
	require.NoError(s.T(), err)
	assert.True(s.T(), updated.Member(ucBob).IsAdmin)
}

func (s *ChatsUsecaseTestSuite) Test_DeleteChat() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	e := s.newEnv(DefaultLimits())
	chat := s.createGroup(ctx, e, "694a909e-bec7-4dbe-bf38-935a99d848cc", ucAlice, ucBob, ucCarol)

	assert.ErrorIs(s.T(), e.uc.DeleteChat(ctx, actor(ucBob), chat.ChatID), ErrPermissionDenied)

	e.expectEvents(1)
	require.NoError(s.T(), e.uc.DeleteChat(ctx, actor(ucAlice), chat.ChatID))

	_, err := e.uc.GetChat(ctx, actor(ucBob), chat.ChatID)
	assert.ErrorIs(s.T(), err, ErrNotFound, "deleted chats disappear for members")

	audited, err := e.uc.GetChat(ctx, moderator(ucDave), chat.ChatID)
	require.NoError(s.T(), err, "moderators still see deleted chats")
	assert.Equal(s.T(), models.ChatStatusDeleted, audited.Status)

	assert.ErrorIs(s.T(), e.uc.DeleteChat(ctx, actor(ucAlice), chat.ChatID), ErrInvalidOperation)
}

func (s *ChatsUsecaseTestSuite) Test_MarkChatAsRead() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	e := s.newEnv(DefaultLimits())
	chat := s.createGroup(ctx, e, "694a909e-bec7-4dbe-bf38-935a99d848cc", ucAlice, ucBob, ucCarol)

	require.NoError(s.T(), e.uc.MarkChatAsRead(ctx, actor(ucBob), chat.ChatID))

	updated, err := e.uc.GetChat(ctx, actor(ucBob), chat.ChatID)
	require.NoError(s.T(), err)
	member := updated.Member(ucBob)
	require.NotNil(s.T(), member.LastReadAt)
	require.NotNil(s.T(), member.LastSeenAt)

	assert.ErrorIs(s.T(), e.uc.MarkChatAsRead(ctx, actor(ucDave), chat.ChatID), ErrNotAMember)
}

func (s *ChatsUsecaseTestSuite) Test_GetUsersChats() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	e := s.newEnv(DefaultLimits())
	s.createGroup(ctx, e, "694a909e-bec7-4dbe-bf38-935a99d848cc", ucAlice, ucBob, ucCarol)
	s.createPrivate(ctx, e, "67f85047-09d0-42a2-a5ee-9ce8db28cb07", ucAlice, ucBob)

	chats, err := e.uc.GetUsersChats(ctx, actor(ucAlice), false)
	require.NoError(s.T(), err)
	assert.Len(s.T(), chats, 2)

	chats, err = e.uc.GetUsersChats(ctx, actor(ucCarol), false)
	require.NoError(s.T(), err)
	assert.Len(s.T(), chats, 1)

	_, err = e.uc.GetUsersChats(ctx, actor(ucAlice), true)
	assert.ErrorIs(s.T(), err, ErrPermissionDenied, "audit listing needs global privileges")

	e.expectEvents(1)
	require.NoError(s.T(), e.uc.DeleteChat(ctx, actor(ucAlice), "694a909e-bec7-4dbe-bf38-935a99d848cc"))

	// dave belongs to nothing, yet the audit listing shows everything
	audit, err := e.uc.GetUsersChats(ctx, moderator(ucDave), true)
	require.NoError(s.T(), err)
	require.Len(s.T(), audit, 2)
	statuses := map[string]models.ChatStatus{}
	for _, summary := range audit {
		statuses[summary.ChatID] = summary.Status
	}
	assert.Equal(s.T(), models.ChatStatusDeleted, statuses["694a909e-bec7-4dbe-bf38-935a99d848cc"])

	overview, err := e.uc.GetUsersChats(ctx, moderator(ucDave), false)
	require.NoError(s.T(), err)
	assert.Empty(s.T(), overview, "the normal overview stays membership scoped")
}

func (s *ChatsUsecaseTestSuite) Test_UpdateChatSettings() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	e := s.newEnv(DefaultLimits())
	chat := s.createGroup(ctx, e, "694a909e-bec7-4dbe-bf38-935a99d848cc", ucAlice, ucBob, ucCarol)

	name := "renamed"
	interval := 30
	enabled := true

	_, err := e.uc.UpdateChatSettings(ctx, actor(ucBob), chat.ChatID, models.ChatSettingsUpdate{Name: &name})
	assert.ErrorIs(s.T(), err, ErrPermissionDenied)

	updated, err := e.uc.UpdateChatSettings(ctx, actor(ucAlice), chat.ChatID, models.ChatSettingsUpdate{
		Name:             &name,
		SlowModeEnabled:  &enabled,
		SlowModeInterval: &interval,
	})
	require.NoError(s.T(), err)
	require.NotNil(s.T(), updated.Name)
	assert.Equal(s.T(), name, *updated.Name)
	assert.True(s.T(), updated.SlowModeEnabled)
	assert.Equal(s.T(), interval, updated.SlowModeInterval)

	private := s.createPrivate(ctx, e, "67f85047-09d0-42a2-a5ee-9ce8db28cb07", ucAlice, ucBob)
	_, err = e.uc.UpdateChatSettings(ctx, actor(ucAlice), private.ChatID, models.ChatSettingsUpdate{Name: &name})
	assert.ErrorIs(s.T(), err, ErrValidation, "private chats carry no name")

	_, err = e.uc.UpdateChatSettings(ctx, actor(ucAlice), chat.ChatID, models.ChatSettingsUpdate{})
	assert.ErrorIs(s.T(), err, ErrValidation, "empty patch is rejected")
}
