package usecases

import (
	"context"
	"time"

	"github.com/Shopify/sarama/mocks"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v4/stdlib"

	"github.com/jmoiron/sqlx"
	"github.com/practice-sem-2/chat-service/internal/auth"
	"github.com/practice-sem-2/chat-service/internal/models"
	storage "github.com/practice-sem-2/chat-service/internal/storages"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const (
	ucAlice = "da1a1b86-b109-4a48-a0ea-c2b92a0407ae"
	ucBob   = "6e5b1250-8f85-45bf-9c63-a4a0586a9e0a"
	ucCarol = "1e674cfd-1e53-4c68-9e6a-23ecb7532dac"
	ucDave  = "2b3bfaa0-5d62-41a0-9734-172b55e21e8e"
)

func actor(userId string) *auth.Actor {
	return &auth.Actor{UserID: userId}
}

func moderator(userId string) *auth.Actor {
	return &auth.Actor{UserID: userId, IsAdmin: true}
}

// stubRosters answers linked-entity membership from a fixed map keyed by
// "<entity>:<user>".
type stubRosters struct {
	members map[string]bool
}

func (r *stubRosters) IsMember(_ context.Context, _ models.ChatKind, entityId, userId string) (bool, error) {
	return r.members[entityId+":"+userId], nil
}

func (r *stubRosters) allow(entityId, userId string) {
	r.members[entityId+":"+userId] = true
}

type UsecaseTestSuite struct {
	suite.Suite
	db *sqlx.DB
	m  *migrate.Migrate
}

func (s *UsecaseTestSuite) SetupSuite() {
	var err error
	viper.AutomaticEnv()
	dbDsn := viper.GetString("DB_DSN")
	migrationsDsn := viper.GetString("MIGRATIONS_DSN")
	migrationsDir := viper.GetString("MIGRATIONS_DIR")

	s.db, err = sqlx.Connect("pgx", dbDsn)
	require.NoError(s.T(), err, "failed to connect to database")

	s.m, err = migrate.New(migrationsDir, migrationsDsn)
	require.NoError(s.T(), err, "failed to open migrations")

	err = s.m.Up()
	if err != migrate.ErrNoChange {
		require.NoError(s.T(), err, "failed to migrate database")
	}
}

func (s *UsecaseTestSuite) TearDownSuite() {
	_ = s.m.Down()
	_ = s.db.Close()
}

func (s *UsecaseTestSuite) TearDownTest() {
	_, err := s.db.Exec("TRUNCATE chat_pins, message_reactions, message_attachments, messages, chat_members, chats")
	require.NoError(s.T(), err, "can't teardown test")
}

type usecaseEnv struct {
	uc       *ChatsUsecase
	producer *mocks.SyncProducer
	rosters  *stubRosters
}

func (s *UsecaseTestSuite) newEnv(limits Limits) *usecaseEnv {
	producer := mocks.NewSyncProducer(s.T(), mocks.NewTestConfig())
	registry := storage.NewRegistry(s.db, producer, &storage.UpdatesStoreConfig{
		UpdatesTopic: "chat-updates",
	})
	rosters := &stubRosters{members: map[string]bool{}}
	return &usecaseEnv{
		uc:       NewChatsUsecase(registry, rosters, limits),
		producer: producer,
		rosters:  rosters,
	}
}

// expectEvents queues n successful publishes on the mocked producer. Tests
// that expect an operation to fail queue nothing for it.
func (e *usecaseEnv) expectEvents(n int) {
	for i := 0; i < n; i++ {
		e.producer.ExpectSendMessageAndSucceed()
	}
}

// freeze pins the clock and returns a shift function for tests that walk
// through time.
func (e *usecaseEnv) freeze(at time.Time) func(d time.Duration) {
	now := at
	e.uc.now = func() time.Time { return now }
	return func(d time.Duration) { now = now.Add(d) }
}

func (s *UsecaseTestSuite) createGroup(ctx context.Context, e *usecaseEnv, chatId, creator string, others ...string) *models.ChatWithMembers {
	e.expectEvents(1)
	name := "team chat"
	chat, err := e.uc.CreateChat(ctx, actor(creator), models.ChatCreate{
		ChatID:  chatId,
		Kind:    models.ChatKindGroup,
		Name:    name,
		Members: others,
	})
	require.NoError(s.T(), err)
	return chat
}

func (s *UsecaseTestSuite) send(ctx context.Context, e *usecaseEnv, chatId, userId, text string) *models.Message {
	e.expectEvents(1)
	id, _ := uuid.NewRandom()
	sent, err := e.uc.SendMessage(ctx, actor(userId), textSend(chatId, id.String(), text))
	require.NoError(s.T(), err)
	return sent
}

func (s *UsecaseTestSuite) createPrivate(ctx context.Context, e *usecaseEnv, chatId, creator, peer string) *models.ChatWithMembers {
	e.expectEvents(1)
	chat, err := e.uc.CreateChat(ctx, actor(creator), models.ChatCreate{
		ChatID:  chatId,
		Kind:    models.ChatKindPrivate,
		Members: []string{peer},
	})
	require.NoError(s.T(), err)
	return chat
}
