package services

import (
	"context"
	"fmt"
	"socialconnect/internal/models"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a private in-memory SQLite database with the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", name)
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, conn.AutoMigrate(
		&models.User{},
		&models.Profile{},
		&models.Follow{},
		&models.Post{},
		&models.Comment{},
		&models.Like{},
		&models.Notification{},
	))
	return conn
}

func createUser(t *testing.T, conn *gorm.DB, username string) *models.User {
	t.Helper()
	u := &models.User{
		Email:    username + "@example.com",
		Username: username,
		Password: "x",
		IsActive: true,
	}
	require.NoError(t, conn.Create(u).Error)
	return u
}

func createPost(t *testing.T, conn *gorm.DB, author *models.User, content string) *models.Post {
	t.Helper()
	p := &models.Post{UserID: author.ID, Content: content, Category: models.CategoryGeneral, IsActive: true}
	require.NoError(t, conn.Omit("User").Create(p).Error)
	return p
}

func deactivatePost(t *testing.T, conn *gorm.DB, p *models.Post) {
	t.Helper()
	require.NoError(t, conn.Model(p).Update("is_active", false).Error)
	p.IsActive = false
}

func countNotifications(t *testing.T, conn *gorm.DB, recipientID uint) int64 {
	t.Helper()
	var n int64
	require.NoError(t, conn.Model(&models.Notification{}).Where("recipient_id = ?", recipientID).Count(&n).Error)
	return n
}

// testServices bundles every service wired over one test database.
type testServices struct {
	db            *gorm.DB
	notifications *NotificationService
	follows       *FollowService
	engagement    *EngagementService
	posts         *PostService
	feed          *FeedService
	profiles      *ProfileService
	admin         *AdminService
	users         *UserService
	identity      *fakeIdentity
	storage       *fakeStorage
}

func newTestServices(t *testing.T) *testServices {
	t.Helper()
	return newTestServicesOn(t, newTestDB(t))
}

func newTestServicesOn(t *testing.T, conn *gorm.DB) *testServices {
	t.Helper()
	log := zap.NewNop()
	identity := newFakeIdentity()
	storage := &fakeStorage{}

	notifications := NewNotificationService(conn, log)
	follows := NewFollowService(conn, notifications, log)
	posts := NewPostService(conn, storage, "posts", 2*1024*1024, log)
	return &testServices{
		db:            conn,
		notifications: notifications,
		follows:       follows,
		engagement:    NewEngagementService(conn, notifications, log),
		posts:         posts,
		feed:          NewFeedService(conn, follows, 10),
		profiles:      NewProfileService(conn, follows, storage, "avatars", 2*1024*1024, log),
		admin:         NewAdminService(conn, posts, log),
		users:         NewUserService(conn, identity, log),
		identity:      identity,
		storage:       storage,
	}
}

// newRaceServices runs without gorm's implicit per-write transaction so a
// callback can commit a competing row on the single test connection.
func newRaceServices(t *testing.T) *testServices {
	t.Helper()
	return newTestServicesOn(t, newTestDB(t).Session(&gorm.Session{SkipDefaultTransaction: true}))
}

// collideOnCreate runs compete once, just before the next INSERT into table,
// so that INSERT hits the unique index on a row compete already committed.
func collideOnCreate(t *testing.T, conn *gorm.DB, table string, compete func(ctx context.Context)) {
	t.Helper()
	armed := true
	err := conn.Callback().Create().Before("gorm:create").Register("test:collide_"+table, func(tx *gorm.DB) {
		if !armed || tx.Statement.Table != table {
			return
		}
		armed = false
		compete(tx.Statement.Context)
	})
	require.NoError(t, err)
}

// fakeIdentity is an in-memory IdentityProvider keyed by token.
type fakeIdentity struct {
	mu          sync.Mutex
	tokens      map[string]Identity
	passwords   map[string]string
	signUpErr   error
	sessionErr  error
	verifyCalls int
	signOuts    []string
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{tokens: map[string]Identity{}, passwords: map[string]string{}}
}

func (f *fakeIdentity) SignUp(_ context.Context, email, password string, _ map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.signUpErr != nil {
		return f.signUpErr
	}
	f.passwords[email] = password
	return nil
}

func (f *fakeIdentity) VerifyIdentity(_ context.Context, token string) (*Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifyCalls++
	id, ok := f.tokens[token]
	if !ok {
		return nil, ErrUnauthorized
	}
	return &id, nil
}

func (f *fakeIdentity) IssueSession(_ context.Context, email, password string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sessionErr != nil {
		return "", f.sessionErr
	}
	token := "token-" + email
	f.tokens[token] = Identity{Email: email, Confirmed: true}
	return token, nil
}

func (f *fakeIdentity) SendPasswordReset(context.Context, string) error { return nil }

func (f *fakeIdentity) UpdatePassword(_ context.Context, token, newPassword string) (*Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.tokens[token]
	if !ok {
		return nil, ErrUnauthorized
	}
	f.passwords[id.Email] = newPassword
	return &id, nil
}

func (f *fakeIdentity) SignOut(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signOuts = append(f.signOuts, token)
	delete(f.tokens, token)
	return nil
}

// fakeStorage records uploads and returns a predictable URL.
type fakeStorage struct {
	uploads []string
	err     error
}

func (f *fakeStorage) Upload(_ context.Context, bucket, name, _ string, _ []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.uploads = append(f.uploads, bucket+"/"+name)
	return "https://cdn.test/" + bucket + "/" + name, nil
}

var (
	pngBytes  = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 32)...)
	jpegBytes = append([]byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00"), make([]byte, 32)...)
	gifBytes  = append([]byte("GIF89a"), make([]byte, 32)...)
)
