package storage

import (
	"database/sql"
	"testing"
	"time"

	"invoice-desk/internal/auth"
	"invoice-desk/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// UserTestSuite covers user records created at sign-in.
type UserTestSuite struct {
	suite.Suite
	db *DB
}

func (suite *UserTestSuite) SetupTest() {
	db, err := NewDB(":memory:")
	require.NoError(suite.T(), err, "failed to create test database")
	suite.db = db
}

func (suite *UserTestSuite) TearDownTest() {
	if suite.db != nil {
		suite.db.Close()
	}
}

func (suite *UserTestSuite) TestUpsertUserCreatesOnce() {
	first, err := suite.db.UpsertUser("Ana@Example.com")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "ana@example.com", first.Email)

	second, err := suite.db.UpsertUser("ana@example.com")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), first.ID, second.ID)

	var count int
	require.NoError(suite.T(), suite.db.conn.QueryRow("SELECT COUNT(*) FROM users").Scan(&count))
	assert.Equal(suite.T(), 1, count)
}

func (suite *UserTestSuite) TestGetUser() {
	created, err := suite.db.UpsertUser("bo@example.com")
	require.NoError(suite.T(), err)

	byEmail, err := suite.db.GetUserByEmail(" BO@example.com ")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), created.ID, byEmail.ID)

	_, err = suite.db.GetUserByEmail("nobody@example.com")
	assert.ErrorIs(suite.T(), err, sql.ErrNoRows)
}

// SessionTestSuite provides a test suite for session operations
type SessionTestSuite struct {
	suite.Suite
	db   *DB
	user *models.User
}

// SetupTest runs before each test
func (suite *SessionTestSuite) SetupTest() {
	db, err := NewDB(":memory:")
	require.NoError(suite.T(), err, "failed to create test database")
	suite.db = db

	user, err := suite.db.UpsertUser("ana@example.com")
	require.NoError(suite.T(), err, "failed to create test user")
	suite.user = user
}

// TearDownTest runs after each test
func (suite *SessionTestSuite) TearDownTest() {
	if suite.db != nil {
		suite.db.Close()
	}
}

func (suite *SessionTestSuite) newSession(ttl time.Duration) string {
	token, err := auth.GenerateSessionToken()
	require.NoError(suite.T(), err)
	require.NoError(suite.T(), suite.db.CreateSession(token, suite.user.ID, time.Now().Add(ttl)))
	return token
}

func (suite *SessionTestSuite) TestCreateAndValidateSession() {
	token := suite.newSession(30 * 24 * time.Hour)

	info, err := suite.db.ValidateSessionWithInfo(token)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "ana@example.com", info.User.Email)
}

func (suite *SessionTestSuite) TestTokenIsStoredHashed() {
	token := suite.newSession(time.Hour)

	var stored string
	err := suite.db.conn.QueryRow("SELECT token_hash FROM sessions").Scan(&stored)
	require.NoError(suite.T(), err)
	assert.NotEqual(suite.T(), token, stored)
	assert.Equal(suite.T(), auth.HashToken(token), stored)
}

func (suite *SessionTestSuite) TestExpiredSessionIsInvalid() {
	token := suite.newSession(-time.Minute)

	_, err := suite.db.ValidateSessionWithInfo(token)
	assert.ErrorIs(suite.T(), err, sql.ErrNoRows)
}

func (suite *SessionTestSuite) TestValidateSessionWithInfo() {
	token := suite.newSession(30 * 24 * time.Hour)

	info, err := suite.db.ValidateSessionWithInfo(token)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "ana@example.com", info.User.Email)

	// Check that last_activity is recent
	timeSinceActivity := time.Since(info.LastActivity)
	assert.Less(suite.T(), timeSinceActivity, 5*time.Second, "LastActivity should be recent")
}

func (suite *SessionTestSuite) TestRenewSession() {
	token := suite.newSession(30 * 24 * time.Hour)

	// Wait a moment to ensure timestamps differ
	time.Sleep(10 * time.Millisecond)

	originalInfo, err := suite.db.ValidateSessionWithInfo(token)
	require.NoError(suite.T(), err)

	newExpiry := time.Now().Add(60 * 24 * time.Hour)
	err = suite.db.RenewSession(token, newExpiry)
	require.NoError(suite.T(), err)

	updatedInfo, err := suite.db.ValidateSessionWithInfo(token)
	require.NoError(suite.T(), err)

	assert.True(suite.T(), updatedInfo.LastActivity.After(originalInfo.LastActivity),
		"LastActivity should be updated after renewal")
	assert.True(suite.T(), updatedInfo.ExpiresAt.After(originalInfo.ExpiresAt),
		"ExpiresAt should be extended after renewal")
}

func (suite *SessionTestSuite) TestDeleteSession() {
	token := suite.newSession(30 * 24 * time.Hour)

	_, err := suite.db.ValidateSessionWithInfo(token)
	require.NoError(suite.T(), err, "session should exist before deletion")

	err = suite.db.DeleteSession(token)
	require.NoError(suite.T(), err)

	_, err = suite.db.ValidateSessionWithInfo(token)
	assert.Error(suite.T(), err, "expected error after deleting session")
}

func (suite *SessionTestSuite) TestDeleteUserSessions() {
	suite.newSession(time.Hour)
	suite.newSession(time.Hour)

	other, err := suite.db.UpsertUser("bo@example.com")
	require.NoError(suite.T(), err)
	otherToken, err := auth.GenerateSessionToken()
	require.NoError(suite.T(), err)
	require.NoError(suite.T(), suite.db.CreateSession(otherToken, other.ID, time.Now().Add(time.Hour)))

	removed, err := suite.db.DeleteUserSessions("ANA@example.com")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(2), removed)

	_, err = suite.db.ValidateSessionWithInfo(otherToken)
	assert.NoError(suite.T(), err, "other users keep their sessions")

	removed, err = suite.db.DeleteAllSessions()
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(1), removed)
}

func (suite *SessionTestSuite) TestCleanExpiredSessions() {
	live := suite.newSession(time.Hour)
	suite.newSession(-time.Hour)

	removed, err := suite.db.CleanExpiredSessions()
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(1), removed)

	_, err = suite.db.ValidateSessionWithInfo(live)
	assert.NoError(suite.T(), err)
}

// Test suite runners
func TestUserSuite(t *testing.T) {
	suite.Run(t, new(UserTestSuite))
}

func TestSessionSuite(t *testing.T) {
	suite.Run(t, new(SessionTestSuite))
}
