package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-relay/internal/auth"
	"chat-relay/internal/config"
	"chat-relay/internal/mocks"
	"chat-relay/internal/models"
	"chat-relay/internal/repositories"
	"chat-relay/internal/service"
)

func setupAuthRouter(userRepo *mocks.UserRepositoryMock) *gin.Engine {
	gin.SetMode(gin.TestMode)
	users := service.NewUserService(userRepo, config.Config{JWTSecret: "test", AccessTokenTTLMinutes: 5})
	handler := NewAuthHandler(users, nil)

	r := gin.New()
	r.POST("/api/register", handler.Register)
	r.POST("/api/login", handler.Login)

	authed := r.Group("", func(c *gin.Context) {
		c.Set("userID", 1)
		c.Next()
	})
	authed.GET("/api/user", handler.CurrentUser)
	authed.PUT("/api/user", handler.UpdateProfile)
	authed.PUT("/api/user/theme", handler.UpdateTheme)
	authed.DELETE("/api/user", handler.DeleteAccount)
	return r
}

func TestRegisterSuccess(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	router := setupAuthRouter(userRepo)

	userRepo.On("CreateUser", mock.Anything, "alice", mock.AnythingOfType("string"), (*string)(nil), mock.AnythingOfType("string"), "dark").
		Return(models.User{ID: 1, Username: "alice"}, nil).Once()

	body := bytes.NewBufferString(`{"username":"alice","password":"secret"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/register", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotContains(t, rec.Body.String(), "password")
	userRepo.AssertExpectations(t)
}

func TestRegisterUsernameConflict(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	router := setupAuthRouter(userRepo)

	userRepo.On("CreateUser", mock.Anything, "alice", mock.Anything, (*string)(nil), mock.Anything, "dark").
		Return(models.User{}, repositories.ErrUsernameTaken).Once()

	body := bytes.NewBufferString(`{"username":"alice","password":"secret"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/register", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestRegisterInvalidBody(t *testing.T) {
	router := setupAuthRouter(new(mocks.UserRepositoryMock))

	req := httptest.NewRequest(http.MethodPost, "/api/register", bytes.NewBufferString(`{"username":"alice"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginSuccess(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	router := setupAuthRouter(userRepo)

	hash, err := auth.HashPassword("secret")
	require.NoError(t, err)
	userRepo.On("GetUserByUsername", mock.Anything, "alice").
		Return(models.User{ID: 1, Username: "alice", Password: hash}, nil).Once()
	userRepo.On("TouchLastLogin", mock.Anything, 1).Return(nil).Once()

	body := bytes.NewBufferString(`{"username":"alice","password":"secret"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/login", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var result service.LoginResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.NotEmpty(t, result.AccessToken)
	require.Equal(t, "alice", result.User.Username)
}

func TestLoginWrongPassword(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	router := setupAuthRouter(userRepo)

	hash, err := auth.HashPassword("secret")
	require.NoError(t, err)
	userRepo.On("GetUserByUsername", mock.Anything, "alice").
		Return(models.User{ID: 1, Username: "alice", Password: hash}, nil).Once()

	body := bytes.NewBufferString(`{"username":"alice","password":"nope"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/login", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCurrentUser(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	router := setupAuthRouter(userRepo)

	userRepo.On("GetUser", mock.Anything, 1).
		Return(models.User{ID: 1, Username: "alice"}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/user", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestUpdateThemeRejectsUnknownTheme(t *testing.T) {
	router := setupAuthRouter(new(mocks.UserRepositoryMock))

	body := bytes.NewBufferString(`{"theme":"neon"}`)
	req := httptest.NewRequest(http.MethodPut, "/api/user/theme", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteAccount(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	router := setupAuthRouter(userRepo)

	userRepo.On("DeleteUser", mock.Anything, 1).Return(nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/api/user", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	userRepo.AssertExpectations(t)
}
