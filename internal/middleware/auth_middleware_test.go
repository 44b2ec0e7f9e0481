package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/selin/pulseform/internal/app/models"
	"github.com/selin/pulseform/internal/pkg/auth"
)

func sessionTestRouter(jwtService *auth.JWTService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	m := NewAuthMiddleware(jwtService)
	router.GET("/protected", m.SessionAuth(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"participantId": c.GetInt64(ContextParticipantID),
			"activityId":    c.GetInt64(ContextActivityID),
		})
	})
	return router
}

func TestSessionAuth_AllowsValidToken(t *testing.T) {
	jwtService := auth.NewJWTService(auth.JWTConfig{
		SecretKey: "test-secret", SessionExp: time.Hour, TokenIssuer: "pulseform.test",
	})
	router := sessionTestRouter(jwtService)

	participant := &models.Participant{ID: 42, Email: "ada@example.com", Kind: models.KindAuthenticated}
	token, _, err := jwtService.GenerateSessionToken(participant, 10)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"participantId":42`)
	assert.Contains(t, w.Body.String(), `"activityId":10`)
}

func TestSessionAuth_RejectsMissingHeader(t *testing.T) {
	jwtService := auth.NewJWTService(auth.JWTConfig{
		SecretKey: "test-secret", SessionExp: time.Hour, TokenIssuer: "pulseform.test",
	})
	router := sessionTestRouter(jwtService)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "ACC_003")
}

func TestSessionAuth_RejectsExpiredToken(t *testing.T) {
	jwtService := auth.NewJWTService(auth.JWTConfig{
		SecretKey: "test-secret", SessionExp: -time.Minute, TokenIssuer: "pulseform.test",
	})
	router := sessionTestRouter(jwtService)

	token, _, err := jwtService.GenerateSessionToken(&models.Participant{ID: 42}, 10)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "ACC_004")
}

func TestSessionAuth_RejectsGarbageToken(t *testing.T) {
	jwtService := auth.NewJWTService(auth.JWTConfig{
		SecretKey: "test-secret", SessionExp: time.Hour, TokenIssuer: "pulseform.test",
	})
	router := sessionTestRouter(jwtService)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer not.a.jwt")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
