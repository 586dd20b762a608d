package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newTestEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	e := gin.New()
	e.Use(SessionMiddleware(3600))
	e.POST("/echo", BodyLimitMiddleware(8), func(c *gin.Context) {
		sid, ok := GetSessionID(c.Request.Context())
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, sid)
	})
	return e
}

func TestSessionIssued(t *testing.T) {
	e := newTestEngine()
	w := httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	cookies := w.Result().Cookies()
	assert.Equal(t, 1, len(cookies))
	assert.Equal(t, SessionCookieName, cookies[0].Name)
	assert.Equal(t, cookies[0].Value, w.Body.String())

	req := httptest.NewRequest(http.MethodPost, "/echo", nil)
	req.AddCookie(cookies[0])
	w = httptest.NewRecorder()
	e.ServeHTTP(w, req)
	assert.Equal(t, cookies[0].Value, w.Body.String())
	assert.Equal(t, 0, len(w.Result().Cookies()))
}

func TestSessionMalformedCookie(t *testing.T) {
	e := newTestEngine()
	req := httptest.NewRequest(http.MethodPost, "/echo", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "not-a-uuid"})
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)
	assert.NotEqual(t, "not-a-uuid", w.Body.String())
	assert.Equal(t, 1, len(w.Result().Cookies()))
}

func TestBodyLimit(t *testing.T) {
	e := newTestEngine()
	w := httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("0123456789")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}
