package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

const (
	SessionCookieName = "DAVSESSIONID"
)

type sessionKeyType struct{}

var sessionKey = sessionKeyType{}

func SetSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionKey, id)
}

func GetSessionID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(sessionKey).(string)
	if !ok || len(v) == 0 {
		return "", false
	}
	return v, true
}

// SessionMiddleware binds every request to a session, issuing a new cookie when the client
// has none or presents a malformed one.
func SessionMiddleware(maxAge int) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		sid, err := c.Cookie(SessionCookieName)
		if err != nil || !isValidSessionID(sid) {
			sid = uuid.NewString()
			http.SetCookie(c.Writer, &http.Cookie{
				Name:     SessionCookieName,
				Value:    sid,
				Path:     "/",
				MaxAge:   maxAge,
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
			logutil.GetLogger(ctx).Debug("new session issued", zap.String("ip", c.ClientIP()))
		}
		c.Request = c.Request.WithContext(SetSessionID(ctx, sid))
	}
}

func isValidSessionID(sid string) bool {
	_, err := uuid.Parse(sid)
	return err == nil
}
