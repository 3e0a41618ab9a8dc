package notification

import (
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"github.com/nao1215/socialhub/pkg/event"
	"github.com/nao1215/socialhub/pkg/middleware"
)

// defaultHeartbeat はpingイベントの既定の送信間隔。
const defaultHeartbeat = 25 * time.Second

// sessionCredential はライブセッション確立時の資格情報を取り出す。
// tokenヘッダー、Authorizationヘッダー、tokenクエリの順に参照する。
func sessionCredential(c *gin.Context) string {
	if token := c.GetHeader("token"); token != "" {
		return token
	}
	if token, ok := middleware.BearerToken(c.GetHeader("Authorization")); ok {
		return token
	}
	return c.Query("token")
}

// handleStream はライブセッション（SSE）を確立するハンドラ。
// 認証に失敗した場合はRegistryに触れずに切断する。
func (s *Server) handleStream() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := s.authenticator.Authenticate(c.Request.Context(), sessionCredential(c))
		if err != nil {
			if IsAuthError(err) {
				log.Printf("[Stream] 認証に失敗しました: %v", err)
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication error: " + err.Error()})
				return
			}
			log.Printf("[Stream] ユーザーの照会に失敗: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ライブセッションの確立に失敗しました"})
			return
		}

		session := NewSession(*identity, defaultSessionBuffer)
		s.registry.Register(identity.ID, session)
		log.Printf("[Stream] ライブセッションを確立しました: user=%s, session=%s", identity.ID, session.ID)
		defer func() {
			session.Close()
			s.registry.Unregister(identity.ID, session)
			log.Printf("[Stream] ライブセッションを終了しました: user=%s, session=%s", identity.ID, session.ID)
		}()

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")
		c.Status(http.StatusOK)

		if connected, err := event.New(event.TypeConnected, event.ConnectedData{
			SessionID: session.ID,
			UserID:    identity.ID,
		}); err == nil {
			renderEvent(c, *connected)
		}
		c.Writer.Flush()

		heartbeat := time.NewTicker(s.heartbeat)
		defer heartbeat.Stop()

		ctx := c.Request.Context()
		c.Stream(func(_ io.Writer) bool {
			select {
			case <-ctx.Done():
				return false
			case <-session.Done():
				return false
			case ev := <-session.Events():
				renderEvent(c, ev)
				return true
			case <-heartbeat.C:
				c.Render(-1, sse.Event{Event: string(event.TypePing), Data: time.Now().UTC().Format(time.RFC3339)})
				return true
			}
		})
	}
}

// renderEvent はイベントを1件、SSE形式で書き込む。
func renderEvent(c *gin.Context, ev event.Event) {
	c.Render(-1, sse.Event{
		Id:    ev.ID,
		Event: string(ev.Type),
		Data:  ev.Data,
	})
}
