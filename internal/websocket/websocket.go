// Package websocket 提供WebSocket连接处理与按房间推送功能
package websocket

import (
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/AnalyseDeCircuit/hostdeck/internal/session"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	wsWriteWait      = 10 * time.Second
	wsPongWait       = 60 * time.Second
	wsPingPeriod     = (wsPongWait * 9) / 10
	wsMaxMessageSize = 8 * 1024
	wsSendQueue      = 1024

	wsMsgRatePerSec = 10
	wsMsgBurst      = 20
)

// Client 代表一个 WebSocket 客户端连接
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	id      string
	remote  string
	session *session.Session

	send      chan []byte
	done      chan struct{} // closed when connection ends
	closeOnce sync.Once
}

func (c *Client) ID() string { return c.id }

// Session 建立连接时的登录会话
func (c *Client) Session() *session.Session { return c.session }

// Done 连接关闭时关闭
func (c *Client) Done() <-chan struct{} { return c.done }

// RemoteAddr 客户端地址
func (c *Client) RemoteAddr() string { return c.remote }

// Deliver 非阻塞写入发送队列
// 队列满时断开连接：房间消息不能丢，客户端重连后重新 join 会拿到完整历史
func (c *Client) Deliver(msg []byte) bool {
	if c.offer(msg) {
		return true
	}
	select {
	case <-c.done:
		return false
	default:
	}
	log.Warn().Str("client", c.id).Str("remote", c.remote).Msg("ws send queue full, closing slow client")
	c.Close()
	return false
}

// offer 非阻塞写入发送队列，队列满时丢弃，用于可被下一次快照覆盖的推送
func (c *Client) offer(msg []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Close 关闭连接，可重复调用
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func (h *Hub) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return isAllowedWebSocketOrigin(r, h.AllowedOrigins)
		},
	}
}

func isAllowedWebSocketOrigin(r *http.Request, allowed []string) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		// Non-browser clients often omit Origin.
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		log.Warn().Err(err).Str("origin", origin).Msg("ws origin parse error")
		return false
	}
	originHost := strings.ToLower(u.Hostname())
	if originHost == "" {
		return false
	}

	for _, entry := range allowed {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.EqualFold(entry, origin) || strings.EqualFold(entry, originHost) {
			return true
		}
		if strings.Contains(entry, "://") {
			if eu, err := url.Parse(entry); err == nil && strings.EqualFold(eu.Hostname(), originHost) {
				return true
			}
		}
	}

	reqHost := r.Host
	// Prefer X-Forwarded-Host for reverse proxy setups.
	if xf := r.Header.Get("X-Forwarded-Host"); xf != "" {
		reqHost = strings.TrimSpace(strings.Split(xf, ",")[0])
	}
	reqHost = strings.ToLower(strings.TrimSpace(reqHost))
	if h, _, err := net.SplitHostPort(reqHost); err == nil {
		reqHost = h
	}
	if originHost == reqHost {
		return true
	}

	log.Warn().Str("origin_host", originHost).Str("req_host", reqHost).Msg("ws origin mismatch")
	return false
}

// Serve 升级连接并启动读写循环，sess 由调用方完成认证
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	conn, err := h.upgrader().Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("ws upgrade failed")
		return
	}

	client := &Client{
		hub:     h,
		conn:    conn,
		id:      uuid.NewString(),
		remote:  r.RemoteAddr,
		session: sess,
		send:    make(chan []byte, wsSendQueue),
		done:    make(chan struct{}),
	}
	if !h.register(client) {
		_ = conn.Close()
		return
	}
	log.Debug().Str("client", client.id).Str("remote", client.remote).Msg("ws connected")

	go client.writePump()
	go client.readPump()
	h.connected(client)
}

// readPump pumps messages from the websocket connection to the hub.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.Close()
		log.Debug().Str("client", c.id).Msg("ws disconnected")
	}()

	c.conn.SetReadLimit(wsMaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	limiter := rate.NewLimiter(wsMsgRatePerSec, wsMsgBurst)

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("client", c.id).Msg("ws read error")
			}
			return
		}
		if !limiter.Allow() {
			log.Warn().Str("remote", c.remote).Msg("ws client message rate limit exceeded")
			return
		}
		c.hub.dispatch(c, msg)
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			_, _ = w.Write(message)
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
