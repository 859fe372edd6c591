package websocket

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"
)

// Event 服务端与客户端之间的消息信封
type Event struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// Subscriber 可以接收推送的一端
type Subscriber interface {
	ID() string
	// Deliver 非阻塞投递，失败时返回 false；不能静默丢弃消息后继续投递后续消息
	Deliver(msg []byte) bool
}

// HandlerFunc 处理客户端发来的事件
type HandlerFunc func(c *Client, data json.RawMessage)

// Hub 按房间分组的推送中心
// 同一房间内的消息按 Broadcast 调用顺序投递
type Hub struct {
	// AllowedOrigins 额外允许的 Origin（完整 URL 或主机名）
	AllowedOrigins []string

	mu      sync.RWMutex
	rooms   map[string]map[Subscriber]struct{}
	members map[Subscriber]map[string]struct{}
	clients map[*Client]struct{}

	handlersMu sync.RWMutex
	handlers   map[string]HandlerFunc

	onConnect    []func(c *Client)
	onDisconnect []func(c *Client)
	shutdown     bool
}

// NewHub 创建推送中心
func NewHub() *Hub {
	return &Hub{
		rooms:    make(map[string]map[Subscriber]struct{}),
		members:  make(map[Subscriber]map[string]struct{}),
		clients:  make(map[*Client]struct{}),
		handlers: make(map[string]HandlerFunc),
	}
}

// Handle 注册入站事件处理器
func (h *Hub) Handle(event string, fn HandlerFunc) {
	h.handlersMu.Lock()
	h.handlers[event] = fn
	h.handlersMu.Unlock()
}

// OnConnect 注册连接建立回调，在读写循环启动后调用
func (h *Hub) OnConnect(fn func(c *Client)) {
	h.mu.Lock()
	h.onConnect = append(h.onConnect, fn)
	h.mu.Unlock()
}

func (h *Hub) connected(c *Client) {
	h.mu.RLock()
	callbacks := make([]func(*Client), len(h.onConnect))
	copy(callbacks, h.onConnect)
	h.mu.RUnlock()
	for _, fn := range callbacks {
		fn(c)
	}
}

// OnDisconnect 注册连接断开回调
func (h *Hub) OnDisconnect(fn func(c *Client)) {
	h.mu.Lock()
	h.onDisconnect = append(h.onDisconnect, fn)
	h.mu.Unlock()
}

func (h *Hub) dispatch(c *Client, msg []byte) {
	var in struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(msg, &in); err != nil || in.Event == "" {
		log.Debug().Str("client", c.id).Msg("ws: malformed message ignored")
		return
	}
	h.handlersMu.RLock()
	fn, ok := h.handlers[in.Event]
	h.handlersMu.RUnlock()
	if !ok {
		log.Debug().Str("client", c.id).Str("event", in.Event).Msg("ws: unknown event")
		return
	}
	fn(c, in.Data)
}

// Join 订阅房间
func (h *Hub) Join(room string, s Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.rooms[room]
	if !ok {
		subs = make(map[Subscriber]struct{})
		h.rooms[room] = subs
	}
	subs[s] = struct{}{}
	rooms, ok := h.members[s]
	if !ok {
		rooms = make(map[string]struct{})
		h.members[s] = rooms
	}
	rooms[room] = struct{}{}
}

// Leave 退订房间
func (h *Hub) Leave(room string, s Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(room, s)
}

func (h *Hub) leaveLocked(room string, s Subscriber) {
	if subs, ok := h.rooms[room]; ok {
		delete(subs, s)
		if len(subs) == 0 {
			delete(h.rooms, room)
		}
	}
	if rooms, ok := h.members[s]; ok {
		delete(rooms, room)
		if len(rooms) == 0 {
			delete(h.members, s)
		}
	}
}

// LeaveAll 退出所有房间
func (h *Hub) LeaveAll(s Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for room := range h.members[s] {
		h.leaveLocked(room, s)
	}
}

// CloseRoom 清空房间的所有订阅
func (h *Hub) CloseRoom(room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.rooms[room] {
		h.leaveLocked(room, s)
	}
}

// RoomSize 房间订阅数
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Broadcast 向房间内所有订阅者推送事件
func (h *Hub) Broadcast(room, event string, data interface{}) {
	msg, err := json.Marshal(Event{Event: event, Data: data})
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("ws: marshal failed")
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.rooms[room] {
		s.Deliver(msg)
	}
}

// BroadcastAll 向所有已连接客户端推送事件
// 只用于周期快照，慢客户端直接丢弃该帧
func (h *Hub) BroadcastAll(event string, data interface{}) {
	msg, err := json.Marshal(Event{Event: event, Data: data})
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("ws: marshal failed")
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.offer(msg) {
			log.Debug().Str("client", c.id).Str("event", event).Msg("ws client slow, dropping snapshot")
		}
	}
}

// Emit 只推送给单个订阅者
func (h *Hub) Emit(s Subscriber, event string, data interface{}) bool {
	msg, err := json.Marshal(Event{Event: event, Data: data})
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("ws: marshal failed")
		return false
	}
	return s.Deliver(msg)
}

// ClientCount 当前连接数
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.shutdown {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	for room := range h.members[c] {
		h.leaveLocked(room, c)
	}
	callbacks := make([]func(*Client), len(h.onDisconnect))
	copy(callbacks, h.onDisconnect)
	h.mu.Unlock()

	for _, fn := range callbacks {
		fn(c)
	}
}

// Shutdown 关闭所有连接
func (h *Hub) Shutdown() {
	h.mu.Lock()
	if h.shutdown {
		h.mu.Unlock()
		return
	}
	h.shutdown = true
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	log.Info().Int("clients", len(clients)).Msg("ws hub: shutting down")
	for _, c := range clients {
		c.Close()
	}
}
