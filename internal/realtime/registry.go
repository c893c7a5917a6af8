package realtime

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"home-services/realtime-service/internal/models"
)

// Registry tracks live connections and the rooms they joined on this
// instance. Emissions are delivered locally and relayed through the bus.
//
// Emit never blocks on a slow client: frames to a full queue are dropped.
type Registry struct {
	origin  string
	bus     Bus
	metrics *Metrics

	mu      sync.RWMutex
	clients map[string]*Client
	rooms   map[models.RoomKey]map[string]*Client
	joined  map[string]map[models.RoomKey]struct{}
	users   map[string]int
}

// NewRegistry builds a registry. bus may be nil for a single instance.
func NewRegistry(origin string, bus Bus, metrics *Metrics) *Registry {
	if origin == "" {
		origin = uuid.NewString()
	}
	return &Registry{
		origin:  origin,
		bus:     bus,
		metrics: metrics,
		clients: make(map[string]*Client),
		rooms:   make(map[models.RoomKey]map[string]*Client),
		joined:  make(map[string]map[models.RoomKey]struct{}),
		users:   make(map[string]int),
	}
}

func (r *Registry) Origin() string { return r.origin }

// Register adds a connection and reports whether it is the user's first.
func (r *Registry) Register(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.clients[c.ID()]; ok {
		return false
	}
	r.clients[c.ID()] = c
	r.joined[c.ID()] = make(map[models.RoomKey]struct{})
	r.users[c.Identity.UserID]++
	return r.users[c.Identity.UserID] == 1
}

// Unregister removes a connection from every room and reports whether it
// was the user's last one.
func (r *Registry) Unregister(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.clients[c.ID()]; !ok {
		return false
	}
	for room := range r.joined[c.ID()] {
		r.removeLocked(room, c.ID())
	}
	delete(r.joined, c.ID())
	delete(r.clients, c.ID())

	r.users[c.Identity.UserID]--
	if r.users[c.Identity.UserID] <= 0 {
		delete(r.users, c.Identity.UserID)
		return true
	}
	return false
}

func (r *Registry) removeLocked(room models.RoomKey, connID string) {
	members := r.rooms[room]
	delete(members, connID)
	if len(members) == 0 {
		delete(r.rooms, room)
	}
}

// Join adds a registered connection to room. Joining twice is a no-op.
// Restricted rooms are checked against the connection identity.
func (r *Registry) Join(c *Client, room models.RoomKey) error {
	if !room.Valid() {
		return models.ErrValidation
	}
	if err := room.CanJoin(c.Identity); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rooms, ok := r.joined[c.ID()]
	if !ok {
		return models.ErrUnauthenticated
	}
	members := r.rooms[room]
	if members == nil {
		members = make(map[string]*Client)
		r.rooms[room] = members
	}
	members[c.ID()] = c
	rooms[room] = struct{}{}
	return nil
}

func (r *Registry) Leave(c *Client, room models.RoomKey) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rooms, ok := r.joined[c.ID()]; ok {
		delete(rooms, room)
	}
	r.removeLocked(room, c.ID())
}

func (r *Registry) InRoom(c *Client, room models.RoomKey) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[room][c.ID()]
	return ok
}

// HasUser reports whether userID has a connection in room on this instance.
func (r *Registry) HasUser(room models.RoomKey, userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.rooms[room] {
		if c.Identity.UserID == userID {
			return true
		}
	}
	return false
}

func (r *Registry) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Emit sends event to every connection in room, on every instance.
func (r *Registry) Emit(ctx context.Context, room models.RoomKey, event string, payload any) {
	r.emit(ctx, room.String(), "", event, payload)
}

// EmitExcept is Emit without the connection exceptID.
func (r *Registry) EmitExcept(ctx context.Context, room models.RoomKey, exceptID, event string, payload any) {
	r.emit(ctx, room.String(), exceptID, event, payload)
}

// Broadcast sends event to every connection.
func (r *Registry) Broadcast(ctx context.Context, event string, payload any) {
	r.emit(ctx, "", "", event, payload)
}

// SendTo replies to a single connection.
func (r *Registry) SendTo(c *Client, event string, payload any) bool {
	frame, err := encodeFrame(event, payload)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("[REALTIME] failed to encode frame")
		return false
	}
	if !c.enqueue(frame) {
		r.metrics.dropped()
		return false
	}
	return true
}

func (r *Registry) emit(ctx context.Context, room, except, event string, payload any) {
	frame, err := encodeFrame(event, payload)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("[REALTIME] failed to encode frame")
		return
	}

	r.deliver(room, except, frame)

	if r.bus == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), busPublishTimeout)
	defer cancel()
	err = r.bus.Publish(pubCtx, BusMessage{Origin: r.origin, Room: room, Except: except, Frame: frame})
	if err != nil {
		log.Warn().Err(err).Str("room", room).Str("event", event).Msg("[BUS] publish failed")
		return
	}
	r.metrics.bus("out")
}

// HandleBusMessage delivers a frame relayed by another instance.
func (r *Registry) HandleBusMessage(msg BusMessage) {
	if msg.Origin == r.origin {
		return
	}
	if msg.Room != "" {
		if _, err := models.ParseRoomKey(msg.Room); err != nil {
			log.Warn().Str("room", msg.Room).Msg("[BUS] unknown room")
			return
		}
	}
	r.metrics.bus("in")
	r.deliver(msg.Room, msg.Except, msg.Frame)
}

func (r *Registry) deliver(room, except string, frame []byte) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var targets map[string]*Client
	if room == "" {
		targets = r.clients
	} else {
		key, err := models.ParseRoomKey(room)
		if err != nil {
			return
		}
		targets = r.rooms[key]
	}

	for id, c := range targets {
		if id == except {
			continue
		}
		if !c.enqueue(frame) {
			r.metrics.dropped()
		}
	}
}
