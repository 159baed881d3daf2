// Package stream pushes newly created posts to websocket subscribers of
// their author. With Redis configured, events travel through pub/sub so
// every API instance sees every post.
package stream

import (
	"context"
	"log"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

const (
	channelPrefix = "posts:"
	channelSuffix = ":created"
)

type Hub struct {
	redis   *redis.Client
	clients map[string]map[*Client]struct{}
	mu      sync.RWMutex
	cancel  context.CancelFunc
	done    chan struct{}
}

type Client struct {
	Author string
	Send   chan []byte
}

func NewHub(redisClient *redis.Client) *Hub {
	h := &Hub{
		redis:   redisClient,
		clients: map[string]map[*Client]struct{}{},
		done:    make(chan struct{}),
	}

	if redisClient == nil {
		close(h.done)
		return h
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	pubsub := redisClient.PSubscribe(ctx, redisChannel("*"))
	go h.forward(ctx, pubsub)
	return h
}

func (h *Hub) Register(author string) *Client {
	client := &Client{
		Author: author,
		Send:   make(chan []byte, 64),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[author] == nil {
		h.clients[author] = map[*Client]struct{}{}
	}
	h.clients[author][client] = struct{}{}
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	authorClients, ok := h.clients[client.Author]
	if !ok {
		return
	}
	if _, ok := authorClients[client]; !ok {
		return
	}
	delete(authorClients, client)
	if len(authorClients) == 0 {
		delete(h.clients, client.Author)
	}
	close(client.Send)
}

// Broadcast announces a post by author. Through Redis the message reaches
// local clients via the pattern subscription; without Redis, or when the
// publish fails, it is delivered locally only.
func (h *Hub) Broadcast(author string, payload []byte) {
	if h.redis == nil {
		h.deliver(author, payload)
		return
	}

	err := h.redis.Publish(context.Background(), redisChannel(author), payload).Err()
	if err != nil {
		log.Printf("redis publish error: %v", err)
		h.deliver(author, payload)
	}
}

// Close stops the Redis subscription.
func (h *Hub) Close() {
	if h.cancel != nil {
		h.cancel()
	}
	<-h.done
}

// Done is closed once the hub has stopped listening to Redis.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

func (h *Hub) deliver(author string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[author] {
		select {
		case client.Send <- payload:
		default:
		}
	}
}

func (h *Hub) forward(ctx context.Context, pubsub *redis.PubSub) {
	defer close(h.done)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			author := authorFromChannel(msg.Channel)
			if author == "" {
				continue
			}
			h.deliver(author, []byte(msg.Payload))
		}
	}
}

func redisChannel(author string) string {
	return channelPrefix + author + channelSuffix
}

// authorFromChannel parses posts:{author}:created.
func authorFromChannel(ch string) string {
	if !strings.HasPrefix(ch, channelPrefix) || !strings.HasSuffix(ch, channelSuffix) {
		return ""
	}
	if len(ch) <= len(channelPrefix)+len(channelSuffix) {
		return ""
	}
	return ch[len(channelPrefix) : len(ch)-len(channelSuffix)]
}
