package realtime

import (
	"sync"

	"home-services/realtime-service/internal/models"
)

// Client is one authenticated websocket connection.
//
// Send is never closed by the server so concurrent emitters cannot panic;
// done tells the connection goroutines to stop.
type Client struct {
	Identity models.Identity
	Send     chan []byte

	done      chan struct{}
	closeOnce sync.Once
}

func NewClient(id models.Identity, sendQueueSize int) *Client {
	if sendQueueSize <= 0 {
		sendQueueSize = defaultSendQueueSize
	}
	return &Client{
		Identity: id,
		Send:     make(chan []byte, sendQueueSize),
		done:     make(chan struct{}),
	}
}

func (c *Client) ID() string { return c.Identity.ConnectionID }

func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close is idempotent and does not close Send.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// enqueue never blocks: a full queue or a closing client drops the frame.
func (c *Client) enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.Send <- frame:
		return true
	default:
		return false
	}
}
