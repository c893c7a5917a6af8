package realtime

import "time"

const (
	// Inline attachments travel base64 encoded inside send-message frames.
	defaultMaxFrameBytes = 15 << 20

	defaultSendQueueSize = 256
	minSendQueueSize     = 32

	defaultWriteTimeout     = 5 * time.Second
	defaultHandshakeTimeout = 10 * time.Second
	closeGrace              = time.Second

	heartbeatInterval = 25 * time.Second
	heartbeatTimeout  = 5 * time.Second
	maxPingFailures   = 3

	// Per-connection rate limit (events per window).
	rateLimitEvents = 120
	rateLimitWindow = 10 * time.Second

	busPublishTimeout = 2 * time.Second
)
