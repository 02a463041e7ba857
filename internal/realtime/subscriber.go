package realtime

import (
	"context"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RunSubscriber bridges the notifications:{userID} redis channels into the
// local hub, so events published by another instance still reach websocket
// clients connected here. Blocks; run in its own goroutine.
func RunSubscriber(ctx context.Context, rdb *redis.Client, hub *Hub) {
	sub := rdb.PSubscribe(ctx, "notifications:*")
	defer sub.Close()

	for msg := range sub.Channel() {
		raw := strings.TrimPrefix(msg.Channel, "notifications:")
		userID, err := uuid.Parse(raw)
		if err != nil {
			log.Printf("realtime: bad notification channel %q", msg.Channel)
			continue
		}
		hub.SendRawToUser(userID, []byte(msg.Payload))
	}
}
