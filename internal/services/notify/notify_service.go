package notify

import (
	"context"
	"encoding/json"
	"log"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/kareemadel/mustaqill_be/internal/models"
	"github.com/kareemadel/mustaqill_be/internal/realtime"
)

type NotifyService struct {
	DB  *gorm.DB
	Hub *realtime.Hub
	RDB *redis.Client
}

func NewNotifyService(db *gorm.DB, hub *realtime.Hub, rdb *redis.Client) *NotifyService {
	return &NotifyService{DB: db, Hub: hub, RDB: rdb}
}

// Send persists a notification and pushes it to the user's live feed.
// Delivery failures are logged, never propagated: notifications must not
// break the mutation that triggered them.
func (s *NotifyService) Send(userID uuid.UUID, title, message string) {
	n := models.Notification{
		UserID:  userID,
		Title:   title,
		Message: message,
	}
	if err := s.DB.Create(&n).Error; err != nil {
		log.Printf("notify: failed to store notification for %s: %v", userID, err)
		return
	}

	payload := map[string]any{
		"type":         "notification",
		"notification": n,
	}

	// With redis in play the local subscriber bridge delivers to the hub;
	// publishing AND pushing directly would double-send to local clients.
	if s.RDB != nil {
		b, _ := json.Marshal(payload)
		if err := s.RDB.Publish(context.Background(), "notifications:"+userID.String(), b).Err(); err != nil {
			log.Printf("notify: redis publish failed for %s: %v", userID, err)
			s.Hub.SendToUser(userID, payload)
		}
		return
	}
	if s.Hub != nil {
		s.Hub.SendToUser(userID, payload)
	}
}
