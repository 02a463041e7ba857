package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kareemadel/mustaqill_be/internal/models"
	"github.com/kareemadel/mustaqill_be/internal/realtime"
)

type NotificationHandler struct {
	DB  *gorm.DB
	Hub *realtime.Hub
}

func NewNotificationHandler(db *gorm.DB, hub *realtime.Hub) *NotificationHandler {
	return &NotificationHandler{DB: db, Hub: hub}
}

func (h *NotificationHandler) List(c *fiber.Ctx) error {
	userID, err := getAuth(c)
	if err != nil {
		return fail(c, err)
	}

	var notifications []models.Notification
	if err := h.DB.
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(100).
		Find(&notifications).Error; err != nil {
		return fail(c, err)
	}

	var unread int64
	h.DB.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&unread)

	return c.JSON(fiber.Map{
		"success": true,
		"data":    notifications,
		"meta":    fiber.Map{"unread": unread},
	})
}

func (h *NotificationHandler) MarkRead(c *fiber.Ctx) error {
	userID, err := getAuth(c)
	if err != nil {
		return fail(c, err)
	}

	notifID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid notification ID",
		})
	}

	res := h.DB.Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", notifID, userID).
		Update("is_read", true)
	if res.Error != nil {
		return fail(c, res.Error)
	}
	if res.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Notification not found",
		})
	}

	return c.JSON(fiber.Map{"success": true})
}

func (h *NotificationHandler) MarkAllRead(c *fiber.Ctx) error {
	userID, err := getAuth(c)
	if err != nil {
		return fail(c, err)
	}

	if err := h.DB.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true).Error; err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{"success": true})
}

// WebSocketHandler streams live notifications to a connected user. Identity
// comes from the session cookie parsed by the middleware in front of the
// upgrade, never from the client.
func (h *NotificationHandler) WebSocketHandler(c *websocket.Conn) {
	userID, _ := c.Locals("userId").(string)
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		log.Println("WebSocket: missing session identity:", err)
		c.Close()
		return
	}

	client := &realtime.Client{
		ID:     uuid.New().String(),
		UserID: userUUID,
		Conn:   realtime.NewWebSocketConn(c),
		Send:   make(chan []byte, 256),
	}

	h.Hub.RegisterClient(client)
	defer func() {
		h.Hub.UnregisterClient(client)
		log.Printf("WebSocket: user %s disconnected\n", userID)
	}()

	go func() {
		for msg := range client.Send {
			if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Println("WebSocket write error:", err)
				return
			}
		}
	}()

	// Read loop keeps the connection alive; clients only send ping/pong.
	for {
		var payload map[string]interface{}
		if err := c.ReadJSON(&payload); err != nil {
			break
		}
	}
}
