package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"

	"github.com/chachabrian/haulbook-backend/internal/services"
)

func ListNotifications(notifications *services.NotificationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		page := pageFromQuery(c)
		unreadOnly := cast.ToBool(c.Query("unread"))

		list, total, err := notifications.List(c.Request.Context(), caller(c).UserID, unreadOnly, page)
		if err != nil {
			respondError(c, err)
			return
		}
		respondPage(c, "Notifications retrieved", list, total, page)
	}
}

func MarkNotificationRead(notifications *services.NotificationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := notifications.MarkRead(c.Request.Context(), caller(c).UserID, c.Param("id")); err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, http.StatusOK, "Notification marked as read", nil)
	}
}

func MarkAllNotificationsRead(notifications *services.NotificationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := notifications.MarkAllRead(c.Request.Context(), caller(c).UserID)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, http.StatusOK, "Notifications marked as read", gin.H{"updated": n})
	}
}

// RegisterFCMToken stores the device token used for push notifications.
func RegisterFCMToken(notifications *services.NotificationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			FCMToken string `json:"fcmToken" binding:"required"`
		}
		if !bindJSON(c, &input) {
			return
		}

		if err := notifications.RegisterToken(c.Request.Context(), caller(c).UserID, input.FCMToken); err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, http.StatusOK, "FCM token registered successfully", nil)
	}
}

// SubmitSupportRequest forwards a contact form to the admin mailbox.
func SubmitSupportRequest(notifier services.Notifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input services.SupportRequest
		if !bindJSON(c, &input) {
			return
		}

		notifier.SupportRequest(c.Request.Context(), input)
		respondOK(c, http.StatusAccepted, "Support request received", nil)
	}
}
