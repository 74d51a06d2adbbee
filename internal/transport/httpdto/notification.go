package httpdto

type MarkNotificationsReadRequest struct {
	NotificationIDs []string `json:"notification_ids" binding:"required"`
}
