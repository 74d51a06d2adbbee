package httpdto

type SendMessageRequest struct {
	ReceiverID string `json:"receiver_id" binding:"required"`
	Content    string `json:"content" binding:"required"`
	ParentID   string `json:"parent_id,omitempty"`
}

type EditMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

type MarkReadRequest struct {
	MessageIDs []string `json:"message_ids" binding:"required"`
}

type MarkReadResponse struct {
	Updated int64 `json:"updated"`
}

type UnreadCountResponse struct {
	Count int64 `json:"count"`
}
