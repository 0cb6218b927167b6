package api

import (
	"context"
	"net/http"

	"gv-go/internal/gv"
)

// Notifications is the notification client.
type Notifications struct {
	*Resource[gv.Notification]
}

var _ gv.NotificationAPI = (*Notifications)(nil)

// NewNotifications creates the notification client.
func NewNotifications(c *Client) *Notifications {
	return &Notifications{Resource: NewResource[gv.Notification](c, gv.ResourceNotifications)}
}

// MarkRead marks notification id read.
func (n *Notifications) MarkRead(ctx context.Context, id int64) (*gv.Notification, error) {
	_, resp, err := n.c.do(ctx, request{method: http.MethodPatch, path: n.itemPath(id, "read"), write: true})
	if err != nil {
		return nil, err
	}
	return decodeItem[gv.Notification](resp)
}
