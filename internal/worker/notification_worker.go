package worker

import (
	"github.com/spec-kit/protocol-service/internal/service"
)

// StartNotificationWorker registers webhook handlers.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}
