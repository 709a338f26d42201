package notify

import (
	"context"

	"furniq/internal/model"
)

// Notifier 定义降价提醒的通知接口。
type Notifier interface {
	// Send 发送提醒触发通知。
	//
	// 参数:
	//   ctx: 上下文
	//   alert: 已触发的提醒
	//   toEmail: 接收邮箱
	Send(ctx context.Context, alert model.PriceAlert, toEmail string) error
}
