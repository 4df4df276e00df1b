package ws

import (
	"fmt"
	"slices"
)

// ValidateAck 校验确认帧
// 方法需与请求一致、code 为 0，回显频道（若有）需在请求主题之中
// 参数 ack: 确认
// 参数 method: 请求方法
// 参数 topics: 请求主题
func ValidateAck(ack *Ack, method string, topics []string) error {
	if ack == nil {
		return fmt.Errorf("%w: 确认为空", ErrStructure)
	}
	if ack.Method != method {
		return fmt.Errorf("%w: method 不匹配（预期: %s, 实际: %s）", ErrStructure, method, ack.Method)
	}
	if err := ack.Err(); err != nil {
		return err
	}
	if ack.Channel != "" && !slices.Contains(topics, ack.Channel) {
		return fmt.Errorf("%w: 回显频道 %s 不在请求主题 %v 中", ErrStructure, ack.Channel, topics)
	}
	return nil
}

// ValidatePush 校验订单簿推送的外层结构
// 参数 push: 推送
// 参数 topic: 订阅的主题
// 参数 depth: 订阅深度，不大于 0 时不校验
func ValidatePush(push *BookPush, topic string, depth int) error {
	if push == nil {
		return fmt.Errorf("%w: 推送为空", ErrStructure)
	}
	if push.Method != MethodSubscribe {
		return fmt.Errorf("%w: method 应为 %s，实际: %s", ErrStructure, MethodSubscribe, push.Method)
	}
	if push.Code != 0 {
		return fmt.Errorf("%w: code 应为 0，实际: %d", ErrStructure, push.Code)
	}
	if push.Channel != ChannelBook {
		return fmt.Errorf("%w: channel 应为 %s，实际: %s", ErrStructure, ChannelBook, push.Channel)
	}
	if push.Subscription != topic {
		return fmt.Errorf("%w: subscription 应为 %s，实际: %s", ErrStructure, topic, push.Subscription)
	}
	if depth > 0 && push.Depth != depth {
		return fmt.Errorf("%w: depth 应为 %d，实际: %d", ErrStructure, depth, push.Depth)
	}
	if len(push.Data) == 0 {
		return fmt.Errorf("%w: data 为空", ErrStructure)
	}
	return nil
}
