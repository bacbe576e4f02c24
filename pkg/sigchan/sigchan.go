package sigchan

// Chan 非阻塞的信号 channel：只通知"有事发生"，不传递数据。
// 缓冲为 1 时多次 Emit 会合并成一次通知。
type Chan struct {
	c chan struct{}
}

// New 创建信号 channel；bufferSize <= 0 时按 1 处理
func New(bufferSize int) *Chan {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &Chan{c: make(chan struct{}, bufferSize)}
}

// Emit 发送信号，channel 已满时丢弃
func (c *Chan) Emit() {
	if c == nil {
		return
	}
	select {
	case c.c <- struct{}{}:
	default:
	}
}

// C 用于 select；nil Chan 返回永不就绪的 channel
func (c *Chan) C() <-chan struct{} {
	if c == nil {
		return nil
	}
	return c.c
}
