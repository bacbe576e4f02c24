package refprice

import (
	"time"

	"github.com/betbot/oddsbot/internal/domain"
)

// DefaultHistoryCapacity 价格历史容量
const DefaultHistoryCapacity = 100

// History 固定容量的环形缓冲，写满后覆盖最旧的样本。非并发安全。
type History struct {
	buf   []domain.PricePoint
	start int
	n     int
}

func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &History{buf: make([]domain.PricePoint, capacity)}
}

func (h *History) Cap() int { return len(h.buf) }

func (h *History) Len() int { return h.n }

func (h *History) Append(p domain.PricePoint) {
	if h.n < len(h.buf) {
		h.buf[(h.start+h.n)%len(h.buf)] = p
		h.n++
		return
	}
	h.buf[h.start] = p
	h.start = (h.start + 1) % len(h.buf)
}

func (h *History) at(i int) domain.PricePoint {
	return h.buf[(h.start+i)%len(h.buf)]
}

func (h *History) Latest() (domain.PricePoint, bool) {
	if h.n == 0 {
		return domain.PricePoint{}, false
	}
	return h.at(h.n - 1), true
}

// Window 按到达顺序返回 ObservedAt >= since 的样本
func (h *History) Window(since time.Time) []domain.PricePoint {
	out := make([]domain.PricePoint, 0, h.n)
	for i := 0; i < h.n; i++ {
		p := h.at(i)
		if !p.ObservedAt.Before(since) {
			out = append(out, p)
		}
	}
	return out
}
