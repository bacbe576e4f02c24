package restclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/betbot/oddsbot/pkg/ratelimit"
	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

var log = logrus.WithField("module", "restclient")

// Options 客户端参数
type Options struct {
	Timeout    time.Duration
	RetryCount int // 0 表示不重试（下单类请求必须为 0）
	UserAgent  string

	// RateLimit 每秒请求数，<= 0 不限速
	RateLimit float64
	Burst     int

	// TripAfter 连续失败 N 次后熔断 BreakerTimeout，0 表示不启用。
	// 只有传输错误与 5xx 计为失败。
	TripAfter      uint32
	BreakerTimeout time.Duration
}

type Client struct {
	client  *resty.Client
	ua      string
	limiter *ratelimit.Limiter
	breaker *gobreaker.CircuitBreaker
}

func New(host string, opt Options) *Client {
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	if opt.Timeout <= 0 {
		opt.Timeout = 15 * time.Second
	}
	if opt.UserAgent == "" {
		opt.UserAgent = "oddsbot"
	}

	// resty 会自动从环境变量读取代理配置（HTTP_PROXY, HTTPS_PROXY）
	client := resty.New().
		SetBaseURL(host).
		SetTimeout(opt.Timeout)

	if opt.RetryCount > 0 {
		client.
			SetRetryCount(opt.RetryCount).
			SetRetryWaitTime(500 * time.Millisecond).
			SetRetryMaxWaitTime(5 * time.Second).
			SetRetryAfter(func(client *resty.Client, resp *resty.Response) (time.Duration, error) {
				// 429 限流时使用 Retry-After 头
				if resp != nil && resp.StatusCode() == 429 {
					if retryAfter := resp.Header().Get("Retry-After"); retryAfter != "" {
						if seconds, err := time.ParseDuration(retryAfter + "s"); err == nil {
							return seconds, nil
						}
					}
					return 5 * time.Second, nil
				}
				return 0, nil
			})
	}

	c := &Client{client: client, ua: opt.UserAgent, limiter: ratelimit.New(opt.RateLimit, opt.Burst)}
	if opt.TripAfter > 0 {
		c.breaker = newBreaker(host, opt.TripAfter, opt.BreakerTimeout)
	}
	return c
}

func newBreaker(name string, tripAfter uint32, timeout time.Duration) *gobreaker.CircuitBreaker {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= tripAfter
		},
		IsSuccessful: func(err error) bool {
			var se *StatusError
			if errors.As(err, &se) {
				return se.Status < 500
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warnf("⚡ 上游熔断状态变化 %s: %s -> %s", name, from, to)
		},
	})
}

// ErrOpen 上游熔断中，请求未发出
var ErrOpen = gobreaker.ErrOpenState

// do 限速 + 熔断后执行请求，成功时把响应体按 JSON 解码到 out。
// 不依赖响应的 Content-Type。
func (c *Client) do(ctx context.Context, send func() (*resty.Response, error), out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return errors.WithStack(err)
	}
	call := func() (interface{}, error) {
		resp, err := send()
		if err := ParseHTTPError(resp, err); err != nil {
			return nil, err
		}
		return resp, nil
	}
	var (
		res interface{}
		err error
	)
	if c.breaker == nil {
		res, err = call()
	} else {
		res, err = c.breaker.Execute(call)
	}
	if err != nil {
		return err
	}
	return decodeBody(res.(*resty.Response), out)
}

// decodeBody 解码错误不计入熔断
func decodeBody(resp *resty.Response, out any) error {
	if out == nil {
		return nil
	}
	body := bytes.TrimSpace(resp.Body())
	if len(body) == 0 {
		return ErrEmptyBody
	}
	return errors.Wrap(json.Unmarshal(body, out), "decode response")
}

// ErrEmptyBody 期望 JSON 响应但响应体为空
var ErrEmptyBody = errors.New("empty response body")

// 仅设置本次请求的默认 Header（不要再改 client 级 Header）
func (c *Client) newRequest(ctx context.Context) *resty.Request {
	r := c.client.R()
	if ctx != nil {
		r.SetContext(ctx)
	}
	r.SetHeader("Accept", "application/json")
	r.SetHeader("User-Agent", c.ua)
	return r
}

// Get 发送 GET 请求并把 JSON 响应解码到 out
func (c *Client) Get(ctx context.Context, endpoint string, params map[string]any, out any) error {
	rc := c.newRequest(ctx)
	if params != nil {
		rc.SetQueryParamsFromValues(toValues(params))
	}
	err := c.do(ctx, func() (*resty.Response, error) { return rc.Get(endpoint) }, out)
	return errors.Wrapf(err, "GET %s", endpoint)
}

// PostJSON 发送 JSON POST 请求
func (c *Client) PostJSON(ctx context.Context, endpoint string, body any, out any) error {
	rc := c.newRequest(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body)
	err := c.do(ctx, func() (*resty.Response, error) { return rc.Post(endpoint) }, out)
	return errors.Wrapf(err, "POST %s", endpoint)
}

func toValues(m map[string]any) map[string][]string {
	v := make(map[string][]string, len(m))
	for k, val := range m {
		switch t := val.(type) {
		case []string:
			v[k] = t
		default:
			v[k] = []string{fmt.Sprint(val)}
		}
	}
	return v
}

// ParseHTTPError 把传输错误与非 2xx 响应统一成 error；成功返回 nil
func ParseHTTPError(resp *resty.Response, err error) error {
	if err != nil {
		return errors.WithStack(err)
	}
	if resp == nil {
		return errors.New("empty response")
	}
	if resp.IsSuccess() {
		return nil
	}
	var body any
	b := resp.Body()
	_ = json.Unmarshal(b, &body)
	if body == nil {
		body = string(b)
	}
	return &StatusError{Status: resp.StatusCode(), Body: fmt.Sprint(body)}
}

// StatusError 非 2xx 响应
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http non-2xx: status=%d body=%s", e.Status, e.Body)
}

// IsNotFound 判断是否为 404
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == 404
}
