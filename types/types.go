package types

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ChannelInfo struct {
	ChannelId  uuid.UUID
	Ip         string
	OutBound   chan *RequestEvent
	CreateTime time.Time

	ctx context.Context
}

func NewChannelInfo(ctx context.Context, ip string, sendEvents chan *RequestEvent) *ChannelInfo {
	return &ChannelInfo{
		ChannelId:  uuid.New(),
		OutBound:   sendEvents,
		Ip:         ip,
		CreateTime: time.Now(),
		ctx:        ctx,
	}
}

// Done is closed once the connection that owns the channel goes away.
func (c *ChannelInfo) Done() <-chan struct{} {
	return c.ctx.Done()
}

type RequestEvent struct {
	ID         uuid.UUID
	Method     string
	Payload    []byte
	CreateTime time.Time           `json:"-"`
	Result     chan *ResponseEvent `json:"-"`
}

type ResponseEvent struct {
	ID      uuid.UUID
	Payload []byte
	Error   string
}

type ConnectedCompleted struct {
	ChannelId uuid.UUID
}

type ctxKey int

const remoteIPKey ctxKey = iota

func CtxWithIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, remoteIPKey, ip)
}

// CtxGetIP returns the remote address the auth handler attached to the request.
func CtxGetIP(ctx context.Context) (string, bool) {
	ip, ok := ctx.Value(remoteIPKey).(string)
	return ip, ok
}
