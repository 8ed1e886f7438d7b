package health

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckAll_Empty(t *testing.T) {
	healthy, statuses := NewRegistry().CheckAll(context.Background())
	assert.True(t, healthy)
	assert.Empty(t, statuses)
}

func TestCheckAll_AggregatesFailures(t *testing.T) {
	r := NewRegistry()
	r.Register("model", func(context.Context) Status { return Status{Healthy: true, Detail: "2.1.0"} })
	r.Register("redis", Ping("redis", func(context.Context) error { return errors.New("connection refused") }))

	healthy, statuses := r.CheckAll(context.Background())
	assert.False(t, healthy)
	assert.Equal(t, []Status{
		{Name: "model", Healthy: true, Detail: "2.1.0"},
		{Name: "redis", Healthy: false, Detail: "connection refused"},
	}, statuses)
}

func TestCheckAll_ChecksGetDeadline(t *testing.T) {
	r := NewRegistry()
	var hadDeadline bool
	r.Register("db", func(ctx context.Context) Status {
		_, hadDeadline = ctx.Deadline()
		return Status{Healthy: true}
	})
	r.CheckAll(context.Background())
	assert.True(t, hadDeadline)
}
