package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/c360studio/semroute/ingress"
	"github.com/c360studio/semroute/resultwatch"
)

func TestSubmitAndWaitEmptyQuery(t *testing.T) {
	g := New(ingress.New(nil), resultwatch.New(nil))

	_, err := g.SubmitAndWait(context.Background(), "  ", time.Second)
	assert.ErrorIs(t, err, ingress.ErrEmptyQuery)
}

func TestDefaultTimeout(t *testing.T) {
	g := New(ingress.New(nil), resultwatch.New(nil))
	assert.Equal(t, resultwatch.DefaultWaitTimeout, g.timeout)

	g = New(ingress.New(nil), resultwatch.New(nil), WithTimeout(3*time.Second))
	assert.Equal(t, 3*time.Second, g.timeout)
}
