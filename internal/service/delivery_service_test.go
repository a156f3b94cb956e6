package service

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wenwu/saas-platform/sublink-service/internal/models"
	"github.com/wenwu/saas-platform/sublink-service/internal/proxyconf"
	"github.com/wenwu/saas-platform/sublink-service/internal/service/servicetest"
	"go.uber.org/zap"
)

type deliveryFixture struct {
	svc   *DeliveryService
	tm    *TokenManager
	subs  *servicetest.SubscriptionStore
	nodes *servicetest.NodeStore
	clock *fakeClock
}

func newDeliveryFixture(t *testing.T) *deliveryFixture {
	t.Helper()
	tm, _, _, clock := newTestManager(t)
	subs := &servicetest.SubscriptionStore{Subscriptions: []models.Subscription{
		{ID: 10, UserID: 1, PlanID: 3, PlanName: "Pro", Status: models.SubscriptionStatusActive, EndDate: clock.t.Add(24 * time.Hour)},
	}}
	nodes := &servicetest.NodeStore{Nodes: []models.ProxyNode{
		{ID: 1, Name: "Test", Host: "1.2.3.4", Port: 443, Protocol: "vmess", UUID: "abc-123", IsActive: true},
	}}
	svc := NewDeliveryService(tm, subs, nodes, zap.NewNop())
	svc.now = clock.Now
	return &deliveryFixture{svc: svc, tm: tm, subs: subs, nodes: nodes, clock: clock}
}

func (f *deliveryFixture) token(t *testing.T) string {
	t.Helper()
	token, err := f.tm.GetOrCreate(context.Background(), 1, 10, f.clock.t.Add(24*time.Hour), 30)
	require.NoError(t, err)
	return token
}

func TestDeliver_V2RaySingleNode(t *testing.T) {
	f := newDeliveryFixture(t)

	d, err := f.svc.Deliver(context.Background(), "V2Ray", f.token(t), ScopeAllNodes)
	require.NoError(t, err)
	assert.Equal(t, proxyconf.FormatV2Ray, d.Format)
	assert.Equal(t, "Pro-v2ray.txt", d.Filename)

	raw, err := base64.StdEncoding.DecodeString(string(d.Document.Body))
	require.NoError(t, err)
	lines := strings.Split(string(raw), "\n")
	require.Len(t, lines, 1)
	require.True(t, strings.HasPrefix(lines[0], "vmess://"))

	inner, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(lines[0], "vmess://"))
	require.NoError(t, err)
	assert.Contains(t, string(inner), `"add":"1.2.3.4"`)
	assert.Contains(t, string(inner), `"id":"abc-123"`)
}

func TestDeliver_FormatCheckedBeforeToken(t *testing.T) {
	f := newDeliveryFixture(t)

	_, err := f.svc.Deliver(context.Background(), "unsupported", "garbage", ScopeAllNodes)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = f.svc.Deliver(context.Background(), "unsupported", f.token(t), ScopeAllNodes)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestDeliver_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid token", func(t *testing.T) {
		f := newDeliveryFixture(t)
		_, err := f.svc.Deliver(ctx, "clash", "nope", ScopeAllNodes)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("subscription gone", func(t *testing.T) {
		f := newDeliveryFixture(t)
		token := f.token(t)
		f.subs.Subscriptions[0].Status = models.SubscriptionStatusSuspended
		_, err := f.svc.Deliver(ctx, "clash", token, ScopeAllNodes)
		assert.ErrorIs(t, err, ErrSubscriptionNotFound)
	})

	t.Run("subscription ended", func(t *testing.T) {
		f := newDeliveryFixture(t)
		token := f.token(t)
		f.subs.Subscriptions[0].EndDate = f.clock.t.Add(-24 * time.Hour)
		_, err := f.svc.Deliver(ctx, "clash", token, ScopeAllNodes)
		assert.ErrorIs(t, err, ErrSubscriptionExpired)
	})

	t.Run("no nodes", func(t *testing.T) {
		f := newDeliveryFixture(t)
		f.nodes.Nodes[0].IsActive = false
		_, err := f.svc.Deliver(ctx, "surge", f.token(t), ScopeAllNodes)
		assert.ErrorIs(t, err, ErrNoNodes)
	})

	t.Run("node store down", func(t *testing.T) {
		f := newDeliveryFixture(t)
		token := f.token(t)
		f.nodes.Err = errors.New("boom")
		_, err := f.svc.Deliver(ctx, "surge", token, ScopeAllNodes)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrNoNodes)
	})
}

func TestDeliver_AssignedScopeUsesUserNodes(t *testing.T) {
	f := newDeliveryFixture(t)
	token := f.token(t)

	_, err := f.svc.Deliver(context.Background(), "clash", token, ScopeAssignedNodes)
	assert.ErrorIs(t, err, ErrNoNodes)

	f.nodes.UserNodes = map[int64][]models.ProxyNode{1: {
		{ID: 7, Name: "edge", Host: "edge.example.com", Port: 443, Protocol: "vless", UUID: "u-1", IsActive: true},
	}}
	d, err := f.svc.Deliver(context.Background(), "clash", token, ScopeAssignedNodes)
	require.NoError(t, err)
	assert.Equal(t, "Pro-clash.yaml", d.Filename)
	assert.Contains(t, string(d.Document.Body), "server: edge.example.com")
	assert.NotContains(t, string(d.Document.Body), "1.2.3.4")
}

func TestDeliverUniversal(t *testing.T) {
	f := newDeliveryFixture(t)

	d, err := f.svc.DeliverUniversal(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "subscription-universal.txt", d.Filename)
	raw, err := base64.StdEncoding.DecodeString(string(d.Document.Body))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "vmess://"))

	f.nodes.Nodes = nil
	_, err = f.svc.DeliverUniversal(context.Background())
	assert.ErrorIs(t, err, ErrNoNodes)
}
