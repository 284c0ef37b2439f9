package auth_test

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-authflow"
)

func TestMetricsActivitySink_CountsByType(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := auth.NewMetricsActivitySink(reg)

	f := newFixture(t, auth.WithActivitySink(metrics))
	f.registerVerified(t, "alice", "alice@x.io", "secret1")

	_, _, err := f.service.Login(context.Background(), auth.LoginMessage{Email: "alice@x.io", Password: "bad"})
	require.Error(t, err)

	counter := metrics.Collector()
	assert.Equal(t, 1.0, testutil.ToFloat64(counter.WithLabelValues(string(auth.ActivityEventAccountRegistered))))
	assert.Equal(t, 1.0, testutil.ToFloat64(counter.WithLabelValues(string(auth.ActivityEventEmailVerified))))
	assert.Equal(t, 1.0, testutil.ToFloat64(counter.WithLabelValues(string(auth.ActivityEventLoginFailure))))
	assert.Equal(t, 0.0, testutil.ToFloat64(counter.WithLabelValues(string(auth.ActivityEventLoginSuccess))))

	n, err := testutil.GatherAndCount(reg, "authflow_activity_events_total")
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestMultiActivitySink(t *testing.T) {
	first := &activityRecorder{}
	second := &activityRecorder{}
	broken := auth.ActivitySinkFunc(func(context.Context, auth.ActivityEvent) error {
		return errors.New("sink offline")
	})

	sink := auth.MultiActivitySink{first, nil, broken, second}

	err := sink.Record(context.Background(), auth.ActivityEvent{EventType: auth.ActivityEventLoginSuccess})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sink offline")

	assert.Equal(t, []auth.ActivityEventType{auth.ActivityEventLoginSuccess}, first.Types())
	assert.Equal(t, []auth.ActivityEventType{auth.ActivityEventLoginSuccess}, second.Types())
}

func TestService_SurvivesFailingSink(t *testing.T) {
	broken := auth.ActivitySinkFunc(func(context.Context, auth.ActivityEvent) error {
		return errors.New("sink offline")
	})

	f := newFixture(t, auth.WithActivitySink(broken))

	res, _ := f.register(t, "dave", "dave@x.io", "secret1")
	assert.Equal(t, "dave", res.Account.Username)
}
