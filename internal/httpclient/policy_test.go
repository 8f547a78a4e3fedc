package httpclient_test

import (
	"testing"
	"time"

	"github.com/book-expert/narration-service/internal/httpclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryPolicy_Delay(t *testing.T) {
	t.Parallel()

	policy := httpclient.RetryPolicy{
		MaxRetries:    5,
		BaseDelay:     100 * time.Millisecond,
		MaxDelay:      time.Second,
		BackoffFactor: 2,
	}

	expected := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		time.Second,
		time.Second,
	}

	for retry, want := range expected {
		assert.Equal(t, want, policy.Delay(retry), "retry %d", retry)
	}
}

func TestRetryPolicy_DelayHugeExponentIsCapped(t *testing.T) {
	t.Parallel()

	policy := httpclient.RetryPolicy{
		MaxRetries:    1,
		BaseDelay:     time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 10,
	}

	assert.Equal(t, 30*time.Second, policy.Delay(400))
}

func TestRetryPolicy_Validate(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		policy  httpclient.RetryPolicy
		wantErr error
	}{
		{
			name:    "default policy",
			policy:  httpclient.DefaultRetryPolicy(),
			wantErr: nil,
		},
		{
			name: "base above max",
			policy: httpclient.RetryPolicy{
				MaxRetries: 1, BaseDelay: 2 * time.Second, MaxDelay: time.Second, BackoffFactor: 2,
			},
			wantErr: httpclient.ErrBaseDelayExceedsMax,
		},
		{
			name: "shrinking factor",
			policy: httpclient.RetryPolicy{
				MaxRetries: 1, BaseDelay: time.Second, MaxDelay: time.Second, BackoffFactor: 0.5,
			},
			wantErr: httpclient.ErrBackoffFactorRange,
		},
		{
			name: "negative delay",
			policy: httpclient.RetryPolicy{
				MaxRetries: 1, BaseDelay: -time.Second, MaxDelay: time.Second, BackoffFactor: 2,
			},
			wantErr: httpclient.ErrNegativeDelay,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			err := testCase.policy.Validate()
			if testCase.wantErr == nil {
				require.NoError(t, err)

				return
			}

			require.ErrorIs(t, err, testCase.wantErr)
		})
	}
}

func TestRetryPolicy_WorstCaseLatency(t *testing.T) {
	t.Parallel()

	policy := httpclient.RetryPolicy{
		MaxRetries:    2,
		BaseDelay:     100 * time.Millisecond,
		MaxDelay:      150 * time.Millisecond,
		BackoffFactor: 2,
	}

	// 3 attempts of 1s, then 100ms and 150ms of backoff.
	assert.Equal(t, 3*time.Second+250*time.Millisecond, policy.WorstCaseLatency(time.Second))
}

func TestClassify(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		statusCode int
		err        error
		want       httpclient.OutcomeKind
	}{
		{statusCode: 200, want: httpclient.OutcomeSuccess},
		{statusCode: 204, want: httpclient.OutcomeSuccess},
		{statusCode: 302, want: httpclient.OutcomeSuccess},
		{statusCode: 399, want: httpclient.OutcomeSuccess},
		{statusCode: 400, want: httpclient.OutcomePermanent},
		{statusCode: 404, want: httpclient.OutcomePermanent},
		{statusCode: 429, want: httpclient.OutcomePermanent},
		{statusCode: 499, want: httpclient.OutcomePermanent},
		{statusCode: 500, want: httpclient.OutcomeRetryable},
		{statusCode: 503, want: httpclient.OutcomeRetryable},
		{statusCode: 0, err: httpclient.ErrAttemptTimeout, want: httpclient.OutcomeRetryable},
	}

	for _, testCase := range testCases {
		assert.Equal(t, testCase.want, httpclient.Classify(testCase.statusCode, testCase.err),
			"status %d", testCase.statusCode)
	}
}
