package openrouter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mapachekurt/llm-council/internal/metrics"
)

func TestClassify(t *testing.T) {
	var syntaxErr error = &json.SyntaxError{}
	tests := []struct {
		err  error
		want string
	}{
		{nil, metrics.OutcomeOK},
		{fmt.Errorf("failed to make request: %w", context.DeadlineExceeded), metrics.OutcomeTimeout},
		{&StatusError{StatusCode: 500}, metrics.OutcomeHTTPError},
		{ErrNoChoices, metrics.OutcomeEmptyContent},
		{ErrEmptyContent, metrics.OutcomeEmptyContent},
		{fmt.Errorf("failed to parse response: %w", syntaxErr), metrics.OutcomeDecodeError},
		{errors.New("connection refused"), metrics.OutcomeTransportError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, classify(tt.err), "%v", tt.err)
	}
}
