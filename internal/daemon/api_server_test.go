package daemon

import (
	"fmt"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"github.com/steward-ai/stewardd/internal/errors"
)

func TestMapError(t *testing.T) {
	t.Parallel()

	logger := hclog.NewNullLogger()

	tests := []struct {
		name           string
		err            error
		expectedStatus int
	}{
		{
			name:           "ErrBadRequest maps to 400",
			err:            errors.ErrBadRequest,
			expectedStatus: 400,
		},
		{
			name:           "ErrServerConflict maps to 409",
			err:            errors.ErrServerConflict,
			expectedStatus: 409,
		},
		{
			name:           "ErrServerNotFound maps to 404",
			err:            errors.ErrServerNotFound,
			expectedStatus: 404,
		},
		{
			name:           "ErrToolNotFound maps to 404",
			err:            errors.ErrToolNotFound,
			expectedStatus: 404,
		},
		{
			name:           "ErrUpstreamUnavailable maps to 502",
			err:            errors.ErrUpstreamUnavailable,
			expectedStatus: 502,
		},
		{
			name:           "ErrSandboxStartFailed maps to 502",
			err:            errors.ErrSandboxStartFailed,
			expectedStatus: 502,
		},
		{
			name:           "ErrModelUnavailable maps to 502",
			err:            errors.ErrModelUnavailable,
			expectedStatus: 502,
		},
		{
			name:           "wrapped sentinel keeps its mapping",
			err:            fmt.Errorf("install %q: %w", "fs", errors.ErrServerConflict),
			expectedStatus: 409,
		},
		{
			name:           "Unknown error maps to 500",
			err:            fmt.Errorf("unknown error"),
			expectedStatus: 500,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			statusErr := mapError(logger, tc.err)
			require.Equal(t, tc.expectedStatus, statusErr.GetStatus())
		})
	}
}
