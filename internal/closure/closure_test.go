package closure

import (
	"testing"

	"github.com/bhandras/wslink/internal/logger"
	"github.com/bhandras/wslink/internal/reactive"
	"github.com/stretchr/testify/require"
)

func TestOnCloseRoutesByCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		code         int
		wantTimeout  int
		wantNavigate int
	}{
		{name: "timeout", code: CodeTimeout, wantTimeout: 1},
		{name: "navigatedAway", code: CodeNavigatedAway, wantNavigate: 1},
		{name: "normal", code: 1000},
		{name: "abnormal", code: CodeAbnormal},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			timeouts, navigates := 0, 0
			p := New(
				reactive.ActionFunc(func() { timeouts++ }),
				reactive.ActionFunc(func() { navigates++ }),
				logger.Nop(),
			)
			invoked := p.OnClose(Event{Code: tt.code})
			require.Equal(t, tt.wantTimeout, timeouts)
			require.Equal(t, tt.wantNavigate, navigates)
			require.Equal(t, tt.wantTimeout+tt.wantNavigate, invoked)
		})
	}
}

func TestOnCloseSkipsMissingOrDisabledActions(t *testing.T) {
	t.Parallel()

	ran := 0
	p := New(nil, reactive.Disabled{Action: reactive.ActionFunc(func() { ran++ })}, logger.Nop())

	require.Zero(t, p.OnClose(Event{Code: CodeTimeout}))
	require.Zero(t, p.OnClose(Event{Code: CodeNavigatedAway}))
	require.Zero(t, ran)
}
