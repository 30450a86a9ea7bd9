package api

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) PingContext(ctx context.Context) error { return f(ctx) }

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name     string
		db       Pinger
		wantCode int
		wantBody string
	}{
		{
			name:     "no database",
			wantCode: http.StatusOK,
			wantBody: `{"success":true,"status":"ok","database":"unchecked"}`,
		},
		{
			name:     "database reachable",
			db:       pingFunc(func(context.Context) error { return nil }),
			wantCode: http.StatusOK,
			wantBody: `{"success":true,"status":"ok","database":"ok"}`,
		},
		{
			name:     "database down",
			db:       pingFunc(func(context.Context) error { return errors.New("dial tcp 10.0.0.5:5432: refused") }),
			wantCode: http.StatusServiceUnavailable,
			wantBody: `{"success":false,"status":"degraded","database":"unreachable"}`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, NewHealthHandler(tc.db), http.MethodGet, "/health", nil)
			assert.Equal(t, tc.wantCode, rec.Code)
			assert.JSONEq(t, tc.wantBody, rec.Body.String())
		})
	}
}
