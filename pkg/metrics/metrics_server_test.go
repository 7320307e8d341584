/*
Copyright 2022 The Numaproj Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func Test_MetricsServer_WithHealthCheckExecutor(t *testing.T) {
	executed := false
	executor := func() error {
		executed = true
		return nil
	}
	ms := NewMetricsServer(":0", WithHealthCheckExecutor(executor))
	assert.Equal(t, 1, len(ms.healthCheckExecutors))
	err := ms.healthCheckExecutors[0]()
	assert.NoError(t, err)
	assert.True(t, executed)
}

func Test_MetricsServer_Endpoints(t *testing.T) {
	healthy := true
	ms := NewMetricsServer(":0", WithHealthCheckExecutor(func() error {
		if healthy {
			return nil
		}
		return errors.New("not healthy")
	}))
	h := ms.handler(zap.NewNop().Sugar())

	for _, tc := range []struct {
		path string
		want int
	}{
		{"/livez", http.StatusNoContent},
		{"/readyz", http.StatusNoContent},
		{"/metrics", http.StatusOK},
	} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))
		assert.Equal(t, tc.want, rec.Code, tc.path)
	}

	healthy = false
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "not healthy", rec.Body.String())
}

func Test_MetricsServer_StartShutdown(t *testing.T) {
	ms := NewMetricsServer("127.0.0.1:0")
	shutdown, err := ms.Start(context.Background())
	assert.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
