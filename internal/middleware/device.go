package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/hongslab/aga-care/backend/internal/model/device"
	identityService "github.com/hongslab/aga-care/backend/internal/service/identity"
	"github.com/hongslab/aga-care/backend/pkg/utils"
)

type deviceContextKey struct{}

// RequireDevice verifies the caller's device identity before family
// routes run. The id arrives in the X-Device-ID header, or in the
// deviceId query parameter for EventSource and WebSocket clients that
// cannot set headers.
func RequireDevice(provider identityService.Provider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Device-ID")
			if id == "" {
				id = r.URL.Query().Get("deviceId")
			}
			if id == "" {
				utils.RespondError(w, http.StatusUnauthorized, "device identity required")
				return
			}

			dev, err := provider.Verify(r.Context(), id)
			if err != nil {
				if errors.Is(err, identityService.ErrUnknownDevice) {
					utils.RespondError(w, http.StatusUnauthorized, "unknown device identity")
					return
				}
				utils.RespondError(w, http.StatusInternalServerError, "identity verification failed")
				return
			}

			ctx := context.WithValue(r.Context(), deviceContextKey{}, dev)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// DeviceFrom returns the verified device stored by RequireDevice.
func DeviceFrom(ctx context.Context) (device.Device, bool) {
	dev, ok := ctx.Value(deviceContextKey{}).(device.Device)
	return dev, ok
}
