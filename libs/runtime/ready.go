package runtime

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
)

// ReadyCheck is a named dependency check shared by /readyz and the gRPC health service.
type ReadyCheck struct {
	Name  string
	Check func(context.Context) error
}

// RunChecks executes every check with its own timeout and joins the failures.
func RunChecks(ctx context.Context, timeout time.Duration, checks ...ReadyCheck) error {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	var failures []error
	for _, check := range checks {
		if check.Check == nil {
			continue
		}
		checkCtx, cancel := context.WithTimeout(ctx, timeout)
		err := check.Check(checkCtx)
		cancel()
		if err != nil {
			name := check.Name
			if name == "" {
				name = "dependency"
			}
			failures = append(failures, errors.New(name+": "+err.Error()))
		}
	}
	return errors.Join(failures...)
}

func NewBaseMuxWithReady(checks ...ReadyCheck) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writePlain(w, http.StatusOK, "ok")
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := RunChecks(r.Context(), 2*time.Second, checks...); err != nil {
			writePlain(w, http.StatusServiceUnavailable, strings.ReplaceAll(err.Error(), "\n", "; "))
			return
		}
		writePlain(w, http.StatusOK, "ok")
	})
	return mux
}

func writePlain(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
