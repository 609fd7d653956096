package runtime

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// ReadyCheck is a named dependency probe exposed on /readyz.
type ReadyCheck struct {
	Name  string
	Check func(context.Context) error
}

const readyProbeTimeout = 2 * time.Second

// NewBaseMuxWithReady returns a mux pre-wired with liveness and readiness
// endpoints. /healthz always answers 200; /readyz runs every check and
// answers 503 listing the failing dependencies when any of them errors.
func NewBaseMuxWithReady(checks ...ReadyCheck) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		failed := false
		for _, c := range checks {
			if c.Check == nil {
				continue
			}
			if err := probe(r.Context(), c.Check); err != nil {
				if !failed {
					w.WriteHeader(http.StatusServiceUnavailable)
					failed = true
				}
				name := c.Name
				if name == "" {
					name = "dependency"
				}
				fmt.Fprintf(w, "%s: %v\n", name, err)
			}
		}
		if !failed {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		}
	})
	return mux
}

func probe(ctx context.Context, check func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, readyProbeTimeout)
	defer cancel()
	return check(ctx)
}
