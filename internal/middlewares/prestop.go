package middlewares

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// StopFunc drains whatever background work needs to finish before the
// process exits (the telemetry sink's queues, in this connector).
type StopFunc func()

// PreStop responds to a GET on the configured path by flipping into a
// stopping state, draining via Stop, and only then answering the request.
// While stopping, every other request gets a 503 so a load balancer stops
// sending new traffic before the process actually exits.
type PreStop struct {
	Path     string
	Stop     StopFunc
	Log      *logrus.Entry
	stopping int32
}

func NewPreStop(path string, stop StopFunc, log *logrus.Entry) *PreStop {
	return &PreStop{Path: path, Stop: stop, Log: log}
}

func (p *PreStop) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p.Path == "" {
			next.ServeHTTP(w, r)
			return
		}

		if atomic.LoadInt32(&p.stopping) == 1 {
			p.Log.Trace("relay is stopping; dropping request")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("service stopping"))
			return
		}

		if r.Method == http.MethodGet && r.URL.Path == p.Path {
			atomic.StoreInt32(&p.stopping, 1)
			p.Log.Info("relay stopping")
			start := time.Now()
			if p.Stop != nil {
				p.Stop()
			}
			p.Log.WithField("duration", time.Since(start)).Info("relay stopped")
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
