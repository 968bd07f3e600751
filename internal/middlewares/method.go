package middlewares

import (
	"net/http"

	"github.com/sirupsen/logrus"
)

// Method responds with 405 to any request using a method other than the
// one configured (POST, for the ILP ingress route).
type Method struct {
	Method string
	Log    *logrus.Entry
}

func NewMethod(method string, log *logrus.Entry) *Method {
	return &Method{Method: method, Log: log}
}

func (m *Method) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == m.Method {
			next.ServeHTTP(w, r)
			return
		}
		m.Log.WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Warn("unexpected request method")
		w.WriteHeader(http.StatusMethodNotAllowed)
	})
}
