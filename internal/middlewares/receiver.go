package middlewares

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/interledger/relay-connector/internal/ilp"
	"github.com/interledger/relay-connector/internal/services"
)

// MaxRequestSize bounds the incoming HTTP body to the largest possible
// encoded Prepare packet (envelope + fixed fields + destination + data),
// per the ASN.1 field limits in interledger/rfcs' InterledgerProtocol.asn.
const MaxRequestSize = (1 + 8) + (8 + 13 + 32) + (8 + 1024) + (8 + (1 << 15))

const octetStream = "application/octet-stream"

// Receiver decodes the HTTP body into an ILP Prepare, runs it through the
// packet pipeline, and encodes whatever Fulfill or Reject comes back as the
// HTTP response body (§4.2). It terminates the middleware chain.
type Receiver struct {
	Next services.Service
	Log  *logrus.Entry
}

func NewReceiver(next services.Service, log *logrus.Entry) *Receiver {
	return &Receiver{Next: next, Log: log}
}

func (rv *Receiver) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxRequestSize))
	if err != nil {
		rv.Log.Warn("incoming request body too large")
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		w.Write([]byte("Payload Too Large"))
		return
	}

	prepare, err := ilp.ParsePrepare(body)
	if err != nil {
		rv.Log.WithError(err).Warn("error parsing incoming prepare")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("Error parsing ILP Prepare"))
		return
	}

	req := &services.Request{
		Prepare: prepare,
		Headers: r.Header,
	}

	fulfill, callErr := rv.Next.Call(r.Context(), req)
	buffer, status := encodeResult(fulfill, callErr)

	w.Header().Set("Content-Type", octetStream)
	w.Header().Set("Content-Length", strconv.Itoa(len(buffer)))
	w.WriteHeader(status)
	w.Write(buffer)
}

func encodeResult(fulfill *ilp.Fulfill, err error) ([]byte, int) {
	if err == nil {
		buf, encErr := fulfill.Encode()
		if encErr != nil {
			return []byte{}, http.StatusInternalServerError
		}
		return buf, http.StatusOK
	}

	var reject *ilp.Reject
	if errors.As(err, &reject) {
		buf, encErr := reject.Encode()
		if encErr != nil {
			return []byte{}, http.StatusInternalServerError
		}
		return buf, http.StatusOK
	}

	return []byte{}, http.StatusInternalServerError
}
