package services

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/interledger/relay-connector/internal/ilp"
)

// DebugService optionally logs each Prepare, Fulfill, and Reject flowing
// through the pipeline (§4.3.5), grounded on
// interledger-relay's services/debug.rs. Reject codes on the fixed
// WarnsOnReject allowlist log at warning; everything else logs at debug.
type DebugService struct {
	LogPrepare bool
	LogFulfill bool
	LogReject  bool
	Log        *logrus.Entry
	Next       Service
}

func NewDebugService(logPrepare, logFulfill, logReject bool, log *logrus.Entry, next Service) *DebugService {
	return &DebugService{LogPrepare: logPrepare, LogFulfill: logFulfill, LogReject: logReject, Log: log, Next: next}
}

func (s *DebugService) Call(ctx context.Context, req *Request) (*ilp.Fulfill, error) {
	if s.LogPrepare {
		s.Log.WithFields(logrus.Fields{
			"amount":      req.Prepare.Amount,
			"destination": string(req.Prepare.Destination),
			"expires_at":  req.Prepare.ExpiresAt,
		}).Debug("request")
	}

	fulfill, err := s.Next.Call(ctx, req)

	fields := logrus.Fields{"destination": string(req.Prepare.Destination)}
	switch {
	case err == nil:
		if s.LogFulfill {
			s.Log.WithFields(fields).Debug("response: fulfill")
		}
	default:
		if !s.LogReject {
			break
		}
		var reject *ilp.Reject
		if errors.As(err, &reject) {
			fields["code"] = string(reject.Code)
			fields["message"] = string(reject.Message)
			if ilp.WarnsOnReject(reject.Code) {
				s.Log.WithFields(fields).Warn("response: reject")
			} else {
				s.Log.WithFields(fields).Debug("response: reject")
			}
		} else {
			s.Log.WithFields(fields).WithError(err).Debug("response: error")
		}
	}

	return fulfill, err
}
