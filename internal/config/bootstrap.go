package config

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/interledger/relay-connector/internal/client"
	"github.com/interledger/relay-connector/internal/ilp"
)

// selfBootstrapAddress is the dummy sender address used only for the
// Dynamic-root ILDCP bootstrap request, before the connector knows its own
// address (§6, grounded on original_source's `self.ildcp`).
const selfBootstrapAddress = "self.ildcp"

// maxBootstrapAttempts and maxBootstrapElapsed bound the Dynamic root's
// retry loop (§4.5 "Bootstrap client").
const maxBootstrapAttempts = 5

var maxBootstrapElapsed = 10 * time.Second

// Resolve determines the connector's own address and asset info: returned
// directly for a Static root, or fetched from the parent via ILDCP for a
// Dynamic root (§6).
func (c ConnectorRoot) Resolve(ctx context.Context, log *logrus.Entry) (ilp.IldcpResponse, error) {
	switch c.Type {
	case "Static":
		addr, err := ilp.NewAddress(c.Address)
		if err != nil {
			return ilp.IldcpResponse{}, fmt.Errorf("root.address: %w", err)
		}
		return ilp.IldcpResponse{
			ClientAddress: addr,
			AssetScale:    c.AssetScale,
			AssetCode:     []byte(c.AssetCode),
		}, nil
	case "Dynamic":
		return c.bootstrapDynamic(ctx, log)
	default:
		return ilp.IldcpResponse{}, fmt.Errorf("root: unknown type %q", c.Type)
	}
}

func (c ConnectorRoot) bootstrapDynamic(ctx context.Context, log *logrus.Entry) (ilp.IldcpResponse, error) {
	bootstrapAddr := ilp.MustAddress(selfBootstrapAddress)
	cl := client.New(bootstrapAddr, nil, log)

	prepare := ilp.NewIldcpRequestPrepare(time.Now().Add(client.DefaultTimeout))
	headers := map[string]string{
		"Authorization": c.ParentAuth,
		"ILP-Peer-Name": c.Name,
	}

	exp := backoff.NewExponentialBackOff()
	exp.MaxElapsedTime = maxBootstrapElapsed
	bo := backoff.WithMaxRetries(exp, uint64(maxBootstrapAttempts-1))
	bo2 := backoff.WithContext(bo, ctx)

	var result ilp.IldcpResponse
	op := func() error {
		reqCtx, cancel := context.WithTimeout(ctx, client.DefaultTimeout)
		defer cancel()
		fulfill, err := cl.SendWithHeaders(reqCtx, c.ParentEndpoint, headers, prepare)
		if err != nil {
			log.WithError(err).Warn("ildcp bootstrap attempt failed")
			return err
		}
		resp, err := ilp.ParseIldcpResponse(fulfill)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("invalid ildcp response: %w", err))
		}
		result = resp
		return nil
	}

	if err := backoff.Retry(op, bo2); err != nil {
		return ilp.IldcpResponse{}, fmt.Errorf("ildcp bootstrap: %w", err)
	}
	return result, nil
}
