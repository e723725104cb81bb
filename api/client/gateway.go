package client

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/encrypted-survey/api"
	"github.com/vocdoni/encrypted-survey/gateway"
	"github.com/vocdoni/encrypted-survey/types"
)

// Info returns the public parameters of the remote gateway.
func (c *HTTPclient) Info(ctx context.Context) (*gateway.Info, error) {
	info := &gateway.Info{}
	if err := c.call(ctx, HTTPGET, nil, info, nil, api.GatewayInfoEndpoint); err != nil {
		return nil, err
	}
	return info, nil
}

// Decrypt asks the remote gateway to decrypt a handle for the holder of
// the credential in req.
func (c *HTTPclient) Decrypt(ctx context.Context, req *gateway.DecryptRequest) (*gateway.SealedValue, error) {
	sealed := &gateway.SealedValue{}
	if err := c.call(ctx, HTTPPOST, req, sealed, nil, api.GatewayDecryptEndpoint); err != nil {
		return nil, err
	}
	return sealed, nil
}

// EncryptRemote asks the node to encrypt weight. The node learns the
// weight; Account encrypts locally instead.
func (c *HTTPclient) EncryptRemote(ctx context.Context, weight uint64, contract, sender common.Address) (types.Handle, types.HexBytes, error) {
	resp := &api.EncryptResponse{}
	req := &api.EncryptRequest{Weight: weight, Contract: contract, Sender: sender}
	if err := c.call(ctx, HTTPPOST, req, resp, nil, api.GatewayInputsEndpoint); err != nil {
		return types.Handle{}, nil, err
	}
	return resp.Handle, resp.Proof, nil
}
