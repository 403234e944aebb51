package clients

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"

	"github.com/vadiminshakov/costbasis/internal/domain"
)

// RPCClient reads transactions and receipts from an Ethereum JSON-RPC node.
type RPCClient struct {
	client *ethclient.Client
}

// DialRPC connects to the node at rawurl.
func DialRPC(ctx context.Context, rawurl string) (*RPCClient, error) {
	client, err := ethclient.DialContext(ctx, rawurl)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to RPC")
	}
	return &RPCClient{client: client}, nil
}

// ChainID returns the chain id reported by the node.
func (c *RPCClient) ChainID(ctx context.Context) (*big.Int, error) {
	id, err := c.client.ChainID(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "chain id")
	}
	return id, nil
}

// TransactionByHash returns the value and recipient of a transaction. The
// sender is not recovered, From stays zero.
func (c *RPCClient) TransactionByHash(ctx context.Context, hash common.Hash) (domain.TxDetails, error) {
	tx, _, err := c.client.TransactionByHash(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return domain.TxDetails{}, errors.Wrapf(ErrNotFound, "transaction %s", hash.Hex())
	}
	if err != nil {
		return domain.TxDetails{}, errors.Wrapf(err, "transaction %s", hash.Hex())
	}

	return domain.TxDetails{
		Hash:  hash,
		To:    tx.To(),
		Value: tx.Value(),
	}, nil
}

func (c *RPCClient) ReceiptLogs(ctx context.Context, hash common.Hash) ([]*types.Log, error) {
	receipt, err := c.client.TransactionReceipt(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return nil, errors.Wrapf(ErrNotFound, "receipt %s", hash.Hex())
	}
	if err != nil {
		return nil, errors.Wrapf(err, "receipt %s", hash.Hex())
	}
	return receipt.Logs, nil
}

func (c *RPCClient) Close() {
	c.client.Close()
}
