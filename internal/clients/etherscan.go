package clients

import (
	"context"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"

	"github.com/vadiminshakov/costbasis/internal/domain"
	"github.com/vadiminshakov/costbasis/pkg/retrier"
)

const (
	DefaultEtherscanURL = "https://api.etherscan.io/v2/api"

	etherscanNoRecords = "No transactions found"
	etherscanRateLimit = "rate limit"
	maxBlock           = "99999999"
)

var (
	// ErrNotFound is returned when a transaction or receipt does not exist.
	ErrNotFound = errors.New("not found")
	// ErrEtherscanRateLimited is returned when Etherscan keeps refusing calls.
	ErrEtherscanRateLimited = errors.New("etherscan rate limit reached")
)

// EtherscanClient reads account history and transaction data through the Etherscan V2 API.
type EtherscanClient struct {
	baseURL string
	apiKey  string
	chainID int64
	http    *http.Client
	retrier *retrier.Retrier
}

// NewEtherscanClient creates a client for chainID. Calls refused for rate
// limiting are retried after 1s and 2s.
func NewEtherscanClient(baseURL, apiKey string, chainID int64) *EtherscanClient {
	if baseURL == "" {
		baseURL = DefaultEtherscanURL
	}
	return &EtherscanClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		chainID: chainID,
		http:    &http.Client{Timeout: 30 * time.Second},
		retrier: retrier.New(
			retrier.WithSchedule(time.Second, 2*time.Second),
			retrier.WithRetryIf(func(err error) bool { return errors.Is(err, ErrEtherscanRateLimited) }),
		),
	}
}

type accountResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

type proxyResponse struct {
	Status string          `json:"status"`
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type tokenTx struct {
	BlockNumber  string `json:"blockNumber"`
	TimeStamp    string `json:"timeStamp"`
	Hash         string `json:"hash"`
	From         string `json:"from"`
	To           string `json:"to"`
	Value        string `json:"value"`
	TokenDecimal string `json:"tokenDecimal"`
}

type internalTx struct {
	Hash    string `json:"hash"`
	From    string `json:"from"`
	To      string `json:"to"`
	Value   string `json:"value"`
	IsError string `json:"isError"`
}

type rpcTx struct {
	Hash  common.Hash     `json:"hash"`
	From  common.Address  `json:"from"`
	To    *common.Address `json:"to"`
	Value *hexutil.Big    `json:"value"`
}

type rpcLog struct {
	Address  common.Address `json:"address"`
	Topics   []common.Hash  `json:"topics"`
	Data     hexutil.Bytes  `json:"data"`
	TxHash   common.Hash    `json:"transactionHash"`
	LogIndex hexutil.Uint   `json:"logIndex"`
}

// TokenTransfers lists every transfer of token touching wallet, oldest first.
func (c *EtherscanClient) TokenTransfers(ctx context.Context, wallet, token common.Address) ([]domain.TransferEvent, error) {
	q := url.Values{}
	q.Set("module", "account")
	q.Set("action", "tokentx")
	q.Set("address", wallet.Hex())
	q.Set("contractaddress", token.Hex())
	q.Set("startblock", "0")
	q.Set("endblock", maxBlock)
	q.Set("sort", "asc")

	var rows []tokenTx
	if err := c.account(ctx, q, &rows); err != nil {
		return nil, errors.Wrap(err, "tokentx")
	}

	events := make([]domain.TransferEvent, 0, len(rows))
	for _, r := range rows {
		ev, err := r.event()
		if err != nil {
			return nil, errors.Wrapf(err, "tokentx row %s", r.Hash)
		}
		events = append(events, ev)
	}

	return events, nil
}

// InternalTransfers lists successful internal native transfers of wallet in [fromBlock, toBlock].
func (c *EtherscanClient) InternalTransfers(ctx context.Context, wallet common.Address, fromBlock, toBlock uint64) ([]domain.InternalTransfer, error) {
	q := url.Values{}
	q.Set("module", "account")
	q.Set("action", "txlistinternal")
	q.Set("address", wallet.Hex())
	q.Set("startblock", strconv.FormatUint(fromBlock, 10))
	q.Set("endblock", strconv.FormatUint(toBlock, 10))
	q.Set("sort", "asc")

	var rows []internalTx
	if err := c.account(ctx, q, &rows); err != nil {
		return nil, errors.Wrap(err, "txlistinternal")
	}

	out := make([]domain.InternalTransfer, 0, len(rows))
	for _, r := range rows {
		if r.IsError == "1" {
			continue
		}
		value, ok := new(big.Int).SetString(r.Value, 10)
		if !ok {
			return nil, errors.Errorf("txlistinternal: bad value %q in %s", r.Value, r.Hash)
		}
		out = append(out, domain.InternalTransfer{
			TxHash: common.HexToHash(r.Hash),
			From:   common.HexToAddress(r.From),
			To:     common.HexToAddress(r.To),
			Value:  value,
		})
	}

	return out, nil
}

// TransactionByHash fetches a transaction through the eth_getTransactionByHash proxy.
func (c *EtherscanClient) TransactionByHash(ctx context.Context, hash common.Hash) (domain.TxDetails, error) {
	var tx *rpcTx
	if err := c.proxy(ctx, "eth_getTransactionByHash", hash, &tx); err != nil {
		return domain.TxDetails{}, err
	}
	if tx == nil {
		return domain.TxDetails{}, errors.Wrapf(ErrNotFound, "transaction %s", hash.Hex())
	}

	details := domain.TxDetails{Hash: tx.Hash, From: tx.From, To: tx.To, Value: new(big.Int)}
	if tx.Value != nil {
		details.Value = tx.Value.ToInt()
	}
	return details, nil
}

// ReceiptLogs fetches the logs of a transaction through the eth_getTransactionReceipt proxy.
func (c *EtherscanClient) ReceiptLogs(ctx context.Context, hash common.Hash) ([]*types.Log, error) {
	var receipt *struct {
		Logs []rpcLog `json:"logs"`
	}
	if err := c.proxy(ctx, "eth_getTransactionReceipt", hash, &receipt); err != nil {
		return nil, err
	}
	if receipt == nil {
		return nil, errors.Wrapf(ErrNotFound, "receipt %s", hash.Hex())
	}

	logs := make([]*types.Log, 0, len(receipt.Logs))
	for _, l := range receipt.Logs {
		logs = append(logs, &types.Log{
			Address: l.Address,
			Topics:  l.Topics,
			Data:    l.Data,
			TxHash:  l.TxHash,
			Index:   uint(l.LogIndex),
		})
	}
	return logs, nil
}

func (c *EtherscanClient) account(ctx context.Context, q url.Values, out any) error {
	return c.retrier.Do(ctx, func(ctx context.Context) error {
		body, err := c.get(ctx, q)
		if err != nil {
			return err
		}

		var resp accountResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return errors.Wrap(err, "decode etherscan response")
		}

		if resp.Status != "1" {
			if strings.HasPrefix(resp.Message, etherscanNoRecords) {
				return json.Unmarshal([]byte("[]"), out)
			}
			return resultError(resp.Message, resp.Result)
		}

		return errors.Wrap(json.Unmarshal(resp.Result, out), "decode etherscan result")
	})
}

func (c *EtherscanClient) proxy(ctx context.Context, action string, hash common.Hash, out any) error {
	q := url.Values{}
	q.Set("module", "proxy")
	q.Set("action", action)
	q.Set("txhash", hash.Hex())

	return c.retrier.Do(ctx, func(ctx context.Context) error {
		body, err := c.get(ctx, q)
		if err != nil {
			return err
		}

		var resp proxyResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return errors.Wrapf(err, "decode %s response", action)
		}
		if resp.Error != nil {
			return errors.Errorf("%s: %d %s", action, resp.Error.Code, resp.Error.Message)
		}
		// proxy calls only carry a status when Etherscan itself refused them
		if resp.Status == "0" {
			return resultError(action, resp.Result)
		}
		if len(resp.Result) == 0 {
			return nil
		}

		return errors.Wrapf(json.Unmarshal(resp.Result, out), "decode %s result", action)
	})
}

func (c *EtherscanClient) get(ctx context.Context, q url.Values) ([]byte, error) {
	q.Set("chainid", strconv.FormatInt(c.chainID, 10))
	if c.apiKey != "" {
		q.Set("apikey", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "build etherscan request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "etherscan %s", q.Get("action"))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read etherscan response")
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrEtherscanRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("etherscan returned status %d", resp.StatusCode)
	}

	return body, nil
}

// resultError turns the string result of a refused call into an error.
func resultError(message string, raw json.RawMessage) error {
	var detail string
	if err := json.Unmarshal(raw, &detail); err != nil {
		detail = string(raw)
	}
	if strings.Contains(strings.ToLower(detail), etherscanRateLimit) {
		return errors.Wrap(ErrEtherscanRateLimited, detail)
	}
	return errors.Errorf("etherscan error: %s: %s", message, detail)
}

func (r tokenTx) event() (domain.TransferEvent, error) {
	block, err := strconv.ParseUint(r.BlockNumber, 10, 64)
	if err != nil {
		return domain.TransferEvent{}, errors.Wrap(err, "block number")
	}
	ts, err := strconv.ParseInt(r.TimeStamp, 10, 64)
	if err != nil {
		return domain.TransferEvent{}, errors.Wrap(err, "timestamp")
	}
	raw, ok := new(big.Int).SetString(r.Value, 10)
	if !ok {
		return domain.TransferEvent{}, errors.Errorf("value %q", r.Value)
	}
	decimals, err := strconv.ParseInt(r.TokenDecimal, 10, 32)
	if err != nil {
		return domain.TransferEvent{}, errors.Wrap(err, "token decimal")
	}

	return domain.TransferEvent{
		BlockNumber: block,
		Timestamp:   ts,
		TxHash:      common.HexToHash(r.Hash),
		From:        common.HexToAddress(r.From),
		To:          common.HexToAddress(r.To),
		RawAmount:   raw,
		Decimals:    int32(decimals),
	}, nil
}
