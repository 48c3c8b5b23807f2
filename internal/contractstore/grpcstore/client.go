package grpcstore

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"DocBatch/internal/contract"
	"DocBatch/internal/contractstore"
	"DocBatch/internal/identifier"
)

// DefaultTimeout bounds one remote fetch.
const DefaultTimeout = 5 * time.Second

// Client resolves contracts from a remote ContractStore service.
type Client struct {
	cc      grpc.ClientConnInterface // cc is the connection to the remote store
	Timeout time.Duration            // Timeout bounds each fetch; zero disables it
}

// NewClient creates a client over an established connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc, Timeout: DefaultTimeout}
}

// Dial connects to a remote store at addr without transport security.
func Dial(addr string) (*Client, *grpc.ClientConn, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, nil, fmt.Errorf("dial contract store %s:\n%w", addr, err)
	}

	return NewClient(conn), conn, nil
}

// FetchContract resolves a contract remotely. It returns nil, nil when the remote
// store does not know the contract. The answer must hash to id.
func (c *Client) FetchContract(ctx context.Context, id identifier.Identifier) (*contract.Contract, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	out := new(wrapperspb.BytesValue)

	err := c.cc.Invoke(ctx, fetchMethod, wrapperspb.Bytes(id.Bytes()), out)
	if status.Code(err) == codes.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch contract %s:\n%w", id.Short(), err)
	}

	if identifier.Hash(out.GetValue()) != id {
		return nil, fmt.Errorf("contract %s:\n%w", id.Short(), contractstore.ErrIntegrity)
	}

	ct, err := contract.Decode(out.GetValue())
	if err != nil {
		return nil, fmt.Errorf("decode contract %s:\n%w", id.Short(), err)
	}

	return ct, nil
}
