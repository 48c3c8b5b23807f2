// Package integration runs end-to-end scenarios against in-process nodes.
package integration

import (
	"net"
	"net/http/httptest"
	"testing"

	"google.golang.org/grpc"

	"DocBatch/client"
	"DocBatch/internal/api"
	"DocBatch/internal/batch"
	"DocBatch/internal/contractstore"
	"DocBatch/internal/contractstore/grpcstore"
	"DocBatch/internal/identifier"
	"DocBatch/internal/identity"
	"DocBatch/internal/schema"
	"DocBatch/internal/storage"
)

// Node is an in-process node: storage, stores, validator, HTTP API and gRPC store.
type Node struct {
	Contracts  *contractstore.Store // Contracts is the node's contract store
	Identities *identity.Store      // Identities is the node's identity store
	Client     *client.Client       // Client talks to the node's HTTP API
	GRPCAddr   string               // GRPCAddr is the contract store gRPC address
}

// nodeConfig tunes a test node.
type nodeConfig struct {
	remote string // remote is a gRPC contract store consulted on misses
}

// NodeOption configures a test node.
type NodeOption func(*nodeConfig)

// WithRemote makes the node resolve unknown contracts from another node.
func WithRemote(addr string) NodeOption {
	return func(c *nodeConfig) { c.remote = addr }
}

// StartNode wires and serves a node for the duration of the test.
func StartNode(t *testing.T, opts ...NodeOption) *Node {
	t.Helper()

	cfg := &nodeConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	db, err := storage.Open(storage.Options{Path: t.TempDir()})
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	engine := schema.NewEngine(schema.DefaultCacheSize)

	var storeOpts []contractstore.Option
	if cfg.remote != "" {
		remote, conn, err := grpcstore.Dial(cfg.remote)
		if err != nil {
			t.Fatalf("dial remote: %v", err)
		}
		t.Cleanup(func() { conn.Close() })

		storeOpts = append(storeOpts, contractstore.WithRemote(remote))
	}

	contracts, err := contractstore.New(db, engine, storeOpts...)
	if err != nil {
		t.Fatalf("contract store: %v", err)
	}
	t.Cleanup(contracts.Close)

	identities := identity.NewStore(db)

	validator, err := batch.NewValidator(batch.Deps{
		Contracts:  contracts,
		Identities: identity.NewChecker(identities),
		Signatures: identity.NewVerifier(identities),
		Schemas:    engine,
	})
	if err != nil {
		t.Fatalf("validator: %v", err)
	}

	httpSrv := httptest.NewServer(api.New("", validator, contracts, identities).Handler())
	t.Cleanup(httpSrv.Close)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen grpc: %v", err)
	}

	gs := grpc.NewServer()
	grpcstore.RegisterContractStoreServer(gs, grpcstore.NewServer(contracts))
	go gs.Serve(lis)
	t.Cleanup(gs.Stop)

	cli, err := client.NewClient(httpSrv.URL)
	if err != nil {
		t.Fatalf("client: %v", err)
	}

	return &Node{
		Contracts:  contracts,
		Identities: identities,
		Client:     cli,
		GRPCAddr:   lis.Addr().String(),
	}
}

// profileContract is a contract with a unique index on username.
const profileContract = `
ownerId: 11111111111111111111111111111112
documentTypes:
  profile:
    type: object
    indices:
      - name: byUsername
        unique: true
        properties:
          - username: asc
    properties:
      username:
        type: string
        maxLength: 16
      city:
        type: string
    required: [username]
    additionalProperties: false
`

// Fixture is a node with a registered contract and a registered wallet.
type Fixture struct {
	Node     *Node
	Wallet   *client.Wallet
	Contract identifier.Identifier
}

// NewFixture starts a node, registers the profile contract and a wallet identity.
func NewFixture(t *testing.T, signer identity.Signer, opts ...NodeOption) *Fixture {
	t.Helper()

	node := StartNode(t, opts...)

	id, res, err := node.Client.RegisterContract([]byte(profileContract))
	if err != nil || !res.Valid {
		t.Fatalf("register contract: %v, %+v", err, res)
	}

	w := NewWallet(t, signer)
	if err := node.Client.RegisterIdentity(w.Identity()); err != nil {
		t.Fatalf("register identity: %v", err)
	}

	return &Fixture{Node: node, Wallet: w, Contract: id}
}

// NewWallet creates a wallet, with an explicit signer when given.
func NewWallet(t *testing.T, signer identity.Signer) *client.Wallet {
	t.Helper()

	w, err := client.NewWallet()
	if err != nil {
		t.Fatalf("new wallet: %v", err)
	}

	if signer != nil {
		w = client.NewWalletWithSigner(w.Owner(), 1, signer)
	}

	return w
}

// Submit validates a batch and fails the test on transport errors.
func Submit(t *testing.T, cli *client.Client, raw batch.Raw) *client.Result {
	t.Helper()

	res, err := cli.ValidateBatch(raw)
	if err != nil {
		t.Fatalf("validate batch: %v", err)
	}

	return res
}
