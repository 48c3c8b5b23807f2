package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"google.golang.org/grpc"

	"DocBatch/internal/api"
	"DocBatch/internal/batch"
	"DocBatch/internal/config"
	"DocBatch/internal/contractstore"
	"DocBatch/internal/contractstore/grpcstore"
	"DocBatch/internal/identity"
	"DocBatch/internal/logger"
	"DocBatch/internal/schema"
	"DocBatch/internal/storage"
)

// Node represents a running DocBatch node.
type Node struct {
	cfg        config.Config
	storage    *storage.Storage
	engine     *schema.Engine
	remoteConn *grpc.ClientConn // remoteConn is the connection to a remote contract store
	contracts  *contractstore.Store
	identities *identity.Store
	validator  *batch.Validator
	api        *api.Server
	grpc       *grpc.Server
}

// NewNode opens storage and wires the validation pipeline.
func NewNode(cfg config.Config) (*Node, error) {
	n := &Node{cfg: cfg}

	// 1. Storage
	if err := n.initStorage(); err != nil {
		return nil, err
	}

	// 2. Schema engine and stores
	if err := n.initStores(); err != nil {
		n.Close()
		return nil, err
	}

	// 3. Batch validator
	v, err := batch.NewValidator(batch.Deps{
		Contracts:  n.contracts,
		Identities: identity.NewChecker(n.identities),
		Signatures: identity.NewVerifier(n.identities),
		Schemas:    n.engine,
	})
	if err != nil {
		n.Close()
		return nil, fmt.Errorf("init validator:\n%w", err)
	}
	n.validator = v

	return n, nil
}

// initStorage initializes the Pebble storage.
func (n *Node) initStorage() error {
	if err := os.MkdirAll(n.cfg.DataPath, 0755); err != nil {
		return fmt.Errorf("create data directory:\n%w", err)
	}

	db, err := storage.New(filepath.Join(n.cfg.DataPath, "db"))
	if err != nil {
		return fmt.Errorf("init storage:\n%w", err)
	}

	n.storage = db

	return nil
}

// initStores creates the schema engine, contract store and identity store.
func (n *Node) initStores() error {
	n.engine = schema.NewEngine(n.cfg.SchemaCacheSize)

	var opts []contractstore.Option

	if n.cfg.RemoteContracts != "" {
		client, conn, err := grpcstore.Dial(n.cfg.RemoteContracts)
		if err != nil {
			return err
		}

		n.remoteConn = conn
		opts = append(opts, contractstore.WithRemote(client))
	}

	contracts, err := contractstore.New(n.storage, n.engine, opts...)
	if err != nil {
		return fmt.Errorf("init contract store:\n%w", err)
	}

	n.contracts = contracts
	n.identities = identity.NewStore(n.storage)

	return nil
}

// prepare runs startup imports and registrations.
func (n *Node) prepare(opts *options) error {
	if opts.importSnapshot != "" {
		if err := n.importSnapshot(opts.importSnapshot); err != nil {
			return err
		}
	}

	for _, path := range opts.contracts {
		if err := n.registerContractFile(path); err != nil {
			return err
		}
	}

	return nil
}

// Run starts the servers and blocks until shutdown signal.
func (n *Node) Run() error {
	n.api = api.New(n.cfg.HTTPAddress, n.validator, n.contracts, n.identities)
	if err := n.api.Start(); err != nil {
		return fmt.Errorf("start api:\n%w", err)
	}

	if n.cfg.GRPCAddress != "" {
		if err := n.startGRPC(); err != nil {
			n.Close()
			return err
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", "signal", sig.String())

	return n.Close()
}

// startGRPC serves the contract store over gRPC.
func (n *Node) startGRPC() error {
	lis, err := net.Listen("tcp", n.cfg.GRPCAddress)
	if err != nil {
		return fmt.Errorf("listen grpc %s:\n%w", n.cfg.GRPCAddress, err)
	}

	n.grpc = grpc.NewServer()
	grpcstore.RegisterContractStoreServer(n.grpc, grpcstore.NewServer(n.contracts))

	go func() {
		logger.Info("grpc contract store started", "addr", lis.Addr().String())

		if err := n.grpc.Serve(lis); err != nil {
			logger.Error("grpc server error", "error", err)
		}
	}()

	return nil
}

// Close shuts down all node components gracefully.
func (n *Node) Close() error {
	if n.api != nil {
		n.api.Stop()
	}

	if n.grpc != nil {
		n.grpc.GracefulStop()
	}

	if n.contracts != nil {
		n.contracts.Close()
	}

	if n.remoteConn != nil {
		n.remoteConn.Close()
	}

	if n.storage != nil {
		return n.storage.Close()
	}

	return nil
}
