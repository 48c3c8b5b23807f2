package grpcstore

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"DocBatch/internal/batch"
	"DocBatch/internal/identifier"
	"DocBatch/internal/logger"
)

// Server exposes a contract fetcher over gRPC.
type Server struct {
	contracts batch.ContractFetcher // contracts resolves requested contracts
}

// NewServer creates a server over contracts.
func NewServer(contracts batch.ContractFetcher) *Server {
	return &Server{contracts: contracts}
}

// Fetch returns the canonical encoding of the requested contract.
func (s *Server) Fetch(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	id, err := identifier.FromBytes(in.GetValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	c, err := s.contracts.FetchContract(ctx, id)
	if err != nil {
		logger.Warn("grpc contract fetch failed", "id", id.Short(), "error", err)
		return nil, status.Error(codes.Internal, "contract lookup failed")
	}

	if c == nil {
		return nil, status.Errorf(codes.NotFound, "contract %s not found", id)
	}

	data, err := c.Encode()
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}

	return wrapperspb.Bytes(data), nil
}
