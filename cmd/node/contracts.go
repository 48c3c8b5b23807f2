package main

import (
	"fmt"
	"os"

	"DocBatch/internal/contract"
	"DocBatch/internal/logger"
)

// registerContractFile registers a YAML contract definition.
func (n *Node) registerContractFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open contract %s:\n%w", path, err)
	}
	defer f.Close()

	c, err := contract.LoadYAML(f)
	if err != nil {
		return fmt.Errorf("load contract %s:\n%w", path, err)
	}

	res, err := n.contracts.Register(c)
	if err != nil {
		return fmt.Errorf("register contract %s:\n%w", path, err)
	}

	if !res.IsValid() {
		return fmt.Errorf("contract %s rejected: %s", path, res)
	}

	logger.Info("contract registered", "file", path, "id", c.ID().String())

	return nil
}

// importSnapshot loads a contract snapshot file.
func (n *Node) importSnapshot(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read snapshot:\n%w", err)
	}

	count, err := n.contracts.Import(data)
	if err != nil {
		return fmt.Errorf("import snapshot %s:\n%w", path, err)
	}

	logger.Info("snapshot imported", "file", path, "contracts", count)

	return nil
}

// exportSnapshot writes every stored contract to a snapshot file.
func (n *Node) exportSnapshot(path string) error {
	data, err := n.contracts.Export()
	if err != nil {
		return fmt.Errorf("export snapshot:\n%w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write snapshot %s:\n%w", path, err)
	}

	logger.Info("snapshot exported", "file", path, "bytes", len(data))

	return nil
}
