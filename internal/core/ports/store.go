package ports

import "go.trai.ch/pour/internal/core/domain"

// ReceiptStore defines the interface for storing and retrieving install receipts.
//
//go:generate go run go.uber.org/mock/mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks
type ReceiptStore interface {
	// Get retrieves the receipt for a package name.
	// Returns nil, nil if not found.
	Get(name string) (*domain.InstallReceipt, error)

	// Put stores the receipt.
	Put(receipt domain.InstallReceipt) error
}
