package agent

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/google/uuid"
)

// Deps is the per-turn dependency bundle handed to an agent.
type Deps struct {
	UserID     uuid.UUID
	CustomerID int64
	Bank       BankStore
}

type Transaction struct {
	Date        string  `json:"date"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
}

// BankStore is the customer data the bank support agent may consult.
type BankStore interface {
	CustomerName(ctx context.Context, customerID int64) (string, error)
	Balance(ctx context.Context, customerID int64, includePending bool) (float64, error)
	RecentTransactions(ctx context.Context, customerID int64, limit int) ([]Transaction, error)
	BlockCard(ctx context.Context, customerID int64) (bool, error)
}

// CustomerIDFromUser derives a stable demo customer id from the first 8 hex
// digits of the user id.
func CustomerIDFromUser(userID uuid.UUID) int64 {
	return int64(binary.BigEndian.Uint32(userID[:4]) % 10000)
}

// SimulatedBank is an in-memory stand-in for a core banking system.
type SimulatedBank struct {
	mu      sync.Mutex
	blocked map[int64]bool
}

func NewSimulatedBank() *SimulatedBank {
	return &SimulatedBank{blocked: make(map[int64]bool)}
}

var demoTransactions = []Transaction{
	{Date: "2023-06-15", Description: "Grocery Store", Amount: -78.52},
	{Date: "2023-06-14", Description: "Salary Deposit", Amount: 2500.00},
	{Date: "2023-06-12", Description: "Restaurant", Amount: -45.67},
	{Date: "2023-06-10", Description: "Gas Station", Amount: -35.40},
	{Date: "2023-06-08", Description: "Online Shopping", Amount: -112.99},
}

func (b *SimulatedBank) CustomerName(ctx context.Context, customerID int64) (string, error) {
	return "John Doe", nil
}

func (b *SimulatedBank) Balance(ctx context.Context, customerID int64, includePending bool) (float64, error) {
	if includePending {
		return 1123.45, nil
	}
	return 1234.56, nil
}

func (b *SimulatedBank) RecentTransactions(ctx context.Context, customerID int64, limit int) ([]Transaction, error) {
	if limit <= 0 || limit > len(demoTransactions) {
		limit = len(demoTransactions)
	}
	out := make([]Transaction, limit)
	copy(out, demoTransactions[:limit])
	return out, nil
}

func (b *SimulatedBank) BlockCard(ctx context.Context, customerID int64) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blocked[customerID] = true
	return true, nil
}

// Blocked reports whether BlockCard ran for customerID.
func (b *SimulatedBank) Blocked(customerID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.blocked[customerID]
}
