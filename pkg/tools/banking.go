package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/bankteller/teller-go/internal/logger"
)

// BalanceTool returns the balance of an account. Mock implementation: the
// balance is a pseudo-random integer.
type BalanceTool struct{}

// Name returns the name of the tool
func (t *BalanceTool) Name() string { return "get_balance" }

// Description returns the description of the tool
func (t *BalanceTool) Description() string {
	return "This function will return the user account balance based on the account number provided"
}

// Run runs the tool
func (t *BalanceTool) Run(ctx context.Context, args string) (string, error) {
	logger.L.Info("balance tool invoked", "args", args)
	if strings.TrimSpace(args) == "" {
		return "Ask for an account number", nil
	}
	return strconv.Itoa(rand.IntN(100000)), nil
}

// transaction is one synthetic statement line.
type transaction struct {
	TransactionDate    string `json:"transaction_date"`
	TransactionType    string `json:"transaction_type"`
	TransactionAmount  string `json:"transaction_amount"`
	TransactionBalance string `json:"transaction_balance"`
}

// StatementTool returns an account statement. Mock implementation: five
// synthetic transactions walking back one day per record.
type StatementTool struct{}

// Name returns the name of the tool
func (t *StatementTool) Name() string { return "get_account_statement" }

// Description returns the description of the tool
func (t *StatementTool) Description() string {
	return "This function will return the account statement based on the account number, from date and to date provided"
}

// Run runs the tool
func (t *StatementTool) Run(ctx context.Context, args string) (string, error) {
	logger.L.Info("statement tool invoked", "args", args)
	if strings.TrimSpace(args) == "" {
		return "Ask for the account number, from date and to date. All three of them should be provided", nil
	}

	types := []string{"DEBIT", "CREDIT"}
	statement := make([]transaction, 0, 5)
	for i := 1; i <= 5; i++ {
		statement = append(statement, transaction{
			TransactionDate:    time.Now().AddDate(0, 0, -i).Format("1/2/2006"),
			TransactionType:    types[rand.IntN(2)],
			TransactionAmount:  strconv.Itoa(rand.IntN(100)),
			TransactionBalance: strconv.Itoa(rand.IntN(10000)),
		})
	}

	out, err := json.Marshal(statement)
	if err != nil {
		return "", fmt.Errorf("marshal statement: %w", err)
	}
	return string(out), nil
}

// TransferTool transfers funds between accounts. Mock implementation: always
// succeeds.
type TransferTool struct{}

// Name returns the name of the tool
func (t *TransferTool) Name() string { return "transfer_funds" }

// Description returns the description of the tool
func (t *TransferTool) Description() string {
	return "This function will transfer funds from one account to other account. The from and to account numbers and amount will be provided"
}

// Run runs the tool
func (t *TransferTool) Run(ctx context.Context, args string) (string, error) {
	logger.L.Info("transfer tool invoked", "args", args)
	if strings.TrimSpace(args) == "" {
		return "Ask for from and to account number and amount to transfer", nil
	}
	return "Funds transferred successfully", nil
}
