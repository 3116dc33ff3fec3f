package tools

import (
	"context"
	"encoding/json"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBalanceTool(t *testing.T) {
	tool := &BalanceTool{}
	ctx := context.Background()

	out, err := tool.Run(ctx, "")
	require.NoError(t, err)
	require.Equal(t, "Ask for an account number", out)

	out, err = tool.Run(ctx, "123")
	require.NoError(t, err)
	balance, err := strconv.Atoi(out)
	require.NoError(t, err, "balance should be an integer string, got %q", out)
	require.GreaterOrEqual(t, balance, 0)
	require.Less(t, balance, 100000)
}

func TestStatementTool(t *testing.T) {
	tool := &StatementTool{}

	out, err := tool.Run(context.Background(), "123 from 1/1/2024 to 2/1/2024")
	require.NoError(t, err)

	var statement []map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &statement))
	require.Len(t, statement, 5)
	for _, record := range statement {
		require.Contains(t, record, "transaction_date")
		require.Contains(t, []string{"DEBIT", "CREDIT"}, record["transaction_type"])
		require.Contains(t, record, "transaction_amount")
		require.Contains(t, record, "transaction_balance")
	}
}

func TestTransferTool(t *testing.T) {
	tool := &TransferTool{}

	out, err := tool.Run(context.Background(), "from 123 to 456 amount 50")
	require.NoError(t, err)
	require.Equal(t, "Funds transferred successfully", out)
}

func TestToolManager_UnknownTool(t *testing.T) {
	m := NewToolManager()
	_, err := m.GetTool("nope")
	require.ErrorIs(t, err, ErrUnknownTool)
}

func TestToolManager_Definitions(t *testing.T) {
	m := NewToolManager()
	m.RegisterTool(&TransferTool{})
	m.RegisterTool(&BalanceTool{})

	defs := m.Definitions()
	require.Len(t, defs, 2)
	// Stable name order.
	require.Equal(t, "get_balance", defs[0].Function.Name)
	require.Equal(t, "transfer_funds", defs[1].Function.Name)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(defs[0].Function.Parameters.(json.RawMessage), &schema))
	require.Equal(t, "object", schema["type"])
}
