package mcpserver

import (
	"context"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/BrokerGo/internal/tools"
	"github.com/dyike/BrokerGo/internal/tradesummary"
)

const tradeCSV = `Company Name,Symbol,Share Volume
JOHN KEELLS HOLDINGS PLC,JKH.N0000,"1,500"
SAMPATH BANK PLC,SAMP.N0000,"20,000"
`

func connect(t *testing.T) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	snap, err := tradesummary.LoadCSV(strings.NewReader(tradeCSV))
	require.NoError(t, err)
	trades := tradesummary.NewService(tradesummary.ProviderFunc(func(context.Context) (*tradesummary.Snapshot, error) {
		return snap, nil
	}))
	srv := New(tools.NewService(tools.Deps{Trades: trades}), "test", nil)

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	ss, err := srv.MCP().Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

func callText(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any) (string, bool) {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	return text.Text, res.IsError
}

func TestListTools(t *testing.T) {
	cs := connect(t)
	res, err := cs.ListTools(context.Background(), nil)
	require.NoError(t, err)

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{
		tools.ToolMarketOverview, tools.ToolCompanyProfile, tools.ToolIntradayData,
		tools.ToolLatestAnnouncements, tools.ToolResolveSymbol, tools.ToolMarketTradeSummary,
		tools.ToolFindCompanyInfo, tools.ToolScrapeAndAnalyze, tools.ToolFinancialAnalysis,
		tools.ToolSearchKnowledgeBase,
	}, names)
}

func TestCallTools(t *testing.T) {
	cs := connect(t)

	out, isErr := callText(t, cs, tools.ToolResolveSymbol, map[string]any{"symbol": "jkh"})
	assert.False(t, isErr)
	assert.Equal(t, "JKH.N0000", out)

	out, isErr = callText(t, cs, tools.ToolMarketTradeSummary, map[string]any{"symbols": []string{"samp"}})
	assert.False(t, isErr)
	assert.Contains(t, out, "SAMP.N0000")
	assert.NotContains(t, out, "JKH.N0000")

	out, isErr = callText(t, cs, tools.ToolMarketOverview, map[string]any{})
	assert.True(t, isErr)
	assert.Contains(t, out, "not configured")
}
