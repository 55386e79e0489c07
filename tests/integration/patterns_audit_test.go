package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screener/internal/patterns"
)

func TestAuditLogger_LogAndListByPattern(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false)

	ctx := context.Background()
	repo := patterns.NewRepository(infra.PostgresDB)
	audit := patterns.NewAuditLogger(infra.PostgresDB)

	p := createTestPattern("audited", "spam", patterns.PatternTypeKeyword, patterns.TargetFieldTitle, 10)
	require.NoError(t, repo.Create(ctx, p))

	require.NoError(t, audit.LogChange(ctx, patterns.AuditLogEntry{
		PatternID:    p.ID,
		Action:       patterns.AuditActionCreate,
		NewValue:     p,
		ChangedBy:    "tester",
		ChangeReason: "initial setup",
		IPAddress:    "127.0.0.1",
	}))
	time.Sleep(timestampDelay)
	require.NoError(t, audit.LogChange(ctx, patterns.AuditLogEntry{
		PatternID: p.ID,
		Action:    patterns.AuditActionDeactivate,
		OldValue:  p,
		ChangedBy: "tester",
	}))

	entries, err := audit.ListByPattern(ctx, p.ID, 10)
	require.NoError(t, err)

	require.Len(t, entries, 2)
	assert.Equal(t, patterns.AuditActionDeactivate, entries[0].Action)
	assert.Equal(t, patterns.AuditActionCreate, entries[1].Action)
	assert.Equal(t, "tester", entries[0].ChangedBy)
	assert.Equal(t, "initial setup", entries[1].ChangeReason)
}

func TestAuditLogger_ListRecent(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false)

	ctx := context.Background()
	repo := patterns.NewRepository(infra.PostgresDB)
	audit := patterns.NewAuditLogger(infra.PostgresDB)

	first := createTestPattern("first", "spam", patterns.PatternTypeKeyword, patterns.TargetFieldTitle, 10)
	second := createTestPattern("second", "scam", patterns.PatternTypeKeyword, patterns.TargetFieldChannel, 10)
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))

	require.NoError(t, audit.LogChange(ctx, patterns.AuditLogEntry{
		PatternID: first.ID,
		Action:    patterns.AuditActionCreate,
	}))
	time.Sleep(timestampDelay)
	require.NoError(t, audit.LogChange(ctx, patterns.AuditLogEntry{
		PatternID: second.ID,
		Action:    patterns.AuditActionCreate,
	}))

	entries, err := audit.ListRecent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	entries, err = audit.ListRecent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
