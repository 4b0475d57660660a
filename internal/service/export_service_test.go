package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/spec-kit/protocol-service/internal/repository"
)

func TestExportService_CSVUsesSemicolons(t *testing.T) {
	repo := newFakeProtocolRepo()
	svc := newTestService(repo, nil)
	export := NewExportService(repo)
	ctx := context.Background()

	input := validCreateInput(1)
	protocol := mustCreate(t, svc, input)

	data, err := export.ExportCSV(ctx, repository.ProtocolFilter{})
	require.NoError(t, err)

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = ';'
	rows, err := reader.ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, []string{"number", "driver", "date", "time", "status", "unit", "pdv_code", "invoice_number"}, rows[0])
	assert.Equal(t, protocol.Number, rows[1][0])
	assert.Equal(t, "Carlos Mendes", rows[1][1])
	assert.Equal(t, "10/03/2026", rows[1][2])
	assert.Equal(t, "14:30:00", rows[1][3])
	assert.Equal(t, "open", rows[1][4])
	assert.Equal(t, "CD-Norte", rows[1][5])
	assert.Equal(t, "PDV-42", rows[1][6])
	assert.Equal(t, "NF-8891", rows[1][7])
}

func TestExportService_CSVExcludesHidden(t *testing.T) {
	repo := newFakeProtocolRepo()
	svc := newTestService(repo, nil)
	export := NewExportService(repo)
	ctx := context.Background()

	protocol := mustCreate(t, svc, validCreateInput(1))
	_, err := svc.Hide(ctx, adminActor, protocol.ID)
	require.NoError(t, err)

	data, err := export.ExportCSV(ctx, repository.ProtocolFilter{})
	require.NoError(t, err)

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = ';'
	rows, err := reader.ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 1, "only the header survives when every protocol is hidden")
}

func TestExportService_XLSXRoundTrips(t *testing.T) {
	repo := newFakeProtocolRepo()
	svc := newTestService(repo, nil)
	export := NewExportService(repo)
	ctx := context.Background()

	protocol := mustCreate(t, svc, validCreateInput(1))

	data, err := export.ExportXLSX(ctx, repository.ProtocolFilter{})
	require.NoError(t, err)

	file, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer file.Close() //nolint:errcheck

	rows, err := file.GetRows("Protocols")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "number", rows[0][0])
	assert.Equal(t, protocol.Number, rows[1][0])
}
