package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/spec-kit/protocol-service/internal/domain"
	"github.com/spec-kit/protocol-service/internal/repository"
)

// ExportService produces read-only flat projections of protocols for
// back-office spreadsheets. It is not part of the lifecycle engine.
type ExportService struct {
	protocols repository.ProtocolRepository
}

// NewExportService constructs the service.
func NewExportService(protocols repository.ProtocolRepository) *ExportService {
	return &ExportService{protocols: protocols}
}

var exportHeader = []string{"number", "driver", "date", "time", "status", "unit", "pdv_code", "invoice_number"}

func exportRow(protocol *domain.Protocol) []string {
	return []string{
		protocol.Number,
		protocol.Driver.Name,
		protocol.CreationDate,
		protocol.CreationTime,
		string(protocol.Status),
		protocol.Unit,
		protocol.PDVCode,
		protocol.InvoiceNumber,
	}
}

// ExportCSV writes the semicolon-delimited row-per-protocol projection.
func (s *ExportService) ExportCSV(ctx context.Context, filter repository.ProtocolFilter) ([]byte, error) {
	protocols, err := s.protocols.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	writer.Comma = ';'
	if err := writer.Write(exportHeader); err != nil {
		return nil, err
	}
	for i := range protocols {
		if err := writer.Write(exportRow(&protocols[i])); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ExportXLSX writes the same projection as a spreadsheet.
func (s *ExportService) ExportXLSX(ctx context.Context, filter repository.ProtocolFilter) ([]byte, error) {
	protocols, err := s.protocols.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, err
	}

	file := excelize.NewFile()
	defer file.Close() //nolint:errcheck
	const sheet = "Protocols"
	index, err := file.NewSheet(sheet)
	if err != nil {
		return nil, err
	}
	file.SetActiveSheet(index)
	file.DeleteSheet("Sheet1") //nolint:errcheck

	for col, title := range exportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := file.SetCellValue(sheet, cell, title); err != nil {
			return nil, err
		}
	}
	for rowIdx := range protocols {
		for col, value := range exportRow(&protocols[rowIdx]) {
			cell, err := excelize.CoordinatesToCellName(col+1, rowIdx+2)
			if err != nil {
				return nil, err
			}
			if err := file.SetCellValue(sheet, cell, value); err != nil {
				return nil, err
			}
		}
	}

	var buf bytes.Buffer
	if err := file.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
