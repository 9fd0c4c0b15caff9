package ingest

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	apperrors "ntbcli/internal/errors"
	"ntbcli/pkg/contracts/domain"
)

func writeWorkbook(t *testing.T, sheets map[string][][]interface{}) string {
	t.Helper()
	f := excelize.NewFile()
	first := true
	for name, rows := range sheets {
		if first {
			require.NoError(t, f.SetSheetName("Sheet1", name))
			first = false
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for i, row := range rows {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetSheetRow(name, cell, &row))
		}
	}
	path := filepath.Join(t.TempDir(), "ledger.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())
	return path
}

func TestOpenExcel_FindsLedgerSheet(t *testing.T) {
	path := writeWorkbook(t, map[string][][]interface{}{
		"Data": {
			{"CUSTOMER_NO", "CUST_AC_NO", "REGION_DESC", "AC_OPEN_DATE", "MOBILE_APP_REGISTRATION_DATE", "INET_ELIGIBLE"},
			{"C001", "A001", "North", "2024-01-01", "2024-01-04", "Y"},
			{"C002", "A002", "South", "2024-02-10", "", "N"},
		},
	})

	r, err := OpenExcel(path, Options{ChunkSize: 10})
	require.NoError(t, err)
	defer r.Close()

	records := readAllSource(t, r)
	require.Len(t, records, 2)
	assert.Equal(t, "C001", records[0].CustomerNo)
	require.NotNil(t, records[0].OpenDate)
	assert.True(t, records[0].Eligible)
	assert.Nil(t, records[1].RegistrationDate)
}

func TestOpenExcel_SkipsNonLedgerSheets(t *testing.T) {
	path := writeWorkbook(t, map[string][][]interface{}{
		"Notes": {
			{"note"},
			{"not a ledger"},
		},
		"Ledger": {
			{"CUSTOMER_NO", "AC_OPEN_DATE"},
			{"C001", "2024-01-01"},
		},
	})

	r, err := OpenExcel(path, Options{})
	require.NoError(t, err)
	defer r.Close()

	records := readAllSource(t, r)
	require.Len(t, records, 1)
	assert.Equal(t, "C001", records[0].CustomerNo)
}

func TestOpenExcel_NoLedgerSheet(t *testing.T) {
	path := writeWorkbook(t, map[string][][]interface{}{
		"Notes": {
			{"a", "b"},
			{"1", "2"},
		},
	})

	_, err := OpenExcel(path, Options{})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeSourceAccess, apperrors.CodeOf(err))
}

func TestOpenExcel_MissingFile(t *testing.T) {
	_, err := OpenExcel(filepath.Join(t.TempDir(), "absent.xlsx"), Options{})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeSourceAccess, apperrors.CodeOf(err))
}

func readAllSource(t *testing.T, r *ExcelReader) []domain.AccountRecord {
	t.Helper()
	var all []domain.AccountRecord
	for {
		batch, err := r.Next(context.Background())
		if err == io.EOF {
			return all
		}
		require.NoError(t, err)
		all = append(all, batch...)
	}
}
