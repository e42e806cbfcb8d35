package exporter

import (
	"sbscli/internal/dataprocessing"
	"sbscli/pkg/contracts/domain"
)

// RegistryHeaders lists the columns of a registry input file.
var RegistryHeaders = []string{
	dataprocessing.ColFirmID,
	dataprocessing.ColRegionCode,
	dataprocessing.ColSectorCode,
	dataprocessing.ColLegalForm,
	dataprocessing.ColEmployees,
	dataprocessing.ColFoundationYear,
	dataprocessing.ColRevenueLastYear,
}

// RegistryRow converts a firm to its cells in RegistryHeaders order.
func RegistryRow(f domain.Firm) []string {
	return []string{
		f.FirmID,
		f.RegionCode,
		f.SectorCode,
		f.LegalForm,
		formatNullInt(f.EmployeesRegistered),
		formatNullInt(f.FoundationYear),
		formatNullFloat(f.RevenueLastYear),
	}
}

// SeriesHeaders lists the columns of a monthly input file for measure.
func SeriesHeaders(measure domain.Measure) []string {
	return []string{
		dataprocessing.ColFirmID,
		dataprocessing.ColMonth,
		dataprocessing.ValueColumn(measure),
		dataprocessing.ColSectorCode,
		dataprocessing.ColRegionCode,
	}
}

// ObservationRow converts an observation to its cells in SeriesHeaders order.
func ObservationRow(o domain.MonthlyObservation) []string {
	return []string{
		o.FirmID,
		formatDate(o.Month),
		formatNullFloat(o.Value),
		o.SectorCode,
		o.RegionCode,
	}
}

// WriteRegistry writes firms in the registry input format.
func (w *CSVWriter) WriteRegistry(path string, firms []domain.Firm) error {
	records := make([][]string, len(firms))
	for i, f := range firms {
		records[i] = RegistryRow(f)
	}
	return w.WriteCSV(path, WriteOptions{Headers: RegistryHeaders, Records: records})
}

// WriteSeries writes a monthly source in the input format of its measure.
func (w *CSVWriter) WriteSeries(path string, s domain.Series) error {
	records := make([][]string, len(s.Observations))
	for i, o := range s.Observations {
		records[i] = ObservationRow(o)
	}
	return w.WriteCSV(path, WriteOptions{Headers: SeriesHeaders(s.Measure), Records: records})
}
