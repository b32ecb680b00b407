package export

import "fmt"

// Heading is printed above tabular output where the format supports it.
type Heading struct {
	Title string
	Lines []string
}

// Exporter renders a dataset into one file format.
type Exporter interface {
	Render(data Dataset, heading Heading) ([]byte, error)
	ContentType() string
	Extension() string
}

// ForFormat returns the exporter registered for format ("csv" or "pdf").
func ForFormat(format string) (Exporter, error) {
	switch format {
	case "", "csv":
		return NewCSVExporter(), nil
	case "pdf":
		return NewPDFExporter(true), nil
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}
