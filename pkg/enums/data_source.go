package enums

// DataSource names where the working set of a response came from.
type DataSource string

const (
	DataSourceUploaded  DataSource = "uploaded"
	DataSourceLive      DataSource = "live"
	DataSourceGenerated DataSource = "generated"
)

func (d DataSource) IsValid() bool {
	switch d {
	case DataSourceUploaded, DataSourceLive, DataSourceGenerated:
		return true
	}
	return false
}
