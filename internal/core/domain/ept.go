package domain

// EPTData locates the remote Entwine Point Tile source for a workunit.
type EPTData struct {
	Workunit   string `json:"workunit"`
	CRS        CRS    `json:"crs"`
	EPTJSONURL string `json:"ept_json_url"`
}
