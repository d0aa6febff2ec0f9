// Package api holds the shared record and result types exchanged between the
// discovery, indexing and query layers, and consumed by the CLI shell.
package api

// DatasetRecord describes one discovered BIDS dataset root.
// Path always points at the marker directory itself; no two records in a
// single discovery result are nested.
type DatasetRecord struct {
	Path          string         `json:"path"`
	Name          string         `json:"name"`           // study label (parent directory name)
	ProjectFolder string         `json:"project_folder"` // one level above the study
	Description   map[string]any `json:"description"`    // parsed dataset_description.json, empty if absent
}

// FileRecord is a single data file returned by a query, tagged with the
// dataset it came from. Entities and Metadata are best-effort enrichment;
// ParticipantInfo is attached once the file has been cross-referenced.
type FileRecord struct {
	Path            string            `json:"path"`
	Dataset         string            `json:"dataset"`
	DatasetName     string            `json:"dataset_name"`
	ProjectFolder   string            `json:"project_folder"`
	Entities        map[string]string `json:"entities,omitempty"`
	Metadata        map[string]any    `json:"metadata,omitempty"`
	ParticipantID   string            `json:"participant_id,omitempty"`
	ParticipantInfo map[string]string `json:"participant_info,omitempty"`
}

// DatasetInfo is the entity inventory of a single dataset. Err is set when
// no index handle could be built for the dataset.
type DatasetInfo struct {
	Path      string   `json:"path"`
	Subjects  []string `json:"subjects"`
	Sessions  []string `json:"sessions"`
	Datatypes []string `json:"datatypes"`
	Tasks     []string `json:"tasks"`
	Err       string   `json:"error,omitempty"`
}

// QueryResult is the complete, inspectable outcome of either query direction.
// On failure the collections are empty and Error carries the reason; a result
// is never replaced by a raised fault.
type QueryResult struct {
	QueryType          string                  `json:"query_type"`
	Query              string                  `json:"query,omitempty"`
	Criteria           map[string]string       `json:"criteria,omitempty"`
	ParticipantsFound  []map[string]string     `json:"participants_found"`
	FilesFound         []FileRecord            `json:"files_found"`
	TotalFiles         int                     `json:"total_files"`
	DatasetsSearched   []string                `json:"datasets_searched"`
	FilesByParticipant map[string][]FileRecord `json:"files_by_participant,omitempty"`
	UnknownCriteria    []string                `json:"unknown_criteria,omitempty"`
	Error              string                  `json:"error,omitempty"`
}

// DatasetSummary is the per-dataset slice of a DatasetsSummary.
type DatasetSummary struct {
	Name          string   `json:"name"`
	Path          string   `json:"path"`
	ProjectFolder string   `json:"project_folder"`
	SubjectsCount int      `json:"subjects_count"`
	Datatypes     []string `json:"datatypes"`
	SessionsCount int      `json:"sessions_count"`
}

// DatasetsSummary is the datasets-overview operation result.
type DatasetsSummary struct {
	TotalDatasets int              `json:"total_datasets"`
	Datasets      []DatasetSummary `json:"datasets"`
}
