package events

// JobEvent is the payload of every job lifecycle event.
type JobEvent struct {
	JobID                     string `json:"job_id"`
	JobName                   string `json:"job_name,omitempty"`
	Token                     string `json:"token,omitempty"`
	Attempt                   int    `json:"attempt"`
	InputFilePath             string `json:"input_file_path,omitempty"`
	ChunkedJSONOutputFilePath string `json:"chunked_json_output_file_path,omitempty"`
	MarkdownOutputFilePath    string `json:"markdown_output_file_path,omitempty"`
	Format                    string `json:"format,omitempty"`
	Chunks                    int    `json:"chunks,omitempty"`
	DurationMs                int64  `json:"duration_ms,omitempty"`
	Error                     string `json:"error,omitempty"`
}
